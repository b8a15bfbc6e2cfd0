// Package event is a small in-process event bus used to push pipeline
// state transitions, clip events, and FIFO pressure events to embedding
// applications (e.g. a UI VU meter) without polling for stats. It is
// adapted from v2/pkg/event.EventBus, trimmed to a single fixed worker
// pool since the audio-thread boundary never needs the elastic
// batch/scale machinery: events here are low-rate control-plane
// notifications, not a per-sample hot path.
package event

import "time"

// Type identifies what kind of pipeline event occurred.
type Type string

const (
	TypeStateChanged   Type = "pipeline.state_changed"
	TypeClip           Type = "mixer.clip"
	TypeUnderrun       Type = "fifo.underrun"
	TypeOverrun        Type = "fifo.overrun"
	TypeChannelAdded   Type = "mixer.channel_added"
	TypeChannelRemoved Type = "mixer.channel_removed"
	TypeDeviceError    Type = "device.error"
)

// Event is a single notification published on the bus.
type Event struct {
	Type      Type
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Handler receives published events. Handlers run on a bus worker
// goroutine, never on the audio thread.
type Handler func(Event)
