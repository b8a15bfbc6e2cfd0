package pipeline

import (
	"time"

	"github.com/go-musicfox/audiocore/pkg/frame"
	"github.com/go-musicfox/audiocore/pkg/loudness"
	"github.com/go-musicfox/audiocore/pkg/meter"
	"github.com/go-musicfox/audiocore/pkg/quality"
)

// Config is the plain record injected at Pipeline construction time.
// There is no environment variable or on-disk format at this layer;
// internal/config is what parses one of these from YAML/env/flags for an
// embedding application.
type Config struct {
	// Mixer-native format: everything submitted via ProcessAudioFrame is
	// converted to this shape before being summed.
	SampleRate   uint32
	ChannelCount uint16
	Format       frame.SampleFormat
	MaxChannels  uint32

	// BufferSize is the mix-cycle size in samples per channel.
	BufferSize int

	// Device-side format the worker converts the mixed buffer into before
	// writing to DeviceFifo.
	DeviceSampleRate   uint32
	DeviceChannelCount uint16

	// FifoSeconds sizes DeviceFifo; defaults to 0.5s, minimum
	// 0.1s.
	FifoSeconds float64

	// SubmitBufferCapacity is the small bounded buffer capacity from
	// Submitter thread description. Default 8.
	SubmitBufferCapacity int

	// WorkerSleep bounds the worker's idle sleep when the FIFO has no room.
	// Default 5ms.
	WorkerSleep time.Duration

	// LoudnessTarget and MeterProfile configure the MonitoringHub's
	// analyzer and meter bank. Zero-value LoudnessTarget falls back to
	// loudness.DefaultTarget(); zero-value MeterProfile falls back to
	// meter.DigitalPeak().
	LoudnessTarget loudness.Target
	MeterProfile   meter.Ballistics

	// QualityTargets grades the monitoring hub's quality dashboard.
	// Zero-value falls back to quality.EBUR128Broadcast().
	QualityTargets quality.Targets
}

var zeroBallistics meter.Ballistics
var zeroQualityTargets quality.Targets

func (c Config) withDefaults() Config {
	if c.MaxChannels == 0 {
		c.MaxChannels = 64
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.FifoSeconds <= 0 {
		c.FifoSeconds = 0.5
	}
	if c.SubmitBufferCapacity <= 0 {
		c.SubmitBufferCapacity = 8
	}
	if c.WorkerSleep <= 0 {
		c.WorkerSleep = 5 * time.Millisecond
	}
	if c.LoudnessTarget == (loudness.Target{}) {
		c.LoudnessTarget = loudness.DefaultTarget()
	}
	if c.MeterProfile == zeroBallistics {
		c.MeterProfile = meter.DigitalPeak()
	}
	if c.QualityTargets == zeroQualityTargets {
		c.QualityTargets = quality.EBUR128Broadcast()
	}
	return c
}
