// Package timeline implements TimelineBinder: it keeps
// mixer channels in sync with the editable track list as tracks appear,
// disappear, or are renamed.
package timeline

import (
	"log/slog"
	"sync"

	"github.com/go-musicfox/audiocore/internal/logging"
	"github.com/go-musicfox/audiocore/pkg/mixer"
)

// TrackKind distinguishes audio tracks (the only kind this binder cares
// about) from everything else on the timeline.
type TrackKind uint8

const (
	KindAudio TrackKind = iota
	KindVideo
	KindOther
)

// Track is one entry of a Snapshot.
type Track struct {
	ID   uint64
	Kind TrackKind
	Name string
}

// Snapshot is the read-only view of the timeline given to the binder,
// queried via Timeline.Snapshot().
type Snapshot struct {
	Tracks []Track
}

// AudioTracks filters Snapshot.Tracks down to KindAudio entries.
func (s Snapshot) AudioTracks() []Track {
	out := make([]Track, 0, len(s.Tracks))
	for _, t := range s.Tracks {
		if t.Kind == KindAudio {
			out = append(out, t)
		}
	}
	return out
}

// Provider is the pull interface the binder queries when notified of a
// timeline version change; implemented by the embedding application's
// timeline model.
type Provider interface {
	Snapshot() Snapshot
}

// Binder reconciles a Mixer's channel set with a timeline's audio tracks.
// It never blocks the audio callback: Reconcile only acquires the mixer's
// channel lock briefly, to add/remove/rename entries in its map.
type Binder struct {
	mu  sync.Mutex
	m   *mixer.Mixer
	log *slog.Logger
}

// New constructs a Binder bound to m.
func New(m *mixer.Mixer, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Binder{m: m, log: logging.WithComponent(logger, "timeline_binder")}
}

// Reconcile applies the three-step algorithm:
//  1. remove channels bound to a track_id no longer present in snap
//  2. add a channel for every audio track without a bound channel
//  3. rename channels in place when their track's name changed
func (b *Binder) Reconcile(snap Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	audioTracks := snap.AudioTracks()
	byID := make(map[uint64]Track, len(audioTracks))
	for _, t := range audioTracks {
		byID[t.ID] = t
	}

	bound := make(map[uint64]uint32) // trackID -> channelID
	for _, c := range b.m.Channels() {
		if c.TrackID == 0 {
			continue
		}
		if _, ok := byID[c.TrackID]; !ok {
			if b.m.RemoveChannel(c.ID) {
				b.log.Debug("removed channel for vanished track", slog.Uint64("track_id", c.TrackID))
			}
			continue
		}
		bound[c.TrackID] = c.ID
	}

	for _, t := range audioTracks {
		chID, ok := bound[t.ID]
		if !ok {
			id, err := b.m.AddChannel(t.Name, 0, 0)
			if err != nil {
				return err
			}
			if err := b.m.BindTrack(id, t.ID); err != nil {
				return err
			}
			b.log.Debug("added channel for new audio track", slog.Uint64("track_id", t.ID), slog.String("name", t.Name))
			continue
		}
		if c, ok := b.m.Channel(chID); ok && c.Name != t.Name {
			if err := b.m.RenameChannel(chID, t.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
