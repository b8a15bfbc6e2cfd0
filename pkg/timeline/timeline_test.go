package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-musicfox/audiocore/pkg/frame"
	"github.com/go-musicfox/audiocore/pkg/mixer"
)

func newMixer(t *testing.T) *mixer.Mixer {
	t.Helper()
	m, err := mixer.New(mixer.Config{SampleRate: 48000, ChannelCount: 2, Format: frame.Float32, MaxChannels: 32}, nil)
	require.NoError(t, err)
	return m
}

func TestReconcileAddsChannelsForNewAudioTracks(t *testing.T) {
	m := newMixer(t)
	b := New(m, nil)

	snap := Snapshot{Tracks: []Track{
		{ID: 1, Kind: KindAudio, Name: "dialogue"},
		{ID: 2, Kind: KindVideo, Name: "b-roll"},
		{ID: 3, Kind: KindAudio, Name: "music"},
	}}
	require.NoError(t, b.Reconcile(snap))
	assert.Equal(t, 2, m.ChannelCount())

	names := map[string]bool{}
	for _, c := range m.Channels() {
		names[c.Name] = true
	}
	assert.True(t, names["dialogue"])
	assert.True(t, names["music"])
}

func TestReconcileRemovesChannelsForVanishedTracks(t *testing.T) {
	m := newMixer(t)
	b := New(m, nil)
	require.NoError(t, b.Reconcile(Snapshot{Tracks: []Track{{ID: 1, Kind: KindAudio, Name: "dialogue"}}}))
	assert.Equal(t, 1, m.ChannelCount())

	require.NoError(t, b.Reconcile(Snapshot{Tracks: nil}))
	assert.Equal(t, 0, m.ChannelCount())
}

func TestReconcileRenamesInPlaceWithoutChangingID(t *testing.T) {
	m := newMixer(t)
	b := New(m, nil)
	require.NoError(t, b.Reconcile(Snapshot{Tracks: []Track{{ID: 1, Kind: KindAudio, Name: "dialogue"}}}))
	before := m.Channels()[0]

	require.NoError(t, b.Reconcile(Snapshot{Tracks: []Track{{ID: 1, Kind: KindAudio, Name: "VO take 2"}}}))
	after := m.Channels()[0]

	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "VO take 2", after.Name)
}

func TestReconcileIsIdempotent(t *testing.T) {
	m := newMixer(t)
	b := New(m, nil)
	snap := Snapshot{Tracks: []Track{{ID: 1, Kind: KindAudio, Name: "dialogue"}}}
	require.NoError(t, b.Reconcile(snap))
	require.NoError(t, b.Reconcile(snap))
	assert.Equal(t, 1, m.ChannelCount())
}
