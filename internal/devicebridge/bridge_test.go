package devicebridge

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer satisfies Renderer without touching real audio hardware so
// the streamer callback logic can be exercised directly.
type fakeRenderer struct {
	mu       sync.Mutex
	calls    atomic.Int64
	fill     float32
	failures []error
}

func (f *fakeRenderer) Render(buffer []float32, frameCount int) int {
	f.calls.Add(1)
	for i := range buffer {
		buffer[i] = f.fill
	}
	return frameCount
}

func (f *fakeRenderer) ReportDeviceFailure(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, cause)
}

func TestCapabilitiesReportsConfiguredBufferSize(t *testing.T) {
	b := New(&fakeRenderer{}, 48000, 2, 256, nil)
	caps := b.Capabilities()
	assert.Equal(t, 256, caps.BufferSizeFrames)
	assert.Equal(t, "float32", caps.SampleFormat)
	assert.Contains(t, caps.SupportedChannels, 2)
}

func TestHealthCheckIsNilWhenNotPlaying(t *testing.T) {
	b := New(&fakeRenderer{}, 48000, 2, 256, nil)
	assert.NoError(t, b.HealthCheck())
}

func TestHealthCheckIsNilImmediatelyAfterMarkingPlaying(t *testing.T) {
	b := New(&fakeRenderer{}, 48000, 2, 256, nil)
	b.mu.Lock()
	b.playing = true
	b.mu.Unlock()
	assert.NoError(t, b.HealthCheck())
}

func TestHealthCheckFlagsStaleRender(t *testing.T) {
	b := New(&fakeRenderer{}, 48000, 2, 256, nil)
	b.mu.Lock()
	b.playing = true
	b.lastRenderAt = time.Now().Add(-10 * time.Second)
	b.mu.Unlock()

	err := b.HealthCheck()
	require.Error(t, err)
}

func TestStreamerPullsFromRendererAndDuplicatesMonoToStereo(t *testing.T) {
	fr := &fakeRenderer{fill: 0.5}
	b := New(fr, 48000, 1, 64, nil)
	b.mu.Lock()
	b.playing = true
	b.mu.Unlock()

	streamer := b.streamer()
	samples := make([][2]float64, 32)
	n, ok := streamer.Stream(samples)

	require.True(t, ok)
	assert.Equal(t, 32, n)
	for _, s := range samples {
		assert.InDelta(t, 0.5, s[0], 1e-6)
		assert.InDelta(t, 0.5, s[1], 1e-6)
	}
	assert.Equal(t, int64(1), fr.calls.Load())
}

func TestStreamerReturnsFalseWhenNotPlaying(t *testing.T) {
	fr := &fakeRenderer{}
	b := New(fr, 48000, 2, 64, nil)

	streamer := b.streamer()
	samples := make([][2]float64, 16)
	n, ok := streamer.Stream(samples)

	assert.False(t, ok)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), fr.calls.Load())
}

func TestStreamerUpdatesLastRenderAt(t *testing.T) {
	fr := &fakeRenderer{}
	b := New(fr, 48000, 2, 64, nil)
	b.mu.Lock()
	b.playing = true
	b.mu.Unlock()

	streamer := b.streamer()
	samples := make([][2]float64, 16)
	_, _ = streamer.Stream(samples)

	b.mu.Lock()
	last := b.lastRenderAt
	b.mu.Unlock()
	assert.False(t, last.IsZero())
}

func TestStartTwiceIsNoOp(t *testing.T) {
	// Start actually calls speaker.Init, which touches a process-wide
	// global; this test only checks the idempotency guard short-circuits
	// before that happens on the second call.
	b := New(&fakeRenderer{}, 48000, 2, 64, nil)
	b.mu.Lock()
	b.playing = true
	b.mu.Unlock()
	require.NoError(t, b.Start())
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	b := New(&fakeRenderer{}, 48000, 2, 64, nil)
	b.Stop()
}
