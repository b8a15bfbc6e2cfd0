package monitor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-musicfox/audiocore/pkg/frame"
	"github.com/go-musicfox/audiocore/pkg/loudness"
	"github.com/go-musicfox/audiocore/pkg/meter"
	"github.com/go-musicfox/audiocore/pkg/quality"
)

func sineFrame(t *testing.T, peak float64) *frame.Frame {
	t.Helper()
	f, err := frame.Create(48000, 2, 2048, frame.Float32, frame.Rational{})
	require.NoError(t, err)
	for i := uint32(0); i < 2048; i++ {
		v := float32(peak * math.Sin(2*math.Pi*1000*float64(i)/48000))
		f.SetSample(0, i, v)
		f.SetSample(1, i, v)
	}
	return f
}

func waitForValid(t *testing.T, h *Hub) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := h.Snapshot()
		if snap.Loudness.Valid {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for monitoring snapshot")
	return Snapshot{}
}

func TestObserveIsNonBlockingWhenQueueFull(t *testing.T) {
	h := New(1, 48000, 2, meter.DigitalPeak(), loudness.DefaultTarget(), quality.EBUR128Broadcast(), nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Observe(sineFrame(t, 0.5))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Observe blocked despite bounded queue")
	}
}

func TestObserveDropsOldestWhenQueueFullWithoutConsumer(t *testing.T) {
	h := New(2, 48000, 2, meter.DigitalPeak(), loudness.DefaultTarget(), quality.EBUR128Broadcast(), nil)
	for i := 0; i < 10; i++ {
		h.Observe(sineFrame(t, 0.5))
	}
	assert.Greater(t, h.DroppedFrames(), uint64(0))
}

func TestStartProcessesQueuedFramesIntoSnapshot(t *testing.T) {
	h := New(8, 48000, 2, meter.DigitalPeak(), loudness.DefaultTarget(), quality.EBUR128Broadcast(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	for i := 0; i < 20; i++ {
		h.Observe(sineFrame(t, 0.5))
	}

	snap := waitForValid(t, h)
	assert.Len(t, snap.Meters.PeakDBFS, 2)
}

func TestStopIsIdempotentAndSafeWithoutStart(t *testing.T) {
	h := New(4, 48000, 2, meter.VU(), loudness.DefaultTarget(), quality.EBUR128Broadcast(), nil)
	h.Stop()
	h.Stop()
}

func TestStartTwiceIsNoOp(t *testing.T) {
	h := New(4, 48000, 2, meter.VU(), loudness.DefaultTarget(), quality.EBUR128Broadcast(), nil)
	ctx := context.Background()
	h.Start(ctx)
	h.Start(ctx)
	h.Stop()
}
