// Package devicebridge adapts pkg/pipeline.Pipeline's Render device callback
// onto an OS audio backend via faiface/beep and beep/speaker, the way
// pkg/player.beepPlayer drives the speaker package directly, except here
// the streamer pulls mixed, already-device-format samples out of
// DeviceFifo instead of decoding a file.
package devicebridge

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"github.com/go-musicfox/audiocore/internal/logging"
	"github.com/go-musicfox/audiocore/pkg/pipeline"
)

// Renderer is the subset of *pipeline.Pipeline the bridge depends on,
// narrowed for testability.
type Renderer interface {
	Render(buffer []float32, frameCount int) int
	ReportDeviceFailure(cause error)
}

// Capabilities describes what this backend supports, mirroring
// BackendCapabilities from v2/pkg/audio.PlayerBackend.
type Capabilities struct {
	SupportedSampleRates []int
	SupportedChannels    []int
	SampleFormat         string
	BufferSizeFrames     int
}

// Bridge owns the beep.Streamer wiring a Pipeline to speaker.Play. It never
// decodes or mixes itself; every sample comes from Renderer.Render.
type Bridge struct {
	renderer     Renderer
	sampleRate   beep.SampleRate
	channels     int
	bufferFrames int
	log          *slog.Logger

	mu      sync.Mutex
	playing bool

	lastRenderAt time.Time
}

// New constructs a Bridge. sampleRate/channels/bufferFrames must match the
// Pipeline's Config.DeviceSampleRate/DeviceChannelCount/BufferSize.
func New(renderer Renderer, sampleRate int, channels int, bufferFrames int, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{
		renderer:     renderer,
		sampleRate:   beep.SampleRate(sampleRate),
		channels:     channels,
		bufferFrames: bufferFrames,
		log:          logging.WithComponent(logger, "devicebridge"),
	}
}

// Capabilities reports the formats this bridge supports, the way
// BaseBackend.GetCapabilities does.
func (b *Bridge) Capabilities() Capabilities {
	return Capabilities{
		SupportedSampleRates: []int{44100, 48000, 96000},
		SupportedChannels:    []int{1, 2, 6},
		SampleFormat:         "float32",
		BufferSizeFrames:     b.bufferFrames,
	}
}

// staleAfter is how long the speaker can go without pulling a buffer before
// HealthCheck considers it wedged.
const staleAfter = 2 * time.Second

// HealthCheck is a cheap liveness probe distinct from the fatal
// ReportDeviceFailure path: it reports whether the speaker stream is
// actually being pulled from recently, the way
// PlayerBackend.HealthCheck guards against a wedged backend.
func (b *Bridge) HealthCheck() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.playing {
		return nil
	}
	if b.lastRenderAt.IsZero() {
		return nil
	}
	if since := time.Since(b.lastRenderAt); since > staleAfter {
		return fmt.Errorf("devicebridge: speaker has not pulled audio in %s", since)
	}
	return nil
}

// Start initializes the speaker backend and begins pulling rendered audio
// from the Pipeline. Safe to call once; call Stop before calling Start
// again.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.playing {
		b.mu.Unlock()
		return nil
	}
	b.playing = true
	b.mu.Unlock()

	bufSize := b.sampleRate.N(time.Duration(float64(b.bufferFrames) / float64(b.sampleRate) * float64(time.Second)))
	if err := speaker.Init(b.sampleRate, bufSize); err != nil {
		b.mu.Lock()
		b.playing = false
		b.mu.Unlock()
		return fmt.Errorf("devicebridge: speaker init failed: %w", err)
	}

	speaker.Play(b.streamer())
	b.log.Info("device bridge started", slog.Int("sample_rate", int(b.sampleRate)), slog.Int("channels", b.channels))
	return nil
}

// Stop halts playback and clears the speaker's internal mixer, mirroring
// beepPlayer.Close's speaker.Clear call.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.playing {
		b.mu.Unlock()
		return
	}
	b.playing = false
	b.mu.Unlock()

	speaker.Clear()
	b.log.Info("device bridge stopped")
}

// streamer builds the beep.Streamer that speaker.Play pulls from. Each call
// renders exactly len(samples) frames via Renderer.Render; Render never
// blocks and always returns a full frame count (silence-padded on
// underrun), so this streamer signals ok=false only while the bridge is not
// playing (before Start or after Stop) or when Render panics.
func (b *Bridge) streamer() beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		b.mu.Lock()
		playing := b.playing
		b.mu.Unlock()
		if !playing {
			return 0, false
		}

		frameCount := len(samples)
		buf := make([]float32, frameCount*b.channels)

		defer func() {
			if r := recover(); r != nil {
				b.renderer.ReportDeviceFailure(fmt.Errorf("devicebridge: render panicked: %v", r))
				n, ok = 0, false
			}
		}()

		b.renderer.Render(buf, frameCount)

		for i := 0; i < frameCount; i++ {
			left := float64(buf[i*b.channels])
			right := left
			if b.channels > 1 {
				right = float64(buf[i*b.channels+1])
			}
			samples[i][0] = left
			samples[i][1] = right
		}

		b.mu.Lock()
		b.lastRenderAt = time.Now()
		b.mu.Unlock()

		return frameCount, true
	})
}

var _ Renderer = (*pipeline.Pipeline)(nil)
