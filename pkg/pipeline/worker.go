package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-musicfox/audiocore/pkg/event"
	"github.com/go-musicfox/audiocore/pkg/frame"
)

// runWorker is the pipeline-owned Worker thread: it
// repeatedly drains the submitter's backpressure tokens, mixes one
// buffer_size output frame, converts it to device format, tees it to the
// monitoring hub, and writes it to DeviceFifo, pacing itself against FIFO
// occupancy. It exits when ctx is cancelled.
func (p *Pipeline) runWorker(ctx context.Context) {
	defer p.workerWG.Done()

	p.mu.Lock()
	cfg := p.cfg
	p.mu.Unlock()

	deviceChannelSamples := cfg.BufferSize * int(cfg.DeviceChannelCount)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.State() != Playing {
			time.Sleep(cfg.WorkerSleep)
			continue
		}

		p.drainSubmitTokens()

		outFrame, err := frame.Create(cfg.SampleRate, cfg.ChannelCount, uint32(cfg.BufferSize), cfg.Format, frame.Rational{})
		if err != nil {
			p.log.Error("worker failed to allocate mix buffer", slog.String("error", err.Error()))
			time.Sleep(cfg.WorkerSleep)
			continue
		}
		if err := p.mixer.MixToOutput(outFrame, true); err != nil {
			p.decodeErrors.Add(1)
			time.Sleep(cfg.WorkerSleep)
			continue
		}

		p.hub.Observe(outFrame)

		p.mu.Lock()
		deviceFrame, derr := p.deviceResampler.Convert(outFrame, cfg.DeviceSampleRate, cfg.DeviceChannelCount, deviceFormat())
		p.mu.Unlock()
		if derr != nil {
			p.decodeErrors.Add(1)
			time.Sleep(cfg.WorkerSleep)
			continue
		}

		samples := interleavedSamples(deviceFrame)
		before := p.fifo.Overruns()
		p.fifo.Write(samples)
		if after := p.fifo.Overruns(); after > before {
			p.overruns.Add(after - before)
			p.bus.Publish(event.Event{Type: event.TypeOverrun, Timestamp: time.Now(), Source: "fifo"})
		}

		if p.fifo.AvailableWrite() < deviceChannelSamples {
			time.Sleep(cfg.WorkerSleep)
		}
	}
}

// drainSubmitTokens empties the backpressure token channel; the actual
// mixing already happened synchronously in ProcessAudioFrame, so this is
// bookkeeping that lets a future submitter send again without its
// non-blocking select silently starving forever under sustained load.
func (p *Pipeline) drainSubmitTokens() {
	for {
		select {
		case <-p.submitSem:
		default:
			return
		}
	}
}

// deviceFormat is always float32: DeviceFifo stores device-layout samples
// as float32 regardless of the eventual hardware sample format;
// internal/devicebridge hands these samples to beep as float64 stereo
// pairs.
func deviceFormat() frame.SampleFormat {
	return frame.Float32
}

func interleavedSamples(f *frame.Frame) []float32 {
	out := make([]float32, 0, int(f.SampleCount())*int(f.ChannelCount()))
	for i := uint32(0); i < f.SampleCount(); i++ {
		for c := uint16(0); c < f.ChannelCount(); c++ {
			out = append(out, f.Sample(c, i))
		}
	}
	return out
}
