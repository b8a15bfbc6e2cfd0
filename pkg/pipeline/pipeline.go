// Package pipeline implements Pipeline: the component orchestrating the
// producer (submitter) thread, Mixer, DeviceFifo, the device callback, and
// the Playing/Paused/Stopped/Error state machine that ties them together.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-musicfox/audiocore/internal/errs"
	"github.com/go-musicfox/audiocore/internal/logging"
	"github.com/go-musicfox/audiocore/pkg/event"
	"github.com/go-musicfox/audiocore/pkg/fifo"
	"github.com/go-musicfox/audiocore/pkg/frame"
	"github.com/go-musicfox/audiocore/pkg/mixer"
	"github.com/go-musicfox/audiocore/pkg/monitor"
	"github.com/go-musicfox/audiocore/pkg/resample"
)

// Pipeline is the C6 component. Construct with New, then Initialize before
// any other call.
type Pipeline struct {
	state atomic.Uint32 // State, loaded/stored with sequentially-consistent atomics

	mu     sync.Mutex // guards cfg, internalChannelID, resamplers, carry, worker lifecycle
	cfg    Config
	ready  bool

	mixer              *mixer.Mixer
	internalChannelID  uint32
	inputResampler     *resample.Resampler
	deviceResampler    *resample.Resampler
	carry              []float32

	fifo *fifo.Fifo
	hub  *monitor.Hub
	bus  *event.Bus

	// submitSem bounds how far the submitter can run ahead of the worker
	// "small bounded buffer (capacity 8 frames)". Like
	// every other any-thread-callable buffer in this module (DeviceFifo,
	// event.Bus, monitor.Hub) it never blocks the caller: once full,
	// ProcessAudioFrame simply stops crediting new tokens until the worker
	// drains some.
	submitSem chan struct{}

	framesProcessed  atomic.Uint64
	samplesProcessed atomic.Uint64
	decodeErrors     atomic.Uint64
	underruns        atomic.Uint64
	overruns         atomic.Uint64

	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup
	workerRunning atomic.Bool

	errMu    sync.Mutex
	lastErr  *errs.Error

	log *slog.Logger
}

// New constructs a Pipeline in the Uninitialized state. Call Initialize
// before any other operation.
func New(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pipeline{log: logging.WithComponent(logger, "pipeline")}
	p.state.Store(uint32(Uninitialized))
	return p
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(uint32(s))
	if p.bus != nil {
		p.bus.Publish(event.Event{Type: event.TypeStateChanged, Timestamp: time.Now(), Source: "pipeline", Data: map[string]any{"state": s.String()}})
	}
}

func (p *Pipeline) setErr(e *errs.Error) *errs.Error {
	p.errMu.Lock()
	p.lastErr = e
	p.errMu.Unlock()
	return e
}

// GetLastError returns the most recently recorded error, or nil.
func (p *Pipeline) GetLastError() *errs.Error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.lastErr
}

// ClearError resets the last-error slot.
func (p *Pipeline) ClearError() {
	p.errMu.Lock()
	p.lastErr = nil
	p.errMu.Unlock()
}

// Initialize transitions Uninitialized -> Initialized, constructing the
// mixer, FIFO, resamplers, monitoring hub, and internal event bus.
func (p *Pipeline) Initialize(cfg Config) error {
	if p.State() != Uninitialized {
		return p.setErr(errs.New(errs.NotInitialized, "pipeline must be uninitialized to initialize"))
	}
	cfg = cfg.withDefaults()
	if cfg.SampleRate == 0 || cfg.ChannelCount == 0 {
		return p.setErr(errs.New(errs.InvalidConfiguration, "sample rate and channel count must be > 0"))
	}

	m, err := mixer.New(mixer.Config{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.ChannelCount,
		MaxChannels:  cfg.MaxChannels,
	}, p.log)
	if err != nil {
		return p.setErr(errs.Wrap(errs.InvalidConfiguration, "failed to construct mixer", err))
	}
	m.ClearAccumulator(cfg.BufferSize)

	internalID, err := m.AddChannel("pipeline.internal", 0, 0)
	if err != nil {
		return p.setErr(errs.Wrap(errs.InvalidConfiguration, "failed to create internal channel", err))
	}

	capacity := fifo.CapacityForDuration(cfg.FifoSeconds, cfg.DeviceSampleRate, cfg.DeviceChannelCount)

	p.mu.Lock()
	p.cfg = cfg
	p.mixer = m
	p.internalChannelID = internalID
	p.inputResampler = resample.New()
	p.deviceResampler = resample.New()
	p.carry = nil
	p.fifo = fifo.New(capacity)
	p.hub = monitor.New(16, cfg.DeviceSampleRate, int(cfg.DeviceChannelCount), cfg.MeterProfile, cfg.LoudnessTarget, cfg.QualityTargets, p.log)
	p.bus = event.New(p.log)
	p.submitSem = make(chan struct{}, cfg.SubmitBufferCapacity)
	p.ready = true
	p.mu.Unlock()

	if err := p.bus.Start(context.Background()); err != nil {
		return p.setErr(errs.Wrap(errs.InvalidConfiguration, "failed to start event bus", err))
	}

	p.setState(Initialized)
	return nil
}

// StartOutput transitions Initialized|Stopped -> Playing, launching the
// worker goroutine and monitoring hub.
func (p *Pipeline) StartOutput() error {
	from := p.State()
	if !canTransition(from, Playing) {
		return p.setErr(errs.New(errs.NotInitialized, "cannot start output from state "+from.String()))
	}

	if !p.workerRunning.Load() {
		ctx, cancel := context.WithCancel(context.Background())
		p.mu.Lock()
		p.workerCancel = cancel
		hub := p.hub
		p.mu.Unlock()
		hub.Start(ctx)
		p.workerRunning.Store(true)
		p.workerWG.Add(1)
		go p.runWorker(ctx)
	}

	p.setState(Playing)
	return nil
}

// PauseOutput transitions Playing -> Paused. The worker goroutine keeps
// running (so ResumeOutput doesn't need to restart it) but idles: it stops
// mixing and writing to the FIFO while paused.
func (p *Pipeline) PauseOutput() error {
	from := p.State()
	if !canTransition(from, Paused) {
		return p.setErr(errs.New(errs.NotRunning, "cannot pause from state "+from.String()))
	}
	p.setState(Paused)
	return nil
}

// ResumeOutput transitions Paused -> Playing.
func (p *Pipeline) ResumeOutput() error {
	from := p.State()
	if !canTransition(from, Playing) {
		return p.setErr(errs.New(errs.NotRunning, "cannot resume from state "+from.String()))
	}
	p.setState(Playing)
	return nil
}

// StopOutput transitions Playing|Paused -> Stopped, joining the worker
// goroutine.
func (p *Pipeline) StopOutput() error {
	from := p.State()
	if !canTransition(from, Stopped) {
		return p.setErr(errs.New(errs.NotRunning, "cannot stop from state "+from.String()))
	}
	p.stopWorkerLocked()
	p.setState(Stopped)
	return nil
}

func (p *Pipeline) stopWorkerLocked() {
	if !p.workerRunning.Swap(false) {
		return
	}
	p.mu.Lock()
	cancel := p.workerCancel
	hub := p.hub
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.workerWG.Wait()
	if hub != nil {
		hub.Stop()
	}
}

// Shutdown is legal from any state and is idempotent: it stops the worker,
// drains the FIFO, releases resampler state, stops the event bus and
// monitoring hub, and transitions to Uninitialized.
func (p *Pipeline) Shutdown() error {
	if p.State() == Uninitialized {
		return nil
	}
	p.stopWorkerLocked()

	p.mu.Lock()
	if p.fifo != nil {
		drain := make([]float32, p.fifo.AvailableRead())
		p.fifo.Read(drain)
	}
	if p.inputResampler != nil {
		p.inputResampler.Reset()
	}
	if p.deviceResampler != nil {
		p.deviceResampler.Reset()
	}
	bus := p.bus
	p.carry = nil
	p.ready = false
	p.mu.Unlock()

	if bus != nil {
		bus.Stop()
	}

	p.state.Store(uint32(Uninitialized))
	p.errMu.Lock()
	p.lastErr = nil
	p.errMu.Unlock()
	return nil
}

// ReportDeviceFailure is called by the device backend on a fatal error; it
// transitions the pipeline to the terminal Error state from any state.
func (p *Pipeline) ReportDeviceFailure(cause error) {
	p.stopWorkerLocked()
	p.setErr(errs.Wrap(errs.DeviceFailure, "device backend reported a fatal error", cause))
	p.state.Store(uint32(Error))
	if p.bus != nil {
		p.bus.Publish(event.Event{Type: event.TypeDeviceError, Timestamp: time.Now(), Source: "device", Data: map[string]any{"error": cause.Error()}})
	}
}

// ProcessAudioFrame is the Submitter entrypoint: it may
// be called from any goroutine. f may be any supported rate/channel
// count/format; it is converted to the pipeline's native mixer format.
func (p *Pipeline) ProcessAudioFrame(f *frame.Frame) error {
	if p.State() != Playing {
		return p.setErr(errs.New(errs.NotRunning, "pipeline is not playing"))
	}
	if f == nil {
		return p.setErr(errs.New(errs.InvalidArgument, "frame is nil"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return p.setErr(errs.New(errs.NotRunning, "pipeline is not ready"))
	}

	converted, err := p.inputResampler.Convert(f, p.cfg.SampleRate, p.cfg.ChannelCount, p.cfg.Format)
	if err != nil {
		p.decodeErrors.Add(1)
		return p.setErr(errs.Wrap(errs.FormatMismatch, "failed to convert submitted frame", err))
	}

	p.carry = appendInterleaved(p.carry, converted)
	channelCount := int(p.cfg.ChannelCount)
	bufferSize := p.cfg.BufferSize

	for len(p.carry) >= bufferSize*channelCount {
		chunk := p.carry[:bufferSize*channelCount]
		chunkFrame, ferr := newInterleavedFrame(p.cfg.SampleRate, p.cfg.ChannelCount, bufferSize, p.cfg.Format, chunk)
		if ferr != nil {
			p.decodeErrors.Add(1)
			p.carry = p.carry[bufferSize*channelCount:]
			continue
		}
		if merr := p.mixer.ProcessChannel(p.internalChannelID, chunkFrame); merr != nil {
			p.decodeErrors.Add(1)
		} else {
			p.framesProcessed.Add(1)
			p.samplesProcessed.Add(uint64(bufferSize))
			select {
			case p.submitSem <- struct{}{}:
			default:
			}
		}
		p.carry = p.carry[bufferSize*channelCount:]
	}
	return nil
}

// GetStats returns a snapshot of PipelineStats.
func (p *Pipeline) GetStats() Stats {
	m := p.mixer.GetStats()
	cfg := p.mixer.Config()
	return Stats{
		FramesProcessed:  p.framesProcessed.Load(),
		SamplesProcessed: p.samplesProcessed.Load(),
		Underruns:        p.underruns.Load(),
		Overruns:         p.overruns.Load(),
		DecodeErrors:     p.decodeErrors.Load(),
		ActiveChannels:   m.ActiveChannels,
		MasterGainDB:     cfg.MasterGainDB,
		MasterMuted:      cfg.MasterMuted,
	}
}

// GetMonitoring returns the current loudness/meter/correlation snapshot.
func (p *Pipeline) GetMonitoring() monitor.Snapshot {
	return p.hub.Snapshot()
}

// Control surface: AddChannel/RemoveChannel/SetChannel*/SetMaster* proxy
// directly to the underlying mixer so callers can manage additional
// channels (e.g. via pkg/timeline.Binder) independently of the single
// internal channel ProcessAudioFrame feeds.

func (p *Pipeline) AddChannel(name string, gainDB, pan float32) (uint32, error) {
	return p.mixer.AddChannel(name, gainDB, pan)
}

func (p *Pipeline) RemoveChannel(id uint32) bool {
	return p.mixer.RemoveChannel(id)
}

func (p *Pipeline) SetChannelGain(id uint32, gainDB float32) error {
	return p.mixer.SetChannelGain(id, gainDB)
}

func (p *Pipeline) SetChannelPan(id uint32, pan float32) error {
	return p.mixer.SetChannelPan(id, pan)
}

func (p *Pipeline) SetChannelMute(id uint32, muted bool) error {
	return p.mixer.SetChannelMute(id, muted)
}

func (p *Pipeline) SetChannelSolo(id uint32, solo bool) error {
	return p.mixer.SetChannelSolo(id, solo)
}

func (p *Pipeline) SetMasterGain(gainDB float32) error {
	return p.mixer.SetMasterGain(gainDB)
}

func (p *Pipeline) SetMasterMute(muted bool) error {
	return p.mixer.SetMasterMute(muted)
}

// Mixer exposes the underlying mixer for collaborators like
// pkg/timeline.Binder that need direct channel-list access.
func (p *Pipeline) Mixer() *mixer.Mixer { return p.mixer }

// EventBus exposes the internal event bus so embedding applications can
// subscribe to state/clip/underrun/overrun notifications.
func (p *Pipeline) EventBus() *event.Bus { return p.bus }

func appendInterleaved(dst []float32, f *frame.Frame) []float32 {
	ch := f.ChannelCount()
	for i := uint32(0); i < f.SampleCount(); i++ {
		for c := uint16(0); c < ch; c++ {
			dst = append(dst, f.Sample(c, i))
		}
	}
	return dst
}

func newInterleavedFrame(sampleRate uint32, channelCount uint16, sampleCount int, format frame.SampleFormat, data []float32) (*frame.Frame, error) {
	f, err := frame.Create(sampleRate, channelCount, uint32(sampleCount), format, frame.Rational{})
	if err != nil {
		return nil, err
	}
	for i := 0; i < sampleCount; i++ {
		for c := uint16(0); c < channelCount; c++ {
			f.SetSample(c, uint32(i), data[i*int(channelCount)+int(c)])
		}
	}
	return f, nil
}
