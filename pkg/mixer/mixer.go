// Package mixer implements the Mixer component (C4):
// per-channel gain/pan/mute/solo summing into a shared accumulator with
// deterministic active-channel selection and clip protection.
//
// All mutable state (channel list, accumulator, stats) lives behind one
// mutex, rather than separate channels/accumulator/stats mutexes
// reacquired in sequence, which risks deadlock under concurrent access.
package mixer

import (
	"log/slog"
	"math"
	"sync"

	"github.com/go-musicfox/audiocore/internal/errs"
	"github.com/go-musicfox/audiocore/internal/logging"
	"github.com/go-musicfox/audiocore/pkg/frame"
)

// Mixer is the C4 component. Construct with New.
type Mixer struct {
	mu sync.Mutex

	config   Config
	channels map[uint32]*Channel
	nextID   uint32

	accumulator []float32 // len == config.ChannelCount * bufferLen
	bufferLen   int

	stats       Stats
	lastErr     *errs.Error
	log         *slog.Logger
	initialized bool
}

// New validates config and constructs a Mixer. The mixer starts with zero
// channels; callers add channels with AddChannel.
func New(config Config, logger *slog.Logger) (*Mixer, error) {
	if config.SampleRate == 0 || config.ChannelCount == 0 {
		return nil, errs.New(errs.InvalidConfiguration, "sample rate and channel count must be > 0")
	}
	if config.MaxChannels == 0 {
		config.MaxChannels = 64
	}
	config.MasterGainDB = clampGainDB(config.MasterGainDB)
	if logger == nil {
		logger = logging.Default()
	}
	return &Mixer{
		config:      config,
		channels:    make(map[uint32]*Channel),
		nextID:      1,
		log:         logging.WithComponent(logger, "mixer"),
		initialized: true,
	}, nil
}

func (m *Mixer) setErr(e *errs.Error) *errs.Error {
	m.lastErr = e
	return e
}

// LastError returns the most recently recorded error, or nil.
func (m *Mixer) LastError() *errs.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// ClearError resets the last-error slot.
func (m *Mixer) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = nil
}

// AddChannel creates a channel, clamping gainDB/pan to their valid ranges.
// Returns 0 and an error if the mixer is not initialized or is already at
// MaxChannels.
func (m *Mixer) AddChannel(name string, gainDB, pan float32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return 0, m.setErr(errs.New(errs.NotInitialized, "mixer not initialized"))
	}
	if uint32(len(m.channels)) >= m.config.MaxChannels {
		return 0, m.setErr(errs.New(errs.TooManyChannels, "channel count at max_channels"))
	}

	id := m.nextID
	m.nextID++
	m.channels[id] = &Channel{
		ID:     id,
		Name:   name,
		GainDB: clampGainDB(gainDB),
		Pan:    clampPan(pan),
	}
	return id, nil
}

// RemoveChannel deletes a channel. Returns false if the id was not found.
func (m *Mixer) RemoveChannel(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[id]; !ok {
		return false
	}
	delete(m.channels, id)
	return true
}

// ChannelCount returns the number of live channels.
func (m *Mixer) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// Channels returns a snapshot copy of every live channel, in no particular
// order. Used by pkg/timeline to reconcile mixer channels against the
// timeline's track set.
func (m *Mixer) Channels() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, *c)
	}
	return out
}

// BindTrack associates channel id with a timeline track id, or clears the
// binding when trackID is 0.
func (m *Mixer) BindTrack(id uint32, trackID uint64) error {
	return m.withChannel(id, func(c *Channel) { c.TrackID = trackID })
}

// RenameChannel updates a channel's display name in place without
// disturbing its id, gain, pan, or track binding.
func (m *Mixer) RenameChannel(id uint32, name string) error {
	return m.withChannel(id, func(c *Channel) { c.Name = name })
}

// Channel returns a copy of the channel state for id, or false if unknown.
func (m *Mixer) Channel(id uint32) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[id]
	if !ok {
		return Channel{}, false
	}
	return *c, true
}

func (m *Mixer) withChannel(id uint32, fn func(c *Channel)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.channels[id]
	if !ok {
		return m.setErr(errs.New(errs.ChannelNotFound, "channel not found"))
	}
	fn(c)
	return nil
}

func (m *Mixer) SetChannelGain(id uint32, gainDB float32) error {
	return m.withChannel(id, func(c *Channel) { c.GainDB = clampGainDB(gainDB) })
}

func (m *Mixer) SetChannelPan(id uint32, pan float32) error {
	return m.withChannel(id, func(c *Channel) { c.Pan = clampPan(pan) })
}

func (m *Mixer) SetChannelMute(id uint32, muted bool) error {
	return m.withChannel(id, func(c *Channel) { c.Muted = muted })
}

func (m *Mixer) SetChannelSolo(id uint32, solo bool) error {
	return m.withChannel(id, func(c *Channel) { c.Solo = solo })
}

func (m *Mixer) SetMasterGain(gainDB float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.MasterGainDB = clampGainDB(gainDB)
	return nil
}

func (m *Mixer) SetMasterMute(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.MasterMuted = muted
	return nil
}

// ClearAccumulator (re)sizes the accumulator for a mix cycle of bufferLen
// samples per output channel and zeros it.
func (m *Mixer) ClearAccumulator(bufferLen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearAccumulatorLocked(bufferLen)
}

func (m *Mixer) clearAccumulatorLocked(bufferLen int) {
	need := int(m.config.ChannelCount) * bufferLen
	if cap(m.accumulator) < need {
		m.accumulator = make([]float32, need)
	} else {
		m.accumulator = m.accumulator[:need]
		for i := range m.accumulator {
			m.accumulator[i] = 0
		}
	}
	m.bufferLen = bufferLen
}

// monoDown averages all channels of f at sample i into one value.
func monoDown(f *frame.Frame, i uint32) float32 {
	var sum float32
	n := f.ChannelCount()
	for ch := uint16(0); ch < n; ch++ {
		sum += f.Sample(ch, i)
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}

// activeChannelIDs returns the set of channels that should contribute to the
// mix: with S = {solo channels}, c is active iff
// !c.Muted && (S is empty || c in S).
func activeChannelIDs(channels map[uint32]*Channel) map[uint32]bool {
	soloed := false
	for _, c := range channels {
		if c.Solo {
			soloed = true
			break
		}
	}
	active := make(map[uint32]bool, len(channels))
	for id, c := range channels {
		if c.Muted {
			continue
		}
		if soloed && !c.Solo {
			continue
		}
		active[id] = true
	}
	return active
}

// ProcessChannel adds channel id's contribution to the accumulator for
// this mix cycle. It is a no-op (not an error) if the channel is currently
// inactive (muted, or another channel is soloed), so callers can call it
// unconditionally for every submitted frame without checking solo state
// themselves.
func (m *Mixer) ProcessChannel(id uint32, f *frame.Frame) error {
	if f == nil {
		return errs.New(errs.InvalidArgument, "frame is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return m.setErr(errs.New(errs.NotInitialized, "mixer not initialized"))
	}
	c, ok := m.channels[id]
	if !ok {
		return m.setErr(errs.New(errs.ChannelNotFound, "channel not found"))
	}
	if int(f.SampleCount()) != m.bufferLen {
		return m.setErr(errs.New(errs.BufferTooSmall, "frame sample count does not match accumulator buffer length"))
	}

	active := activeChannelIDs(m.channels)
	c.SamplesProcessed += uint64(f.SampleCount())
	if !active[id] {
		return nil
	}

	gain := gainLinear(c.GainDB)
	left, right := panCoefficients(c.Pan)
	outCh := m.config.ChannelCount

	for i := uint32(0); i < f.SampleCount(); i++ {
		mono := monoDown(f, i)
		switch outCh {
		case 1:
			m.accumulator[i] += gain * mono
		default:
			base := int(i) * int(outCh)
			m.accumulator[base+0] += gain * left * mono
			if outCh > 1 {
				m.accumulator[base+1] += gain * right * mono
			}
		}
	}
	return nil
}

// MixToOutput applies master gain/mute and clip protection to the
// accumulator and writes the result into out, whose shape must match
// config.ChannelCount x bufferLen. When clear is true the accumulator is
// zeroed afterward (the common case between mix cycles).
func (m *Mixer) MixToOutput(out *frame.Frame, clear bool) error {
	if out == nil {
		return errs.New(errs.InvalidArgument, "output frame is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return m.setErr(errs.New(errs.NotInitialized, "mixer not initialized"))
	}
	if out.ChannelCount() != m.config.ChannelCount || int(out.SampleCount()) != m.bufferLen {
		return m.setErr(errs.New(errs.FormatMismatch, "output frame shape does not match accumulator"))
	}

	masterGain := gainLinear(m.config.MasterGainDB)
	if m.config.MasterMuted {
		masterGain = 0
	}

	var peakL, peakR float32
	var sumSqL, sumSqR float64
	var clipEvents uint64

	for i := 0; i < m.bufferLen; i++ {
		for ch := uint16(0); ch < m.config.ChannelCount; ch++ {
			x := m.accumulator[i*int(m.config.ChannelCount)+int(ch)] * masterGain

			if float32(math.Abs(float64(x))) > ClipEventThreshold {
				clipEvents++
			}
			if m.config.ClipProtection {
				x = softClip(x, ClipThreshold)
			}

			out.SetSample(ch, uint32(i), x)

			abs := float32(math.Abs(float64(x)))
			switch ch {
			case 0:
				if abs > peakL {
					peakL = abs
				}
				sumSqL += float64(x) * float64(x)
			case 1:
				if abs > peakR {
					peakR = abs
				}
				sumSqR += float64(x) * float64(x)
			}
		}
	}

	m.stats.SamplesProcessed += uint64(m.bufferLen)
	m.stats.ClippingEvents += clipEvents
	m.stats.PeakLeft = peakL
	m.stats.PeakRight = peakR
	if m.bufferLen > 0 {
		m.stats.RMSLeft = float32(math.Sqrt(sumSqL / float64(m.bufferLen)))
		m.stats.RMSRight = float32(math.Sqrt(sumSqR / float64(m.bufferLen)))
	}
	m.stats.ActiveChannels = len(activeChannelIDs(m.channels))

	if clear {
		m.clearAccumulatorLocked(m.bufferLen)
	}
	return nil
}

// softClip implements clip protection: x' = threshold *
// tanh(x/threshold) for |x| > threshold.
func softClip(x, threshold float32) float32 {
	if float32(math.Abs(float64(x))) <= threshold {
		return x
	}
	return threshold * float32(math.Tanh(float64(x)/float64(threshold)))
}

// GetStats returns a snapshot of mixer statistics.
func (m *Mixer) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Config returns a copy of the mixer's current configuration.
func (m *Mixer) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// BufferLen returns the sample-count size the accumulator is currently
// sized for (set by the most recent ClearAccumulator call).
func (m *Mixer) BufferLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bufferLen
}
