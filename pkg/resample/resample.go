// Package resample implements Resampler: rate, layout
// and format conversion with persistent state across calls so a continuous
// stream resamples without clicks at frame boundaries.
package resample

import (
	"github.com/go-musicfox/audiocore/internal/errs"
	"github.com/go-musicfox/audiocore/pkg/convert"
	"github.com/go-musicfox/audiocore/pkg/frame"
)

// InputSpec identifies the shape of the stream a Resampler is tracking
// state for. Two specs are equal iff every field matches.
type InputSpec struct {
	SampleRate   uint32
	ChannelCount uint16
	LayoutMask   uint32
	Format       frame.SampleFormat
}

// Resampler holds per-channel phase state across Convert calls. It is not
// safe for concurrent use by multiple goroutines without external
// synchronization, but it is safe to construct and destroy (there is no
// destructor; the Go GC reclaims it) from any thread.
type Resampler struct {
	spec        InputSpec
	initialized bool

	// phase is the fractional read position into the virtual continuous
	// input stream, in input-sample units, carried across Convert calls.
	phase float64
	// lastSample holds the final input sample per channel from the
	// previous call, used as the left neighbor for the first output
	// sample's linear interpolation so there is no discontinuity at the
	// frame boundary.
	lastSample []float32
	havePrev   bool
}

// New constructs a Resampler with no state; the first Convert call (or an
// explicit EnsureState) establishes it.
func New() *Resampler {
	return &Resampler{}
}

// EnsureState reinitializes internal phase tracking only when in differs
// from the currently tracked spec; identical calls are O(1).
func (r *Resampler) EnsureState(in InputSpec) {
	if r.initialized && r.spec == in {
		return
	}
	r.spec = in
	r.initialized = true
	r.phase = 0
	r.lastSample = make([]float32, in.ChannelCount)
	r.havePrev = false
}

// Convert resamples inFrame to outRate/outChannels/outFormat, advancing
// internal phase so consecutive calls on a continuous stream produce
// glitch-free output. When outChannels differs from the input's count, 2
// goes through convert.ToStereo, 1 averages all input channels, and any
// other count is rejected; channel conversion happens before rate
// conversion.
func (r *Resampler) Convert(inFrame *frame.Frame, outRate uint32, outChannels uint16, outFormat frame.SampleFormat) (*frame.Frame, error) {
	if inFrame == nil {
		return nil, errs.New(errs.InvalidArgument, "input frame is nil")
	}
	if outRate == 0 || outChannels == 0 {
		return nil, errs.New(errs.InvalidConfiguration, "output rate and channel count must be > 0")
	}

	spec := InputSpec{
		SampleRate:   inFrame.SampleRate(),
		ChannelCount: inFrame.ChannelCount(),
		Format:       inFrame.Format(),
	}
	r.EnsureState(spec)

	working := inFrame
	if inFrame.ChannelCount() != outChannels {
		if outChannels == 2 {
			down, err := convert.ToStereo(inFrame, nil)
			if err != nil {
				return nil, err
			}
			working = down
		} else if outChannels == 1 && inFrame.ChannelCount() >= 1 {
			// Downmix to mono by averaging all input channels.
			mono, err := frame.Create(inFrame.SampleRate(), 1, inFrame.SampleCount(), inFrame.Format(), inFrame.Timestamp())
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < inFrame.SampleCount(); i++ {
				var sum float32
				for ch := uint16(0); ch < inFrame.ChannelCount(); ch++ {
					sum += inFrame.Sample(ch, i)
				}
				mono.SetSample(0, i, sum/float32(inFrame.ChannelCount()))
			}
			working = mono
		} else {
			return nil, errs.New(errs.FormatMismatch, "unsupported channel layout conversion")
		}
	}

	if inFrame.SampleRate() == outRate {
		r.phase = 0
		return convert.ConvertFormat(working, outFormat)
	}

	ratio := float64(inFrame.SampleRate()) / float64(outRate)
	inCount := int(working.SampleCount())

	sampleAt := func(ch uint16, idx int) float32 {
		if idx < 0 {
			if r.havePrev && int(ch) < len(r.lastSample) {
				return r.lastSample[ch]
			}
			if inCount > 0 {
				return working.Sample(ch, 0)
			}
			return 0
		}
		if idx >= inCount {
			return working.Sample(ch, uint32(inCount-1))
		}
		return working.Sample(ch, uint32(idx))
	}

	outCount := int(float64(inCount) / ratio)
	if outCount < 1 {
		outCount = 1
	}
	out, err := frame.Create(outRate, outChannels, uint32(outCount), outFormat, working.Timestamp())
	if err != nil {
		return nil, err
	}

	pos := r.phase
	for i := 0; i < outCount; i++ {
		idx := int(pos)
		frac := float32(pos - float64(idx))
		for ch := uint16(0); ch < outChannels; ch++ {
			a := sampleAt(ch, idx)
			b := sampleAt(ch, idx+1)
			out.SetSample(ch, uint32(i), a+(b-a)*frac)
		}
		pos += ratio
	}

	// Carry phase forward relative to the consumed input length, and stash
	// the tail samples as the "previous" neighbor for the next call.
	r.phase = pos - float64(inCount)
	if inCount > 0 {
		if cap(r.lastSample) < int(outChannels) {
			r.lastSample = make([]float32, working.ChannelCount())
		}
		for ch := uint16(0); ch < working.ChannelCount(); ch++ {
			r.lastSample[ch] = working.Sample(ch, uint32(inCount-1))
		}
		r.havePrev = true
	}

	return out, nil
}

// Reset clears tracked phase state, forcing the next Convert to behave as
// if this were the first call on a fresh stream.
func (r *Resampler) Reset() {
	r.initialized = false
	r.phase = 0
	r.havePrev = false
	r.lastSample = nil
}
