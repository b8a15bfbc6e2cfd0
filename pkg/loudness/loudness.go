// Package loudness implements LoudnessAnalyzer: EBU
// R128 K-weighted momentary/short-term/integrated LUFS plus peak/RMS and
// stereo correlation, processed off the audio thread via pkg/monitor.
package loudness

import (
	"math"
	"sync"

	"github.com/go-musicfox/audiocore/internal/dsp"
	"github.com/go-musicfox/audiocore/pkg/frame"
)

// Target describes the loudness compliance target a Measurement is graded
// against; the zero value is not valid, use DefaultTarget().
type Target struct {
	IntegratedLUFS  float64 // e.g. -23
	ToleranceLU     float64 // e.g. 1
	PeakCeilingDBFS float64 // e.g. -1
}

// DefaultTarget is EBU R128: -23 LUFS +-1 LU, -1 dBFS peak ceiling.
func DefaultTarget() Target {
	return Target{IntegratedLUFS: -23, ToleranceLU: 1, PeakCeilingDBFS: -1}
}

// Measurement is a point-in-time loudness reading.
type Measurement struct {
	MomentaryLUFS  float64
	ShortTermLUFS  float64
	IntegratedLUFS float64
	PeakLeftDBFS   float64
	PeakRightDBFS  float64
	RMSLeftDBFS    float64
	RMSRightDBFS   float64
	Correlation    float64
	Valid          bool

	IntegratedCompliant bool
	PeakCompliant       bool
}

const (
	momentaryWindowSec   = 0.4
	shortTermWindowSec   = 3.0
	correlationWindowSec = 1.0

	absoluteGateLUFS = -70
	relativeGateLU   = -10
)

// Analyzer measures loudness. It is not safe for concurrent calls to
// Process; pkg/monitor serializes all calls from its single analysis
// goroutine. Snapshot is safe to call concurrently with Process: it is
// guarded by a mutex, so readers always see a consistent record.
type Analyzer struct {
	sampleRate uint32
	target     Target

	shelfL, hpL *dsp.Biquad
	shelfR, hpR *dsp.Biquad

	momentary *dsp.SlidingMeanSquare
	shortTerm *dsp.SlidingMeanSquare
	corr      *dsp.Correlation

	// Integrated loudness accumulation. gatingBlocks holds one mean-square
	// value per 400ms gating block (75% overlap per BS.1770 is not
	// implemented here) used for the two-stage absolute+relative gate.
	blockSize    int
	blockSamples int
	blockAccum   float64
	gatingBlocks []float64

	peakL, peakR         float64
	rmsAccumL, rmsAccumR float64
	rmsCount             int

	mu   sync.Mutex
	last Measurement
}

// New constructs an Analyzer for a stereo stream at sampleRate, graded
// against target.
func New(sampleRate uint32, target Target) *Analyzer {
	shelfL, hpL := kWeightingFilters(float64(sampleRate))
	shelfR, hpR := kWeightingFilters(float64(sampleRate))
	return &Analyzer{
		sampleRate:   sampleRate,
		target:       target,
		shelfL:       shelfL,
		hpL:          hpL,
		shelfR:       shelfR,
		hpR:          hpR,
		momentary:    dsp.NewSlidingMeanSquare(int(momentaryWindowSec * float64(sampleRate))),
		shortTerm:    dsp.NewSlidingMeanSquare(int(shortTermWindowSec * float64(sampleRate))),
		corr:         dsp.NewCorrelation(int(correlationWindowSec * float64(sampleRate))),
		blockSize:    int(0.4 * float64(sampleRate)),
		last:         restingMeasurement(),
	}
}

// restingMeasurement is the Measurement published before any Process call:
// not Valid, with both peaks at -inf dBFS (no signal seen yet).
func restingMeasurement() Measurement {
	return Measurement{PeakLeftDBFS: math.Inf(-1), PeakRightDBFS: math.Inf(-1)}
}

// Process feeds one mixed stereo frame through the analyzer. Channels
// beyond the first two are ignored, and a mono frame is analyzed as L==R.
func (a *Analyzer) Process(f *frame.Frame) {
	if f == nil || f.ChannelCount() < 1 {
		return
	}
	hasRight := f.ChannelCount() >= 2

	for i := uint32(0); i < f.SampleCount(); i++ {
		l := float64(f.Sample(0, i))
		r := l
		if hasRight {
			r = float64(f.Sample(1, i))
		}

		kl := a.hpL.Process(a.shelfL.Process(l))
		kr := a.hpR.Process(a.shelfR.Process(r))
		ms := (kl*kl + kr*kr) / 2

		a.momentary.Push(ms)
		a.shortTerm.Push(ms)
		a.corr.Push(l, r)

		a.blockAccum += ms
		a.blockSamples++
		if a.blockSamples >= a.blockSize {
			a.gatingBlocks = append(a.gatingBlocks, a.blockAccum/float64(a.blockSamples))
			a.blockAccum = 0
			a.blockSamples = 0
		}

		absL, absR := absF(l), absF(r)
		if absL > a.peakL {
			a.peakL = absL
		}
		if absR > a.peakR {
			a.peakR = absR
		}
		a.rmsAccumL += l * l
		a.rmsAccumR += r * r
		a.rmsCount++
	}

	a.publish()
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// meanSquareToLUFS implements momentary/short-term law:
// LUFS = -0.691 + 10*log10(mean_square).
func meanSquareToLUFS(ms float64) float64 {
	if ms <= 0 {
		return -100
	}
	return -0.691 + 10*math.Log10(ms)
}

// integratedLUFS applies two-stage gating (absolute -70 LUFS, relative
// -10 LU below the ungated integrated mean) over the accumulated gating
// blocks: the full BS.1770 two-stage gate, not a simplified running
// average.
func integratedLUFS(blocks []float64) float64 {
	if len(blocks) == 0 {
		return -100
	}
	var sum float64
	var n int
	for _, ms := range blocks {
		l := meanSquareToLUFS(ms)
		if l >= absoluteGateLUFS {
			sum += ms
			n++
		}
	}
	if n == 0 {
		return -100
	}
	ungated := sum / float64(n)
	ungatedLUFS := meanSquareToLUFS(ungated)
	relativeThreshold := ungatedLUFS + relativeGateLU

	sum = 0
	n = 0
	for _, ms := range blocks {
		l := meanSquareToLUFS(ms)
		if l >= absoluteGateLUFS && l >= relativeThreshold {
			sum += ms
			n++
		}
	}
	if n == 0 {
		return ungatedLUFS
	}
	return meanSquareToLUFS(sum / float64(n))
}

func (a *Analyzer) publish() {
	m := Measurement{
		MomentaryLUFS:  meanSquareToLUFS(a.momentary.Mean()),
		ShortTermLUFS:  meanSquareToLUFS(a.shortTerm.Mean()),
		IntegratedLUFS: integratedLUFS(a.gatingBlocks),
		PeakLeftDBFS:   dsp.LinearToDBFS(a.peakL),
		PeakRightDBFS:  dsp.LinearToDBFS(a.peakR),
		Correlation:    a.corr.Value(),
		Valid:          true,
	}
	if a.rmsCount > 0 {
		m.RMSLeftDBFS = dsp.LinearToDBFS(math.Sqrt(a.rmsAccumL / float64(a.rmsCount)))
		m.RMSRightDBFS = dsp.LinearToDBFS(math.Sqrt(a.rmsAccumR / float64(a.rmsCount)))
	}
	m.IntegratedCompliant = absF(m.IntegratedLUFS-a.target.IntegratedLUFS) <= a.target.ToleranceLU
	m.PeakCompliant = m.PeakLeftDBFS <= a.target.PeakCeilingDBFS && m.PeakRightDBFS <= a.target.PeakCeilingDBFS

	a.mu.Lock()
	a.last = m
	a.mu.Unlock()
}

// Snapshot returns the most recently published Measurement.
func (a *Analyzer) Snapshot() Measurement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Reset clears all accumulated state, as if the analyzer had just been
// constructed (used when starting a fresh integrated-loudness pass).
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shelfL, a.hpL = kWeightingFilters(float64(a.sampleRate))
	a.shelfR, a.hpR = kWeightingFilters(float64(a.sampleRate))
	a.momentary = dsp.NewSlidingMeanSquare(int(momentaryWindowSec * float64(a.sampleRate)))
	a.shortTerm = dsp.NewSlidingMeanSquare(int(shortTermWindowSec * float64(a.sampleRate)))
	a.corr = dsp.NewCorrelation(int(correlationWindowSec * float64(a.sampleRate)))
	a.blockAccum = 0
	a.blockSamples = 0
	a.gatingBlocks = nil
	a.peakL, a.peakR = 0, 0
	a.rmsAccumL, a.rmsAccumR = 0, 0
	a.rmsCount = 0
	a.last = restingMeasurement()
}
