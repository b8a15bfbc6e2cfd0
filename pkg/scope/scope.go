// Package scope implements the vectorscope, phase-correlation history, and
// spectrum analyzer of a professional audio monitoring bench: the visual
// scopes that sit alongside loudness and level metering, fed by
// pkg/monitor.Hub off the audio thread the same way pkg/loudness and
// pkg/meter are.
package scope

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"github.com/go-musicfox/audiocore/internal/dsp"
	"github.com/go-musicfox/audiocore/pkg/frame"
)

const (
	defaultFFTSize        = 2048
	defaultVectorscopeMax = 1000
	defaultHistoryMax     = 100

	monoCompatibleThreshold = 0.5
	phaseIssueThreshold     = -0.5
)

// VectorscopePoint is one L+R/L-R sample pair plotted on a vectorscope,
// the Lissajous-style stereo field display.
type VectorscopePoint struct {
	Sum  float32 // L+R
	Diff float32 // L-R
}

// VectorscopeSnapshot is the vectorscope's published display state.
type VectorscopeSnapshot struct {
	Points           []VectorscopePoint
	CorrelationCoeff float64
	StereoWidth      float64
	MonoCompatible   bool
}

// PhaseCorrelationSnapshot is the phase-correlation meter's published
// display state, including recent history for a scrolling trace.
type PhaseCorrelationSnapshot struct {
	Correlation     float64
	DecorrelationDB float64
	MonoCompatible  bool
	History         []float64
}

// SpectrumSnapshot is the spectrum analyzer's published display state.
type SpectrumSnapshot struct {
	FrequenciesHz  []float64
	MagnitudesDB   []float64
	PeakHoldDB     []float64
	FrequencyResHz float64
}

// Snapshot bundles all three scopes as published by Analyzer.Snapshot.
type Snapshot struct {
	Vectorscope      VectorscopeSnapshot
	PhaseCorrelation PhaseCorrelationSnapshot
	Spectrum         SpectrumSnapshot
}

// Analyzer runs the vectorscope, phase-correlation history, and spectrum
// analyzer over mixed stereo frames. It is driven by a single caller
// (pkg/monitor.Hub's analysis goroutine); Snapshot is safe to call
// concurrently with Process.
type Analyzer struct {
	sampleRate float64
	fftSize    int
	vecMax     int
	histMax    int

	mu sync.Mutex

	vecBuf   []VectorscopePoint
	vecPos   int
	vecFull  bool
	corr     *dsp.Correlation
	corrHist []float64

	fftBuf   []float64
	fftPos   int
	peakHold []float64

	last Snapshot
}

// New constructs an Analyzer for a stereo stream at sampleRate, using the
// default 2048-point FFT, a 1000-point vectorscope trace, and a 100-entry
// correlation history, matching ProfessionalAudioScopes's defaults.
func New(sampleRate uint32) *Analyzer {
	a := &Analyzer{
		sampleRate: float64(sampleRate),
		fftSize:    defaultFFTSize,
		vecMax:     defaultVectorscopeMax,
		histMax:    defaultHistoryMax,
		corr:       dsp.NewCorrelation(int(sampleRate)),
	}
	a.vecBuf = make([]VectorscopePoint, a.vecMax)
	a.fftBuf = make([]float64, a.fftSize)
	a.peakHold = newPeakHold(a.fftSize / 2)
	return a
}

// newPeakHold returns a peak-hold trace with every bin at -inf dB, so the
// first FFT window sets each bin to its measured level.
func newPeakHold(bins int) []float64 {
	h := make([]float64, bins)
	for i := range h {
		h[i] = math.Inf(-1)
	}
	return h
}

// Process feeds one mixed stereo frame through all three scopes. Channels
// beyond the first two are ignored, and a mono frame is treated as L==R
// (no stereo information).
func (a *Analyzer) Process(f *frame.Frame) {
	if f == nil || f.ChannelCount() < 1 {
		return
	}
	hasRight := f.ChannelCount() >= 2

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := uint32(0); i < f.SampleCount(); i++ {
		l := f.Sample(0, i)
		r := l
		if hasRight {
			r = f.Sample(1, i)
		}
		a.pushVectorscopeLocked(l, r)
		a.corr.Push(float64(l), float64(r))
		a.pushSpectrumLocked((l + r) / 2)
	}

	v := a.corr.Value()
	a.corrHist = append(a.corrHist, v)
	if len(a.corrHist) > a.histMax {
		a.corrHist = a.corrHist[len(a.corrHist)-a.histMax:]
	}

	a.publishLocked()
}

func (a *Analyzer) pushVectorscopeLocked(l, r float32) {
	a.vecBuf[a.vecPos] = VectorscopePoint{Sum: l + r, Diff: l - r}
	a.vecPos++
	if a.vecPos >= len(a.vecBuf) {
		a.vecPos = 0
		a.vecFull = true
	}
}

func (a *Analyzer) pushSpectrumLocked(mono float32) {
	a.fftBuf[a.fftPos] = float64(mono)
	a.fftPos++
	if a.fftPos >= len(a.fftBuf) {
		a.computeSpectrumLocked()
		a.fftPos = 0
	}
}

// computeSpectrumLocked runs the FFT over the last complete window and
// updates the peak-hold trace, grounded on ProfessionalAudioScopes's
// compute_fft/SpectrumData: magnitudes in dB, a decaying peak-hold array,
// frequency_resolution_hz = sample_rate / fft_size.
func (a *Analyzer) computeSpectrumLocked() {
	spectrum := fft.FFTReal(a.fftBuf)
	n := len(spectrum) / 2
	for i := 0; i < n && i < len(a.peakHold); i++ {
		mag := cmplx.Abs(spectrum[i]) / float64(len(a.fftBuf))
		db := dsp.LinearToDBFS(mag)
		if db > a.peakHold[i] {
			a.peakHold[i] = db
		} else {
			// 0.5 dB decay per FFT window (2048 samples, about 43 ms at
			// 48 kHz, so roughly 12 dB/s), matching the peak-hold-then-decay
			// shape of the meter ballistics elsewhere in this module.
			a.peakHold[i] -= 0.5
		}
	}
}

func (a *Analyzer) publishLocked() {
	var points []VectorscopePoint
	if a.vecFull {
		points = make([]VectorscopePoint, len(a.vecBuf))
		copy(points, a.vecBuf[a.vecPos:])
		copy(points[len(a.vecBuf)-a.vecPos:], a.vecBuf[:a.vecPos])
	} else {
		points = make([]VectorscopePoint, a.vecPos)
		copy(points, a.vecBuf[:a.vecPos])
	}

	corrVal := a.corr.Value()
	// Stereo width: energy in the side (L-R) channel relative to the sum
	// channel, derived from the correlation coefficient the same way
	// ProfessionalAudioScopes's VectorscopeData pairs correlation with
	// stereo_width (no closed-form relation is given there, so this uses
	// the standard mid/side approximation: width shrinks to 0 as
	// correlation approaches +1, mono).
	width := (1 - corrVal) / 2
	if width < 0 {
		width = 0
	} else if width > 1 {
		width = 1
	}

	hist := make([]float64, len(a.corrHist))
	copy(hist, a.corrHist)

	freqs := make([]float64, len(a.peakHold))
	mags := make([]float64, len(a.peakHold))
	peaks := make([]float64, len(a.peakHold))
	resHz := a.sampleRate / float64(a.fftSize)
	for i := range a.peakHold {
		freqs[i] = float64(i) * resHz
		mags[i] = a.peakHold[i]
		peaks[i] = a.peakHold[i]
	}

	a.last = Snapshot{
		Vectorscope: VectorscopeSnapshot{
			Points:           points,
			CorrelationCoeff: corrVal,
			StereoWidth:      width,
			MonoCompatible:   corrVal > monoCompatibleThreshold,
		},
		PhaseCorrelation: PhaseCorrelationSnapshot{
			Correlation: corrVal,
			// No decorrelation_db formula is given by the original; this
			// estimates attenuation from full decorrelation (-1) to full
			// correlation (+1) via the (1+corr)/2 power ratio.
			DecorrelationDB: dsp.LinearToDBFS((1 + corrVal) / 2),
			MonoCompatible:  corrVal > monoCompatibleThreshold,
			History:         hist,
		},
		Spectrum: SpectrumSnapshot{
			FrequenciesHz:  freqs,
			MagnitudesDB:   mags,
			PeakHoldDB:     peaks,
			FrequencyResHz: resHz,
		},
	}
}

// Snapshot returns the most recently published scope state.
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// DetectPhaseIssues reports whether the current correlation indicates
// significant phase cancellation risk, matching
// ProfessionalAudioScopes::detect_phase_issues's correlation < -0.5 rule.
func (a *Analyzer) DetectPhaseIssues() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.corr.Value() < phaseIssueThreshold
}

// Reset clears all accumulated scope state.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vecBuf = make([]VectorscopePoint, a.vecMax)
	a.vecPos = 0
	a.vecFull = false
	a.corr = dsp.NewCorrelation(int(a.sampleRate))
	a.corrHist = nil
	a.fftBuf = make([]float64, a.fftSize)
	a.fftPos = 0
	a.peakHold = newPeakHold(a.fftSize / 2)
	a.last = Snapshot{}
}
