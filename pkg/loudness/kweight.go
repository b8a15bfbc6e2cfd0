package loudness

import (
	"math"

	"github.com/go-musicfox/audiocore/internal/dsp"
)

// kWeightingFilters builds the two-stage K-weighting cascade: a
// high-shelf biquad at 1681 Hz / +4 dB followed by a 38 Hz high-pass
// biquad. Both are designed with the RBJ cookbook bilinear-transform
// formulas at the given sample rate (shelf Q 1.0, high-pass Q 0.5003). At
// 48 kHz the high-pass poles equal the published ITU-R BS.1770 ones; the
// shelf coefficients differ from the published BS.1770 values (b1 is about
// -2.755 rather than -2.692) and its gain at 1 kHz is about -0.25 dB.
func kWeightingFilters(sampleRate float64) (shelf, highpass *dsp.Biquad) {
	shelf = highShelf(sampleRate, 1681.9744509555319, 4.0, 1.0)
	highpass = highPass(sampleRate, 38.13547087613982, 0.5003270373238773)
	return shelf, highpass
}

// highShelf designs a high-shelf biquad per the RBJ cookbook, parameterized
// by center frequency (Hz), gain (dB), and Q.
func highShelf(sampleRate, freq, gainDB, q float64) *dsp.Biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	alpha := sinw0 / (2 * q)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*cosw0 + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw0)
	b2 := a * ((a + 1) + (a-1)*cosw0 - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cosw0 + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosw0)
	a2 := (a + 1) - (a-1)*cosw0 - 2*sqrtA*alpha

	return &dsp.Biquad{
		B0: b0 / a0, B1: b1 / a0, B2: b2 / a0,
		A1: a1 / a0, A2: a2 / a0,
	}
}

// highPass designs a simple RBJ high-pass biquad at freq Hz with Q.
func highPass(sampleRate, freq, q float64) *dsp.Biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	alpha := sinw0 / (2 * q)

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha

	return &dsp.Biquad{
		B0: b0 / a0, B1: b1 / a0, B2: b2 / a0,
		A1: a1 / a0, A2: a2 / a0,
	}
}
