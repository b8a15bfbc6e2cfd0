package mixer

import "math"

// panCoefficients implements the equal-power pan law:
// p = (pan+1)/2, left = cos(p*pi/2)*sqrt(2), right = sin(p*pi/2)*sqrt(2).
// Center (pan=0, p=0.5) yields ~1.0 on both sides, preserving unity gain
// regardless of pan.
//
// simple_mixer.cpp's apply_panning uses a different, also equal-power
// form instead: left = sqrt(1-pan), right = sqrt(1+pan) for pan > 0 (and
// the mirror image for pan < 0). Both curves satisfy center-preserves-unity
// and equal total power (left^2+right^2 is constant in each), but they are
// not numerically identical away from center. This cos/sin form is kept
// deliberately rather than matched byte-for-byte to the source; see
// DESIGN.md's pan law entry.
func panCoefficients(pan float32) (left, right float32) {
	p := (float64(pan) + 1) / 2
	const sqrt2 = math.Sqrt2
	left = float32(math.Cos(p*math.Pi/2) * sqrt2)
	right = float32(math.Sin(p*math.Pi/2) * sqrt2)
	// cos(pi/2) is about 6e-17 in float64, not 0; a hard-right pan silences
	// the left side exactly, as sin(0) already does for the right side.
	if pan >= 1 {
		left = 0
	}
	return left, right
}
