package meter

import (
	"math"
	"time"
)

// Ballistics holds the attack/decay time constants and peak-hold duration
// for one of the three LevelMeter profiles. A zero AttackTau means "snap"
// (instantaneous attack).
type Ballistics struct {
	AttackTau time.Duration
	DecayTau  time.Duration
	HoldTau   time.Duration
}

// decayTauFor1700msAt99Percent solves tau for 1-e^(-t/tau) = 0.99 at
// t = 1700ms, the "20 dB in 1700 ms" decay shared by the DigitalPeak and
// BBCPPM profiles.
func decayTauFor1700msAt99Percent() time.Duration {
	t := 1700 * time.Millisecond
	tau := -float64(t) / math.Log(1-0.99)
	return time.Duration(tau)
}

// DigitalPeak: instantaneous attack, 1700ms/20dB decay, 1000ms hold.
func DigitalPeak() Ballistics {
	return Ballistics{
		AttackTau: 0,
		DecayTau:  decayTauFor1700msAt99Percent(),
		HoldTau:   1000 * time.Millisecond,
	}
}

// VU: 300ms attack and decay, no hold.
func VU() Ballistics {
	return Ballistics{
		AttackTau: 300 * time.Millisecond,
		DecayTau:  300 * time.Millisecond,
		HoldTau:   0,
	}
}

// BBCPPM: instantaneous attack, 1700ms decay, 500ms hold.
func BBCPPM() Ballistics {
	return Ballistics{
		AttackTau: 0,
		DecayTau:  decayTauFor1700msAt99Percent(),
		HoldTau:   500 * time.Millisecond,
	}
}
