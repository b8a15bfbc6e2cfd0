package mixer

import "math"

// Channel holds one mixer channel's state. Fields are only ever mutated
// through the Mixer's single lock, so Channel itself carries no
// synchronization of its own.
type Channel struct {
	ID               uint32
	Name             string
	GainDB           float32
	Pan              float32
	Muted            bool
	Solo             bool
	SamplesProcessed uint64

	// TrackID binds this channel to a timeline audio track for
	// pkg/timeline's reconciliation pass. Zero means unbound.
	TrackID uint64
}

// gainLinear converts GainDB to a linear multiplier:
// db <= -60 maps to exactly 0 rather than a very small non-zero number.
func gainLinear(db float32) float32 {
	if db <= MinGainDB {
		return 0
	}
	return float32(math.Pow(10, float64(db)/20))
}
