package mixer

import "github.com/go-musicfox/audiocore/pkg/frame"

// Config configures a Mixer at construction time.
type Config struct {
	SampleRate     uint32
	ChannelCount   uint16 // output layout channel count, typically 2 (stereo)
	Format         frame.SampleFormat
	MaxChannels    uint32
	MasterGainDB   float32
	MasterMuted    bool
	ClipProtection bool
}

const (
	MinGainDB = -60.0
	MaxGainDB = 12.0

	// ClipThreshold is the default soft-clip threshold.
	ClipThreshold = 0.9
	// ClipEventThreshold is the pre-tanh magnitude that counts as a
	// clipping event for stats purposes.
	ClipEventThreshold = 0.99
)

func clampGainDB(db float32) float32 {
	if db < MinGainDB {
		return MinGainDB
	}
	if db > MaxGainDB {
		return MaxGainDB
	}
	return db
}

func clampPan(pan float32) float32 {
	if pan < -1 {
		return -1
	}
	if pan > 1 {
		return 1
	}
	return pan
}
