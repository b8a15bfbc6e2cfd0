// Package frame implements AudioFrame: an immutable,
// owned buffer of interleaved samples plus a timestamp and format tag.
package frame

import "fmt"

// SampleFormat is the on-the-wire sample encoding of a Frame's byte buffer.
type SampleFormat uint8

const (
	Int16 SampleFormat = iota
	Int32
	Float32
)

func (f SampleFormat) String() string {
	switch f {
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the size in bytes of a single sample in format f.
func BytesPerSample(f SampleFormat) int {
	switch f {
	case Int16:
		return 2
	case Int32:
		return 4
	case Float32:
		return 4
	default:
		return 0
	}
}

// Layout guesses a channel layout name from a channel count alone; callers
// may override with an explicit layout when the guess is wrong (e.g. a
// 3-channel LCR mix rather than 2.1).
type Layout uint8

const (
	LayoutUnknown Layout = iota
	LayoutMono
	LayoutStereo
	Layout2_1
	Layout5_1
	Layout7_1
)

func (l Layout) String() string {
	switch l {
	case LayoutMono:
		return "mono"
	case LayoutStereo:
		return "stereo"
	case Layout2_1:
		return "2.1"
	case Layout5_1:
		return "5.1"
	case Layout7_1:
		return "7.1"
	default:
		return "unknown"
	}
}

// GuessLayout implements the count-only layout guess.
func GuessLayout(channelCount uint16) Layout {
	switch channelCount {
	case 1:
		return LayoutMono
	case 2:
		return LayoutStereo
	case 3:
		return Layout2_1
	case 6:
		return Layout5_1
	case 8:
		return Layout7_1
	default:
		return LayoutUnknown
	}
}

// Rational is a timestamp expressed as num/den, avoiding float drift across
// long timelines.
type Rational struct {
	Num int64
	Den int64
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Seconds converts the rational timestamp to a float64 number of seconds.
// Den == 0 is treated as zero duration rather than panicking, since a
// freshly zero-valued Rational is a legitimate "unknown timestamp".
func (r Rational) Seconds() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}
