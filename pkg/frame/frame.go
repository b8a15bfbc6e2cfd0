package frame

import (
	"encoding/binary"
	"math"

	"github.com/go-musicfox/audiocore/internal/errs"
)

const (
	int16ReadScale  = 1.0 / 32768.0
	int16WriteScale = 32767.0
	int32ReadScale  = 1.0 / 2147483648.0
	int32WriteScale = 2147483647.0
)

// Frame is AudioFrame: immutable after construction, owning
// a byte buffer of interleaved samples. Construct with Create or
// CreateFromBytes; there is no exported way to mutate Data in place except
// through SetSample, which is itself bounds- and range-checked.
type Frame struct {
	sampleRate   uint32
	channelCount uint16
	sampleCount  uint32
	format       SampleFormat
	timestamp    Rational
	data         []byte
}

func dataSize(channelCount uint16, sampleCount uint32, format SampleFormat) int {
	return int(sampleCount) * int(channelCount) * BytesPerSample(format)
}

// Create allocates a zeroed frame of the given shape.
func Create(sampleRate uint32, channelCount uint16, sampleCount uint32, format SampleFormat, timestamp Rational) (*Frame, error) {
	if sampleRate == 0 {
		return nil, errs.New(errs.InvalidArgument, "sample rate must be > 0")
	}
	if channelCount == 0 {
		return nil, errs.New(errs.InvalidArgument, "channel count must be >= 1")
	}
	if sampleCount == 0 {
		return nil, errs.New(errs.InvalidArgument, "sample count must be >= 1")
	}
	return &Frame{
		sampleRate:   sampleRate,
		channelCount: channelCount,
		sampleCount:  sampleCount,
		format:       format,
		timestamp:    timestamp,
		data:         make([]byte, dataSize(channelCount, sampleCount, format)),
	}, nil
}

// CreateFromBytes copies bytes into a new frame, failing if the length
// disagrees with the sampleCount*channelCount*bytesPerSample invariant.
func CreateFromBytes(sampleRate uint32, channelCount uint16, sampleCount uint32, format SampleFormat, timestamp Rational, data []byte) (*Frame, error) {
	if sampleRate == 0 || channelCount == 0 || sampleCount == 0 {
		return nil, errs.New(errs.InvalidArgument, "sample rate, channel count and sample count must all be > 0")
	}
	want := dataSize(channelCount, sampleCount, format)
	if len(data) != want {
		return nil, errs.New(errs.BufferSizeMismatch,
			"buffer length disagrees with sample_count*channel_count*bytes_per_sample")
	}
	buf := make([]byte, want)
	copy(buf, data)
	return &Frame{
		sampleRate:   sampleRate,
		channelCount: channelCount,
		sampleCount:  sampleCount,
		format:       format,
		timestamp:    timestamp,
		data:         buf,
	}, nil
}

func (f *Frame) SampleRate() uint32      { return f.sampleRate }
func (f *Frame) ChannelCount() uint16    { return f.channelCount }
func (f *Frame) SampleCount() uint32     { return f.sampleCount }
func (f *Frame) Format() SampleFormat    { return f.format }
func (f *Frame) Timestamp() Rational     { return f.timestamp }
func (f *Frame) Data() []byte            { return f.data }
func (f *Frame) Layout() Layout          { return GuessLayout(f.channelCount) }

func (f *Frame) byteOffset(channel uint16, index uint32) int {
	bps := BytesPerSample(f.format)
	return (int(index)*int(f.channelCount) + int(channel)) * bps
}

// Sample reads sample (channel, index) and converts it to float32 in
// [-1, 1] using the read-scale factors for the frame's format. Out-of-
// range channel/index returns 0 rather than panicking, since audio-thread
// code must never panic on a malformed index from an upstream producer.
func (f *Frame) Sample(channel uint16, index uint32) float32 {
	if channel >= f.channelCount || index >= f.sampleCount {
		return 0
	}
	off := f.byteOffset(channel, index)
	switch f.format {
	case Int16:
		v := int16(binary.LittleEndian.Uint16(f.data[off : off+2]))
		return float32(float64(v) * int16ReadScale)
	case Int32:
		v := int32(binary.LittleEndian.Uint32(f.data[off : off+4]))
		return float32(float64(v) * int32ReadScale)
	case Float32:
		bits := binary.LittleEndian.Uint32(f.data[off : off+4])
		return math.Float32frombits(bits)
	default:
		return 0
	}
}

// SetSample clamps value to [-1, 1] and writes it using the write-scale
// factors (32767 / 2^31-1), which are intentionally asymmetric with the
// read scale so round-tripping an already-scaled value is exact while
// writing a full-scale extremum never overflows.
func (f *Frame) SetSample(channel uint16, index uint32, value float32) {
	if channel >= f.channelCount || index >= f.sampleCount {
		return
	}
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	off := f.byteOffset(channel, index)
	switch f.format {
	case Int16:
		v := int16(float64(value) * int16WriteScale)
		binary.LittleEndian.PutUint16(f.data[off:off+2], uint16(v))
	case Int32:
		v := int32(float64(value) * int32WriteScale)
		binary.LittleEndian.PutUint32(f.data[off:off+4], uint32(v))
	case Float32:
		binary.LittleEndian.PutUint32(f.data[off:off+4], math.Float32bits(value))
	}
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	buf := make([]byte, len(f.data))
	copy(buf, f.data)
	return &Frame{
		sampleRate:   f.sampleRate,
		channelCount: f.channelCount,
		sampleCount:  f.sampleCount,
		format:       f.format,
		timestamp:    f.timestamp,
		data:         buf,
	}
}

// CloneAs deep-copies the frame, converting every sample to targetFormat.
func (f *Frame) CloneAs(targetFormat SampleFormat) (*Frame, error) {
	out, err := Create(f.sampleRate, f.channelCount, f.sampleCount, targetFormat, f.timestamp)
	if err != nil {
		return nil, err
	}
	for ch := uint16(0); ch < f.channelCount; ch++ {
		for i := uint32(0); i < f.sampleCount; i++ {
			out.SetSample(ch, i, f.Sample(ch, i))
		}
	}
	return out, nil
}
