package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateValidatesShape(t *testing.T) {
	_, err := Create(0, 2, 10, Float32, Rational{})
	require.Error(t, err)

	f, err := Create(48000, 2, 10, Float32, Rational{Num: 1, Den: 48000})
	require.NoError(t, err)
	assert.Equal(t, 10*2*4, len(f.Data()))
}

func TestCreateFromBytesRejectsSizeMismatch(t *testing.T) {
	_, err := CreateFromBytes(48000, 2, 10, Int16, Rational{}, make([]byte, 4))
	require.Error(t, err)

	data := make([]byte, 10*2*2)
	f, err := CreateFromBytes(48000, 2, 10, Int16, Rational{}, data)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), f.SampleCount())
}

func TestSampleRoundTripFloat32(t *testing.T) {
	f, err := Create(48000, 1, 4, Float32, Rational{})
	require.NoError(t, err)
	vals := []float32{0, 0.5, -0.5, 0.999}
	for i, v := range vals {
		f.SetSample(0, uint32(i), v)
	}
	for i, v := range vals {
		assert.InDelta(t, v, f.Sample(0, uint32(i)), 1e-6)
	}
}

func TestSetSampleClampsToUnitRange(t *testing.T) {
	f, _ := Create(48000, 1, 1, Float32, Rational{})
	f.SetSample(0, 0, 3.0)
	assert.Equal(t, float32(1.0), f.Sample(0, 0))
	f.SetSample(0, 0, -3.0)
	assert.Equal(t, float32(-1.0), f.Sample(0, 0))
}

func TestSetSampleExtremaDoNotOverflowInt16(t *testing.T) {
	f, _ := Create(48000, 1, 1, Int16, Rational{})
	f.SetSample(0, 0, 1.0)
	// write scale is 32767, not 32768: no overflow into the sign bit.
	assert.InDelta(t, 1.0, f.Sample(0, 0), 1.0/32768.0)
	f.SetSample(0, 0, -1.0)
	assert.InDelta(t, -1.0, f.Sample(0, 0), 1.0/32768.0)
}

func TestCloneAsRoundTripWithinTolerance(t *testing.T) {
	f, _ := Create(48000, 2, 8, Float32, Rational{})
	for i := uint32(0); i < 8; i++ {
		f.SetSample(0, i, float32(math.Sin(float64(i))))
		f.SetSample(1, i, float32(math.Cos(float64(i))))
	}
	asInt16, err := f.CloneAs(Int16)
	require.NoError(t, err)
	back, err := asInt16.CloneAs(Float32)
	require.NoError(t, err)
	for ch := uint16(0); ch < 2; ch++ {
		for i := uint32(0); i < 8; i++ {
			assert.InDelta(t, f.Sample(ch, i), back.Sample(ch, i), 1.0/32767.0)
		}
	}
}

func TestOutOfRangeAccessIsSilentZero(t *testing.T) {
	f, _ := Create(48000, 1, 1, Float32, Rational{})
	assert.Equal(t, float32(0), f.Sample(5, 0))
	f.SetSample(5, 0, 1.0) // must not panic
}

func TestGuessLayout(t *testing.T) {
	cases := map[uint16]Layout{1: LayoutMono, 2: LayoutStereo, 3: Layout2_1, 6: Layout5_1, 8: Layout7_1, 4: LayoutUnknown}
	for count, want := range cases {
		assert.Equal(t, want, GuessLayout(count))
	}
}
