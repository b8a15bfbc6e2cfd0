package scope

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-musicfox/audiocore/pkg/frame"
)

const testSampleRate = 48000

func monoSineFrame(t *testing.T, freqHz float64, sampleCount uint32) *frame.Frame {
	t.Helper()
	f, err := frame.Create(testSampleRate, 2, sampleCount, frame.Float32, frame.Rational{})
	require.NoError(t, err)
	for i := uint32(0); i < sampleCount; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freqHz*float64(i)/testSampleRate))
		f.SetSample(0, i, v)
		f.SetSample(1, i, v)
	}
	return f
}

func TestMonoSignalIsFullyCorrelated(t *testing.T) {
	a := New(testSampleRate)
	a.Process(monoSineFrame(t, 440, 4096))

	snap := a.Snapshot()
	assert.True(t, snap.Vectorscope.MonoCompatible)
	assert.InDelta(t, 0, snap.Vectorscope.StereoWidth, 0.05)
	assert.False(t, a.DetectPhaseIssues())
}

func TestOutOfPhaseSignalTripsPhaseIssueDetection(t *testing.T) {
	a := New(testSampleRate)
	f, err := frame.Create(testSampleRate, 2, 4096, frame.Float32, frame.Rational{})
	require.NoError(t, err)
	for i := uint32(0); i < f.SampleCount(); i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/testSampleRate))
		f.SetSample(0, i, v)
		f.SetSample(1, i, -v)
	}
	a.Process(f)

	assert.True(t, a.DetectPhaseIssues())
	snap := a.Snapshot()
	assert.False(t, snap.Vectorscope.MonoCompatible)
	assert.InDelta(t, 1, snap.Vectorscope.StereoWidth, 0.05)
}

func TestSpectrumPeaksNearDrivenFrequency(t *testing.T) {
	a := New(testSampleRate)
	// Feed enough samples to complete at least one FFT window.
	a.Process(monoSineFrame(t, 1000, uint32(defaultFFTSize)))

	snap := a.Snapshot()
	require.NotEmpty(t, snap.Spectrum.MagnitudesDB)

	resHz := snap.Spectrum.FrequencyResHz
	peakBin := 0
	for i, mag := range snap.Spectrum.MagnitudesDB {
		if mag > snap.Spectrum.MagnitudesDB[peakBin] {
			peakBin = i
		}
	}
	peakHz := float64(peakBin) * resHz
	assert.InDelta(t, 1000, peakHz, resHz*2)
}

func TestVectorscopeTraceWrapsWithoutGrowingUnbounded(t *testing.T) {
	a := New(testSampleRate)
	a.Process(monoSineFrame(t, 220, uint32(defaultVectorscopeMax)*2))

	snap := a.Snapshot()
	assert.Len(t, snap.Vectorscope.Points, defaultVectorscopeMax)
}

func TestResetClearsAccumulatedState(t *testing.T) {
	a := New(testSampleRate)
	a.Process(monoSineFrame(t, 440, 4096))
	require.NotEmpty(t, a.Snapshot().Vectorscope.Points)

	a.Reset()
	snap := a.Snapshot()
	assert.Empty(t, snap.Vectorscope.Points)
	assert.Empty(t, snap.PhaseCorrelation.History)
}

func TestMonoFrameTreatsChannelsAsIdentical(t *testing.T) {
	a := New(testSampleRate)
	f, err := frame.Create(testSampleRate, 1, 4096, frame.Float32, frame.Rational{})
	require.NoError(t, err)
	for i := uint32(0); i < f.SampleCount(); i++ {
		v := float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/testSampleRate))
		f.SetSample(0, i, v)
	}
	a.Process(f)

	snap := a.Snapshot()
	assert.True(t, snap.Vectorscope.MonoCompatible)
}
