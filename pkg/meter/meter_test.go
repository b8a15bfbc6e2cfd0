package meter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelMeterSnapsToFirstValue(t *testing.T) {
	m := NewLevelMeter(DigitalPeak())
	m.Update(0.5, 0, time.Unix(0, 0))
	assert.InDelta(t, 0.5, m.current, 1e-9)
}

func TestDigitalPeakAttackIsInstantaneous(t *testing.T) {
	m := NewLevelMeter(DigitalPeak())
	now := time.Unix(0, 0)
	m.Update(0.1, 0, now)
	now = now.Add(time.Millisecond)
	m.Update(0.9, time.Millisecond, now)
	assert.InDelta(t, 0.9, m.current, 1e-9)
}

func TestDigitalPeakDecayApproaches99PercentAt1700ms(t *testing.T) {
	m := NewLevelMeter(DigitalPeak())
	now := time.Unix(0, 0)
	m.Update(1.0, 0, now)
	now = now.Add(1700 * time.Millisecond)
	m.Update(0.0, 1700*time.Millisecond, now)
	// 1 - e^(-t/tau) = 0.99 by construction of DecayTau, so after falling
	// toward 0 the reading should have dropped by ~99% of the initial 1.0.
	assert.InDelta(t, 0.01, m.current, 0.002)
}

func TestVUMeterHasNoHold(t *testing.T) {
	m := NewLevelMeter(VU())
	now := time.Unix(0, 0)
	m.Update(1.0, 0, now)
	now = now.Add(10 * time.Millisecond)
	m.Update(0.1, 10*time.Millisecond, now)
	assert.Less(t, m.PeakHoldDBFS(), m.CurrentDBFS()+40) // hold never sticks above current decay path
}

func TestPeakHoldSticksUntilHoldDurationElapses(t *testing.T) {
	m := NewLevelMeter(BBCPPM())
	now := time.Unix(0, 0)
	m.Update(1.0, 0, now)
	now = now.Add(100 * time.Millisecond)
	m.Update(0.1, 100*time.Millisecond, now)
	assert.InDelta(t, 1.0, m.peakHold, 1e-9)

	now = now.Add(600 * time.Millisecond)
	m.Update(0.1, 600*time.Millisecond, now)
	assert.Less(t, m.peakHold, 1.0)
}

func TestCorrelationMeterClassifiesMonoCompatible(t *testing.T) {
	cm := NewCorrelationMeter(48000)
	for i := 0; i < 48000; i++ {
		v := math.Sin(2 * math.Pi * 1000 * float64(i) / 48000)
		cm.Push(v, v)
	}
	assert.True(t, cm.MonoCompatible())
	assert.False(t, cm.PhaseWarning())
}

func TestCorrelationMeterClassifiesPhaseWarning(t *testing.T) {
	cm := NewCorrelationMeter(48000)
	for i := 0; i < 48000; i++ {
		v := math.Sin(2 * math.Pi * 1000 * float64(i) / 48000)
		cm.Push(v, -v)
	}
	assert.True(t, cm.PhaseWarning())
	assert.False(t, cm.MonoCompatible())
}

func TestBankPublishesSnapshotWithPerChannelReadings(t *testing.T) {
	b := NewBank(48000, 2, DigitalPeak())
	now := time.Unix(0, 0)
	b.Update([]float64{0.5, 0.25}, []float64{0.3, 0.2}, 0.5, 0.25, 0, now)
	snap := b.Snapshot()
	assert.Len(t, snap.PeakDBFS, 2)
	assert.Len(t, snap.RMSDBFS, 2)
	assert.InDelta(t, 1.0, snap.Correlation, 1e-6)
}

func TestLevelMeterResetReturnsToAtRest(t *testing.T) {
	m := NewLevelMeter(VU())
	m.Update(0.8, 0, time.Unix(0, 0))
	m.Reset()
	assert.False(t, m.started)
}
