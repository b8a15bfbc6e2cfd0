// Package meter implements MeterBank: per-channel peak
// and RMS level meters with professional ballistics, plus a stereo
// correlation meter, fed by MonitoringHub alongside the LoudnessAnalyzer.
package meter

import (
	"math"
	"sync"
	"time"

	"github.com/go-musicfox/audiocore/internal/dsp"
)

// LevelMeter tracks one channel's displayed level under a chosen
// Ballistics profile. Update is called once per monitoring tick with the
// instantaneous linear peak (or RMS) value measured since the last call.
type LevelMeter struct {
	b Ballistics

	current  float64
	peakHold float64
	lastPeak time.Time
	started  bool
}

// NewLevelMeter constructs a meter at rest (reporting -inf dBFS) using b.
func NewLevelMeter(b Ballistics) *LevelMeter {
	return &LevelMeter{b: b}
}

// Update advances the meter by dt given the latest instantaneous linear
// level L, attack/decay/hold rule.
func (m *LevelMeter) Update(l float64, dt time.Duration, now time.Time) {
	if !m.started {
		m.current = l
		m.peakHold = l
		m.lastPeak = now
		m.started = true
		return
	}

	if l > m.current {
		if m.b.AttackTau <= 0 {
			m.current = l
		} else {
			factor := 1 - math.Exp(-float64(dt)/float64(m.b.AttackTau))
			m.current += (l - m.current) * factor
		}
	} else {
		if m.b.DecayTau <= 0 {
			m.current = l
		} else {
			factor := 1 - math.Exp(-float64(dt)/float64(m.b.DecayTau))
			m.current += (l - m.current) * factor
		}
	}

	if l > m.peakHold {
		m.peakHold = l
		m.lastPeak = now
	} else if now.Sub(m.lastPeak) > m.b.HoldTau {
		if m.b.DecayTau <= 0 {
			m.peakHold = l
		} else {
			factor := 1 - math.Exp(-float64(dt)/float64(m.b.DecayTau))
			m.peakHold += (l - m.peakHold) * factor
		}
	}
}

// CurrentDBFS returns the ballistics-shaped current reading in dBFS.
func (m *LevelMeter) CurrentDBFS() float64 {
	return dsp.LinearToDBFS(m.current)
}

// PeakHoldDBFS returns the held peak indicator in dBFS.
func (m *LevelMeter) PeakHoldDBFS() float64 {
	return dsp.LinearToDBFS(m.peakHold)
}

// Reset returns the meter to its initial at-rest state.
func (m *LevelMeter) Reset() {
	*m = LevelMeter{b: m.b}
}

const correlationWarningThreshold = -0.5
const correlationMonoCompatibleThreshold = 0.5

// CorrelationMeter wraps internal/dsp.Correlation with mono-compatibility
// and phase-warning classification thresholds.
type CorrelationMeter struct {
	c *dsp.Correlation
}

// NewCorrelationMeter builds a correlation meter over a 1 second sliding
// window at sampleRate.
func NewCorrelationMeter(sampleRate uint32) *CorrelationMeter {
	return &CorrelationMeter{c: dsp.NewCorrelation(int(sampleRate))}
}

func (c *CorrelationMeter) Push(l, r float64) { c.c.Push(l, r) }
func (c *CorrelationMeter) Value() float64    { return c.c.Value() }
func (c *CorrelationMeter) MonoCompatible() bool {
	return c.c.Value() > correlationMonoCompatibleThreshold
}
func (c *CorrelationMeter) PhaseWarning() bool {
	return c.c.Value() < correlationWarningThreshold
}

// Snapshot is the read-only meter state published by MeterBank.
type Snapshot struct {
	PeakDBFS       []float64
	PeakHoldDBFS   []float64
	RMSDBFS        []float64
	Correlation    float64
	MonoCompatible bool
	PhaseWarning   bool
}

// Bank aggregates one peak LevelMeter and one RMS LevelMeter per channel
// plus a CorrelationMeter. Snapshots are published under a mutex so readers
// always see a consistent set of values from the same tick.
type Bank struct {
	sampleRate uint32
	profile    Ballistics

	mu   sync.Mutex
	peak []*LevelMeter
	rms  []*LevelMeter
	corr *CorrelationMeter
	last Snapshot
}

// NewBank constructs a Bank for channelCount channels, using profile for
// the peak meters (the embedding application's default is DigitalPeak) and
// a fixed VU-style 300ms/300ms ballistics for the RMS meters.
func NewBank(sampleRate uint32, channelCount int, profile Ballistics) *Bank {
	peak := make([]*LevelMeter, channelCount)
	rms := make([]*LevelMeter, channelCount)
	for i := range peak {
		peak[i] = NewLevelMeter(profile)
		rms[i] = NewLevelMeter(VU())
	}
	return &Bank{
		sampleRate: sampleRate,
		profile:    profile,
		peak:       peak,
		rms:        rms,
		corr:       NewCorrelationMeter(sampleRate),
	}
}

// Update feeds one monitoring tick of per-channel instantaneous peak and
// RMS linear levels (measured by the caller over the frame just processed)
// through the ballistics, and republishes Snapshot.
func (b *Bank) Update(peakLevels, rmsLevels []float64, l, r float64, dt time.Duration, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, lvl := range peakLevels {
		if i >= len(b.peak) {
			break
		}
		b.peak[i].Update(lvl, dt, now)
	}
	for i, lvl := range rmsLevels {
		if i >= len(b.rms) {
			break
		}
		b.rms[i].Update(lvl, dt, now)
	}
	b.corr.Push(l, r)

	snap := Snapshot{
		PeakDBFS:       make([]float64, len(b.peak)),
		PeakHoldDBFS:   make([]float64, len(b.peak)),
		RMSDBFS:        make([]float64, len(b.rms)),
		Correlation:    b.corr.Value(),
		MonoCompatible: b.corr.MonoCompatible(),
		PhaseWarning:   b.corr.PhaseWarning(),
	}
	for i, m := range b.peak {
		snap.PeakDBFS[i] = m.CurrentDBFS()
		snap.PeakHoldDBFS[i] = m.PeakHoldDBFS()
	}
	for i, m := range b.rms {
		snap.RMSDBFS[i] = m.CurrentDBFS()
	}
	b.last = snap
}

// Snapshot returns the most recently published reading.
func (b *Bank) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
