// Package quality implements a real-time quality analysis dashboard:
// export quality scoring, platform compliance targets, and trend analysis
// layered on top of pkg/loudness and pkg/meter's measurements, fed by
// pkg/monitor.Hub the same way the underlying analyzers are.
package quality

import (
	"fmt"
	"sync"

	"github.com/go-musicfox/audiocore/pkg/loudness"
	"github.com/go-musicfox/audiocore/pkg/meter"
)

// Category buckets an overall quality Score into the five-tier grading
// used by the dashboard summary.
type Category uint8

const (
	Excellent    Category = iota // 90-100
	Good                         // 70-89
	Acceptable                   // 50-69
	Poor                         // 30-49
	Unacceptable                 // 0-29
)

func (c Category) String() string {
	switch c {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Acceptable:
		return "acceptable"
	case Poor:
		return "poor"
	default:
		return "unacceptable"
	}
}

func categorize(score float64) Category {
	switch {
	case score >= 90:
		return Excellent
	case score >= 70:
		return Good
	case score >= 50:
		return Acceptable
	case score >= 30:
		return Poor
	default:
		return Unacceptable
	}
}

// Targets is a platform's export quality targets. The four presets mirror
// PlatformQualityTargets's factory methods in the original.
type Targets struct {
	PlatformName string

	TargetLUFS    float64
	LUFSTolerance float64

	PeakCeilingDBFS float64

	MinDynamicRangeDB    float64
	TargetDynamicRangeDB float64

	MinCorrelation float64

	MinAcceptableScore float64
	TargetScore        float64
}

// EBUR128Broadcast is the EBU R128 broadcast target: -23 LUFS +-1 LU,
// -1 dBFS peak ceiling, 6-12 dB dynamic range.
func EBUR128Broadcast() Targets {
	return Targets{
		PlatformName: "EBU R128 Broadcast", TargetLUFS: -23, LUFSTolerance: 1,
		PeakCeilingDBFS: -1, MinDynamicRangeDB: 6, TargetDynamicRangeDB: 12,
		MinCorrelation: 0.5, MinAcceptableScore: 70, TargetScore: 90,
	}
}

// YouTubeStreaming is the YouTube loudness normalization target: -14 LUFS.
func YouTubeStreaming() Targets {
	return Targets{
		PlatformName: "YouTube Streaming", TargetLUFS: -14, LUFSTolerance: 2,
		PeakCeilingDBFS: -1, MinDynamicRangeDB: 4, TargetDynamicRangeDB: 8,
		MinCorrelation: 0.5, MinAcceptableScore: 70, TargetScore: 90,
	}
}

// NetflixBroadcast is Netflix's delivery target: -27 LUFS, tight tolerance.
func NetflixBroadcast() Targets {
	return Targets{
		PlatformName: "Netflix Broadcast", TargetLUFS: -27, LUFSTolerance: 0.5,
		PeakCeilingDBFS: -2, MinDynamicRangeDB: 8, TargetDynamicRangeDB: 15,
		MinCorrelation: 0.5, MinAcceptableScore: 70, TargetScore: 90,
	}
}

// SpotifyStreaming is Spotify's loudness normalization target: -14 LUFS.
func SpotifyStreaming() Targets {
	return Targets{
		PlatformName: "Spotify Streaming", TargetLUFS: -14, LUFSTolerance: 2,
		PeakCeilingDBFS: -1, MinDynamicRangeDB: 3, TargetDynamicRangeDB: 6,
		MinCorrelation: 0.5, MinAcceptableScore: 70, TargetScore: 90,
	}
}

// Metrics is one point-in-time quality assessment, weighted the same way
// as QualityMetrics::calculate_quality_metrics: 35% loudness, 25% peak,
// 20% phase, 20% dynamic range.
type Metrics struct {
	LoudnessScore       float64
	LoudnessCompliant   bool
	TargetLUFSDeviation float64
	PeakScore           float64
	PeakCompliant       bool
	PeakMarginDB        float64
	PhaseScore          float64
	MonoCompatible      bool
	CorrelationValue    float64
	DynamicRangeScore   float64
	DRMeasurementDB     float64
	OverallScore        float64
	Category            Category
	Valid               bool
}

// Report bundles a Metrics reading with generated warnings,
// recommendations, and an export-readiness verdict, matching QualityReport.
type Report struct {
	Metrics         Metrics
	Targets         Targets
	Warnings        []string
	Recommendations []string
	Summary         string
	ReadyForExport  bool
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Evaluate computes a Metrics reading from the current loudness and meter
// snapshots against targets, mirroring
// QualityAnalysisDashboard::calculate_quality_metrics.
func Evaluate(l loudness.Measurement, m meter.Snapshot, targets Targets) Metrics {
	var metrics Metrics
	metrics.Valid = l.Valid

	deviation := abs(l.IntegratedLUFS - targets.TargetLUFS)
	metrics.TargetLUFSDeviation = deviation
	metrics.LoudnessCompliant = deviation <= targets.LUFSTolerance
	metrics.LoudnessScore = clamp(100-(deviation/targets.LUFSTolerance)*20, 0, 100)

	maxPeak := l.PeakLeftDBFS
	if l.PeakRightDBFS > maxPeak {
		maxPeak = l.PeakRightDBFS
	}
	metrics.PeakMarginDB = targets.PeakCeilingDBFS - maxPeak
	metrics.PeakCompliant = maxPeak <= targets.PeakCeilingDBFS
	if metrics.PeakCompliant {
		metrics.PeakScore = 100
	} else {
		metrics.PeakScore = clamp(100-(maxPeak-targets.PeakCeilingDBFS)*10, 0, 100)
	}

	metrics.CorrelationValue = m.Correlation
	metrics.MonoCompatible = m.MonoCompatible
	if metrics.MonoCompatible {
		metrics.PhaseScore = 100
	} else {
		metrics.PhaseScore = clamp(metrics.CorrelationValue*100+50, 0, 100)
	}

	maxRMS := -1000.0
	for _, v := range m.RMSDBFS {
		if v > maxRMS {
			maxRMS = v
		}
	}
	metrics.DRMeasurementDB = maxPeak - maxRMS
	metrics.DynamicRangeScore = clamp((metrics.DRMeasurementDB/targets.TargetDynamicRangeDB)*100, 0, 100)

	metrics.OverallScore = metrics.LoudnessScore*0.35 + metrics.PeakScore*0.25 +
		metrics.PhaseScore*0.20 + metrics.DynamicRangeScore*0.20
	metrics.Category = categorize(metrics.OverallScore)

	return metrics
}

// GenerateReport builds the warnings/recommendations/summary/export-ready
// verdict around a Metrics reading, matching
// QualityAnalysisDashboard::generate_quality_report.
func GenerateReport(m Metrics, targets Targets) Report {
	r := Report{Metrics: m, Targets: targets}

	if !m.LoudnessCompliant {
		r.Warnings = append(r.Warnings, fmt.Sprintf("loudness not compliant with %s", targets.PlatformName))
	}
	if !m.PeakCompliant {
		r.Warnings = append(r.Warnings, fmt.Sprintf("peak levels exceed ceiling for %s", targets.PlatformName))
	}
	if !m.MonoCompatible {
		r.Warnings = append(r.Warnings, "stereo correlation indicates mono compatibility issues")
	}

	if m.LoudnessScore < 80 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("adjust master gain toward %.1f LUFS", targets.TargetLUFS))
	}
	if m.DynamicRangeScore < 60 {
		r.Recommendations = append(r.Recommendations, "consider reducing compression to improve dynamic range")
	}
	if m.PhaseScore < 70 {
		r.Recommendations = append(r.Recommendations, "check for phase cancellation issues in stereo content")
	}

	r.Summary = fmt.Sprintf("quality: %s (%.0f%%) for %s standards", m.Category, m.OverallScore, targets.PlatformName)
	r.ReadyForExport = m.OverallScore >= targets.MinAcceptableScore && m.LoudnessCompliant && m.PeakCompliant
	return r
}

// TrendTracker keeps a bounded history of overall quality scores for
// averaging and decline detection, matching QualityTrendTracker (minus its
// wall-clock sampling interval, which this module cannot use — see
// DESIGN.md).
type TrendTracker struct {
	mu      sync.Mutex
	history []float64
	maxSize int
}

// NewTrendTracker builds a tracker retaining at most maxSize scores.
func NewTrendTracker(maxSize int) *TrendTracker {
	if maxSize < 1 {
		maxSize = 1000
	}
	return &TrendTracker{maxSize: maxSize}
}

// Add records one overall quality score.
func (t *TrendTracker) Add(score float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, score)
	if len(t.history) > t.maxSize {
		t.history = t.history[len(t.history)-t.maxSize:]
	}
}

// Average returns the mean of all retained scores, or 0 if none.
func (t *TrendTracker) Average() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return 0
	}
	var sum float64
	for _, s := range t.history {
		sum += s
	}
	return sum / float64(len(t.history))
}

// Trend returns up to the last n recorded scores, oldest first.
func (t *TrendTracker) Trend(n int) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > len(t.history) {
		n = len(t.history)
	}
	out := make([]float64, n)
	copy(out, t.history[len(t.history)-n:])
	return out
}

// Declining reports whether the second half of the retained history
// averages more than 10 points below the first half, matching
// QualityTrendTracker::is_quality_declining's 10%-decline threshold
// (re-expressed over the retained window rather than a 30s/60s wall-clock
// split, since this module has no wall-clock access — see DESIGN.md).
func (t *TrendTracker) Declining() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) < 10 {
		return false
	}
	mid := len(t.history) / 2
	var older, recent float64
	for _, s := range t.history[:mid] {
		older += s
	}
	for _, s := range t.history[mid:] {
		recent += s
	}
	older /= float64(mid)
	recent /= float64(len(t.history) - mid)
	return (older - recent) > 10.0
}
