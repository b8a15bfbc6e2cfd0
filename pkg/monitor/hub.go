// Package monitor implements MonitoringHub: a
// non-blocking tee of mixed frames off the audio thread into a bounded
// queue, consumed by a background goroutine running LoudnessAnalyzer and
// MeterBank.
package monitor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-musicfox/audiocore/internal/logging"
	"github.com/go-musicfox/audiocore/pkg/frame"
	"github.com/go-musicfox/audiocore/pkg/loudness"
	"github.com/go-musicfox/audiocore/pkg/meter"
	"github.com/go-musicfox/audiocore/pkg/quality"
	"github.com/go-musicfox/audiocore/pkg/scope"
)

// Snapshot bundles the loudness, meter, scope, and quality-dashboard
// outputs the hub publishes on each poll.
type Snapshot struct {
	Loudness loudness.Measurement
	Meters   meter.Snapshot
	Scopes   scope.Snapshot
	Quality  quality.Report
}

// Hub is the C10 component. Observe is called from the audio/mix thread
// and must never block; Start runs the analysis goroutine that drains the
// queue at its own pace.
type Hub struct {
	queue   chan *frame.Frame
	dropped atomic.Uint64

	analyzer *loudness.Analyzer
	meters   *meter.Bank
	scopes   *scope.Analyzer

	qualityTargets quality.Targets
	qualityTrend   *quality.TrendTracker

	mu   sync.Mutex
	last Snapshot

	log *slog.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Bool
}

// New constructs a Hub with a bounded queue of the given depth, analyzing
// at sampleRate with channelCount channels. Quality scoring is graded
// against qualityTargets (e.g. quality.EBUR128Broadcast()).
func New(queueDepth int, sampleRate uint32, channelCount int, peakProfile meter.Ballistics, target loudness.Target, qualityTargets quality.Targets, logger *slog.Logger) *Hub {
	if queueDepth < 1 {
		queueDepth = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		queue:          make(chan *frame.Frame, queueDepth),
		analyzer:       loudness.New(sampleRate, target),
		meters:         meter.NewBank(sampleRate, channelCount, peakProfile),
		scopes:         scope.New(sampleRate),
		qualityTargets: qualityTargets,
		qualityTrend:   quality.NewTrendTracker(1000),
		log:            logging.WithComponent(logger, "monitoring_hub"),
	}
}

// Observe tees f into the queue without blocking. If the queue is full,
// the oldest queued frame is dropped to make room and DroppedFrames is
// incremented.
func (h *Hub) Observe(f *frame.Frame) {
	if f == nil {
		return
	}
	clone := f.Clone()
	for {
		select {
		case h.queue <- clone:
			return
		default:
		}
		select {
		case <-h.queue:
			h.dropped.Add(1)
		default:
		}
	}
}

// DroppedFrames returns the cumulative dropped_monitoring_frames counter.
func (h *Hub) DroppedFrames() uint64 {
	return h.dropped.Load()
}

// Snapshot returns the most recently published loudness/meter readings.
func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Start launches the monitoring goroutine. Calling Start twice is a no-op.
func (h *Hub) Start(ctx context.Context) {
	if h.running.Swap(true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.wg.Add(1)
	go h.run(ctx)
}

// Stop halts the monitoring goroutine and waits for it to exit. Safe to
// call multiple times and safe to call without a prior Start.
func (h *Hub) Stop() {
	if !h.running.Swap(false) {
		return
	}
	h.cancel()
	h.wg.Wait()
}

func (h *Hub) run(ctx context.Context) {
	defer h.wg.Done()
	var lastTick time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-h.queue:
			if !ok {
				return
			}
			h.process(f, &lastTick)
		}
	}
}

func (h *Hub) process(f *frame.Frame, lastTick *time.Time) {
	h.analyzer.Process(f)
	h.scopes.Process(f)

	now := time.Now()
	var dt time.Duration
	if !lastTick.IsZero() {
		dt = now.Sub(*lastTick)
	}
	*lastTick = now

	peaks := make([]float64, f.ChannelCount())
	rmss := make([]float64, f.ChannelCount())
	var accumL, accumR float64
	var n uint32
	for ch := uint16(0); ch < f.ChannelCount(); ch++ {
		var peak, sumsq float64
		for i := uint32(0); i < f.SampleCount(); i++ {
			v := float64(f.Sample(ch, i))
			av := v
			if av < 0 {
				av = -av
			}
			if av > peak {
				peak = av
			}
			sumsq += v * v
		}
		peaks[ch] = peak
		if f.SampleCount() > 0 {
			rmss[ch] = math.Sqrt(sumsq / float64(f.SampleCount()))
		}
	}
	for i := uint32(0); i < f.SampleCount(); i++ {
		accumL += float64(f.Sample(0, i))
		if f.ChannelCount() >= 2 {
			accumR += float64(f.Sample(1, i))
		} else {
			accumR += float64(f.Sample(0, i))
		}
	}
	n = f.SampleCount()
	var l, r float64
	if n > 0 {
		l, r = accumL/float64(n), accumR/float64(n)
	}

	h.meters.Update(peaks, rmss, l, r, dt, now)

	loudnessSnap := h.analyzer.Snapshot()
	meterSnap := h.meters.Snapshot()
	qm := quality.Evaluate(loudnessSnap, meterSnap, h.qualityTargets)
	h.qualityTrend.Add(qm.OverallScore)
	qr := quality.GenerateReport(qm, h.qualityTargets)

	h.mu.Lock()
	h.last = Snapshot{
		Loudness: loudnessSnap,
		Meters:   meterSnap,
		Scopes:   h.scopes.Snapshot(),
		Quality:  qr,
	}
	h.mu.Unlock()
}

// QualityTrend reports the average quality score over retained history and
// whether quality has been declining, matching
// QualityAnalysisDashboard::get_average_quality/is_quality_declining.
func (h *Hub) QualityTrend() (average float64, declining bool) {
	return h.qualityTrend.Average(), h.qualityTrend.Declining()
}
