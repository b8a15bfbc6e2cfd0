// Command audiocored is the audiocore daemon entrypoint: it loads
// configuration, wires Mixer/Pipeline/TimelineBinder/MonitoringHub through a
// dig container, starts the device bridge, and runs until a termination
// signal arrives. The wiring style follows
// v2/pkg/kernel.MicroKernel.setupContainer; the flag/signal handling follows
// v2/cmd/musicfox-mpv/main.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/dig"

	"github.com/go-musicfox/audiocore/internal/config"
	"github.com/go-musicfox/audiocore/internal/devicebridge"
	"github.com/go-musicfox/audiocore/internal/logging"
	"github.com/go-musicfox/audiocore/pkg/event"
	"github.com/go-musicfox/audiocore/pkg/frame"
	"github.com/go-musicfox/audiocore/pkg/loudness"
	"github.com/go-musicfox/audiocore/pkg/meter"
	"github.com/go-musicfox/audiocore/pkg/mixer"
	"github.com/go-musicfox/audiocore/pkg/pipeline"
	"github.com/go-musicfox/audiocore/pkg/quality"
	"github.com/go-musicfox/audiocore/pkg/timeline"
)

// Version is overwritten at build time via -ldflags, matching
// cmd/musicfox-mpv's version variable.
var Version = "0.1.0-dev"

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to audiocore config file")
		logLevel   = pflag.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
		showVer    = pflag.BoolP("version", "v", false, "print version and exit")
	)
	pflag.Parse()

	if *showVer {
		fmt.Printf("audiocored v%s\n", Version)
		os.Exit(0)
	}

	logger := logging.New(os.Stderr, parseLevel(*logLevel))
	logging.SetDefault(logger)

	loader, err := config.NewLoader(*configPath, pflag.CommandLine, logger)
	if err != nil {
		logger.Error("failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	defer loader.Close()

	container, err := buildContainer(loader, logger)
	if err != nil {
		logger.Error("failed to build dependency injection container", logging.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, container, loader, logger); err != nil {
		logger.Error("audiocored exited with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("audiocored shutdown complete")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildContainer registers the core audiocore components the way
// MicroKernel.setupContainer registers its event bus, service registry, and
// security manager: each as a provider closing over already constructed
// state, rather than letting dig build them from scratch.
func buildContainer(loader *config.Loader, logger *slog.Logger) (*dig.Container, error) {
	c := dig.New()

	if err := c.Provide(func() *slog.Logger { return logger }); err != nil {
		return nil, fmt.Errorf("provide logger: %w", err)
	}
	if err := c.Provide(func() *config.Loader { return loader }); err != nil {
		return nil, fmt.Errorf("provide config loader: %w", err)
	}
	if err := c.Provide(func(l *config.Loader) config.AudioConfig { return l.Current() }); err != nil {
		return nil, fmt.Errorf("provide audio config: %w", err)
	}
	if err := c.Provide(newPipeline); err != nil {
		return nil, fmt.Errorf("provide pipeline: %w", err)
	}
	if err := c.Provide(func(p *pipeline.Pipeline) *mixer.Mixer { return p.Mixer() }); err != nil {
		return nil, fmt.Errorf("provide mixer: %w", err)
	}
	if err := c.Provide(func(p *pipeline.Pipeline) *event.Bus { return p.EventBus() }); err != nil {
		return nil, fmt.Errorf("provide event bus: %w", err)
	}
	if err := c.Provide(newTimelineBinder); err != nil {
		return nil, fmt.Errorf("provide timeline binder: %w", err)
	}
	if err := c.Provide(newDeviceBridge); err != nil {
		return nil, fmt.Errorf("provide device bridge: %w", err)
	}

	return c, nil
}

func newPipeline(cfg config.AudioConfig, logger *slog.Logger) (*pipeline.Pipeline, error) {
	p := pipeline.New(logger)
	pcfg := pipeline.Config{
		SampleRate:         cfg.SampleRate,
		ChannelCount:       cfg.ChannelCount,
		Format:             frame.Float32,
		MaxChannels:        cfg.MaxChannels,
		BufferSize:         cfg.BufferSize,
		DeviceSampleRate:   cfg.DeviceSampleRate,
		DeviceChannelCount: cfg.DeviceChannelCount,
		FifoSeconds:        cfg.FifoSeconds,
		LoudnessTarget: loudness.Target{
			IntegratedLUFS:  cfg.LoudnessTargetLUFS,
			ToleranceLU:     cfg.LoudnessToleranceLU,
			PeakCeilingDBFS: cfg.PeakCeilingDBFS,
		},
		MeterProfile:   meterProfileFor(cfg.MeterProfile),
		QualityTargets: qualityTargetsFor(cfg.QualityTarget),
	}
	if err := p.Initialize(pcfg); err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	return p, nil
}

// meterProfileFor maps the AudioConfig.MeterProfile string 
// onto the corresponding Ballistics constructor, defaulting to digital
// peak ballistics for an unrecognized or empty value.
func meterProfileFor(name string) meter.Ballistics {
	switch name {
	case "vu":
		return meter.VU()
	case "bbc_ppm":
		return meter.BBCPPM()
	default:
		return meter.DigitalPeak()
	}
}

// qualityTargetsFor maps the AudioConfig.QualityTarget string onto the
// corresponding platform Targets preset, defaulting to EBU R128 broadcast
// targets for an unrecognized or empty value.
func qualityTargetsFor(name string) quality.Targets {
	switch name {
	case "youtube":
		return quality.YouTubeStreaming()
	case "netflix":
		return quality.NetflixBroadcast()
	case "spotify":
		return quality.SpotifyStreaming()
	default:
		return quality.EBUR128Broadcast()
	}
}

func newTimelineBinder(m *mixer.Mixer, logger *slog.Logger) *timeline.Binder {
	return timeline.New(m, logger)
}

func newDeviceBridge(p *pipeline.Pipeline, cfg config.AudioConfig, logger *slog.Logger) *devicebridge.Bridge {
	return devicebridge.New(p, int(cfg.DeviceSampleRate), int(cfg.DeviceChannelCount), cfg.BufferSize, logger)
}

// run starts the pipeline's output path and the device bridge, registers a
// hot-reload callback that logs each config reload (the running pipeline is
// not reconfigured by it), and blocks until ctx is cancelled.
func run(ctx context.Context, c *dig.Container, loader *config.Loader, logger *slog.Logger) error {
	var bridge *devicebridge.Bridge
	var p *pipeline.Pipeline
	var binder *timeline.Binder

	if err := c.Invoke(func(pp *pipeline.Pipeline, b *devicebridge.Bridge, tb *timeline.Binder) {
		p = pp
		bridge = b
		binder = tb
	}); err != nil {
		return fmt.Errorf("resolve pipeline/bridge/timeline binder: %w", err)
	}
	defer p.Shutdown()
	// binder is ready to Reconcile() timeline.Snapshot values pushed by
	// whatever external editor collaborator owns the project timeline;
	// audiocored itself has no timeline source, so it only constructs and
	// exposes the binder here.
	_ = binder

	if err := p.StartOutput(); err != nil {
		return fmt.Errorf("start pipeline output: %w", err)
	}
	if err := bridge.Start(); err != nil {
		return fmt.Errorf("start device bridge: %w", err)
	}
	defer bridge.Stop()

	loader.OnChange(func(old, next config.AudioConfig) {
		logger.Info("config reloaded", slog.Any("meter_profile", next.MeterProfile))
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot-reload watcher failed to start", logging.Err(err))
	}

	go watchHealth(ctx, p, bridge, logger)

	<-ctx.Done()
	return nil
}

// watchHealth periodically logs the monitoring snapshot and the device
// bridge's liveness probe, the way MetricsManager samples service health on
// an interval rather than on every callback.
func watchHealth(ctx context.Context, p *pipeline.Pipeline, bridge *devicebridge.Bridge, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := p.GetMonitoring()
			logger.Info("monitoring snapshot",
				slog.Float64("integrated_lufs", snap.Loudness.IntegratedLUFS),
				slog.Float64("peak_left_dbfs", snap.Loudness.PeakLeftDBFS),
				slog.Float64("peak_right_dbfs", snap.Loudness.PeakRightDBFS),
			)
			if err := bridge.HealthCheck(); err != nil {
				logger.Warn("device bridge health check failed", logging.Err(err))
			}
		}
	}
}
