package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-musicfox/audiocore/internal/config"
	"github.com/go-musicfox/audiocore/internal/devicebridge"
	"github.com/go-musicfox/audiocore/internal/logging"
	"github.com/go-musicfox/audiocore/pkg/meter"
	"github.com/go-musicfox/audiocore/pkg/mixer"
	"github.com/go-musicfox/audiocore/pkg/pipeline"
	"github.com/go-musicfox/audiocore/pkg/timeline"
)

func TestParseLevelMapsKnownNames(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestMeterProfileForMapsKnownNames(t *testing.T) {
	assert.Equal(t, meter.VU(), meterProfileFor("vu"))
	assert.Equal(t, meter.BBCPPM(), meterProfileFor("bbc_ppm"))
	assert.Equal(t, meter.DigitalPeak(), meterProfileFor("digital_peak"))
	assert.Equal(t, meter.DigitalPeak(), meterProfileFor(""))
}

func TestBuildContainerResolvesFullGraph(t *testing.T) {
	loader, err := config.NewLoader("", nil, logging.Discard())
	require.NoError(t, err)
	defer loader.Close()

	c, err := buildContainer(loader, logging.Discard())
	require.NoError(t, err)

	var (
		p      *pipeline.Pipeline
		m      *mixer.Mixer
		binder *timeline.Binder
		bridge *devicebridge.Bridge
	)
	err = c.Invoke(func(pp *pipeline.Pipeline, mm *mixer.Mixer, tb *timeline.Binder, b *devicebridge.Bridge) {
		p = pp
		m = mm
		binder = tb
		bridge = b
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, m)
	require.NotNil(t, binder)
	require.NotNil(t, bridge)

	assert.Equal(t, pipeline.Initialized, p.State())
	require.NoError(t, p.Shutdown())
}

func TestNewPipelineInitializesWithCustomLoudnessTargetAndMeterProfile(t *testing.T) {
	cfg := config.Defaults()
	cfg.LoudnessTargetLUFS = -18
	cfg.MeterProfile = "vu"

	p, err := newPipeline(cfg, logging.Discard())
	require.NoError(t, err)
	defer p.Shutdown()

	assert.Equal(t, pipeline.Initialized, p.State())
}
