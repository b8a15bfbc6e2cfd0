// Package config loads audiocore's runtime configuration: an AudioConfig
// loaded with koanf from a YAML file, environment overrides, and (in
// cmd/audiocored) CLI flags, with fsnotify-driven hot reload, the way
// pkg/audio.ConfigManager loads and watches its config file.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/go-musicfox/audiocore/internal/logging"
)

// AudioConfig is the plain record this layer produces; pkg/pipeline.Config
// and the loudness/meter defaults are derived from it by the embedding
// application (cmd/audiocored), keeping the audio core itself free of any
// parsing concern.
type AudioConfig struct {
	SampleRate         uint32  `koanf:"sample_rate"`
	ChannelCount       uint16  `koanf:"channel_count"`
	BufferSize         int     `koanf:"buffer_size"`
	DeviceSampleRate   uint32  `koanf:"device_sample_rate"`
	DeviceChannelCount uint16  `koanf:"device_channel_count"`
	FifoSeconds        float64 `koanf:"fifo_seconds"`
	MaxChannels        uint32  `koanf:"max_channels"`

	LoudnessTargetLUFS  float64 `koanf:"loudness_target_lufs"`
	LoudnessToleranceLU float64 `koanf:"loudness_tolerance_lu"`
	PeakCeilingDBFS     float64 `koanf:"peak_ceiling_dbfs"`

	MeterProfile string `koanf:"meter_profile"` // "digital_peak" | "vu" | "bbc_ppm"

	QualityTarget string `koanf:"quality_target"` // "ebu_r128" | "youtube" | "netflix" | "spotify"

	HotReload bool `koanf:"hot_reload"`
}

// Defaults returns the baseline AudioConfig used when no file/env/flag
// overrides a field.
func Defaults() AudioConfig {
	return AudioConfig{
		SampleRate:          48000,
		ChannelCount:        2,
		BufferSize:          1024,
		DeviceSampleRate:    48000,
		DeviceChannelCount:  2,
		FifoSeconds:         0.5,
		MaxChannels:         64,
		LoudnessTargetLUFS:  -23,
		LoudnessToleranceLU: 1,
		PeakCeilingDBFS:     -1,
		MeterProfile:        "digital_peak",
		QualityTarget:       "ebu_r128",
		HotReload:           false,
	}
}

// defaultsMap mirrors Defaults() as a flat key/value map keyed by the same
// strings as the koanf struct tags above, for use as the base confmap.Provider
// layer. Keeping this next to Defaults() (rather than deriving it by
// reflection) keeps the config layering explicit and inspectable rather
// than magic.
func defaultsMap() map[string]interface{} {
	d := Defaults()
	return map[string]interface{}{
		"sample_rate":           d.SampleRate,
		"channel_count":         d.ChannelCount,
		"buffer_size":           d.BufferSize,
		"device_sample_rate":    d.DeviceSampleRate,
		"device_channel_count":  d.DeviceChannelCount,
		"fifo_seconds":          d.FifoSeconds,
		"max_channels":          d.MaxChannels,
		"loudness_target_lufs":  d.LoudnessTargetLUFS,
		"loudness_tolerance_lu": d.LoudnessToleranceLU,
		"peak_ceiling_dbfs":     d.PeakCeilingDBFS,
		"meter_profile":         d.MeterProfile,
		"quality_target":        d.QualityTarget,
		"hot_reload":            d.HotReload,
	}
}

// ChangeCallback is invoked with the previous and new configuration after
// a successful reload, mirroring pkg/audio.ConfigChangeCallback.
type ChangeCallback func(old, new AudioConfig)

// Loader owns the koanf instance, the on-disk path, and (if HotReload is
// set) an fsnotify watcher goroutine.
type Loader struct {
	k    *koanf.Koanf
	path string
	log  *slog.Logger

	mu        sync.RWMutex
	current   AudioConfig
	callbacks []ChangeCallback

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLoader constructs a Loader. path may be empty to skip the file layer
// entirely (defaults + env + flags only). flags, if non-nil, is bound as
// the highest-priority layer via koanf/providers/posflag.
func NewLoader(path string, flags *pflag.FlagSet, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = logging.Default()
	}
	l := &Loader{
		k:    koanf.New("."),
		path: path,
		log:  logging.WithComponent(logger, "config_loader"),
	}
	if err := l.load(flags); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) load(flags *pflag.FlagSet) error {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if l.path != "" {
		if err := k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
			l.log.Warn("config file not loaded, continuing with defaults/env/flags", slog.String("path", l.path), slog.String("error", err.Error()))
		}
	}

	if err := k.Load(env.Provider("AUDIOCORE_", ".", envKeyTransform), nil); err != nil {
		return fmt.Errorf("load env overrides: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return fmt.Errorf("load flag overrides: %w", err)
		}
	}

	var cfg AudioConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.mu.Lock()
	l.k = k
	l.current = cfg
	l.mu.Unlock()
	return nil
}

func envKeyTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "AUDIOCORE_"))
}

// Current returns the most recently loaded configuration.
func (l *Loader) Current() AudioConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked after every successful reload.
func (l *Loader) OnChange(cb ChangeCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// Reload re-reads the file/env/flag layers and notifies OnChange
// subscribers if the resulting config differs from the current one.
func (l *Loader) Reload() error {
	l.mu.RLock()
	old := l.current
	l.mu.RUnlock()

	if err := l.load(nil); err != nil {
		return err
	}

	next := l.Current()
	if next == old {
		return nil
	}
	l.mu.RLock()
	cbs := append([]ChangeCallback(nil), l.callbacks...)
	l.mu.RUnlock()
	for _, cb := range cbs {
		cb(old, next)
	}
	return nil
}

// Watch starts an fsnotify watcher on the config file path (a no-op if
// path is empty or HotReload is false) that calls Reload on every write
// event, the way ConfigManager.watcher does.
func (l *Loader) Watch() error {
	if l.path == "" || !l.Current().HotReload {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	l.mu.Lock()
	l.watcher = w
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go l.watchLoop(w, done)
	return nil
}

func (l *Loader) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := l.Reload(); err != nil {
					l.log.Warn("config hot-reload failed", slog.String("error", err.Error()))
				} else {
					l.log.Info("config hot-reloaded", slog.String("path", l.path))
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.log.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the hot-reload watcher goroutine if one is running. Safe to
// call even if Watch was never called.
func (l *Loader) Close() error {
	l.mu.Lock()
	w := l.watcher
	done := l.done
	l.watcher = nil
	l.done = nil
	l.mu.Unlock()

	if done != nil {
		close(done)
	}
	if w != nil {
		return w.Close()
	}
	return nil
}
