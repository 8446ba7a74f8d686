// Package loader watches the risk preset file and republishes the effective
// risk parameters when an operator edits it. Presets are named partial
// overrides of the base risk section; only the active preset is applied.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"palisade/internal/config"
	"palisade/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PresetDefinition is one named set of risk overrides. Pointer fields
// distinguish "not set, keep base value" from an explicit zero.
type PresetDefinition struct {
	Name string `mapstructure:"-"`

	MaxPositionFraction     *float64 `mapstructure:"max_position_fraction"`
	MinPositionFraction     *float64 `mapstructure:"min_position_fraction"`
	DefaultPositionFraction *float64 `mapstructure:"default_position_fraction"`
	MinTradesForKelly       *int     `mapstructure:"min_trades_for_kelly"`
	BaseStopLoss            *float64 `mapstructure:"base_stop_loss"`
	StopDecayHours          *float64 `mapstructure:"stop_decay_hours"`
	StopDecayMax            *float64 `mapstructure:"stop_decay_max"`
	TrailingActivation      *float64 `mapstructure:"trailing_activation"`
	TrailingDistance        *float64 `mapstructure:"trailing_distance"`
	DailyLossLimit          *float64 `mapstructure:"daily_loss_limit"`
	MaxPositions            *int     `mapstructure:"max_positions"`
	TargetVolatility        *float64 `mapstructure:"target_volatility"`
	DynamicSymbolDiscount   *float64 `mapstructure:"dynamic_symbol_discount"`
	LossStreakPenalty       *float64 `mapstructure:"loss_streak_penalty"`
	NeutralScoreDelta       *float64 `mapstructure:"neutral_score_delta"`
}

// Apply overlays the preset's set fields onto a base risk config.
func (p PresetDefinition) Apply(base config.RiskConfig) config.RiskConfig {
	out := base
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat(&out.MaxPositionFraction, p.MaxPositionFraction)
	setFloat(&out.MinPositionFraction, p.MinPositionFraction)
	setFloat(&out.DefaultPositionFraction, p.DefaultPositionFraction)
	setFloat(&out.BaseStopLoss, p.BaseStopLoss)
	setFloat(&out.StopDecayHours, p.StopDecayHours)
	setFloat(&out.StopDecayMax, p.StopDecayMax)
	setFloat(&out.TrailingActivation, p.TrailingActivation)
	setFloat(&out.TrailingDistance, p.TrailingDistance)
	setFloat(&out.DailyLossLimit, p.DailyLossLimit)
	setFloat(&out.TargetVolatility, p.TargetVolatility)
	setFloat(&out.DynamicSymbolDiscount, p.DynamicSymbolDiscount)
	setFloat(&out.LossStreakPenalty, p.LossStreakPenalty)
	setFloat(&out.NeutralScoreDelta, p.NeutralScoreDelta)
	if p.MinTradesForKelly != nil {
		out.MinTradesForKelly = *p.MinTradesForKelly
	}
	if p.MaxPositions != nil {
		out.MaxPositions = *p.MaxPositions
	}
	return out
}

// FileConfig is the full preset file structure.
type FileConfig struct {
	Active  string                      `mapstructure:"active"`
	Presets map[string]PresetDefinition `mapstructure:"presets"`
}

// PresetSnapshot is the read-only view handed to listeners.
type PresetSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Active   string
	Presets  map[string]PresetDefinition
}

// ActivePreset returns the currently selected preset, if any.
func (s PresetSnapshot) ActivePreset() (PresetDefinition, bool) {
	if s.Active == "" {
		return PresetDefinition{}, false
	}
	def, ok := s.Presets[s.Active]
	return def, ok
}

// ChangeListener is invoked after each successful reload.
type ChangeListener func(PresetSnapshot)

// PresetLoader loads the preset file and watches it for edits.
type PresetLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  PresetSnapshot
	listeners []ChangeListener
}

// NewPresetLoader reads the preset file and starts watching FS events.
func NewPresetLoader(path string) (*PresetLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preset loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read preset config failed: %w", err)
	}
	loader := &PresetLoader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("preset reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

// Snapshot returns the current preset snapshot.
func (l *PresetLoader) Snapshot() PresetSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers a listener and immediately delivers the current
// snapshot to it.
func (l *PresetLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("preset listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *PresetLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("preset listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *PresetLoader) reload() error {
	var fileCfg FileConfig
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse preset config failed: %w", err)
	}
	active := strings.TrimSpace(fileCfg.Active)
	normalized := make(map[string]PresetDefinition, len(fileCfg.Presets))
	for name, def := range fileCfg.Presets {
		key := strings.TrimSpace(name)
		if key == "" {
			continue
		}
		def.Name = key
		normalized[key] = def
	}
	if active != "" {
		if _, ok := normalized[active]; !ok {
			return fmt.Errorf("active preset %q not defined", active)
		}
	}
	l.mu.Lock()
	l.snapshot = PresetSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Active:   active,
		Presets:  normalized,
	}
	l.mu.Unlock()
	logger.Infof("Preset loader reloaded %d presets from %s (active=%s)",
		len(normalized), filepath.Base(l.path), active)
	return nil
}

func cloneSnapshot(src PresetSnapshot) PresetSnapshot {
	dst := PresetSnapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Active:   src.Active,
		Presets:  make(map[string]PresetDefinition, len(src.Presets)),
	}
	for name, def := range src.Presets {
		dst.Presets[name] = def
	}
	return dst
}
