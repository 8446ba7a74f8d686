// Package analysis provides the default collaborator bindings for the tick
// engine: an EMA-alignment regime classifier and a momentum entry scorer.
// Both read candles through the gateway and refresh outside the tick loop,
// so the decision path only ever consumes cached values.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"palisade/internal/gateway/exchange"
	"palisade/internal/logger"

	talib "github.com/markcheno/go-talib"
)

// CandleSource hands out recent close prices, oldest first.
type CandleSource interface {
	Closes(ctx context.Context, symbol, interval string, limit int) ([]float64, error)
}

// RegimeConfig controls the benchmark EMA classification and the multipliers
// each regime label maps to.
type RegimeConfig struct {
	BenchmarkSymbol string
	Interval        string
	Fast            int
	Mid             int
	Slow            int
	RefreshInterval time.Duration

	BearishSizeMultiplier float64
	NeutralSizeMultiplier float64
	BearishScoreDiscount  float64
}

func (c *RegimeConfig) withDefaults() RegimeConfig {
	out := *c
	if out.BenchmarkSymbol == "" {
		out.BenchmarkSymbol = "BTCUSDT"
	}
	if out.Interval == "" {
		out.Interval = "4h"
	}
	if out.Fast <= 0 {
		out.Fast = 20
	}
	if out.Mid <= 0 {
		out.Mid = 50
	}
	if out.Slow <= 0 {
		out.Slow = 120
	}
	if out.RefreshInterval <= 0 {
		out.RefreshInterval = 15 * time.Minute
	}
	if out.BearishSizeMultiplier <= 0 {
		out.BearishSizeMultiplier = 0.5
	}
	if out.NeutralSizeMultiplier <= 0 {
		out.NeutralSizeMultiplier = 0.8
	}
	if out.BearishScoreDiscount <= 0 {
		out.BearishScoreDiscount = 0.8
	}
	return out
}

// EMARegime classifies the benchmark symbol's trend from the fast/mid/slow
// EMA alignment and caches the label between refreshes. It implements
// exchange.RegimeClassifier.
type EMARegime struct {
	cfg    RegimeConfig
	source CandleSource

	mu     sync.RWMutex
	regime exchange.Regime
}

var _ exchange.RegimeClassifier = (*EMARegime)(nil)

func NewEMARegime(cfg RegimeConfig, source CandleSource) *EMARegime {
	return &EMARegime{
		cfg:    cfg.withDefaults(),
		source: source,
		regime: exchange.RegimeNeutral,
	}
}

// Run refreshes the classification until ctx is cancelled. The first refresh
// happens immediately so the engine never sizes against a stale default for
// long.
func (r *EMARegime) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		logger.Warnf("regime: initial refresh failed: %v", err)
	}
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				// Keep the previous label; a stale regime beats a reset one.
				logger.Warnf("regime: refresh failed: %v", err)
			}
		}
	}
}

// Refresh reclassifies from fresh benchmark candles.
func (r *EMARegime) Refresh(ctx context.Context) error {
	closes, err := r.source.Closes(ctx, r.cfg.BenchmarkSymbol, r.cfg.Interval, r.cfg.Slow+1)
	if err != nil {
		return err
	}
	if len(closes) < r.cfg.Slow {
		return fmt.Errorf("regime: %d candles for %s, need %d",
			len(closes), r.cfg.BenchmarkSymbol, r.cfg.Slow)
	}
	fast := lastValue(talib.Ema(closes, r.cfg.Fast))
	mid := lastValue(talib.Ema(closes, r.cfg.Mid))
	slow := lastValue(talib.Ema(closes, r.cfg.Slow))

	label := exchange.RegimeNeutral
	switch {
	case fast > mid && mid > slow:
		label = exchange.RegimeBullish
	case fast < mid && mid < slow:
		label = exchange.RegimeBearish
	}

	r.mu.Lock()
	changed := r.regime != label
	r.regime = label
	r.mu.Unlock()
	if changed {
		logger.Infof("regime: %s now %s (ema %d/%d/%d = %.2f/%.2f/%.2f)",
			r.cfg.BenchmarkSymbol, label, r.cfg.Fast, r.cfg.Mid, r.cfg.Slow, fast, mid, slow)
	}
	return nil
}

func (r *EMARegime) CurrentRegime() exchange.Regime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.regime
}

// ScoreAdjustment discounts entry scores in a bearish market; bullish and
// neutral pass through (the neutral threshold delta lives in the sizing
// config, not here).
func (r *EMARegime) ScoreAdjustment(baseScore float64) float64 {
	if r.CurrentRegime() == exchange.RegimeBearish {
		return baseScore * r.cfg.BearishScoreDiscount
	}
	return baseScore
}

func (r *EMARegime) SizeMultiplier() float64 {
	switch r.CurrentRegime() {
	case exchange.RegimeBearish:
		return r.cfg.BearishSizeMultiplier
	case exchange.RegimeNeutral:
		return r.cfg.NeutralSizeMultiplier
	default:
		return 1.0
	}
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
