package analysis

import (
	"context"
	"fmt"

	"palisade/internal/gateway/exchange"
	"palisade/internal/logger"

	talib "github.com/markcheno/go-talib"
)

// MomentumConfig controls the entry scorer's indicator windows.
type MomentumConfig struct {
	Interval  string
	RSIPeriod int
	FastEMA   int
	SlowEMA   int
}

func (c *MomentumConfig) withDefaults() MomentumConfig {
	out := *c
	if out.Interval == "" {
		out.Interval = "1h"
	}
	if out.RSIPeriod <= 0 {
		out.RSIPeriod = 14
	}
	if out.FastEMA <= 0 {
		out.FastEMA = 12
	}
	if out.SlowEMA <= 0 {
		out.SlowEMA = 26
	}
	return out
}

// MomentumScorer maps trend strength (EMA spread) plus RSI momentum into a
// [0, 1] entry score. It implements exchange.SignalSource.
type MomentumScorer struct {
	cfg    MomentumConfig
	source CandleSource
}

var _ exchange.SignalSource = (*MomentumScorer)(nil)

func NewMomentumScorer(cfg MomentumConfig, source CandleSource) *MomentumScorer {
	return &MomentumScorer{cfg: cfg.withDefaults(), source: source}
}

// Scores returns one signal per symbol it could score. A symbol whose candles
// are unavailable is skipped with a warning; the call only errors when no
// symbol could be scored at all.
func (s *MomentumScorer) Scores(ctx context.Context, symbols []string) ([]exchange.EntrySignal, error) {
	need := s.cfg.SlowEMA + s.cfg.RSIPeriod + 1
	out := make([]exchange.EntrySignal, 0, len(symbols))
	var lastErr error
	for _, sym := range symbols {
		closes, err := s.source.Closes(ctx, sym, s.cfg.Interval, need)
		if err != nil {
			logger.Warnf("momentum: candles unavailable for %s: %v", sym, err)
			lastErr = err
			continue
		}
		if len(closes) < s.cfg.SlowEMA {
			logger.Debugf("momentum: %d candles for %s, need %d", len(closes), sym, s.cfg.SlowEMA)
			continue
		}
		out = append(out, exchange.EntrySignal{Symbol: sym, Score: s.score(closes)})
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("momentum: no symbol scored: %w", lastErr)
	}
	return out, nil
}

func (s *MomentumScorer) score(closes []float64) float64 {
	fast := lastValue(talib.Ema(closes, s.cfg.FastEMA))
	slow := lastValue(talib.Ema(closes, s.cfg.SlowEMA))
	if slow <= 0 {
		return 0
	}
	// A +5% fast-over-slow spread saturates the trend component.
	spread := (fast - slow) / slow
	trend := clamp01(0.5 + spread*10)

	rsiComponent := 0.5
	if len(closes) > s.cfg.RSIPeriod {
		rsi := lastValue(talib.Rsi(closes, s.cfg.RSIPeriod))
		// 30 and below scores zero, 70 and above scores one.
		rsiComponent = clamp01((rsi - 30) / 40)
	}
	return 0.6*trend + 0.4*rsiComponent
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
