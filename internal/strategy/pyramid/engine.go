// Package pyramid gates adding to an already-profitable open position. Like
// the partial exit engine it is a stateless evaluator; the orchestrator
// applies an approved add through the ledger.
package pyramid

import (
	"palisade/internal/config"
	"palisade/internal/gateway/exchange"
	"palisade/internal/pkg/pricemath"
	"palisade/internal/position"
)

// Reason explains a pyramid refusal. Refusals are expected control flow.
type Reason string

const (
	ReasonOK               Reason = "ok"
	ReasonDisabled         Reason = "disabled"
	ReasonMaxAdds          Reason = "max_adds"
	ReasonInsufficientGain Reason = "insufficient_profit"
	ReasonScoreNotStronger Reason = "score_not_stronger"
	ReasonRegimeBlocked    Reason = "regime_blocked"
	ReasonBelowMinOrder    Reason = "below_min_order"
	ReasonTotalFractionCap Reason = "total_fraction_cap"
)

// Decision is the outcome of a pyramid evaluation. AddValue is the quote
// notional to buy; only meaningful when Approved.
type Decision struct {
	Approved bool
	Reason   Reason
	AddValue float64
}

// Engine evaluates the scale-in preconditions. All conditions must hold:
// the feature is on, the add budget is not exhausted, the position is in
// meaningful profit (never average down), the fresh signal is strictly
// stronger than at the last add, and the regime allows it.
type Engine struct {
	cfg           config.PyramidConfig
	minOrderValue float64
}

func New(cfg config.PyramidConfig, minOrderValue float64) *Engine {
	return &Engine{cfg: cfg, minOrderValue: minOrderValue}
}

// Evaluate sizes a potential add for pos at price, given the fresh
// regime-adjusted score and the free quote balance.
func (e *Engine) Evaluate(pos *position.Position, price, score float64, regime exchange.Regime, balance float64) Decision {
	if e == nil || pos == nil || price <= 0 {
		return Decision{Reason: ReasonDisabled}
	}
	if !e.cfg.Enabled {
		return Decision{Reason: ReasonDisabled}
	}
	if pos.PyramidCount >= e.cfg.MaxAdds {
		return Decision{Reason: ReasonMaxAdds}
	}
	if pricemath.ProfitRate(pos.AvgEntryPrice, price) < e.cfg.MinProfit {
		return Decision{Reason: ReasonInsufficientGain}
	}
	lastScore := pos.LastPyramidScore(pos.EntryScore)
	if score < lastScore+e.cfg.MinScoreIncrease {
		return Decision{Reason: ReasonScoreNotStronger}
	}
	if !e.cfg.RegimeAllowed(string(regime)) {
		return Decision{Reason: ReasonRegimeBlocked}
	}

	existingValue := pos.Quantity * price
	addValue := existingValue * e.cfg.SizeRatio
	if limit := balance*e.cfg.MaxTotalFraction - existingValue; addValue > limit {
		addValue = limit
	}
	if addValue <= 0 {
		return Decision{Reason: ReasonTotalFractionCap}
	}
	if addValue < e.minOrderValue {
		return Decision{Reason: ReasonBelowMinOrder}
	}
	return Decision{Approved: true, Reason: ReasonOK, AddValue: addValue}
}
