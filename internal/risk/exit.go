package risk

import (
	"math"
	"time"

	"palisade/internal/pkg/pricemath"
	"palisade/internal/position"
)

// EvaluateExit checks the protective exits for one open position in fixed
// priority order: time-decayed stop-loss first, trailing stop second. Take
// profit tiers are evaluated separately by the partial exit engine. The
// caller raises the high-water mark before calling; price is still folded in
// here so a stale mark cannot miss a trigger.
func (m *Manager) EvaluateExit(pos *position.Position, price float64, now time.Time) ExitDecision {
	if m == nil || pos == nil || price <= 0 {
		return ExitDecision{}
	}

	stopRef := pos.EntryPrice
	if m.breakevenStop && pos.PyramidCount > 0 {
		stopRef = pos.AvgEntryPrice
	}
	if stopRef <= 0 {
		return ExitDecision{}
	}

	cfg := m.risk()

	// Stop-loss tightens the longer a losing position is held, capped at
	// stop_decay_max after stop_decay_hours.
	holdHours := pos.HoldDuration(now).Hours()
	decay := cfg.StopDecayMax * math.Min(holdHours/cfg.StopDecayHours, 1)
	effectiveStop := cfg.BaseStopLoss * (1 - decay)
	stopPrice := pricemath.RelativeTarget(stopRef, -effectiveStop)
	if pricemath.BreachedStop(price, stopPrice) {
		return ExitDecision{Exit: true, Reason: ExitStopLoss, StopPrice: stopPrice}
	}

	highWater := math.Max(pos.HighWaterPrice, price)
	activation := pricemath.RelativeTarget(pos.EntryPrice, cfg.TrailingActivation)
	if pricemath.GTE(highWater, activation) {
		trailStop := pricemath.TrailingStopFor(highWater, cfg.TrailingDistance)
		if pricemath.BreachedStop(price, trailStop) {
			return ExitDecision{Exit: true, Reason: ExitTrailingStop, StopPrice: trailStop}
		}
	}
	return ExitDecision{}
}
