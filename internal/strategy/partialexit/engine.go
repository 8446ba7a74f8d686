// Package partialexit evaluates tiered profit-taking against an open
// position. The engine is a stateless evaluator: it reads a position
// snapshot and returns a decision, never mutating the ledger itself.
package partialexit

import (
	"time"

	"palisade/internal/config"
	"palisade/internal/pkg/pricemath"
	"palisade/internal/pkg/trading"
	"palisade/internal/position"
)

// Decision is the outcome of one tier evaluation. TierIndex is only
// meaningful when Fire is set; the caller marks the tier executed after the
// sell is confirmed, not before.
type Decision struct {
	Fire         bool
	TierIndex    int
	SellQuantity float64
	ProfitRate   float64
}

// Engine checks profit tiers in ascending threshold order. A tier that has
// fired for a position never fires again, even if price retraces below its
// threshold and recrosses.
type Engine struct {
	tiers []config.TierConfig
}

func New(tiers []config.TierConfig) *Engine {
	return &Engine{tiers: tiers}
}

// Evaluate returns the first unexecuted tier whose profit threshold and
// minimum hold time are both met. Sell quantity is the tier's fraction of
// the original position size, capped at what is still open.
func (e *Engine) Evaluate(pos *position.Position, price float64, now time.Time) Decision {
	if e == nil || pos == nil || price <= 0 || pos.Quantity <= 0 {
		return Decision{}
	}
	profitRate := pricemath.ProfitRate(pos.AvgEntryPrice, price)
	holding := pos.HoldDuration(now)
	for i, tier := range e.tiers {
		if pos.TierExecuted(i) {
			continue
		}
		if profitRate < tier.ProfitThreshold {
			// Tiers are ordered ascending; later ones cannot fire either.
			return Decision{ProfitRate: profitRate}
		}
		if holding < time.Duration(tier.MinHoldSeconds)*time.Second {
			continue
		}
		qty := trading.CalcCloseAmount(pos.Quantity, pos.OriginalQuantity, tier.ExitFraction, true)
		if qty <= 0 || qty >= pos.Quantity {
			// Never let a partial exit flatten the position outright.
			return Decision{ProfitRate: profitRate}
		}
		return Decision{
			Fire:         true,
			TierIndex:    i,
			SellQuantity: qty,
			ProfitRate:   profitRate,
		}
	}
	return Decision{ProfitRate: profitRate}
}
