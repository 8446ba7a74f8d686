package exchange

import (
	"errors"
	"strings"
	"time"
)

// Side is the order direction for a spot market order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Regime is the classified market condition consumed by the sizing path.
type Regime string

const (
	RegimeBullish Regime = "bullish"
	RegimeBearish Regime = "bearish"
	RegimeNeutral Regime = "neutral"
)

// ParseRegime normalizes a configured regime label. Unknown labels map to
// neutral so a typo in config degrades to the unity multiplier.
func ParseRegime(raw string) Regime {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bullish", "bull":
		return RegimeBullish
	case "bearish", "bear":
		return RegimeBearish
	default:
		return RegimeNeutral
	}
}

// AssetBalance is one non-zero spot wallet entry.
type AssetBalance struct {
	Asset     string
	Free      float64
	Locked    float64
	UpdatedAt time.Time
}

// Total returns the reconcilable quantity for an asset.
func (b AssetBalance) Total() float64 {
	return b.Free + b.Locked
}

// EntrySignal is a scored entry candidate produced by the signal engine.
type EntrySignal struct {
	Symbol string
	Score  float64
}

// Executor failure taxonomy. Anything else coming out of an executor is a
// transient network-level failure.
var (
	ErrOrderRejected     = errors.New("exchange: order rejected")
	ErrInsufficientFunds = errors.New("exchange: insufficient funds")
	ErrPriceUnavailable  = errors.New("exchange: price unavailable")
)
