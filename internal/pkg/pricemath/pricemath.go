// Package pricemath provides exact price-level comparisons for exit
// evaluation. Raw float64 comparisons around a trigger level are vulnerable
// to representation noise exactly where it matters most, so thresholds are
// compared through shopspring/decimal.
package pricemath

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decOne     = decimal.NewFromInt(1)
	decimalEps = decimal.NewFromFloat(1e-8)
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func compare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func LTE(a, b float64) bool { return compare(a, b) <= 0 }
func GTE(a, b float64) bool { return compare(a, b) >= 0 }
func GT(a, b float64) bool  { return compare(a, b) > 0 }

// RelativeTarget returns entry*(1+pct), computed exactly. pct may be
// negative for levels below the entry.
func RelativeTarget(entry, pct float64) float64 {
	if entry <= 0 {
		return 0
	}
	return decToFloat(decFromFloat(entry).Mul(decOne.Add(decFromFloat(pct))))
}

// TrailingStopFor returns the stop level a trail distance below an anchor.
func TrailingStopFor(anchor, pct float64) float64 {
	if anchor <= 0 || pct <= 0 {
		return 0
	}
	return decToFloat(decFromFloat(anchor).Mul(decOne.Sub(decFromFloat(pct))))
}

// ShouldRaiseStop reports whether a candidate stop improves on the current
// one by more than epsilon. A zero current stop always accepts.
func ShouldRaiseStop(candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current <= 0 {
		return true
	}
	return decFromFloat(candidate).Cmp(decFromFloat(current).Add(decimalEps)) > 0
}

// BreachedStop reports whether price has fallen to or through a stop level.
func BreachedStop(price, stop float64) bool {
	if stop <= 0 || price <= 0 {
		return false
	}
	return LTE(price, stop)
}

// ProfitRate returns (price-entry)/entry computed exactly; zero when either
// input is non-positive.
func ProfitRate(entry, price float64) float64 {
	if entry <= 0 || price <= 0 {
		return 0
	}
	entryDec := decFromFloat(entry)
	return decToFloat(decFromFloat(price).Sub(entryDec).Div(entryDec))
}
