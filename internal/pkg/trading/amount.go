// Package trading provides trading calculation utilities.
package trading

import "math"

// CalcCloseAmount computes the close amount based on ratio and position data.
// If isInitialRatio is true, the calculation uses initialAmount as the base.
// The result is capped at the current position amount.
func CalcCloseAmount(currentAmount, initialAmount, ratio float64, isInitialRatio bool) float64 {
	if currentAmount <= 0 || ratio <= 0 {
		return 0
	}

	base := currentAmount
	if isInitialRatio && initialAmount > 0 {
		base = initialAmount
	}

	amount := base * ratio
	if amount > currentAmount {
		amount = currentAmount
	}
	return amount
}

// RoundToStep floors a quantity to the exchange lot-size step. A zero step
// leaves the quantity untouched.
func RoundToStep(quantity, step float64) float64 {
	if step <= 0 || quantity <= 0 {
		return quantity
	}
	return math.Floor(quantity/step) * step
}

// VolumeWeightedPrice returns the volume-weighted average of (price, qty)
// pairs; zero when total quantity is zero.
func VolumeWeightedPrice(prices, quantities []float64) float64 {
	if len(prices) == 0 || len(prices) != len(quantities) {
		return 0
	}
	var notional, total float64
	for i := range prices {
		if prices[i] <= 0 || quantities[i] <= 0 {
			continue
		}
		notional += prices[i] * quantities[i]
		total += quantities[i]
	}
	if total <= 0 {
		return 0
	}
	return notional / total
}
