package risk

// kellyScale applies a quarter of the raw Kelly fraction. Full Kelly assumes
// the win-rate and payoff estimates are exact, which they never are on a
// short trade history.
const kellyScale = 0.25

// KellyFraction converts a win rate and payoff ratio into a capital
// fraction. With no usable history (non-positive rate or ratio) it returns
// the floor default; otherwise quarter-Kelly clamped to [min, max]. The
// result is always positive — whether to trade at all is the caller's call,
// this only bounds how much.
func KellyFraction(winRate, payoffRatio, def, min, max float64) float64 {
	if winRate <= 0 || payoffRatio <= 0 {
		return def
	}
	kelly := (winRate*payoffRatio - (1 - winRate)) / payoffRatio
	f := kelly * kellyScale
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
