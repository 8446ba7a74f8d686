// Package risk owns position sizing and exit policy: trade statistics,
// Kelly-derived fractions, the daily loss breaker, and stop evaluation.
package risk

// Reason explains why a sizing request was approved or refused. Refusals are
// normal control flow, not errors.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonBelowMinOrder     Reason = "below_min_order"
	ReasonDailyLossBreaker  Reason = "daily_loss_breaker"
	ReasonMaxPositions      Reason = "max_positions"
	ReasonScoreBelowMin     Reason = "score_below_threshold"
	ReasonInsufficientFunds Reason = "insufficient_funds"
)

// SizeDecision is the outcome of a sizing request. QuoteValue is only
// meaningful when Approved.
type SizeDecision struct {
	Approved   bool
	Reason     Reason
	Fraction   float64
	QuoteValue float64
	// AdjustedScore is the entry score after regime adjustment, recorded for
	// pyramid comparisons later.
	AdjustedScore float64
}

// ExitReason labels which protective path fired.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
)

// ExitDecision reports whether a position must be closed this tick.
type ExitDecision struct {
	Exit      bool
	Reason    ExitReason
	StopPrice float64
}
