// Package exchange defines the collaborator boundaries the risk core depends
// on: order execution, market data, account balances, and the market regime
// classifier. Implementations live in sibling gateway packages so the core
// can be exercised against mocks in tests.
package exchange

import "context"

// TradeExecutor places market orders. Implementations own retry and timeout
// policy; the core treats any error as "order not applied" and leaves its
// state untouched.
type TradeExecutor interface {
	ExecuteMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (float64, error)
}

// MarketDataSource supplies the per-symbol inputs a sizing or exit decision
// needs. A false ok return means the value is unavailable right now; callers
// skip the dependent adjustment (or the symbol) for this tick instead of
// failing.
type MarketDataSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, bool, error)

	HistoricalVolatility(ctx context.Context, symbol string) (float64, bool, error)
}

// AccountSource exposes the balances the recovery pass reconciles against.
type AccountSource interface {
	QuoteBalance(ctx context.Context) (float64, error)

	AssetBalances(ctx context.Context) ([]AssetBalance, error)

	AverageBuyPrice(ctx context.Context, symbol string) (float64, bool, error)
}

// RegimeClassifier labels the current market condition. Classification logic
// is outside the risk core; only these three pure accessors are consumed.
type RegimeClassifier interface {
	CurrentRegime() Regime

	ScoreAdjustment(baseScore float64) float64

	SizeMultiplier() float64
}

// SignalSource scores candidate entries. The scoring engine itself is an
// external collaborator; the engine only consumes (symbol, score) pairs.
type SignalSource interface {
	Scores(ctx context.Context, symbols []string) ([]EntrySignal, error)
}
