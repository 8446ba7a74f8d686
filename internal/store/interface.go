// Package store defines the durable snapshot contract for the position
// ledger and the trade history. The ledger writes after every mutation so a
// crash loses at most the in-flight tick.
package store

import (
	"context"
	"time"
)

// PyramidAddRecord mirrors one pyramid add inside a persisted position.
type PyramidAddRecord struct {
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Score    float64   `json:"score"`
	Time     time.Time `json:"time"`
}

// PositionRecord is the persisted form of an open position. The schema is a
// plain structured mirror of the in-memory Position; no byte layout is owned
// here.
type PositionRecord struct {
	Symbol           string
	EntryPrice       float64
	AvgEntryPrice    float64
	Quantity         float64
	OriginalQuantity float64
	EntryTime        time.Time
	EntryScore       float64
	HighWaterPrice   float64
	PyramidCount     int
	PyramidHistory   []PyramidAddRecord
	ExecutedTiers    []int
	Recovered        bool
	UpdatedAt        time.Time
}

// Reasons written into TradeRecord.Reason by the tick loop. Full closes
// carry the exit reason instead (stop_loss, trailing_stop, ...).
const (
	TradeReasonEntry       = "entry"
	TradeReasonPyramid     = "pyramid"
	TradeReasonPartialExit = "partial_exit"
)

// TradeRecord is one completed buy or sell. Append-only; never mutated.
// TradeID correlates the row with log lines and notifications for the same
// fill.
type TradeRecord struct {
	TradeID   string
	Symbol    string
	Side      string
	Price     float64
	Quantity  float64
	PnL       float64
	Reason    string
	Timestamp time.Time
}

// Store is the durable key-value snapshot consumed by the ledger and the
// recovery pass.
type Store interface {
	SavePosition(ctx context.Context, rec PositionRecord) error

	DeletePosition(ctx context.Context, symbol string) error

	ListPositions(ctx context.Context) ([]PositionRecord, error)

	AppendTradeRecord(ctx context.Context, rec TradeRecord) error

	ListTradeRecords(ctx context.Context, limit int) ([]TradeRecord, error)

	Close() error
}
