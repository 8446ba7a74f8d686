// Package model holds the gorm table definitions backing the sqlite store.
package model

import "gorm.io/datatypes"

// PositionModel is the persisted open-position row. One row per symbol; the
// pyramid history and executed tier indices live in JSON columns.
type PositionModel struct {
	ID               int64          `gorm:"column:id;primaryKey"`
	Symbol           string         `gorm:"column:symbol;uniqueIndex"`
	EntryPrice       float64        `gorm:"column:entry_price"`
	AvgEntryPrice    float64        `gorm:"column:avg_entry_price"`
	Quantity         float64        `gorm:"column:quantity"`
	OriginalQuantity float64        `gorm:"column:original_quantity"`
	EntryScore       float64        `gorm:"column:entry_score"`
	HighWaterPrice   float64        `gorm:"column:high_water_price"`
	PyramidCount     int            `gorm:"column:pyramid_count"`
	PyramidHistory   datatypes.JSON `gorm:"column:pyramid_history"`
	ExecutedTiers    datatypes.JSON `gorm:"column:executed_tiers"`
	Recovered        int            `gorm:"column:recovered"`
	EntryTimestamp   int64          `gorm:"column:entry_timestamp"`
	UpdatedAtUnix    int64          `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

// TradeRecordModel is one executed fill. Append-only.
type TradeRecordModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	TradeID   string  `gorm:"column:trade_id"`
	Symbol    string  `gorm:"column:symbol;index"`
	Side      string  `gorm:"column:side"`
	Price     float64 `gorm:"column:price"`
	Quantity  float64 `gorm:"column:quantity"`
	PnL       float64 `gorm:"column:pnl"`
	Reason    string  `gorm:"column:reason"`
	Timestamp int64   `gorm:"column:timestamp;index"`
}

func (TradeRecordModel) TableName() string { return "trade_records" }
