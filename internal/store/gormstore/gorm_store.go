package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"palisade/internal/store"
	storemodel "palisade/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type positionModel = storemodel.PositionModel
type tradeRecordModel = storemodel.TradeRecordModel

// GormStore implements store.Store using Gorm + SQLite.
type GormStore struct {
	db *gorm.DB
}

var _ store.Store = (*GormStore)(nil)

// NewGormStore opens (or creates) the sqlite database at path and migrates
// the position and trade tables.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&positionModel{}, &tradeRecordModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) SavePosition(ctx context.Context, rec store.PositionRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(rec.Symbol) == "" {
		return fmt.Errorf("gorm store: symbol is required")
	}
	model, err := newPositionModel(rec)
	if err != nil {
		return err
	}
	cols := []string{
		"entry_price", "avg_entry_price", "quantity", "original_quantity",
		"entry_score", "high_water_price", "pyramid_count", "pyramid_history",
		"executed_tiers", "recovered", "entry_timestamp", "updated_at",
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&model).Error
}

func (s *GormStore) DeletePosition(ctx context.Context, symbol string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("gorm store: symbol is required")
	}
	return s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Delete(&positionModel{}).Error
}

func (s *GormStore) ListPositions(ctx context.Context) ([]store.PositionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var models []positionModel
	if err := s.db.WithContext(ctx).Order("symbol ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.PositionRecord, 0, len(models))
	for _, m := range models {
		rec, err := positionModelToRecord(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GormStore) AppendTradeRecord(ctx context.Context, rec store.TradeRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	model := tradeRecordModel{
		TradeID:   strings.TrimSpace(rec.TradeID),
		Symbol:    strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Side:      strings.ToLower(strings.TrimSpace(rec.Side)),
		Price:     rec.Price,
		Quantity:  rec.Quantity,
		PnL:       rec.PnL,
		Reason:    strings.TrimSpace(rec.Reason),
		Timestamp: rec.Timestamp.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *GormStore) ListTradeRecords(ctx context.Context, limit int) ([]store.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []tradeRecordModel
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.TradeRecord, 0, len(models))
	for _, m := range models {
		out = append(out, store.TradeRecord{
			TradeID:   m.TradeID,
			Symbol:    m.Symbol,
			Side:      m.Side,
			Price:     m.Price,
			Quantity:  m.Quantity,
			PnL:       m.PnL,
			Reason:    m.Reason,
			Timestamp: time.UnixMilli(m.Timestamp),
		})
	}
	return out, nil
}

// --------------------------- Model Helpers ------------------------------

func newPositionModel(rec store.PositionRecord) (positionModel, error) {
	now := time.Now()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	history, err := json.Marshal(rec.PyramidHistory)
	if err != nil {
		return positionModel{}, fmt.Errorf("encode pyramid history: %w", err)
	}
	tiers, err := json.Marshal(rec.ExecutedTiers)
	if err != nil {
		return positionModel{}, fmt.Errorf("encode executed tiers: %w", err)
	}
	return positionModel{
		Symbol:           strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		EntryPrice:       rec.EntryPrice,
		AvgEntryPrice:    rec.AvgEntryPrice,
		Quantity:         rec.Quantity,
		OriginalQuantity: rec.OriginalQuantity,
		EntryScore:       rec.EntryScore,
		HighWaterPrice:   rec.HighWaterPrice,
		PyramidCount:     rec.PyramidCount,
		PyramidHistory:   datatypes.JSON(history),
		ExecutedTiers:    datatypes.JSON(tiers),
		Recovered:        boolToInt(rec.Recovered),
		EntryTimestamp:   rec.EntryTime.UnixMilli(),
		UpdatedAtUnix:    rec.UpdatedAt.UnixMilli(),
	}, nil
}

func positionModelToRecord(m positionModel) (store.PositionRecord, error) {
	rec := store.PositionRecord{
		Symbol:           m.Symbol,
		EntryPrice:       m.EntryPrice,
		AvgEntryPrice:    m.AvgEntryPrice,
		Quantity:         m.Quantity,
		OriginalQuantity: m.OriginalQuantity,
		EntryScore:       m.EntryScore,
		HighWaterPrice:   m.HighWaterPrice,
		PyramidCount:     m.PyramidCount,
		Recovered:        m.Recovered != 0,
		EntryTime:        time.UnixMilli(m.EntryTimestamp),
		UpdatedAt:        time.UnixMilli(m.UpdatedAtUnix),
	}
	if len(m.PyramidHistory) > 0 {
		if err := json.Unmarshal(m.PyramidHistory, &rec.PyramidHistory); err != nil {
			return store.PositionRecord{}, fmt.Errorf("decode pyramid history for %s: %w", m.Symbol, err)
		}
	}
	if len(m.ExecutedTiers) > 0 {
		if err := json.Unmarshal(m.ExecutedTiers, &rec.ExecutedTiers); err != nil {
			return store.PositionRecord{}, fmt.Errorf("decode executed tiers for %s: %w", m.Symbol, err)
		}
	}
	return rec, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
