package position

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"palisade/internal/logger"
	"palisade/internal/store"
)

var (
	ErrPositionExists = errors.New("position already exists for symbol")
	ErrNoPosition     = errors.New("no open position for symbol")
)

// Ledger is the authoritative in-memory registry of open positions with
// write-through persistence. Every mutation saves the updated record before
// returning, so a crash loses at most the in-flight tick.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*Position
	store     store.Store
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{
		positions: make(map[string]*Position),
		store:     st,
	}
}

// Open registers a new position. Fails with ErrPositionExists if the symbol
// already has one.
func (l *Ledger) Open(ctx context.Context, pos *Position) error {
	if l == nil || pos == nil {
		return fmt.Errorf("ledger: nil position")
	}
	symbol := normalizeSymbol(pos.Symbol)
	if symbol == "" {
		return fmt.Errorf("ledger: symbol is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.positions[symbol]; ok {
		return fmt.Errorf("%w: %s", ErrPositionExists, symbol)
	}
	pos.Symbol = symbol
	if pos.AvgEntryPrice <= 0 {
		pos.AvgEntryPrice = pos.EntryPrice
	}
	if pos.OriginalQuantity <= 0 {
		pos.OriginalQuantity = pos.Quantity
	}
	if pos.HighWaterPrice < pos.EntryPrice {
		pos.HighWaterPrice = pos.EntryPrice
	}
	if pos.ExecutedTiers == nil {
		pos.ExecutedTiers = make(map[int]bool)
	}
	l.positions[symbol] = pos
	return l.persistLocked(ctx, pos)
}

// Get returns a copy of the open position, or false.
func (l *Ledger) Get(symbol string) (*Position, bool) {
	if l == nil {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[normalizeSymbol(symbol)]
	if !ok {
		return nil, false
	}
	return pos.Clone(), true
}

// List returns copies of all open positions.
func (l *Ledger) List() []*Position {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos.Clone())
	}
	return out
}

// Count returns the number of open positions.
func (l *Ledger) Count() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// UpdateHighWater raises the high-water mark if price exceeds it. The mark
// never moves down.
func (l *Ledger) UpdateHighWater(ctx context.Context, symbol string, price float64) error {
	if l == nil {
		return fmt.Errorf("ledger: not initialized")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[normalizeSymbol(symbol)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	if price <= pos.HighWaterPrice {
		return nil
	}
	pos.HighWaterPrice = price
	return l.persistLocked(ctx, pos)
}

// ApplyPartialExit reduces the position by quantity and marks the tier
// executed. The remaining quantity must stay positive; full closes go
// through Close.
func (l *Ledger) ApplyPartialExit(ctx context.Context, symbol string, quantity float64, tierIndex int) (*Position, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger: not initialized")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[normalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	if quantity <= 0 || quantity >= pos.Quantity {
		return nil, fmt.Errorf("ledger: partial exit quantity %.8f out of range for %s (open %.8f)", quantity, symbol, pos.Quantity)
	}
	if pos.ExecutedTiers[tierIndex] {
		return nil, fmt.Errorf("ledger: tier %d already executed for %s", tierIndex, symbol)
	}
	pos.Quantity -= quantity
	pos.ExecutedTiers[tierIndex] = true
	if err := l.persistLocked(ctx, pos); err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// ApplyPyramid records a scale-in fill and recomputes the volume-weighted
// entry price.
func (l *Ledger) ApplyPyramid(ctx context.Context, symbol string, add PyramidAdd) (*Position, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger: not initialized")
	}
	if add.Price <= 0 || add.Quantity <= 0 {
		return nil, fmt.Errorf("ledger: invalid pyramid add for %s", symbol)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[normalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	if add.Time.IsZero() {
		add.Time = time.Now()
	}
	pos.Quantity += add.Quantity
	pos.OriginalQuantity += add.Quantity
	pos.PyramidCount++
	pos.PyramidHistory = append(pos.PyramidHistory, add)
	pos.recomputeAvgEntry()
	if err := l.persistLocked(ctx, pos); err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// Close removes the position from the ledger and deletes the persisted row.
func (l *Ledger) Close(ctx context.Context, symbol string) (*Position, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger: not initialized")
	}
	symbol = normalizeSymbol(symbol)
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	delete(l.positions, symbol)
	if l.store != nil {
		if err := l.store.DeletePosition(ctx, symbol); err != nil {
			logger.Errorf("ledger: delete persisted position %s failed: %v", symbol, err)
			return pos.Clone(), err
		}
	}
	return pos.Clone(), nil
}

// Restore installs a position without persisting it again, used when loading
// stored rows at startup.
func (l *Ledger) Restore(pos *Position) {
	if l == nil || pos == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[normalizeSymbol(pos.Symbol)] = pos
}

func (l *Ledger) persistLocked(ctx context.Context, pos *Position) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SavePosition(ctx, pos.toRecord(time.Now())); err != nil {
		logger.Errorf("ledger: persist position %s failed: %v", pos.Symbol, err)
		return err
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
