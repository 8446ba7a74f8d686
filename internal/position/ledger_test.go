package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"palisade/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory store.Store for write-through assertions.
type memStore struct {
	mu        sync.Mutex
	positions map[string]store.PositionRecord
	trades    []store.TradeRecord
	saves     int
}

func newMemStore() *memStore {
	return &memStore{positions: make(map[string]store.PositionRecord)}
}

func (s *memStore) SavePosition(_ context.Context, rec store.PositionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[rec.Symbol] = rec
	s.saves++
	return nil
}

func (s *memStore) DeletePosition(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, symbol)
	return nil
}

func (s *memStore) ListPositions(context.Context) ([]store.PositionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.PositionRecord, 0, len(s.positions))
	for _, rec := range s.positions {
		out = append(out, rec)
	}
	return out, nil
}

func (s *memStore) AppendTradeRecord(_ context.Context, rec store.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, rec)
	return nil
}

func (s *memStore) ListTradeRecords(context.Context, int) ([]store.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.TradeRecord(nil), s.trades...), nil
}

func (s *memStore) Close() error { return nil }

func newOpenPosition(symbol string) *Position {
	return &Position{
		Symbol:     symbol,
		EntryPrice: 100,
		Quantity:   10,
		EntryTime:  time.Now(),
		EntryScore: 0.7,
	}
}

func TestLedger_OpenNormalizesAndPersists(t *testing.T) {
	st := newMemStore()
	ledger := NewLedger(st)
	ctx := context.Background()

	require.NoError(t, ledger.Open(ctx, newOpenPosition("btcusdt")))

	pos, ok := ledger.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", pos.Symbol)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)
	assert.Equal(t, 10.0, pos.OriginalQuantity)
	assert.Equal(t, 100.0, pos.HighWaterPrice)
	assert.Equal(t, 1, st.saves)
}

func TestLedger_SecondOpenOnSymbolIsFatal(t *testing.T) {
	ledger := NewLedger(newMemStore())
	ctx := context.Background()

	require.NoError(t, ledger.Open(ctx, newOpenPosition("BTCUSDT")))
	err := ledger.Open(ctx, newOpenPosition("BTCUSDT"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPositionExists)
}

func TestLedger_HighWaterNeverMovesDown(t *testing.T) {
	st := newMemStore()
	ledger := NewLedger(st)
	ctx := context.Background()
	require.NoError(t, ledger.Open(ctx, newOpenPosition("BTCUSDT")))

	require.NoError(t, ledger.UpdateHighWater(ctx, "BTCUSDT", 110))
	require.NoError(t, ledger.UpdateHighWater(ctx, "BTCUSDT", 105))

	pos, _ := ledger.Get("BTCUSDT")
	assert.Equal(t, 110.0, pos.HighWaterPrice)
	// The lower price did not trigger a persist.
	assert.Equal(t, 2, st.saves)
}

func TestLedger_PartialExitMarksTier(t *testing.T) {
	ledger := NewLedger(newMemStore())
	ctx := context.Background()
	require.NoError(t, ledger.Open(ctx, newOpenPosition("BTCUSDT")))

	pos, err := ledger.ApplyPartialExit(ctx, "BTCUSDT", 2.5, 0)
	require.NoError(t, err)
	assert.Equal(t, 7.5, pos.Quantity)
	assert.True(t, pos.TierExecuted(0))

	// The same tier cannot apply twice.
	_, err = ledger.ApplyPartialExit(ctx, "BTCUSDT", 2.5, 0)
	require.Error(t, err)

	// A full-size exit must go through Close instead.
	_, err = ledger.ApplyPartialExit(ctx, "BTCUSDT", 7.5, 1)
	require.Error(t, err)
}

func TestLedger_PyramidRecomputesAveragedEntry(t *testing.T) {
	ledger := NewLedger(newMemStore())
	ctx := context.Background()
	require.NoError(t, ledger.Open(ctx, newOpenPosition("BTCUSDT")))

	pos, err := ledger.ApplyPyramid(ctx, "BTCUSDT", PyramidAdd{Price: 110, Quantity: 5, Score: 0.8})
	require.NoError(t, err)
	assert.Equal(t, 1, pos.PyramidCount)
	assert.Equal(t, 15.0, pos.Quantity)
	// (10*100 + 5*110) / 15
	assert.InDelta(t, 103.3333, pos.AvgEntryPrice, 1e-3)
	// First entry price never changes.
	assert.Equal(t, 100.0, pos.EntryPrice)
}

func TestLedger_CloseClearsDependentState(t *testing.T) {
	st := newMemStore()
	ledger := NewLedger(st)
	ctx := context.Background()
	require.NoError(t, ledger.Open(ctx, newOpenPosition("BTCUSDT")))

	_, err := ledger.ApplyPyramid(ctx, "BTCUSDT", PyramidAdd{Price: 110, Quantity: 5, Score: 0.8})
	require.NoError(t, err)
	_, err = ledger.ApplyPartialExit(ctx, "BTCUSDT", 3, 0)
	require.NoError(t, err)

	closed, err := ledger.Close(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, closed.PyramidCount)
	_, ok := ledger.Get("BTCUSDT")
	assert.False(t, ok)
	assert.Empty(t, st.positions)

	// A fresh position on the same symbol starts with clean state.
	require.NoError(t, ledger.Open(ctx, newOpenPosition("BTCUSDT")))
	fresh, _ := ledger.Get("BTCUSDT")
	assert.Zero(t, fresh.PyramidCount)
	assert.Empty(t, fresh.PyramidHistory)
	assert.False(t, fresh.TierExecuted(0))
}

func TestLedger_SellPathWithoutPositionIsFatal(t *testing.T) {
	ledger := NewLedger(newMemStore())
	ctx := context.Background()

	_, err := ledger.Close(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, ErrNoPosition)
	_, err = ledger.ApplyPartialExit(ctx, "BTCUSDT", 1, 0)
	assert.ErrorIs(t, err, ErrNoPosition)
	err = ledger.UpdateHighWater(ctx, "BTCUSDT", 100)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestLedger_RecordRoundTrip(t *testing.T) {
	st := newMemStore()
	ledger := NewLedger(st)
	ctx := context.Background()
	require.NoError(t, ledger.Open(ctx, newOpenPosition("BTCUSDT")))
	_, err := ledger.ApplyPyramid(ctx, "BTCUSDT", PyramidAdd{Price: 110, Quantity: 5, Score: 0.8})
	require.NoError(t, err)
	_, err = ledger.ApplyPartialExit(ctx, "BTCUSDT", 3, 1)
	require.NoError(t, err)

	rec := st.positions["BTCUSDT"]
	restored := fromRecord(rec)
	orig, _ := ledger.Get("BTCUSDT")
	assert.Equal(t, orig.Quantity, restored.Quantity)
	assert.Equal(t, orig.AvgEntryPrice, restored.AvgEntryPrice)
	assert.Equal(t, orig.PyramidCount, restored.PyramidCount)
	assert.True(t, restored.TierExecuted(1))
	assert.Len(t, restored.PyramidHistory, 1)
}
