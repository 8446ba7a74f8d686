// Package position tracks open spot positions and their lifecycle: entry,
// pyramid adds, partial exits, and close. All mutation goes through the
// Ledger so the persisted snapshot stays consistent with memory.
package position

import (
	"time"

	"palisade/internal/pkg/trading"
	"palisade/internal/store"
)

// PyramidAdd is one scale-in fill recorded against an open position.
type PyramidAdd struct {
	Price    float64
	Quantity float64
	Score    float64
	Time     time.Time
}

// Position is one open long spot position. EntryPrice is the first fill and
// never changes; AvgEntryPrice is the volume-weighted entry across the first
// fill and all pyramid adds.
type Position struct {
	Symbol           string
	EntryPrice       float64
	AvgEntryPrice    float64
	Quantity         float64
	OriginalQuantity float64
	EntryTime        time.Time
	EntryScore       float64
	HighWaterPrice   float64
	PyramidCount     int
	PyramidHistory   []PyramidAdd
	ExecutedTiers    map[int]bool

	// Recovered marks a position synthesized from exchange balances at
	// startup rather than opened by this process. Entry price provenance is
	// weaker for these.
	Recovered bool
}

// Clone returns a deep copy safe to hand out beyond the ledger lock.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := *p
	out.PyramidHistory = append([]PyramidAdd(nil), p.PyramidHistory...)
	out.ExecutedTiers = make(map[int]bool, len(p.ExecutedTiers))
	for k, v := range p.ExecutedTiers {
		out.ExecutedTiers[k] = v
	}
	return &out
}

// HoldDuration reports how long the position has been open.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	if p == nil || p.EntryTime.IsZero() {
		return 0
	}
	d := now.Sub(p.EntryTime)
	if d < 0 {
		return 0
	}
	return d
}

// ProfitRate returns the unrealized return at price relative to the
// volume-weighted entry.
func (p *Position) ProfitRate(price float64) float64 {
	if p == nil || p.AvgEntryPrice <= 0 {
		return 0
	}
	return (price - p.AvgEntryPrice) / p.AvgEntryPrice
}

// recomputeAvgEntry refreshes AvgEntryPrice from the first fill plus the
// pyramid history.
func (p *Position) recomputeAvgEntry() {
	prices := make([]float64, 0, 1+len(p.PyramidHistory))
	quantities := make([]float64, 0, cap(prices))
	firstQty := p.OriginalQuantity
	for _, add := range p.PyramidHistory {
		firstQty -= add.Quantity
		prices = append(prices, add.Price)
		quantities = append(quantities, add.Quantity)
	}
	if firstQty > 0 {
		prices = append(prices, p.EntryPrice)
		quantities = append(quantities, firstQty)
	}
	if avg := trading.VolumeWeightedPrice(prices, quantities); avg > 0 {
		p.AvgEntryPrice = avg
	}
}

// TierExecuted reports whether the tier at index has already fired.
func (p *Position) TierExecuted(index int) bool {
	if p == nil || p.ExecutedTiers == nil {
		return false
	}
	return p.ExecutedTiers[index]
}

// LastPyramidScore returns the score of the most recent add, or the fallback
// when no adds exist.
func (p *Position) LastPyramidScore(fallback float64) float64 {
	if p == nil || len(p.PyramidHistory) == 0 {
		return fallback
	}
	return p.PyramidHistory[len(p.PyramidHistory)-1].Score
}

func (p *Position) toRecord(now time.Time) store.PositionRecord {
	rec := store.PositionRecord{
		Symbol:           p.Symbol,
		EntryPrice:       p.EntryPrice,
		AvgEntryPrice:    p.AvgEntryPrice,
		Quantity:         p.Quantity,
		OriginalQuantity: p.OriginalQuantity,
		EntryTime:        p.EntryTime,
		EntryScore:       p.EntryScore,
		HighWaterPrice:   p.HighWaterPrice,
		PyramidCount:     p.PyramidCount,
		Recovered:        p.Recovered,
		UpdatedAt:        now,
	}
	for _, add := range p.PyramidHistory {
		rec.PyramidHistory = append(rec.PyramidHistory, store.PyramidAddRecord{
			Price:    add.Price,
			Quantity: add.Quantity,
			Score:    add.Score,
			Time:     add.Time,
		})
	}
	for idx, done := range p.ExecutedTiers {
		if done {
			rec.ExecutedTiers = append(rec.ExecutedTiers, idx)
		}
	}
	return rec
}

func fromRecord(rec store.PositionRecord) *Position {
	pos := &Position{
		Symbol:           rec.Symbol,
		EntryPrice:       rec.EntryPrice,
		AvgEntryPrice:    rec.AvgEntryPrice,
		Quantity:         rec.Quantity,
		OriginalQuantity: rec.OriginalQuantity,
		EntryTime:        rec.EntryTime,
		EntryScore:       rec.EntryScore,
		HighWaterPrice:   rec.HighWaterPrice,
		PyramidCount:     rec.PyramidCount,
		Recovered:        rec.Recovered,
		ExecutedTiers:    make(map[int]bool, len(rec.ExecutedTiers)),
	}
	for _, add := range rec.PyramidHistory {
		pos.PyramidHistory = append(pos.PyramidHistory, PyramidAdd{
			Price:    add.Price,
			Quantity: add.Quantity,
			Score:    add.Score,
			Time:     add.Time,
		})
	}
	for _, idx := range rec.ExecutedTiers {
		pos.ExecutedTiers[idx] = true
	}
	if pos.AvgEntryPrice <= 0 {
		pos.AvgEntryPrice = pos.EntryPrice
	}
	if pos.HighWaterPrice < pos.EntryPrice {
		pos.HighWaterPrice = pos.EntryPrice
	}
	return pos
}
