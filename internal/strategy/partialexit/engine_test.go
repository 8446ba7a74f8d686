package partialexit

import (
	"testing"
	"time"

	"palisade/internal/config"
	"palisade/internal/position"

	"github.com/stretchr/testify/assert"
)

func testTiers() []config.TierConfig {
	return []config.TierConfig{
		{ProfitThreshold: 0.05, ExitFraction: 0.25},
		{ProfitThreshold: 0.10, ExitFraction: 0.25, MinHoldSeconds: 600},
		{ProfitThreshold: 0.20, ExitFraction: 0.25},
	}
}

func testPosition(held time.Duration, now time.Time) *position.Position {
	return &position.Position{
		Symbol:           "ETHUSDT",
		EntryPrice:       100,
		AvgEntryPrice:    100,
		Quantity:         10,
		OriginalQuantity: 10,
		EntryTime:        now.Add(-held),
		HighWaterPrice:   100,
		ExecutedTiers:    map[int]bool{},
	}
}

func TestEvaluate_FirstTierFires(t *testing.T) {
	now := time.Now()
	eng := New(testTiers())
	pos := testPosition(time.Hour, now)

	dec := eng.Evaluate(pos, 105, now)
	assert.True(t, dec.Fire)
	assert.Equal(t, 0, dec.TierIndex)
	// 25% of the original 10.
	assert.InDelta(t, 2.5, dec.SellQuantity, 1e-9)
}

func TestEvaluate_BelowFirstThresholdNoAction(t *testing.T) {
	now := time.Now()
	eng := New(testTiers())
	pos := testPosition(time.Hour, now)

	dec := eng.Evaluate(pos, 104, now)
	assert.False(t, dec.Fire)
}

func TestEvaluate_ExecutedTierNeverRefires(t *testing.T) {
	now := time.Now()
	eng := New(testTiers())
	pos := testPosition(time.Hour, now)

	// Cross, retrace, cross again: the tier fires exactly once.
	first := eng.Evaluate(pos, 105, now)
	assert.True(t, first.Fire)
	pos.ExecutedTiers[first.TierIndex] = true
	pos.Quantity -= first.SellQuantity

	retrace := eng.Evaluate(pos, 103, now)
	assert.False(t, retrace.Fire)

	recross := eng.Evaluate(pos, 106, now)
	assert.False(t, recross.Fire)
}

func TestEvaluate_SkipsToNextUnexecutedTier(t *testing.T) {
	now := time.Now()
	eng := New(testTiers())
	pos := testPosition(time.Hour, now)
	pos.ExecutedTiers[0] = true
	pos.Quantity = 7.5

	dec := eng.Evaluate(pos, 111, now)
	assert.True(t, dec.Fire)
	assert.Equal(t, 1, dec.TierIndex)
	// Fraction still relative to the original size.
	assert.InDelta(t, 2.5, dec.SellQuantity, 1e-9)
}

func TestEvaluate_MinHoldGatesTier(t *testing.T) {
	now := time.Now()
	eng := New(testTiers())
	pos := testPosition(time.Minute, now)
	pos.ExecutedTiers[0] = true
	pos.Quantity = 7.5

	// Tier 1 needs 600s of hold; tier 2's threshold is not met at 11%.
	dec := eng.Evaluate(pos, 111, now)
	assert.False(t, dec.Fire)
}

func TestEvaluate_ProfitRateUsesAveragedEntry(t *testing.T) {
	now := time.Now()
	eng := New(testTiers())
	pos := testPosition(time.Hour, now)
	pos.AvgEntryPrice = 110

	// 10% over the first entry but below the averaged entry: no tier fires.
	dec := eng.Evaluate(pos, 110, now)
	assert.False(t, dec.Fire)
	assert.InDelta(t, 0, dec.ProfitRate, 1e-9)
}

func TestEvaluate_NeverFlattensPosition(t *testing.T) {
	now := time.Now()
	eng := New([]config.TierConfig{{ProfitThreshold: 0.05, ExitFraction: 0.25}})
	pos := testPosition(time.Hour, now)
	pos.Quantity = 2 // earlier exits left less than the tier's cut

	dec := eng.Evaluate(pos, 110, now)
	assert.False(t, dec.Fire)
}
