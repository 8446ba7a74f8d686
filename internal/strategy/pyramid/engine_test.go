package pyramid

import (
	"testing"
	"time"

	"palisade/internal/config"
	"palisade/internal/gateway/exchange"
	"palisade/internal/position"

	"github.com/stretchr/testify/assert"
)

func testConfig() config.PyramidConfig {
	return config.PyramidConfig{
		Enabled:          true,
		MaxAdds:          2,
		MinProfit:        0.03,
		MinScoreIncrease: 0.05,
		SizeRatio:        0.5,
		MaxTotalFraction: 0.15,
		AllowedRegimes:   []string{"bullish"},
	}
}

func winningPosition() *position.Position {
	return &position.Position{
		Symbol:           "BTCUSDT",
		EntryPrice:       100,
		AvgEntryPrice:    100,
		Quantity:         10,
		OriginalQuantity: 10,
		EntryTime:        time.Now().Add(-time.Hour),
		EntryScore:       0.70,
		HighWaterPrice:   106,
		ExecutedTiers:    map[int]bool{},
	}
}

func TestEvaluate_ApprovesStrengtheningWinner(t *testing.T) {
	eng := New(testConfig(), 100)
	pos := winningPosition()

	dec := eng.Evaluate(pos, 106, 0.80, exchange.RegimeBullish, 100_000)
	assert.True(t, dec.Approved)
	assert.Equal(t, ReasonOK, dec.Reason)
	// Half the existing 1060 stake.
	assert.InDelta(t, 530, dec.AddValue, 1e-9)
}

func TestEvaluate_RefusalLadder(t *testing.T) {
	eng := New(testConfig(), 100)

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Enabled = false
		dec := New(cfg, 100).Evaluate(winningPosition(), 106, 0.80, exchange.RegimeBullish, 100_000)
		assert.Equal(t, ReasonDisabled, dec.Reason)
	})

	t.Run("max adds reached", func(t *testing.T) {
		pos := winningPosition()
		pos.PyramidCount = 2
		dec := eng.Evaluate(pos, 106, 0.80, exchange.RegimeBullish, 100_000)
		assert.Equal(t, ReasonMaxAdds, dec.Reason)
	})

	t.Run("never average down", func(t *testing.T) {
		dec := eng.Evaluate(winningPosition(), 101, 0.80, exchange.RegimeBullish, 100_000)
		assert.Equal(t, ReasonInsufficientGain, dec.Reason)
	})

	t.Run("score must strictly strengthen", func(t *testing.T) {
		// 0.72 is above the entry score but not by min_score_increase.
		dec := eng.Evaluate(winningPosition(), 106, 0.72, exchange.RegimeBullish, 100_000)
		assert.Equal(t, ReasonScoreNotStronger, dec.Reason)
	})

	t.Run("regime blocked", func(t *testing.T) {
		dec := eng.Evaluate(winningPosition(), 106, 0.80, exchange.RegimeNeutral, 100_000)
		assert.Equal(t, ReasonRegimeBlocked, dec.Reason)
	})
}

func TestEvaluate_ScoreComparedToLastAdd(t *testing.T) {
	eng := New(testConfig(), 100)
	pos := winningPosition()
	pos.PyramidCount = 1
	pos.PyramidHistory = []position.PyramidAdd{{Price: 104, Quantity: 5, Score: 0.85, Time: time.Now()}}

	// 0.80 beat the entry score but not the last add's 0.85.
	dec := eng.Evaluate(pos, 110, 0.80, exchange.RegimeBullish, 100_000)
	assert.Equal(t, ReasonScoreNotStronger, dec.Reason)

	dec = eng.Evaluate(pos, 110, 0.91, exchange.RegimeBullish, 100_000)
	assert.True(t, dec.Approved)
}

func TestEvaluate_TotalFractionClamp(t *testing.T) {
	eng := New(testConfig(), 100)
	pos := winningPosition()

	// Budget 15% of 10,000 = 1,500; existing 1,060 leaves 440 of headroom.
	dec := eng.Evaluate(pos, 106, 0.80, exchange.RegimeBullish, 10_000)
	assert.True(t, dec.Approved)
	assert.InDelta(t, 440, dec.AddValue, 1e-9)

	// No headroom at all.
	dec = eng.Evaluate(pos, 106, 0.80, exchange.RegimeBullish, 5_000)
	assert.Equal(t, ReasonTotalFractionCap, dec.Reason)
}

func TestEvaluate_BelowMinOrderRefused(t *testing.T) {
	eng := New(testConfig(), 600)
	pos := winningPosition()

	dec := eng.Evaluate(pos, 106, 0.80, exchange.RegimeBullish, 100_000)
	assert.Equal(t, ReasonBelowMinOrder, dec.Reason)
}
