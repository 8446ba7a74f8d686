package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_RunningStats(t *testing.T) {
	tr := NewTracker()
	assert.Zero(t, tr.TradeCount())
	assert.Zero(t, tr.WinRate())
	assert.Equal(t, defaultPayoffRatio, tr.PayoffRatio())

	tr.RecordTrade(100)
	tr.RecordTrade(200)
	tr.RecordTrade(-50)
	tr.RecordTrade(-150)

	assert.Equal(t, 4, tr.TradeCount())
	assert.Equal(t, 0.5, tr.WinRate())
	// avg win 150, avg loss 100.
	assert.InDelta(t, 1.5, tr.PayoffRatio(), 1e-9)
}

func TestTracker_PayoffDefaultUntilBothSides(t *testing.T) {
	tr := NewTracker()
	tr.RecordTrade(100)
	tr.RecordTrade(50)
	assert.Equal(t, defaultPayoffRatio, tr.PayoffRatio())

	onlyLosses := NewTracker()
	onlyLosses.RecordTrade(-10)
	assert.Equal(t, defaultPayoffRatio, onlyLosses.PayoffRatio())
}

func TestTracker_LossStreakDecrementsOnWin(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 5; i++ {
		tr.RecordTrade(-10)
	}
	assert.Equal(t, 5, tr.LossStreak())

	// A win steps the streak down by one, it does not reset it.
	tr.RecordTrade(20)
	assert.Equal(t, 4, tr.LossStreak())

	for i := 0; i < 10; i++ {
		tr.RecordTrade(20)
	}
	assert.Zero(t, tr.LossStreak())
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker()
	tr.RecordTrade(30)
	tr.RecordTrade(-10)
	snap := tr.Snapshot()
	assert.Equal(t, 1, snap.Wins)
	assert.Equal(t, 1, snap.Losses)
	assert.Equal(t, 0.5, snap.WinRate)
	assert.Equal(t, 1, snap.LossStreak)
}
