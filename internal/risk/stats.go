package risk

import "sync"

// defaultPayoffRatio stands in for the win/loss ratio until both sides of
// the ledger have data.
const defaultPayoffRatio = 1.5

// Tracker accumulates closed-trade statistics with O(1) running sums. It is
// safe for concurrent reads from the HTTP layer while the tick loop writes.
type Tracker struct {
	mu         sync.RWMutex
	wins       int
	losses     int
	sumWins    float64
	sumLosses  float64 // absolute value
	lossStreak int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordTrade folds one closed trade's realized PnL into the running sums.
// A win steps the loss streak down by one rather than resetting it, so a
// single lucky trade does not erase a losing run.
func (t *Tracker) RecordTrade(pnl float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if pnl >= 0 {
		t.wins++
		t.sumWins += pnl
		if t.lossStreak > 0 {
			t.lossStreak--
		}
		return
	}
	t.losses++
	t.sumLosses += -pnl
	t.lossStreak++
}

// TradeCount returns total closed trades.
func (t *Tracker) TradeCount() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.wins + t.losses
}

// WinRate returns wins / total, or 0 with no history.
func (t *Tracker) WinRate() float64 {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := t.wins + t.losses
	if total == 0 {
		return 0
	}
	return float64(t.wins) / float64(total)
}

// PayoffRatio returns average win over average loss. Until at least one win
// and one loss exist the default ratio is used.
func (t *Tracker) PayoffRatio() float64 {
	if t == nil {
		return defaultPayoffRatio
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.wins == 0 || t.losses == 0 {
		return defaultPayoffRatio
	}
	avgWin := t.sumWins / float64(t.wins)
	avgLoss := t.sumLosses / float64(t.losses)
	if avgLoss <= 0 {
		return defaultPayoffRatio
	}
	return avgWin / avgLoss
}

// LossStreak returns the current run of consecutive losing trades.
func (t *Tracker) LossStreak() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lossStreak
}

// Snapshot is a point-in-time copy for the status API.
type Snapshot struct {
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	PayoffRatio float64 `json:"payoff_ratio"`
	LossStreak  int     `json:"loss_streak"`
}

func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{PayoffRatio: defaultPayoffRatio}
	}
	t.mu.RLock()
	wins, losses, streak := t.wins, t.losses, t.lossStreak
	t.mu.RUnlock()
	return Snapshot{
		Wins:        wins,
		Losses:      losses,
		WinRate:     t.WinRate(),
		PayoffRatio: t.PayoffRatio(),
		LossStreak:  streak,
	}
}
