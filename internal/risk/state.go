package risk

import (
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// DailyState tracks realized PnL for the current calendar day (UTC). The day
// rolls over lazily on access rather than via a timer, so a process that
// sleeps across midnight still resets correctly on its next tick.
type DailyState struct {
	mu          sync.Mutex
	day         string
	realizedPnL float64
	startEquity float64
}

func NewDailyState() *DailyState {
	return &DailyState{}
}

func (s *DailyState) rolloverLocked(now time.Time, equity float64) {
	day := now.UTC().Format(dayLayout)
	if day == s.day {
		return
	}
	s.day = day
	s.realizedPnL = 0
	s.startEquity = equity
}

// RecordPnL folds one closed trade into the day's total.
func (s *DailyState) RecordPnL(pnl float64, now time.Time, equity float64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked(now, equity)
	s.realizedPnL += pnl
}

// RealizedPnL returns today's realized PnL after any lazy rollover.
func (s *DailyState) RealizedPnL(now time.Time, equity float64) float64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked(now, equity)
	return s.realizedPnL
}

// BreakerTripped reports whether today's losses have reached limit as a
// fraction of the day-start equity. Once tripped it stays tripped until the
// next day rollover.
func (s *DailyState) BreakerTripped(limit float64, now time.Time, equity float64) bool {
	if s == nil || limit <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked(now, equity)
	base := s.startEquity
	if base <= 0 {
		base = equity
		s.startEquity = equity
	}
	if base <= 0 {
		return false
	}
	return s.realizedPnL <= -limit*base
}
