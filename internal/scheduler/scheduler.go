// Package scheduler drives the tick loop: ticks fire aligned to wall-clock
// interval boundaries (UTC) so logs and candle data line up across restarts.
package scheduler

import (
	"context"
	"time"

	"palisade/internal/logger"
)

type AlignedScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewAlignedScheduler(ctx context.Context, interval, offset time.Duration) *AlignedScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

func (s *AlignedScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("AlignedScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.Offset < 0 {
		logger.Warnf("AlignedScheduler: negative offset=%s, clamp to 0", s.Offset)
		s.Offset = 0
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("AlignedScheduler: started interval=%s offset=%s run_immediately=%v at=%s",
		s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		logger.Infof("AlignedScheduler: RunImmediately=true, execute once before alignment loop")
		task()
	}

	for {
		now := s.nowFn().UTC()
		next, wait := s.nextTimes(now)
		logger.Debugf("AlignedScheduler: next tick at %s (in %s)",
			next.Format(time.RFC3339), wait.Truncate(time.Second))

		if wait <= 0 {
			task()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
	}
}

func (s *AlignedScheduler) nextTimes(now time.Time) (wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	wakeAt = now.Truncate(s.Interval).Add(s.Interval).Add(s.Offset)
	wait = wakeAt.Sub(now)
	return wakeAt, wait
}
