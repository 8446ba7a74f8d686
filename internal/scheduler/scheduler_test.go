package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextTimesAlignsToIntervalBoundary(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), time.Minute, 0)
	now := time.Date(2026, 3, 1, 12, 30, 42, 0, time.UTC)

	wakeAt, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 31, 0, 0, time.UTC), wakeAt)
	assert.Equal(t, 18*time.Second, wait)
}

func TestNextTimesAppliesOffset(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), 5*time.Minute, 10*time.Second)
	now := time.Date(2026, 3, 1, 12, 31, 0, 0, time.UTC)

	wakeAt, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 35, 10, 0, time.UTC), wakeAt)
	assert.Equal(t, 4*time.Minute+10*time.Second, wait)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewAlignedScheduler(ctx, time.Hour, 0)
	s.RunImmediately = true

	ran := make(chan struct{}, 1)
	go s.Start(func() {
		select {
		case ran <- struct{}{}:
		default:
		}
		cancel()
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate tick never fired")
	}
}
