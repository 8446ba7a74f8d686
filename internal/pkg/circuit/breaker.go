// Package circuit guards the order path against a flapping exchange.
// Repeated transport faults open the breaker and new orders are refused
// until a cooldown passes; then a single probe order is let through to
// test whether the exchange recovered. Refusals (rejected orders,
// insufficient funds) are the exchange working and must not be recorded
// as failures.
package circuit

import (
	"sync"
	"time"

	"palisade/internal/logger"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker. In the half-open state only
// one probe is outstanding at a time; concurrent callers are refused until
// the probe settles.
type Breaker struct {
	mu          sync.Mutex
	name        string
	threshold   int
	cooldown    time.Duration
	state       State
	failures    int
	probing     bool
	lastFailure time.Time
	lastCause   error
}

func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
	}
}

// Allow reports whether the next order may go out.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) > b.cooldown {
			b.transition(StateHalfOpen)
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess marks the exchange as responsive. A successful half-open
// probe closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
	b.failures = 0
	b.lastCause = nil
}

// RecordFailure counts one transport fault against the threshold. The
// cause is kept so the trip log names what broke.
func (b *Breaker) RecordFailure(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	b.failures++
	b.lastFailure = time.Now()
	b.lastCause = cause
	switch b.state {
	case StateClosed:
		if b.failures >= b.threshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if to == StateOpen {
		logger.Warnf("circuit %s: %s -> %s after %d failures, last cause: %v",
			b.name, from, to, b.failures, b.lastCause)
		return
	}
	logger.Infof("circuit %s: %s -> %s", b.name, from, to)
}
