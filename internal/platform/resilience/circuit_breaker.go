package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker trips after a run of consecutive failures and lets a
// bounded number of probe requests through once the cool-down elapses.
type CircuitBreaker struct {
	mu sync.Mutex

	failureLimit int
	coolDown     time.Duration
	probeBudget  int

	state        CircuitState
	failures     int
	reopenAt     time.Time
	probesActive int
	probesPassed int
	now          func() time.Time
}

func NewCircuitBreaker(failureLimit int, coolDown time.Duration, probeBudget int) *CircuitBreaker {
	if failureLimit < 1 {
		failureLimit = 1
	}
	if coolDown <= 0 {
		coolDown = 15 * time.Second
	}
	if probeBudget < 1 {
		probeBudget = 1
	}

	return &CircuitBreaker{
		failureLimit: failureLimit,
		coolDown:     coolDown,
		probeBudget:  probeBudget,
		state:        CircuitStateClosed,
		now:          time.Now,
	}
}

// Allow reports whether a request may proceed. In the half-open state it
// also reserves one probe slot; the caller must follow up with
// RecordSuccess or RecordFailure.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitStateOpen {
		if b.now().Before(b.reopenAt) {
			return ErrCircuitOpen
		}
		b.state = CircuitStateHalfOpen
		b.probesActive = 0
		b.probesPassed = 0
	}

	if b.state == CircuitStateHalfOpen {
		if b.probesActive >= b.probeBudget {
			return ErrCircuitOpen
		}
		b.probesActive++
	}

	return nil
}

func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitStateClosed:
		b.failures = 0
	case CircuitStateHalfOpen:
		if b.probesActive > 0 {
			b.probesActive--
		}
		b.probesPassed++
		if b.probesPassed >= b.probeBudget && b.probesActive == 0 {
			b.state = CircuitStateClosed
			b.failures = 0
			b.reopenAt = time.Time{}
		}
	}
}

func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitStateClosed:
		b.failures++
		if b.failures >= b.failureLimit {
			b.trip()
		}
	case CircuitStateHalfOpen:
		b.trip()
	case CircuitStateOpen:
		b.reopenAt = b.now().Add(b.coolDown)
	}
}

func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitStateOpen && !b.now().Before(b.reopenAt) {
		return CircuitStateHalfOpen
	}
	return b.state
}

func (b *CircuitBreaker) trip() {
	b.state = CircuitStateOpen
	b.reopenAt = b.now().Add(b.coolDown)
	b.probesActive = 0
	b.probesPassed = 0
}
