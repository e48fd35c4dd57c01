package store

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// breaker is a minimal circuit breaker guarding the Redis connection.
// Consecutive failures in Closed trip it to Open; after the open interval
// elapses a single probe is admitted (HalfOpen). The open interval doubles on
// each consecutive re-open, up to maxOpenInterval.
type breaker struct {
	mu sync.Mutex

	failureThreshold int
	openInterval     time.Duration
	maxOpenInterval  time.Duration

	state         breakerState
	failures      int
	probeInFlight bool
	currentOpen   time.Duration
	openedAt      time.Time
	nowFunc       func() time.Time
}

func newBreaker(failureThreshold int, openInterval, maxOpenInterval time.Duration) *breaker {
	return &breaker{
		failureThreshold: failureThreshold,
		openInterval:     openInterval,
		maxOpenInterval:  maxOpenInterval,
		state:            stateClosed,
		currentOpen:      openInterval,
		nowFunc:          time.Now,
	}
}

// allow reports whether a call may go out to Redis. In Open state it admits a
// single probe once the open interval has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default: // stateOpen
		if b.nowFunc().Sub(b.openedAt) < b.currentOpen {
			return false
		}
		b.state = stateHalfOpen
		b.probeInFlight = true
		return true
	}
}

// onSuccess closes the breaker and resets the backoff.
func (b *breaker) onSuccess() (recovered bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	recovered = b.state != stateClosed
	b.state = stateClosed
	b.failures = 0
	b.probeInFlight = false
	b.currentOpen = b.openInterval
	return recovered
}

// onFailure records a failed call and reports whether the breaker just
// tripped from healthy to unhealthy.
func (b *breaker) onFailure() (tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.toOpen(false)
			return true
		}
	case stateHalfOpen:
		b.toOpen(true)
	}
	return false
}

// onAbandon releases the probe slot when the admitted probe ended without a
// verdict (the probing caller cancelled its request). The breaker returns to
// Open with the backoff untouched; the open interval has already elapsed, so
// the next caller probes immediately.
func (b *breaker) onAbandon() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen && b.probeInFlight {
		b.state = stateOpen
		b.probeInFlight = false
	}
}

func (b *breaker) toOpen(backoff bool) {
	b.state = stateOpen
	b.openedAt = b.nowFunc()
	b.probeInFlight = false
	if backoff {
		b.currentOpen *= 2
		if b.currentOpen > b.maxOpenInterval {
			b.currentOpen = b.maxOpenInterval
		}
	}
}

func (b *breaker) healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateClosed
}
