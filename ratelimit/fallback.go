package ratelimit

import (
	"sync"
	"time"
)

// fallbackLimiter is the in-process degraded-mode counter used while the
// store is unreachable. Counters reset on process restart and are not shared
// across replicas; a deliberate availability-over-strictness tradeoff.
type fallbackLimiter struct {
	mu        sync.Mutex
	counters  map[string]*windowCounter
	maxWindow time.Duration
}

type windowCounter struct {
	windowStart int64
	count       int64
}

func newFallbackLimiter(maxWindow time.Duration) *fallbackLimiter {
	if maxWindow <= 0 {
		maxWindow = time.Hour
	}
	return &fallbackLimiter{
		counters:  make(map[string]*windowCounter),
		maxWindow: maxWindow,
	}
}

func (f *fallbackLimiter) checkAndConsume(identity, category string, cat Category, now time.Time) Decision {
	start := now.UnixNano() / int64(cat.Window) * int64(cat.Window)
	key := category + ":" + identity

	f.mu.Lock()
	defer f.mu.Unlock()

	wc, ok := f.counters[key]
	if !ok || wc.windowStart != start {
		wc = &windowCounter{windowStart: start}
		f.counters[key] = wc
		if len(f.counters) > fallbackMaxCounters {
			f.pruneLocked(now)
		}
	}
	wc.count++

	if wc.count <= cat.Ceiling {
		return Decision{Allowed: true, Remaining: cat.Ceiling - wc.count, Degraded: true}
	}

	elapsed := now.UnixNano() - start
	return Decision{RetryAfter: cat.Window - time.Duration(elapsed), Degraded: true}
}

func (f *fallbackLimiter) peek(identity, category string, cat Category, now time.Time) int64 {
	start := now.UnixNano() / int64(cat.Window) * int64(cat.Window)

	f.mu.Lock()
	defer f.mu.Unlock()

	wc, ok := f.counters[category+":"+identity]
	if !ok || wc.windowStart != start {
		return 0
	}
	return wc.count
}

const fallbackMaxCounters = 65536

// pruneLocked drops counters whose window has rolled. Callers hold f.mu.
func (f *fallbackLimiter) pruneLocked(now time.Time) {
	// Window length differs per category, so a counter is only known stale
	// once its recorded start is older than the longest configured window.
	cutoff := now.Add(-f.maxWindow).UnixNano()
	for key, wc := range f.counters {
		if wc.windowStart < cutoff {
			delete(f.counters, key)
		}
	}
}
