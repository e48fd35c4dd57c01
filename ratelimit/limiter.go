package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mindgauge/statecore/store"
)

// ErrUnknownCategory is returned for categories absent from the configured
// table. Admission for unknown categories would otherwise be unbounded.
var ErrUnknownCategory = errors.New("unknown rate limit category")

// Category defines one admission budget.
type Category struct {
	// Ceiling is the number of requests admitted per window.
	Ceiling int64
	// Window is the fixed counting interval.
	Window time.Duration
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	// Remaining is the budget left in the current window, zero when denied.
	Remaining int64
	// RetryAfter is how long a denied caller should wait. At most the
	// window length.
	RetryAfter time.Duration
	// Degraded is true when the decision came from the local fallback
	// counter instead of the shared store.
	Degraded bool
}

// Config holds the category table and hooks.
type Config struct {
	// Categories maps category name to its budget.
	Categories map[string]Category
	// KeyPrefix namespaces the counters in the store. Defaults to "rl".
	KeyPrefix string
	// OnAllow, OnDeny and OnFallback are observability hooks. May be nil.
	OnAllow    func(identity, category string)
	OnDeny     func(identity, category string)
	OnFallback func(identity, category string)
}

// Limiter enforces the budgets. Safe for concurrent use.
type Limiter struct {
	store    *store.Store
	cfg      Config
	fallback *fallbackLimiter
	nowFunc  func() time.Time
}

// New creates a Limiter over the shared store adapter.
func New(st *store.Store, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl"
	}
	var maxWindow time.Duration
	for _, cat := range cfg.Categories {
		if cat.Window > maxWindow {
			maxWindow = cat.Window
		}
	}
	return &Limiter{
		store:    st,
		cfg:      cfg,
		fallback: newFallbackLimiter(maxWindow),
		nowFunc:  time.Now,
	}
}

// CheckAndConsume admits or rejects one request for the identity under the
// named category. The identity must derive from a stable signal such as the
// authenticated principal ID or the connection address, never from
// client-supplied headers alone.
//
// Store unavailability is absorbed by the local fallback; the only error a
// caller can see is ErrUnknownCategory.
func (l *Limiter) CheckAndConsume(ctx context.Context, identity, category string) (Decision, error) {
	cat, ok := l.cfg.Categories[category]
	if !ok {
		return Decision{}, ErrUnknownCategory
	}

	now := l.nowFunc()
	key := l.windowKey(identity, category, cat.Window, now)

	count, err := l.store.Increment(ctx, key, cat.Window)
	if err != nil {
		d := l.fallback.checkAndConsume(identity, category, cat, now)
		if l.cfg.OnFallback != nil {
			l.cfg.OnFallback(identity, category)
		}
		l.emit(d, identity, category)
		return d, nil
	}

	if count <= cat.Ceiling {
		d := Decision{Allowed: true, Remaining: cat.Ceiling - count}
		l.emit(d, identity, category)
		return d, nil
	}

	retry := cat.Window
	if ttl, terr := l.store.TTL(ctx, key); terr == nil && ttl > 0 && ttl < retry {
		retry = ttl
	}
	d := Decision{RetryAfter: retry}
	l.emit(d, identity, category)
	return d, nil
}

// Peek returns the number of requests already consumed in the current window
// without consuming one. Missing counters report zero.
func (l *Limiter) Peek(ctx context.Context, identity, category string) (int64, error) {
	cat, ok := l.cfg.Categories[category]
	if !ok {
		return 0, ErrUnknownCategory
	}

	now := l.nowFunc()
	val, err := l.store.Get(ctx, l.windowKey(identity, category, cat.Window, now))
	switch {
	case err == nil:
		n, perr := strconv.ParseInt(string(val), 10, 64)
		if perr != nil {
			return 0, nil
		}
		return n, nil
	case errors.Is(err, store.ErrKeyAbsent):
		return 0, nil
	case errors.Is(err, store.ErrUnavailable):
		return l.fallback.peek(identity, category, cat, now), nil
	default:
		return 0, err
	}
}

// windowKey is "<prefix>:<category>:<identity>:<windowStart>". The window
// start pins the counter to one fixed interval.
func (l *Limiter) windowKey(identity, category string, window time.Duration, now time.Time) string {
	start := now.UnixNano() / int64(window) * int64(window)
	var b strings.Builder
	b.Grow(len(l.cfg.KeyPrefix) + len(category) + len(identity) + 24)
	b.WriteString(l.cfg.KeyPrefix)
	b.WriteByte(':')
	b.WriteString(category)
	b.WriteByte(':')
	b.WriteString(identity)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(start, 10))
	return b.String()
}

func (l *Limiter) emit(d Decision, identity, category string) {
	if d.Allowed {
		if l.cfg.OnAllow != nil {
			l.cfg.OnAllow(identity, category)
		}
		return
	}
	if l.cfg.OnDeny != nil {
		l.cfg.OnDeny(identity, category)
	}
}
