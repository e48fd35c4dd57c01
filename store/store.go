package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnavailable is returned when the remote store cannot be reached
	// within the operation timeout, or while the breaker is open.
	ErrUnavailable = errors.New("store unavailable")
	// ErrKeyAbsent is returned by Get when the key does not exist.
	ErrKeyAbsent = errors.New("key absent")
)

// SwapResult reports the outcome of a CompareAndSwap call.
type SwapResult int

const (
	// SwapMissing means the key did not exist.
	SwapMissing SwapResult = iota
	// SwapMismatch means the stored value differed from the expected one.
	SwapMismatch
	// Swapped means the value was replaced atomically.
	Swapped
)

// Config holds connection-level tuning for the adapter.
type Config struct {
	// OpTimeout bounds every Redis round trip. Zero means DefaultOpTimeout.
	OpTimeout time.Duration
	// BreakerFailureThreshold is the number of consecutive failures before
	// the breaker opens.
	BreakerFailureThreshold int
	// BreakerOpenInterval is the initial fail-fast interval after the
	// breaker opens; it doubles on consecutive re-opens.
	BreakerOpenInterval time.Duration
	// BreakerMaxOpenInterval caps the exponential backoff.
	BreakerMaxOpenInterval time.Duration
	// ScanBatch is the COUNT hint for prefix scans.
	ScanBatch int64
	// OnTransition, if set, is called with true when the store recovers and
	// false when it becomes unavailable. Called outside any lock.
	OnTransition func(up bool)
}

// DefaultOpTimeout bounds a single Redis round trip when Config.OpTimeout is
// zero. Timeouts are treated identically to connection failures.
const DefaultOpTimeout = 500 * time.Millisecond

const (
	defaultFailureThreshold = 5
	defaultOpenInterval     = 2 * time.Second
	defaultMaxOpenInterval  = 30 * time.Second
	defaultScanBatch        = 256
)

// incrScript increments a counter and sets its expiry only on the 0->1
// transition, in a single round trip. Fixed-window semantics: the window
// lifetime is fixed at first increment and never extended.
const incrScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

// casScript replaces the stored value only when it matches the expected one.
// Returns 0 when the key is missing, 1 on mismatch, 2 when swapped.
const casScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var (
	incrLua = redis.NewScript(incrScript)
	casLua  = redis.NewScript(casScript)
)

// Store is the shared remote-store adapter. Safe for concurrent use.
type Store struct {
	rdb     redis.UniversalClient
	cfg     Config
	breaker *breaker
}

// New wraps the given Redis client. The client is shared and must itself be
// safe for concurrent use; the adapter never closes it.
func New(rdb redis.UniversalClient, cfg Config) *Store {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = defaultFailureThreshold
	}
	if cfg.BreakerOpenInterval <= 0 {
		cfg.BreakerOpenInterval = defaultOpenInterval
	}
	if cfg.BreakerMaxOpenInterval < cfg.BreakerOpenInterval {
		cfg.BreakerMaxOpenInterval = defaultMaxOpenInterval
	}
	if cfg.ScanBatch <= 0 {
		cfg.ScanBatch = defaultScanBatch
	}

	return &Store{
		rdb:     rdb,
		cfg:     cfg,
		breaker: newBreaker(cfg.BreakerFailureThreshold, cfg.BreakerOpenInterval, cfg.BreakerMaxOpenInterval),
	}
}

// Healthy reports the breaker's view of the connection. A false result means
// calls are currently failing fast.
func (s *Store) Healthy() bool {
	return s.breaker.healthy()
}

// Get returns the value at key, ErrKeyAbsent when missing.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.breaker.allow() {
		return nil, ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	val, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.markSuccess()
			return nil, ErrKeyAbsent
		}
		return nil, s.markFailure(err)
	}
	s.markSuccess()
	return val, nil
}

// Set stores value at key with the given TTL. A zero TTL means no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.breaker.allow() {
		return ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return s.markFailure(err)
	}
	s.markSuccess()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if !s.breaker.allow() {
		return ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return s.markFailure(err)
	}
	s.markSuccess()
	return nil
}

// DeleteByPrefix removes every key starting with prefix and returns the
// number of keys deleted. The scan runs in batches, each SCAN page and DEL
// under its own operation timeout, so an invalidation spanning many pages
// never outlives a single-op deadline.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	if !s.breaker.allow() {
		return 0, ErrUnavailable
	}

	var (
		deleted int64
		cursor  uint64
		pattern = prefix + "*"
	)
	for {
		keys, next, err := s.scanPage(ctx, cursor, pattern)
		if err != nil {
			return deleted, s.markFailure(err)
		}
		if len(keys) > 0 {
			n, err := s.deletePage(ctx, keys)
			deleted += n
			if err != nil {
				return deleted, s.markFailure(err)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	s.markSuccess()
	return deleted, nil
}

func (s *Store) scanPage(ctx context.Context, cursor uint64, pattern string) ([]string, uint64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.rdb.Scan(ctx, cursor, pattern, s.cfg.ScanBatch).Result()
}

func (s *Store) deletePage(ctx context.Context, keys []string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.rdb.Del(ctx, keys...).Result()
}

// Increment atomically increments the counter at key, setting its expiry to
// ttl only when this call created the key. Concurrent callers never observe
// the same post-increment value.
func (s *Store) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if !s.breaker.allow() {
		return 0, ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	count, err := incrLua.Run(ctx, s.rdb, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, s.markFailure(err)
	}
	s.markSuccess()
	return count, nil
}

// CompareAndSwap atomically replaces the value at key with next when the
// current value equals expected, refreshing the TTL. The swap decision and
// the write happen in one Lua round trip.
func (s *Store) CompareAndSwap(ctx context.Context, key string, expected, next []byte, ttl time.Duration) (SwapResult, error) {
	if !s.breaker.allow() {
		return SwapMissing, ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	status, err := casLua.Run(ctx, s.rdb, []string{key}, expected, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return SwapMissing, s.markFailure(err)
	}
	s.markSuccess()

	switch status {
	case 1:
		return SwapMismatch, nil
	case 2:
		return Swapped, nil
	default:
		return SwapMissing, nil
	}
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if !s.breaker.allow() {
		return false, ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, s.markFailure(err)
	}
	s.markSuccess()
	return n > 0, nil
}

// Expire sets the TTL of an existing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if !s.breaker.allow() {
		return ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return s.markFailure(err)
	}
	s.markSuccess()
	return nil
}

// TTL returns the remaining lifetime of key. Missing keys and keys without
// expiry report zero.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !s.breaker.allow() {
		return 0, ErrUnavailable
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, s.markFailure(err)
	}
	s.markSuccess()
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// opContext bounds a single round trip. The parent's cancellation still
// applies; a cancelled request is abandoned at the transport timeout at the
// latest.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

func (s *Store) markSuccess() {
	if s.breaker.onSuccess() && s.cfg.OnTransition != nil {
		s.cfg.OnTransition(true)
	}
}

func (s *Store) markFailure(err error) error {
	// A cancelled caller is not evidence of a store outage, but if it was
	// holding the probe slot it must give it back, or the breaker stays
	// half-open forever.
	if errors.Is(err, context.Canceled) {
		s.breaker.onAbandon()
	} else if s.breaker.onFailure() && s.cfg.OnTransition != nil {
		s.cfg.OnTransition(false)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
