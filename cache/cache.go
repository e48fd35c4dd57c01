package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mindgauge/statecore/store"
)

// ComputeFunc produces the value for a key on a cache miss. It may block on
// external I/O; GetOrCompute imposes a default timeout when the caller's
// context carries no deadline.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Config tunes the cache.
type Config struct {
	// LocalMaxEntries bounds the fallback tier. Zero means DefaultLocalMaxEntries.
	LocalMaxEntries int
	// ComputeTimeout is applied to ComputeFunc calls whose context has no
	// deadline. Zero means DefaultComputeTimeout.
	ComputeTimeout time.Duration
	// OnHit, OnMiss and OnFallbackHit are observability hooks. May be nil.
	OnHit         func(key string)
	OnMiss        func(key string)
	OnFallbackHit func(key string)
}

// DefaultLocalMaxEntries bounds the fallback tier when unset.
const DefaultLocalMaxEntries = 4096

// DefaultComputeTimeout bounds a ComputeFunc call when unset.
const DefaultComputeTimeout = 5 * time.Second

// Cache is the resilient read-through cache. Safe for concurrent use.
type Cache struct {
	store    *store.Store
	local    *local
	cfg      Config
	inflight singleflight.Group
}

// New creates a Cache over the shared store adapter.
func New(st *store.Store, cfg Config) (*Cache, error) {
	if cfg.LocalMaxEntries <= 0 {
		cfg.LocalMaxEntries = DefaultLocalMaxEntries
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}
	loc, err := newLocal(cfg.LocalMaxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{store: st, local: loc, cfg: cfg}, nil
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. While the store is unreachable the fallback tier serves stale
// values, and freshly computed values are parked there until the store
// recovers. Concurrent computes for the same key are collapsed into one.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	val, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.hook(c.cfg.OnHit, key)
		return val, nil
	case errors.Is(err, store.ErrKeyAbsent):
		c.hook(c.cfg.OnMiss, key)
	case errors.Is(err, store.ErrUnavailable):
		if v, ok := c.local.get(key); ok {
			c.hook(c.cfg.OnFallbackHit, key)
			return v, nil
		}
		c.hook(c.cfg.OnMiss, key)
	default:
		return nil, err
	}

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		cctx := ctx
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, c.cfg.ComputeTimeout)
			defer cancel()
		}

		val, err := compute(cctx)
		if err != nil {
			return nil, err
		}

		if serr := c.store.Set(ctx, key, val, ttl); serr != nil {
			// Store still down: park the value locally with the same TTL.
			c.local.set(key, val, ttl)
		} else {
			// Remote write succeeded; the remote copy is authoritative again.
			c.local.delete(key)
		}
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

// Put writes a value unconditionally, replacing any prior entry. Used by the
// content refresher; last writer wins.
func (c *Cache) Put(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.store.Set(ctx, key, val, ttl); err != nil {
		c.local.set(key, val, ttl)
		return err
	}
	c.local.delete(key)
	return nil
}

// Invalidate removes a single entry from both tiers. The local tier is
// purged first so no fallback read can observe the doomed value. When the
// store is unreachable the remote delete is reported so the caller can
// retry; the local purge has already happened.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.local.delete(key)
	return c.store.Delete(ctx, key)
}

// InvalidatePrefix removes every entry whose key begins with prefix from
// both tiers and returns the number of remote keys deleted. It only removes,
// never recomputes.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	c.local.deletePrefix(prefix)
	return c.store.DeleteByPrefix(ctx, prefix)
}

// Close releases the fallback tier.
func (c *Cache) Close() {
	c.local.close()
}

func (c *Cache) hook(fn func(string), key string) {
	if fn != nil {
		fn(key)
	}
}
