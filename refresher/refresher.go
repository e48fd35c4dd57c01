// Package refresher re-primes the content cache from the external source on
// a repeating timer, independent of request volume.
package refresher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mindgauge/statecore/cache"
)

// ErrEmptyContent is reported when the source returns success with an empty
// payload. The cached entry is left untouched: stale beats empty.
var ErrEmptyContent = errors.New("content source returned empty result")

// Source fetches content for a category from the external system.
type Source interface {
	Fetch(ctx context.Context, category string) ([]byte, error)
}

// Config tunes the refresher.
type Config struct {
	// Interval between scheduled runs.
	Interval time.Duration
	// FetchTimeout bounds a single Source.Fetch call.
	FetchTimeout time.Duration
	// EntryTTL is the cache TTL written with each refreshed entry.
	EntryTTL time.Duration
	// Categories are the content categories to refresh each tick.
	Categories []string
	// OnResult, if set, observes the outcome of each category refresh.
	OnResult func(category string, err error)
	// Logger for background noise. Nil means slog.Default().
	Logger *slog.Logger
}

const (
	defaultInterval     = 5 * time.Minute
	defaultFetchTimeout = 10 * time.Second
	defaultEntryTTL     = time.Hour
)

// Refresher runs the background re-priming loop. Start launches the loop;
// Close stops it and waits for it to drain.
type Refresher struct {
	cache  *cache.Cache
	source Source
	cfg    Config
	log    *slog.Logger

	trigger   chan string
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a Refresher. It does not start the loop.
func New(c *cache.Cache, source Source, cfg Config) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = defaultEntryTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cache:   c,
		source:  source,
		cfg:     cfg,
		log:     logger,
		trigger: make(chan string, 16),
		done:    make(chan struct{}),
	}
}

// Start launches the background loop. Subsequent calls are no-ops.
func (r *Refresher) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
}

// TriggerNow schedules an immediate refresh of one category without waiting
// for the next tick. Non-blocking; a full trigger queue drops the request
// since a scheduled run will cover it.
func (r *Refresher) TriggerNow(category string) {
	select {
	case r.trigger <- category:
	case <-r.done:
	default:
	}
}

// Close stops the loop and waits for any in-flight refresh to finish.
func (r *Refresher) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Refresher) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshAll()
		case category := <-r.trigger:
			r.refreshOne(category)
		case <-r.done:
			return
		}
	}
}

func (r *Refresher) refreshAll() {
	for _, category := range r.cfg.Categories {
		select {
		case <-r.done:
			return
		default:
		}
		r.refreshOne(category)
	}
}

// refreshOne fetches one category and overwrites the cache entry on success.
// Concurrent scheduled and manual runs for the same category may race; the
// entries are idempotent snapshots, so last writer wins.
func (r *Refresher) refreshOne(category string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
	defer cancel()

	content, err := r.source.Fetch(ctx, category)
	if err == nil && len(content) == 0 {
		err = ErrEmptyContent
	}
	if err != nil {
		// Failed fetch leaves the existing entry untouched.
		r.log.Warn("content refresh failed", "category", category, "error", err)
		r.emit(category, err)
		return
	}

	if err := r.cache.Put(ctx, category, content, r.cfg.EntryTTL); err != nil {
		// Parked in the local fallback; the store write lands on a later run.
		r.log.Warn("content refresh stored locally only", "category", category, "error", err)
	}
	r.emit(category, nil)
}

func (r *Refresher) emit(category string, err error) {
	if r.cfg.OnResult != nil {
		r.cfg.OnResult(category, err)
	}
}
