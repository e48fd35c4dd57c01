package statecore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mindgauge/statecore/cache"
	"github.com/mindgauge/statecore/ratelimit"
	"github.com/mindgauge/statecore/refresher"
	"github.com/mindgauge/statecore/session"
	"github.com/mindgauge/statecore/store"
	"github.com/mindgauge/statecore/token"
)

// Builder assembles an [Engine]. Construction is allocation-only until
// Build; no I/O happens before the first Engine call.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	source    refresher.Source
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared Redis client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithContentSource sets the external content source and enables the
// background refresh scheduler.
func (b *Builder) WithContentSource(source refresher.Source) *Builder {
	b.source = source
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger for background noise. Defaults to
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles the counter registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the components, and starts the
// background workers (audit dispatcher, content refresher). A missing
// signing key is a contract violation and fails here; nothing else aborts
// startup.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:  b.config,
		logger:  logger,
		metrics: newMetrics(b.config.Metrics),
	}
	e.audit = newAuditDispatcher(b.config.Audit, b.auditSink)

	e.store = store.New(b.redis, store.Config{
		OpTimeout:               b.config.Store.OpTimeout,
		BreakerFailureThreshold: b.config.Store.BreakerFailureThreshold,
		BreakerOpenInterval:     b.config.Store.BreakerOpenInterval,
		BreakerMaxOpenInterval:  b.config.Store.BreakerMaxOpenInterval,
		ScanBatch:               b.config.Store.ScanBatch,
		OnTransition:            e.onStoreTransition,
	})

	tokenManager, err := token.NewManager(token.Config{
		AccessTTL:     b.config.Tokens.AccessTTL,
		SigningMethod: token.SigningMethod(b.config.Tokens.SigningMethod),
		PrivateKey:    b.config.Tokens.PrivateKey,
		PublicKey:     b.config.Tokens.PublicKey,
		Issuer:        b.config.Tokens.Issuer,
		Audience:      b.config.Tokens.Audience,
		Leeway:        b.config.Tokens.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}
	e.tokens = tokenManager

	e.sessions = session.NewStore(e.store, b.config.Session.KeyPrefix, b.config.Tokens.RefreshTTL)

	e.cache, err = cache.New(e.store, cache.Config{
		LocalMaxEntries: b.config.Cache.LocalMaxEntries,
		ComputeTimeout:  b.config.Cache.ComputeTimeout,
		OnHit:           func(string) { e.metrics.Inc(MetricCacheHit) },
		OnMiss:          func(string) { e.metrics.Inc(MetricCacheMiss) },
		OnFallbackHit:   func(string) { e.metrics.Inc(MetricCacheFallbackHit) },
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	e.limiter = ratelimit.New(e.store, ratelimit.Config{
		Categories: b.config.RateLimit.Categories,
		KeyPrefix:  b.config.RateLimit.KeyPrefix,
		OnAllow:    func(string, string) { e.metrics.Inc(MetricRateAllowed) },
		OnDeny:     e.onRateDeny,
		OnFallback: func(string, string) { e.metrics.Inc(MetricRateFallback) },
	})

	if b.source != nil {
		e.refresher = refresher.New(e.cache, b.source, refresher.Config{
			Interval:     b.config.Refresh.Interval,
			FetchTimeout: b.config.Refresh.FetchTimeout,
			EntryTTL:     b.config.Refresh.EntryTTL,
			Categories:   b.config.Refresh.Categories,
			OnResult:     e.onRefreshResult,
			Logger:       logger,
		})
		e.refresher.Start()
	}

	b.built = true
	return e, nil
}
