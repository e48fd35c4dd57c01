package statecore

import (
	"errors"
	"fmt"
	"time"

	"github.com/mindgauge/statecore/ratelimit"
	"github.com/mindgauge/statecore/token"
)

// Config is the full configuration of the state layer. Zero fields are
// filled with defaults by [Builder.Build]; construct via [DefaultConfig] and
// override what you need.
type Config struct {
	Tokens    TokenConfig
	Session   SessionConfig
	Store     StoreConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Refresh   RefreshConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls signing of access tokens and the refresh lifetime.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	// Leeway is the accepted clock skew on validity-window checks.
	Leeway time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh-token persistence.
type SessionConfig struct {
	// KeyPrefix namespaces the per-principal refresh keys. Default "session".
	KeyPrefix string
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig tunes the remote store adapter.
type StoreConfig struct {
	OpTimeout               time.Duration
	BreakerFailureThreshold int
	BreakerOpenInterval     time.Duration
	BreakerMaxOpenInterval  time.Duration
	ScanBatch               int64
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig tunes the resilient cache.
type CacheConfig struct {
	LocalMaxEntries int
	ComputeTimeout  time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds the admission budgets per category.
type RateLimitConfig struct {
	// Categories maps category name to ceiling and window. Defaults:
	// "general" 100/min, "auth" 10/min.
	Categories map[string]ratelimit.Category
	// KeyPrefix namespaces the counters. Default "rl".
	KeyPrefix string
}

/*
====================================
CONTENT REFRESH CONFIG
====================================
*/

// RefreshConfig controls the background content refresher. The refresher
// only runs when a content source is supplied via [Builder.WithContentSource].
type RefreshConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	EntryTTL     time.Duration
	Categories   []string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events under backpressure instead of blocking the
	// request path. Dropped counts are observable via AuditDropped.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counter registry.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 15 minute access tokens,
// 7 day refresh tokens, "general" and "auth" rate categories.
func DefaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(token.MethodEd25519),
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			KeyPrefix: "session",
		},
		Store: StoreConfig{
			OpTimeout:               500 * time.Millisecond,
			BreakerFailureThreshold: 5,
			BreakerOpenInterval:     2 * time.Second,
			BreakerMaxOpenInterval:  30 * time.Second,
			ScanBatch:               256,
		},
		Cache: CacheConfig{
			LocalMaxEntries: 4096,
			ComputeTimeout:  5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Categories: map[string]ratelimit.Category{
				"general": {Ceiling: 100, Window: time.Minute},
				"auth":    {Ceiling: 10, Window: time.Minute},
			},
			KeyPrefix: "rl",
		},
		Refresh: RefreshConfig{
			Interval:     5 * time.Minute,
			FetchTimeout: 10 * time.Second,
			EntryTTL:     time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Tokens.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	if cfg.Tokens.RefreshTTL <= cfg.Tokens.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.Tokens.PrivateKey) == 0 {
		return errors.New("signing key material is required")
	}
	for name, cat := range cfg.RateLimit.Categories {
		if cat.Ceiling <= 0 {
			return fmt.Errorf("rate category %q: ceiling must be positive", name)
		}
		if cat.Window <= 0 {
			return fmt.Errorf("rate category %q: window must be positive", name)
		}
	}
	return nil
}

// cloneConfig copies the mutable parts so a Builder caller cannot alias
// internal state after Build.
func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.RateLimit.Categories != nil {
		out.RateLimit.Categories = make(map[string]ratelimit.Category, len(cfg.RateLimit.Categories))
		for k, v := range cfg.RateLimit.Categories {
			out.RateLimit.Categories[k] = v
		}
	}
	out.Refresh.Categories = append([]string(nil), cfg.Refresh.Categories...)
	out.Tokens.PrivateKey = append([]byte(nil), cfg.Tokens.PrivateKey...)
	out.Tokens.PublicKey = append([]byte(nil), cfg.Tokens.PublicKey...)
	return out
}
