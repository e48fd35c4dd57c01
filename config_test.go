package statecore

import (
	"testing"
	"time"

	"github.com/mindgauge/statecore/ratelimit"
)

func TestBuildRequiresSigningKey(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := DefaultConfig()
	cfg.Tokens.SigningMethod = "hs256"
	// No key material: contract violation, must abort startup.

	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("Build succeeded without signing key")
	}
}

func TestBuildRequiresRedis(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("Build succeeded without a Redis client")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	b := New().WithConfig(testConfig()).WithRedis(rdb)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build on same builder succeeded")
	}
}

func TestBuildRejectsInvalidCategory(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.RateLimit.Categories["broken"] = ratelimit.Category{Ceiling: 0, Window: time.Minute}

	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("Build accepted a zero-ceiling category")
	}
}

func TestConfigCloneDoesNotAlias(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)

	cfg.RateLimit.Categories["general"] = ratelimit.Category{Ceiling: 1, Window: time.Second}
	cfg.Tokens.PrivateKey[0] = 'X'

	if clone.RateLimit.Categories["general"].Ceiling == 1 {
		t.Fatal("category map aliased after clone")
	}
	if clone.Tokens.PrivateKey[0] == 'X' {
		t.Fatal("key material aliased after clone")
	}
}

func TestDefaultConfigCategories(t *testing.T) {
	cfg := DefaultConfig()

	general, ok := cfg.RateLimit.Categories["general"]
	if !ok || general.Ceiling != 100 || general.Window != time.Minute {
		t.Fatalf("unexpected general category %+v", general)
	}
	auth, ok := cfg.RateLimit.Categories["auth"]
	if !ok || auth.Ceiling != 10 || auth.Window != time.Minute {
		t.Fatalf("unexpected auth category %+v", auth)
	}
	if cfg.Tokens.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access TTL %v", cfg.Tokens.AccessTTL)
	}
	if cfg.Tokens.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh TTL %v", cfg.Tokens.RefreshTTL)
	}
}
