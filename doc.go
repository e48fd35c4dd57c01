// Package statecore is the resilient distributed state layer of the
// MindGauge cognitive-testing backend: paired session tokens with rotation,
// per-client request quotas over a shared Redis store, and an invalidatable
// read-through cache for externally sourced test content.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Degraded mode
//
// Every component keeps operating when Redis is unreachable. The cache
// serves a bounded local fallback tier, the rate limiter degrades to an
// in-process counter, and the refresh scheduler parks content locally.
// Only refresh-token state refuses to degrade: issuing and rotating tokens
// requires the shared store, so those operations fail with
// [ErrStoreUnavailable] instead of silently weakening replay protection.
//
// # Architecture boundaries
//
// statecore is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors, and value types. Mechanism lives in the subpackages
// (store, cache, ratelimit, session, token, refresher); the Engine owns
// policy, metrics, and audit.
package statecore
