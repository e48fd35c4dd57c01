// Package ratelimit enforces fixed-window request quotas per (identity,
// category) pair using the shared store's atomic increment.
//
// The counter lives in the remote store so a ceiling breach rejects further
// admissions cluster-wide within the window. When the store is unreachable
// the limiter degrades to an in-process fixed-window counter: best effort,
// reset on restart, not shared across replicas. Availability over strictness.
package ratelimit
