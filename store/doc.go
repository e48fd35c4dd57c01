// Package store wraps the shared Redis connection behind a bounded-timeout
// adapter with health tracking.
//
// # Failure contract
//
// Every operation either returns a result or fails with [ErrUnavailable]
// within the configured operation timeout. Callers never observe a hang. A
// missing key is [ErrKeyAbsent], never ErrUnavailable.
//
// # Health signal
//
// Consecutive failures trip an internal circuit breaker: while open, calls
// fail fast without touching the network, and the open interval backs off
// exponentially up to a cap. A single probe call is let through when the
// interval elapses; its outcome closes or re-opens the breaker. Availability
// transitions are reported through the OnTransition callback.
//
// # What this package must NOT do
//
//   - Retry operations on the caller's behalf.
//   - Interpret values. Keys and payloads are opaque bytes.
package store
