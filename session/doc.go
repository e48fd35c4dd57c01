// Package session persists the current refresh token per principal.
//
// # Rotation invariant
//
// At most one refresh token is live per principal. Issuing overwrites the
// stored hash unconditionally; refreshing swaps it with an atomic
// compare-and-swap, so of two concurrent refreshes presenting the same token
// exactly one wins and the loser is denied.
//
// # What this package must NOT do
//
//   - Store refresh tokens in plaintext. Only the SHA-256 hash is persisted.
//   - Decide authentication outcomes. It reports mismatch/absence; policy
//     lives in the engine.
package session
