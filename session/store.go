package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/mindgauge/statecore/store"
)

var (
	// ErrNotFound means no refresh token is persisted for the principal:
	// never issued, already revoked, or expired.
	ErrNotFound = errors.New("refresh session not found")
	// ErrHashMismatch means the presented refresh token is not the current
	// one. Either it was already rotated away or it never belonged to the
	// principal.
	ErrHashMismatch = errors.New("refresh hash mismatch")
)

// Store keeps the per-principal refresh hash in the shared remote store.
// Token state requires the shared store: unavailability surfaces as
// store.ErrUnavailable, there is no local fallback here.
type Store struct {
	store      *store.Store
	keyPrefix  string
	refreshTTL time.Duration
}

// NewStore creates a Store writing under "<keyPrefix>:<principalID>".
func NewStore(st *store.Store, keyPrefix string, refreshTTL time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = "session"
	}
	return &Store{store: st, keyPrefix: keyPrefix, refreshTTL: refreshTTL}
}

// Save persists the refresh hash for the principal, overwriting any prior
// value. This is the overwrite-on-issue side of the rotation invariant.
func (s *Store) Save(ctx context.Context, principalID string, hash [sha256.Size]byte) error {
	return s.store.Set(ctx, s.key(principalID), hash[:], s.refreshTTL)
}

// Rotate atomically replaces the stored hash with next when it currently
// equals presented, extending the lifetime. Exactly one of two concurrent
// rotations presenting the same hash succeeds.
func (s *Store) Rotate(ctx context.Context, principalID string, presented, next [sha256.Size]byte) error {
	res, err := s.store.CompareAndSwap(ctx, s.key(principalID), presented[:], next[:], s.refreshTTL)
	if err != nil {
		return err
	}
	switch res {
	case store.Swapped:
		return nil
	case store.SwapMismatch:
		return ErrHashMismatch
	default:
		return ErrNotFound
	}
}

// Delete revokes the principal's refresh token. Idempotent: deleting an
// absent session is not an error.
func (s *Store) Delete(ctx context.Context, principalID string) error {
	return s.store.Delete(ctx, s.key(principalID))
}

// Exists reports whether the principal currently has a live refresh token.
func (s *Store) Exists(ctx context.Context, principalID string) (bool, error) {
	return s.store.Exists(ctx, s.key(principalID))
}

func (s *Store) key(principalID string) string {
	return s.keyPrefix + ":" + principalID
}
