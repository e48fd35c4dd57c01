package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mindgauge/statecore/store"
)

func newTestSessions(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(store.New(rdb, store.Config{}), "session", ttl), mr
}

func TestSaveAndRotate(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()

	first := HashToken("token-1")
	second := HashToken("token-2")

	if err := s.Save(ctx, "alice", first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ok, _ := s.Exists(ctx, "alice"); !ok {
		t.Fatal("session absent after Save")
	}

	if err := s.Rotate(ctx, "alice", first, second); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	// The rotated-away hash is spent; presenting it again must fail.
	if err := s.Rotate(ctx, "alice", first, HashToken("token-3")); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("replayed rotation: got %v, want ErrHashMismatch", err)
	}

	// The new hash rotates fine.
	if err := s.Rotate(ctx, "alice", second, HashToken("token-3")); err != nil {
		t.Fatalf("Rotate with current hash failed: %v", err)
	}
}

func TestRotateUnknownPrincipal(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)

	err := s.Rotate(context.Background(), "ghost", HashToken("a"), HashToken("b"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()

	old := HashToken("old")
	if err := s.Save(ctx, "alice", old); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	fresh := HashToken("fresh")
	if err := s.Save(ctx, "alice", fresh); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	if err := s.Rotate(ctx, "alice", old, HashToken("next")); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("overwritten hash still rotates: %v", err)
	}
	if err := s.Rotate(ctx, "alice", fresh, HashToken("next")); err != nil {
		t.Fatalf("current hash does not rotate: %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()

	if err := s.Save(ctx, "alice", HashToken("t")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := s.Exists(ctx, "alice"); ok {
		t.Fatal("session survived Delete")
	}
	if err := s.Delete(ctx, "alice"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	s, mr := newTestSessions(t, time.Hour)
	ctx := context.Background()

	h := HashToken("t")
	if err := s.Save(ctx, "alice", h); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if err := s.Rotate(ctx, "alice", h, HashToken("next")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session: got %v, want ErrNotFound", err)
	}
}

func TestRotateExtendsLifetime(t *testing.T) {
	s, mr := newTestSessions(t, time.Hour)
	ctx := context.Background()

	first := HashToken("t1")
	if err := s.Save(ctx, "alice", first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(50 * time.Minute)

	second := HashToken("t2")
	if err := s.Rotate(ctx, "alice", first, second); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	// The rotation reset the clock; the session outlives the original expiry.
	mr.FastForward(50 * time.Minute)
	if ok, _ := s.Exists(ctx, "alice"); !ok {
		t.Fatal("session expired despite rotation")
	}
}

func TestConcurrentRotationSingleWinner(t *testing.T) {
	s, _ := newTestSessions(t, time.Hour)
	ctx := context.Background()

	presented := HashToken("contested")
	if err := s.Save(ctx, "alice", presented); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := HashToken("next-" + string(rune('a'+i)))
			errs[i] = s.Rotate(ctx, "alice", presented, next)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrHashMismatch):
			lost++
		default:
			t.Fatalf("worker %d: unexpected error %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("%d rotations won, want exactly 1", won)
	}
	if lost != workers-1 {
		t.Fatalf("%d rotations lost, want %d", lost, workers-1)
	}
}

func TestTokenGeneration(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if a == b {
		t.Fatal("two tokens collided")
	}
	// 32 bytes of entropy, base64url without padding.
	if len(a) != 43 {
		t.Fatalf("token length %d, want 43", len(a))
	}
	if HashToken(a) == HashToken(b) {
		t.Fatal("distinct tokens hash identically")
	}
}
