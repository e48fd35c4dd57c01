package cache

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// local is the bounded fallback tier backed by ristretto. It is provisional,
// never authoritative: entries are read only while the remote store is down,
// and invalidation purges them regardless of store health.
//
// Ristretto cannot enumerate its contents, so a side registry of live keys is
// kept for prefix purges. The registry is pruned lazily when it outgrows the
// entry bound.
type local struct {
	rc *ristretto.Cache[string, []byte]

	mu         sync.Mutex
	expiries   map[string]time.Time
	maxEntries int
	nowFunc    func() time.Time
}

func newLocal(maxEntries int) (*local, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &local{
		rc:         rc,
		expiries:   make(map[string]time.Time),
		maxEntries: maxEntries,
		nowFunc:    time.Now,
	}, nil
}

func (l *local) get(key string) ([]byte, bool) {
	l.mu.Lock()
	exp, tracked := l.expiries[key]
	now := l.nowFunc()
	if tracked && now.After(exp) {
		delete(l.expiries, key)
		tracked = false
	}
	l.mu.Unlock()
	if !tracked {
		l.rc.Del(key)
		return nil, false
	}

	v, ok := l.rc.Get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

func (l *local) set(key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	l.mu.Lock()
	l.expiries[key] = l.nowFunc().Add(ttl)
	if len(l.expiries) > l.maxEntries {
		l.prune()
	}
	l.mu.Unlock()

	l.rc.SetWithTTL(key, bytes.Clone(val), 1, ttl)
	l.rc.Wait()
}

func (l *local) delete(key string) {
	l.mu.Lock()
	delete(l.expiries, key)
	l.mu.Unlock()
	l.rc.Del(key)
}

func (l *local) deletePrefix(prefix string) {
	l.mu.Lock()
	var victims []string
	for key := range l.expiries {
		if strings.HasPrefix(key, prefix) {
			victims = append(victims, key)
			delete(l.expiries, key)
		}
	}
	l.mu.Unlock()

	for _, key := range victims {
		l.rc.Del(key)
	}
}

// prune drops expired registry entries; callers hold l.mu.
func (l *local) prune() {
	now := l.nowFunc()
	for key, exp := range l.expiries {
		if now.After(exp) {
			delete(l.expiries, key)
		}
	}
}

func (l *local) close() {
	l.rc.Close()
}
