package statecore

import "sync/atomic"

// MetricID identifies one counter in the in-process registry.
type MetricID uint16

const (
	// MetricTokenIssued counts successful Issue calls.
	MetricTokenIssued MetricID = iota
	// MetricTokenRefreshed counts successful rotations.
	MetricTokenRefreshed
	// MetricRefreshDenied counts rejected refresh attempts.
	MetricRefreshDenied
	// MetricTokenRevoked counts Revoke calls.
	MetricTokenRevoked
	// MetricValidateDenied counts access tokens rejected by Validate.
	MetricValidateDenied
	// MetricRateAllowed counts admitted requests.
	MetricRateAllowed
	// MetricRateDenied counts rejected requests.
	MetricRateDenied
	// MetricRateFallback counts decisions served by the in-process counter.
	MetricRateFallback
	// MetricCacheHit counts remote cache hits.
	MetricCacheHit
	// MetricCacheMiss counts cache misses that invoked the compute function.
	MetricCacheMiss
	// MetricCacheFallbackHit counts stale reads served by the local tier.
	MetricCacheFallbackHit
	// MetricCacheInvalidated counts invalidation calls.
	MetricCacheInvalidated
	// MetricStoreDown counts healthy-to-unavailable transitions.
	MetricStoreDown
	// MetricStoreUp counts unavailable-to-healthy transitions.
	MetricStoreUp
	// MetricContentRefreshed counts successful scheduler refreshes.
	MetricContentRefreshed
	// MetricContentRefreshFailed counts failed or empty fetches.
	MetricContentRefreshFailed

	metricCount
)

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Metrics is a fixed-size atomic counter registry. All methods are safe for
// concurrent use; Inc is a single atomic add.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc increments a counter. No-op on a nil registry.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
