package internaldefs

import (
	statecore "github.com/mindgauge/statecore"
)

// CounterDef binds a metric ID to its exported name and help text.
type CounterDef struct {
	ID   statecore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: statecore.MetricTokenIssued, Name: "statecore_token_issued_total", Help: "Issued token pairs."},
	{ID: statecore.MetricTokenRefreshed, Name: "statecore_token_refreshed_total", Help: "Successful refresh rotations."},
	{ID: statecore.MetricRefreshDenied, Name: "statecore_refresh_denied_total", Help: "Rejected refresh attempts."},
	{ID: statecore.MetricTokenRevoked, Name: "statecore_token_revoked_total", Help: "Revoked refresh sessions."},
	{ID: statecore.MetricValidateDenied, Name: "statecore_validate_denied_total", Help: "Access tokens rejected by validation."},
	{ID: statecore.MetricRateAllowed, Name: "statecore_rate_allowed_total", Help: "Admitted rate-limit checks."},
	{ID: statecore.MetricRateDenied, Name: "statecore_rate_denied_total", Help: "Denied rate-limit checks."},
	{ID: statecore.MetricRateFallback, Name: "statecore_rate_fallback_total", Help: "Rate decisions served by the in-process fallback counter."},
	{ID: statecore.MetricCacheHit, Name: "statecore_cache_hit_total", Help: "Remote cache hits."},
	{ID: statecore.MetricCacheMiss, Name: "statecore_cache_miss_total", Help: "Cache misses that invoked the compute function."},
	{ID: statecore.MetricCacheFallbackHit, Name: "statecore_cache_fallback_hit_total", Help: "Stale reads served by the local fallback tier."},
	{ID: statecore.MetricCacheInvalidated, Name: "statecore_cache_invalidated_total", Help: "Cache invalidation calls."},
	{ID: statecore.MetricStoreDown, Name: "statecore_store_down_total", Help: "Store transitions from healthy to unavailable."},
	{ID: statecore.MetricStoreUp, Name: "statecore_store_up_total", Help: "Store transitions from unavailable back to healthy."},
	{ID: statecore.MetricContentRefreshed, Name: "statecore_content_refreshed_total", Help: "Successful background content refreshes."},
	{ID: statecore.MetricContentRefreshFailed, Name: "statecore_content_refresh_failed_total", Help: "Failed or empty background content fetches."},
}
