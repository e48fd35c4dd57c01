// Package cache implements the read-through content cache.
//
// The remote store is authoritative. A bounded in-process fallback tier
// serves entries written during a store outage; it is consulted only while
// the store is unreachable, so the first read after recovery goes back to
// the remote copy. Invalidation removes entries from both tiers and never
// recomputes.
package cache
