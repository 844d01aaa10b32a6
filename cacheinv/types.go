// Package cacheinv implements a distributed cache invalidation bus: a
// registry of bounded local caches, each of which may publish eviction
// intents that propagate to every other process sharing the same
// durable Bus, and apply remote eviction events without re-publishing
// them - the loop-freedom invariant that keeps a cluster of caches from
// echoing the same eviction forever.
package cacheinv

import "time"

// EvictionEvent is one published or observed eviction, identified by
// the cache it applies to and the codec-encoded key that was evicted.
type EvictionEvent struct {
	CacheName  string
	Key        []byte
	RecordedAt time.Time
}
