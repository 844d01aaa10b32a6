package cacheinv

import (
	"context"
	"time"
)

// Bus is the durable transport a CacheManager uses to fan eviction
// events out to every process sharing a cache population. Implementations
// must give pollEvents results strictly after sinceTimestamp, in
// ascending recordedAt order, and now must return the store's own
// clock - callers seed their poll cursor from it, never a local clock,
// since clock skew between processes would otherwise let events slip
// past a cursor seeded too early or too late.
type Bus interface {
	PublishEviction(ctx context.Context, events []EvictionEvent) error
	PollEvents(ctx context.Context, cacheNames []string, since time.Time) ([]EvictionEvent, error)
	Now(ctx context.Context) (time.Time, error)
}
