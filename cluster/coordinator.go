package cluster

import (
	"context"
	"time"
)

// Coordinator is the durable store backing cluster membership. A
// single call does both: record the caller's heartbeat, and return the
// resulting live-membership snapshot, atomically at the store.
type Coordinator interface {
	// ParticipateAndObserve upserts (clusterName, sessionId) with the
	// store's current time and the given metadata, then returns that
	// row plus every other row in clusterName whose last-recorded time
	// is within heartbeatTimeout of the caller's own heartbeat instant.
	// The caller's own row is always present in the result.
	ParticipateAndObserve(ctx context.Context, clusterName, sessionID, metadata string, heartbeatTimeout time.Duration) (ClusterState, error)
}
