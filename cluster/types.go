// Package cluster implements heartbeat-based membership and
// lexicographic leader election on top of it. A Node repeatedly
// upserts its own heartbeat through a Coordinator and receives back a
// snapshot of every other live node in the cluster; a state-delivery
// loop diffs that snapshot against the last one delivered and invokes
// a listener only when it changed. Leadership is a pure function of
// the current snapshot, recomputed by the Elector on every delivery -
// there is no fencing and no quorum, so transient double leadership
// during membership changes is expected, not a bug.
package cluster

import "time"

// ClusterNodeState is one node's observed heartbeat row. Two
// ClusterNodeState values are considered the same node iff their
// SessionID matches; RecordedAt and Metadata are observational.
type ClusterNodeState struct {
	SessionID  string
	RecordedAt time.Time
	Metadata   string
}

// ClusterState is a membership snapshot for one cluster, as returned
// by Coordinator.ParticipateAndObserve.
type ClusterState struct {
	ClusterName string
	Nodes       []ClusterNodeState
}

// ClusterStateChangeEvent is delivered to a Node's listener whenever
// the state-delivery loop observes a change from the last state it
// delivered.
type ClusterStateChangeEvent struct {
	ClusterName string
	NodeID      string
	SessionID   string
	NewState    ClusterState
	OldState    *ClusterState
}
