package cluster

import "sync/atomic"

// Elector is a Listener that computes soft leadership from each
// delivered ClusterState: the leader is the node whose sessionId sorts
// lexicographically lowest, which for UUIDv7 strings also means the
// oldest session. There is no fencing - during a membership transition
// more than one process may briefly believe itself leader.
type Elector struct {
	state atomic.Pointer[leaderState]
}

type leaderState struct {
	isLeader        bool
	leaderSessionID string
}

// NewElector constructs an Elector with no leader.
func NewElector() *Elector {
	e := &Elector{}
	e.state.Store(&leaderState{})
	return e
}

// OnChange implements Listener. Pass it directly as a Node's listener:
// node, err := cluster.NewNode(cfg, coordinator, elector.OnChange, log).
func (e *Elector) OnChange(event ClusterStateChangeEvent) error {
	if len(event.NewState.Nodes) == 0 {
		e.state.Store(&leaderState{})
		return nil
	}

	leader := event.NewState.Nodes[0].SessionID
	for _, node := range event.NewState.Nodes[1:] {
		if node.SessionID < leader {
			leader = node.SessionID
		}
	}

	e.state.Store(&leaderState{
		isLeader:        leader == event.SessionID,
		leaderSessionID: leader,
	})
	return nil
}

// IsLeader reports whether the node driving this Elector currently
// believes itself the leader.
func (e *Elector) IsLeader() bool {
	return e.state.Load().isLeader
}

// LeaderSessionID returns the current leader's session id, and whether
// there is one - false when the last delivered state was empty.
func (e *Elector) LeaderSessionID() (string, bool) {
	s := e.state.Load()
	if s.leaderSessionID == `` {
		return ``, false
	}
	return s.leaderSessionID, true
}
