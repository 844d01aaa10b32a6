package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/anchorware/ward-lifecycle"
	wardlog "github.com/anchorware/ward-log"
	"github.com/google/uuid"
)

// Listener is invoked by a Node's state-delivery loop whenever the
// membership snapshot changes. Returning a *Fatal error marks the node
// unhealthy and stops it; any other error is logged and the loop
// continues.
type Listener func(event ClusterStateChangeEvent) error

// NodeConfig configures a Node.
type NodeConfig struct {
	NodeID            string
	ClusterName       string
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	Metadata          string
}

func (c NodeConfig) validate() error {
	if c.NodeID == `` {
		return errors.New(`cluster: nodeId must not be blank`)
	}
	if c.ClusterName == `` {
		return errors.New(`cluster: clusterName must not be blank`)
	}
	if c.HeartbeatInterval < time.Second {
		return errors.New(`cluster: heartbeatInterval must be >= 1s`)
	}
	if c.HeartbeatTimeout < 3*c.HeartbeatInterval {
		return errors.New(`cluster: heartbeatTimeout must be >= 3x heartbeatInterval`)
	}
	return nil
}

// Node runs the two cooperative background loops - heartbeat and
// state-delivery - that turn a Coordinator into live membership
// observation for one process. It presents level-triggered, latest-only
// delivery to its Listener: the loop compares membership identity
// (clusterName, sessionId) only, never recordedAt or metadata, so a
// quiet heartbeat tick that changes nothing observable never fires the
// listener.
type Node struct {
	cfg         NodeConfig
	coordinator Coordinator
	listener    Listener
	log         wardlog.Logger
	runner      *lifecycle.Runner

	sessionID     atomic.Pointer[string]
	lastSuccessAt atomic.Pointer[time.Time]

	lastKnownState     atomic.Pointer[ClusterState]
	lastKnownSessionID atomic.Pointer[string]
	lastDelivered      atomic.Pointer[ClusterState]

	healthy atomic.Bool
}

// NewNode constructs a Node, generating its initial session id.
func NewNode(cfg NodeConfig, coordinator Coordinator, listener Listener, log wardlog.Logger) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = wardlog.Discard{}
	}

	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf(`cluster: generating initial session id: %w`, err)
	}

	n := &Node{
		cfg:         cfg,
		coordinator: coordinator,
		listener:    listener,
		log:         log,
		runner:      lifecycle.New(log),
	}
	n.healthy.Store(true)

	sid := sessionID.String()
	n.sessionID.Store(&sid)
	now := time.Now()
	n.lastSuccessAt.Store(&now)

	return n, nil
}

// Start begins the heartbeat and state-delivery loops. Idempotent.
func (n *Node) Start() error {
	return n.runner.Start(func(ctx context.Context) error {
		n.runner.RunWhileUp(n.heartbeatTick, n.cfg.HeartbeatInterval)
		n.runner.RunWhileUp(n.deliveryTick, n.cfg.HeartbeatInterval)
		return nil
	})
}

// Stop ends both loops. Idempotent.
func (n *Node) Stop() { n.runner.Stop(nil) }

// Healthy reports false once the node has hit a fatal listener error,
// and true until then. Once false, it stays false - the node will not re-participate without
// external intervention (a fresh Node).
func (n *Node) Healthy() bool { return n.healthy.Load() }

// CurrentState returns the most recently observed membership snapshot,
// or the zero value if the node has not yet heartbeat successfully.
func (n *Node) CurrentState() (ClusterState, bool) {
	p := n.lastKnownState.Load()
	if p == nil {
		return ClusterState{}, false
	}
	return *p, true
}

func (n *Node) heartbeatTick(ctx context.Context) error {
	sessionID := *n.sessionID.Load()

	state, err := n.coordinator.ParticipateAndObserve(ctx, n.cfg.ClusterName, sessionID, n.cfg.Metadata, n.cfg.HeartbeatTimeout)
	if err != nil {
		lastSuccess := *n.lastSuccessAt.Load()
		if time.Since(lastSuccess) >= n.cfg.HeartbeatTimeout {
			newID, genErr := uuid.NewV7()
			if genErr == nil {
				sid := newID.String()
				n.sessionID.Store(&sid)
				now := time.Now()
				n.lastSuccessAt.Store(&now)
				wardlog.WithCluster(n.log, n.cfg.ClusterName, sessionID).Warn(`cluster: heartbeat failing past timeout, rotated session id`)
			}
		}
		return err
	}

	n.lastKnownState.Store(&state)
	localSessionID := sessionID
	n.lastKnownSessionID.Store(&localSessionID)
	now := time.Now()
	n.lastSuccessAt.Store(&now)
	return nil
}

func (n *Node) deliveryTick(_ context.Context) error {
	newState := n.lastKnownState.Load()
	if newState == nil {
		return nil
	}

	oldState := n.lastDelivered.Load()
	if oldState != nil && clusterStatesEqual(*oldState, *newState) {
		return nil
	}

	n.lastDelivered.Store(newState)

	if n.listener == nil {
		return nil
	}

	sessionID := ``
	if sp := n.lastKnownSessionID.Load(); sp != nil {
		sessionID = *sp
	}

	event := ClusterStateChangeEvent{
		ClusterName: n.cfg.ClusterName,
		NodeID:      n.cfg.NodeID,
		SessionID:   sessionID,
		NewState:    *newState,
		OldState:    oldState,
	}

	err := n.invokeListener(event)
	if err == nil {
		return nil
	}

	var fatal *Fatal
	if errors.As(err, &fatal) {
		n.healthy.Store(false)
		wardlog.WithCluster(n.log, n.cfg.ClusterName, sessionID).WithError(err).Error(`cluster: fatal listener error, stopping node`)
		go n.Stop()
		return nil
	}

	wardlog.WithCluster(n.log, n.cfg.ClusterName, sessionID).WithError(err).Warn(`cluster: listener error, continuing`)
	return nil
}

func (n *Node) invokeListener(event ClusterStateChangeEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf(`cluster: listener panicked: %v`, rec)
		}
	}()
	return n.listener(event)
}

// clusterStatesEqual compares two snapshots by node identity only -
// (clusterName, sessionId) - per this package's data model: recordedAt
// and metadata are observational, not identity.
func clusterStatesEqual(a, b ClusterState) bool {
	if a.ClusterName != b.ClusterName || len(a.Nodes) != len(b.Nodes) {
		return false
	}

	set := make(map[string]struct{}, len(a.Nodes))
	for _, node := range a.Nodes {
		set[node.SessionID] = struct{}{}
	}
	for _, node := range b.Nodes {
		if _, ok := set[node.SessionID]; !ok {
			return false
		}
	}
	return true
}
