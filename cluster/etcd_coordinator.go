package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anchorware/ward-codec"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	defaultBucketSpanFactor   = 5
	defaultLeasePaddingFactor = 7
)

// EtcdCoordinator is the alternative Coordinator implementation, for
// deployments without a relational store. Heartbeats live under
// heartbeat/<clusterName>/<sessionId> as lease-attached keys; rather
// than granting and revoking a fresh lease on every heartbeat (the
// naive approach, and a real source of etcd lease churn at scale), it
// reuses one lease across a time bucket spanning BucketSpanFactor
// heartbeat intervals, sized with a TTL of LeasePaddingFactor intervals
// so the lease always outlives its bucket.
type EtcdCoordinator struct {
	Client            *clientv3.Client
	HeartbeatInterval time.Duration
	// BucketSpanFactor and LeasePaddingFactor default to 5 and 7
	// respectively when zero.
	BucketSpanFactor   int
	LeasePaddingFactor int
	// Codec encodes/decodes heartbeat values. Defaults to codec.Text{}.
	Codec codec.Codec

	mu      sync.Mutex
	buckets map[string]*etcdLeaseBucket
}

var _ Coordinator = (*EtcdCoordinator)(nil)

type etcdLeaseBucket struct {
	leaseID   clientv3.LeaseID
	bucketEnd time.Time
}

type heartbeatValue struct {
	SessionID  string
	RecordedAt time.Time
	Metadata   string
}

// NewEtcdCoordinator constructs an EtcdCoordinator over client, bucketing
// leases relative to heartbeatInterval.
func NewEtcdCoordinator(client *clientv3.Client, heartbeatInterval time.Duration) *EtcdCoordinator {
	return &EtcdCoordinator{
		Client:            client,
		HeartbeatInterval: heartbeatInterval,
		buckets:           make(map[string]*etcdLeaseBucket),
	}
}

func (c *EtcdCoordinator) codec() codec.Codec {
	if c.Codec != nil {
		return c.Codec
	}
	return codec.Text{}
}

func (c *EtcdCoordinator) bucketSpanFactor() int {
	if c.BucketSpanFactor > 0 {
		return c.BucketSpanFactor
	}
	return defaultBucketSpanFactor
}

func (c *EtcdCoordinator) leasePaddingFactor() int {
	if c.LeasePaddingFactor > 0 {
		return c.LeasePaddingFactor
	}
	return defaultLeasePaddingFactor
}

// leaseFor returns the lease currently backing bucketKey, granting a
// fresh one (and starting a new bucket) if the current bucket has
// elapsed.
func (c *EtcdCoordinator) leaseFor(ctx context.Context, bucketKey string) (clientv3.LeaseID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if b, ok := c.buckets[bucketKey]; ok && now.Before(b.bucketEnd) {
		return b.leaseID, nil
	}

	ttl := time.Duration(c.leasePaddingFactor()) * c.HeartbeatInterval
	resp, err := c.Client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return 0, err
	}

	c.buckets[bucketKey] = &etcdLeaseBucket{
		leaseID:   resp.ID,
		bucketEnd: now.Add(time.Duration(c.bucketSpanFactor()) * c.HeartbeatInterval),
	}
	return resp.ID, nil
}

func (c *EtcdCoordinator) ParticipateAndObserve(ctx context.Context, clusterName, sessionID, metadata string, heartbeatTimeout time.Duration) (ClusterState, error) {
	now := time.Now().UTC()
	key := fmt.Sprintf(`heartbeat/%s/%s`, clusterName, sessionID)
	bucketKey := clusterName + `/` + sessionID

	leaseID, err := c.leaseFor(ctx, bucketKey)
	if err != nil {
		return ClusterState{}, wrap(err)
	}

	encoded, err := c.codec().Encode(heartbeatValue{SessionID: sessionID, RecordedAt: now, Metadata: metadata})
	if err != nil {
		return ClusterState{}, wrap(err)
	}

	if _, err := c.Client.Put(ctx, key, string(encoded), clientv3.WithLease(leaseID)); err != nil {
		return ClusterState{}, wrap(err)
	}

	prefix := fmt.Sprintf(`heartbeat/%s/`, clusterName)
	resp, err := c.Client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return ClusterState{}, wrap(err)
	}

	cutoff := now.Add(-heartbeatTimeout)
	nodes := make([]ClusterNodeState, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		v, err := codec.DecodeAs[heartbeatValue](c.codec(), kv.Value)
		if err != nil {
			continue
		}
		if v.SessionID == sessionID || !v.RecordedAt.Before(cutoff) {
			nodes = append(nodes, ClusterNodeState{SessionID: v.SessionID, RecordedAt: v.RecordedAt, Metadata: v.Metadata})
		}
	}

	return ClusterState{ClusterName: clusterName, Nodes: nodes}, nil
}
