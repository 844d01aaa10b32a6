package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/anchorware/ward-rdbms"
)

// RDBMSCoordinator is the reference relational Coordinator
// implementation, against the cluster.obj_heartbeat table. The upsert
// and the peer snapshot are run inside a single database transaction,
// so the whole operation is atomic at the store even though it is
// expressed as two statements rather than one CTE - interval
// arithmetic syntax is not portable across the dialects this package
// is tested against (PostgreSQL in production, SQLite in tests), so
// the liveness cutoff is instead computed in Go from the just-upserted
// row's own recorded_at, preserving the same "evaluated at the
// caller's heartbeat instant" semantics.
type RDBMSCoordinator struct {
	Conn *rdbms.Conn
	// NowExpr is the SQL expression used to stamp recorded_at on
	// upsert - the store's own clock, never the caller's. Defaults to
	// "now()" (PostgreSQL); set to "CURRENT_TIMESTAMP" for SQLite.
	NowExpr string
}

var _ Coordinator = (*RDBMSCoordinator)(nil)

func (c *RDBMSCoordinator) nowExpr() string {
	if c.NowExpr != `` {
		return c.NowExpr
	}
	return `now()`
}

type heartbeatRow struct {
	ClusterName string    `db:"cluster_name"`
	SessionID   string    `db:"session_id"`
	RecordedAt  time.Time `db:"recorded_at"`
	Metadata    string    `db:"metadata"`
}

func (c *RDBMSCoordinator) ParticipateAndObserve(ctx context.Context, clusterName, sessionID, metadata string, heartbeatTimeout time.Duration) (ClusterState, error) {
	state, err := rdbms.ExecuteAndReturn(ctx, c.Conn, false, func(ctx context.Context, ext rdbms.Execer) (ClusterState, error) {
		upsertQuery := ext.Rebind(fmt.Sprintf(`
			INSERT INTO cluster.obj_heartbeat (cluster_name, session_id, recorded_at, metadata)
			VALUES (?, ?, %s, ?)
			ON CONFLICT (cluster_name, session_id) DO UPDATE
				SET recorded_at = EXCLUDED.recorded_at, metadata = EXCLUDED.metadata
			RETURNING cluster_name, session_id, recorded_at, metadata
		`, c.nowExpr()))

		selfRows, err := ext.QueryxContext(ctx, upsertQuery, clusterName, sessionID, metadata)
		if err != nil {
			return ClusterState{}, err
		}
		var self heartbeatRow
		if selfRows.Next() {
			if err := selfRows.StructScan(&self); err != nil {
				_ = selfRows.Close()
				return ClusterState{}, err
			}
		}
		if err := selfRows.Close(); err != nil {
			return ClusterState{}, err
		}

		peerQuery := ext.Rebind(`
			SELECT cluster_name, session_id, recorded_at, metadata
			FROM cluster.obj_heartbeat
			WHERE cluster_name = ? AND session_id <> ? AND recorded_at >= ?
		`)
		cutoff := self.RecordedAt.Add(-heartbeatTimeout)

		peerRows, err := ext.QueryxContext(ctx, peerQuery, clusterName, sessionID, cutoff)
		if err != nil {
			return ClusterState{}, err
		}
		defer peerRows.Close()

		nodes := []ClusterNodeState{{SessionID: self.SessionID, RecordedAt: self.RecordedAt, Metadata: self.Metadata}}
		for peerRows.Next() {
			var p heartbeatRow
			if err := peerRows.StructScan(&p); err != nil {
				return ClusterState{}, err
			}
			nodes = append(nodes, ClusterNodeState{SessionID: p.SessionID, RecordedAt: p.RecordedAt, Metadata: p.Metadata})
		}
		if err := peerRows.Err(); err != nil {
			return ClusterState{}, err
		}

		return ClusterState{ClusterName: clusterName, Nodes: nodes}, nil
	})
	if err != nil {
		return ClusterState{}, wrap(err)
	}
	return state, nil
}
