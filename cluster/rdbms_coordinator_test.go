package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/anchorware/ward-rdbms"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) *RDBMSCoordinator {
	t.Helper()

	db, err := sqlx.Open(`sqlite3`, `:memory:`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`ATTACH DATABASE ':memory:' AS cluster`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE cluster.obj_heartbeat (
		cluster_name TEXT NOT NULL,
		session_id TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		metadata TEXT,
		PRIMARY KEY (cluster_name, session_id)
	)`)
	require.NoError(t, err)

	return &RDBMSCoordinator{Conn: rdbms.New(db, nil), NowExpr: `CURRENT_TIMESTAMP`}
}

func TestRDBMSCoordinator_SelfAlwaysIncluded(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	state, err := c.ParticipateAndObserve(ctx, `testCluster`, `sid-1`, `{}`, time.Hour)
	require.NoError(t, err)
	require.Len(t, state.Nodes, 1)
	require.Equal(t, `sid-1`, state.Nodes[0].SessionID)
}

func TestRDBMSCoordinator_PeerIncludedWithinTimeout(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.ParticipateAndObserve(ctx, `testCluster`, `sid-1`, `{}`, time.Hour)
	require.NoError(t, err)

	state, err := c.ParticipateAndObserve(ctx, `testCluster`, `sid-2`, `{}`, time.Hour)
	require.NoError(t, err)
	require.Len(t, state.Nodes, 2)
}

func TestRDBMSCoordinator_PeerExcludedPastTimeout(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.ParticipateAndObserve(ctx, `testCluster`, `sid-1`, `{}`, time.Hour)
	require.NoError(t, err)

	// Simulate sid-1 going stale: push its recorded_at far into the past.
	_, err = c.Conn.DB.Exec(`UPDATE cluster.obj_heartbeat SET recorded_at = datetime('now', '-2 hours') WHERE session_id = ?`, `sid-1`)
	require.NoError(t, err)

	state, err := c.ParticipateAndObserve(ctx, `testCluster`, `sid-2`, `{}`, time.Hour)
	require.NoError(t, err)
	require.Len(t, state.Nodes, 1)
	require.Equal(t, `sid-2`, state.Nodes[0].SessionID)
}
