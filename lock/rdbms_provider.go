package lock

import (
	"context"
	"database/sql"
	"time"

	"github.com/anchorware/ward-rdbms"
	"github.com/jmoiron/sqlx"
)

// renewBatchSize bounds how many leases are renewed in a single
// round-trip group, per lock.obj_lock_lease's expected cardinality.
const renewBatchSize = 100

// RDBMSProvider is the reference relational Provider implementation,
// against the lock.obj_lock_lease table.
type RDBMSProvider struct {
	Conn *rdbms.Conn
}

var _ Provider = (*RDBMSProvider)(nil)

// NewRDBMSProvider wraps conn for use as a Provider.
func NewRDBMSProvider(conn *rdbms.Conn) *RDBMSProvider {
	return &RDBMSProvider{Conn: conn}
}

type leaseRow struct {
	LockName    string    `db:"lock_name"`
	ExecutionID string    `db:"execution_id"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func (p *RDBMSProvider) Acquire(ctx context.Context, lockName, executionID string, leaseDuration time.Duration) (*Lease, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(leaseDuration)

	query := p.Conn.DB.Rebind(`
		INSERT INTO lock.obj_lock_lease (lock_name, execution_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (lock_name) DO UPDATE
			SET execution_id = EXCLUDED.execution_id, expires_at = EXCLUDED.expires_at
			WHERE obj_lock_lease.expires_at <= ?
		RETURNING lock_name, execution_id, expires_at
	`)

	var row leaseRow
	err := p.Conn.DB.GetContext(ctx, &row, query, lockName, executionID, expiresAt, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}

	return &Lease{LockName: row.LockName, ExecutionID: row.ExecutionID, ExpiresAt: row.ExpiresAt}, nil
}

func (p *RDBMSProvider) Renew(ctx context.Context, leases []Lease, leaseDuration time.Duration) ([]Lease, error) {
	if len(leases) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	newExpiry := now.Add(leaseDuration)
	query := p.Conn.DB.Rebind(`UPDATE lock.obj_lock_lease SET expires_at = ? WHERE lock_name = ? AND execution_id = ? AND expires_at > ?`)

	var renewed []Lease
	_, err := rdbms.ExecuteAndReturn(ctx, p.Conn, false, func(ctx context.Context, ext rdbms.Execer) (struct{}, error) {
		for _, part := range rdbms.Partition(leases, renewBatchSize) {
			_, err := rdbms.ExecuteBatch(ctx, p.Conn, ext, query, len(part), part,
				func(ctx context.Context, stmt *sqlx.Stmt, l Lease) (bool, int64, error) {
					res, err := stmt.ExecContext(ctx, newExpiry, l.LockName, l.ExecutionID, now)
					if err != nil {
						return false, 0, err
					}
					n, err := res.RowsAffected()
					if err != nil {
						return false, 0, err
					}
					if n == 0 {
						return false, 0, nil
					}
					renewed = append(renewed, Lease{LockName: l.LockName, ExecutionID: l.ExecutionID, ExpiresAt: newExpiry})
					return true, n, nil
				})
			if err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	return renewed, nil
}

func (p *RDBMSProvider) Release(ctx context.Context, leases []Lease) error {
	if len(leases) == 0 {
		return nil
	}

	query := p.Conn.DB.Rebind(`DELETE FROM lock.obj_lock_lease WHERE lock_name = ? AND execution_id = ?`)

	_, err := rdbms.ExecuteAndReturn(ctx, p.Conn, false, func(ctx context.Context, ext rdbms.Execer) (struct{}, error) {
		for _, part := range rdbms.Partition(leases, renewBatchSize) {
			_, err := rdbms.ExecuteBatch(ctx, p.Conn, ext, query, len(part), part,
				func(ctx context.Context, stmt *sqlx.Stmt, l Lease) (bool, int64, error) {
					res, err := stmt.ExecContext(ctx, l.LockName, l.ExecutionID)
					if err != nil {
						return false, 0, err
					}
					n, err := res.RowsAffected()
					return true, n, err
				})
			if err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}
