package cacheinv

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anchorware/ward-rdbms"
	"github.com/jmoiron/sqlx"
)

// inClauseBatchSize bounds how many cache names go into a single IN(...)
// clause per round trip when polling across a multi-cache registry.
const inClauseBatchSize = 100

// RDBMSBus is the reference relational Bus implementation, against the
// cache_inv_bus.obj_evict_event table.
type RDBMSBus struct {
	Conn *rdbms.Conn
	// NowExpr is the SQL expression evaluated for Now and for stamping
	// recorded_at on publish - the store's own clock. Defaults to
	// "now()" (PostgreSQL); set to "CURRENT_TIMESTAMP" for SQLite.
	NowExpr string
}

var _ Bus = (*RDBMSBus)(nil)

func (b *RDBMSBus) nowExpr() string {
	if b.NowExpr != `` {
		return b.NowExpr
	}
	return `now()`
}

type evictEventRow struct {
	CacheName  string    `db:"cache_name"`
	CacheKey   []byte    `db:"cache_key"`
	RecordedAt time.Time `db:"recorded_at"`
}

// PublishEviction persists events as a batch. Each insert's recorded_at
// is stamped by the store, not by the caller's clock.
func (b *RDBMSBus) PublishEviction(ctx context.Context, events []EvictionEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := b.Conn.DB.Rebind(fmt.Sprintf(`
		INSERT INTO cache_inv_bus.obj_evict_event (cache_name, cache_key, recorded_at)
		VALUES (?, ?, %s)
	`, b.nowExpr()))

	_, err := rdbms.ExecuteAndReturn(ctx, b.Conn, false, func(ctx context.Context, ext rdbms.Execer) (struct{}, error) {
		_, err := rdbms.ExecuteBatch(ctx, b.Conn, ext, query, len(events), events,
			func(ctx context.Context, stmt *sqlx.Stmt, e EvictionEvent) (bool, int64, error) {
				res, err := stmt.ExecContext(ctx, e.CacheName, e.Key)
				if err != nil {
					return false, 0, err
				}
				n, err := res.RowsAffected()
				return true, n, err
			})
		return struct{}{}, err
	})
	return wrap(err)
}

// PollEvents returns every event recorded strictly after since for any
// of cacheNames, in ascending recordedAt order. since itself doesn't
// fit ExecuteQueryWithInClause's items-only bind contract (it's a
// fixed trailing parameter, not one per IN-list element), so each
// partition's query is built and bound directly here.
func (b *RDBMSBus) PollEvents(ctx context.Context, cacheNames []string, since time.Time) ([]EvictionEvent, error) {
	if len(cacheNames) == 0 {
		return nil, nil
	}

	var events []EvictionEvent
	_, err := rdbms.ExecuteAndReturn(ctx, b.Conn, true, func(ctx context.Context, ext rdbms.Execer) (struct{}, error) {
		for _, part := range rdbms.Partition(cacheNames, inClauseBatchSize) {
			placeholders := strings.TrimSuffix(strings.Repeat(`?,`, len(part)), `,`)
			query := ext.Rebind(fmt.Sprintf(`
				SELECT cache_name, cache_key, recorded_at
				FROM cache_inv_bus.obj_evict_event
				WHERE cache_name IN (%s) AND recorded_at > ?
				ORDER BY recorded_at ASC
			`, placeholders))

			args := make([]any, 0, len(part)+1)
			for _, name := range part {
				args = append(args, name)
			}
			args = append(args, since)

			rows, err := ext.QueryxContext(ctx, query, args...)
			if err != nil {
				return struct{}{}, err
			}
			for rows.Next() {
				var r evictEventRow
				if err := rows.StructScan(&r); err != nil {
					_ = rows.Close()
					return struct{}{}, err
				}
				events = append(events, EvictionEvent{CacheName: r.CacheName, Key: r.CacheKey, RecordedAt: r.RecordedAt})
			}
			if err := rows.Err(); err != nil {
				_ = rows.Close()
				return struct{}{}, err
			}
			if err := rows.Close(); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, wrap(err)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].RecordedAt.Before(events[j].RecordedAt) })
	return events, nil
}

// Now returns the store's current clock value.
func (b *RDBMSBus) Now(ctx context.Context) (time.Time, error) {
	var t time.Time
	query := fmt.Sprintf(`SELECT %s`, b.nowExpr())
	if err := b.Conn.DB.GetContext(ctx, &t, query); err != nil {
		return time.Time{}, wrap(err)
	}
	return t, nil
}
