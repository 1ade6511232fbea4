// Package postgres implements the counter store on a Postgres table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolIface is the subset of pgxpool.Pool the counter needs.
type PoolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Counter enforces daily caps with a single conditional upsert, so concurrent
// workers cannot both claim the last slot.
//
// Schema:
//
//	CREATE TABLE outreach_counters (
//		name TEXT NOT NULL,
//		day TEXT NOT NULL,
//		count INT NOT NULL,
//		PRIMARY KEY (name, day)
//	);
type Counter struct {
	pool PoolIface
}

// New connects a pgx pool and returns a Counter.
func New(ctx context.Context, dsn string) (*Counter, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Counter{pool: pool}, nil
}

// NewWithPool constructs a Counter from an existing pool (primarily for testing).
func NewWithPool(pool PoolIface) (*Counter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Counter{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (c *Counter) Close() {
	if c == nil || c.pool == nil {
		return
	}
	c.pool.Close()
}

// CheckAndIncr increments the (name, day) counter unless it already reached
// limit. The WHERE clause on the upsert makes the check and the increment one
// atomic statement.
func (c *Counter) CheckAndIncr(ctx context.Context, name string, day string, limit int) (bool, error) {
	// The guard on the upsert only applies when the row already exists, so a
	// non-positive limit has to be refused before touching the table.
	if limit <= 0 {
		return false, nil
	}
	query := `INSERT INTO outreach_counters (name, day, count)
VALUES ($1, $2, 1)
ON CONFLICT (name, day) DO UPDATE
SET count = outreach_counters.count + 1
WHERE outreach_counters.count < $3`
	tag, err := c.pool.Exec(ctx, query, name, day, limit)
	if err != nil {
		return false, fmt.Errorf("increment counter %s/%s: %w", name, day, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Decr releases one previously granted slot. The count floor stays at zero.
func (c *Counter) Decr(ctx context.Context, name string, day string) error {
	query := `UPDATE outreach_counters
SET count = count - 1
WHERE name = $1 AND day = $2 AND count > 0`
	if _, err := c.pool.Exec(ctx, query, name, day); err != nil {
		return fmt.Errorf("decrement counter %s/%s: %w", name, day, err)
	}
	return nil
}
