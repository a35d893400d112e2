// Package sessionbinder implements the tenant session binder: it opens a
// Postgres transaction and sets app.current_tenant for that transaction
// only, so row-level security policies on events/snapshots/projections
// enforce tenant isolation at the database layer regardless of what the
// application code does or forgets to do. Uses the familiar
// set_config('app.current_tenant', $1, true) idiom, scoped per-transaction
// rather than per-connection since pooled connections are reused across
// tenants.
package sessionbinder

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/eaf/pkg/tenantctx"
)

// Release ends the bound transaction: Commit on nil err, Rollback
// otherwise, returning err itself after a rollback. BindFunc calls it
// with the error its fn returned.
type Release func(err error) error

// Bind acquires a transaction from pool and scopes it to the tenant
// currently bound to ctx via tenantctx. The third, is_local boolean
// ("true" in set_config) is set so the setting disappears at COMMIT or
// ROLLBACK rather than leaking onto the next transaction the pooled
// connection serves.
func Bind(ctx context.Context, pool *pgxpool.Pool) (context.Context, pgx.Tx, Release, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true)`, tenantID); err != nil {
		_ = tx.Rollback(ctx)
		return ctx, nil, nil, err
	}

	release := func(opErr error) error {
		if opErr != nil {
			_ = tx.Rollback(ctx)
			return opErr
		}
		return tx.Commit(ctx)
	}

	return ctx, tx, release, nil
}

// BindFunc is a convenience wrapper: fn runs inside a bound transaction,
// which commits if fn returns nil and rolls back otherwise.
func BindFunc(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, tx, release, err := Bind(ctx, pool)
	if err != nil {
		return err
	}
	opErr := fn(ctx, tx)
	return release(opErr)
}
