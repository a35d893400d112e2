package dispatch

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/eaf/pkg/sessionbinder"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

// QueryChain builds the query interceptor chain: TenantEnrich,
// SessionBind, Metrics, then handler. The handler runs inside a
// read-only, tenant-bound transaction; SessionBind commits it on success
// and rolls back on any handler error.
func QueryChain[T HasTenant](pool *pgxpool.Pool, handler Handler[T]) Handler[T] {
	return Chain(handler,
		tenantEnrichQuery[T],
		sessionBind[T](pool),
		queryMetrics[T],
	)
}

func tenantEnrichQuery[T HasTenant](next Handler[T]) Handler[T] {
	return func(ctx context.Context, msg T) (any, error) {
		tenantID := msg.TenantID()
		if tenantID == "" {
			return nil, ErrMissingTenant
		}

		pushed, err := tenantctx.Push(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		defer tenantctx.Pop(pushed)

		return next(pushed, msg)
	}
}

func sessionBind[T any](pool *pgxpool.Pool) Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, msg T) (any, error) {
			var result any
			err := sessionbinder.BindFunc(ctx, pool, func(boundCtx context.Context, tx pgx.Tx) error {
				if _, err := tx.Exec(boundCtx, `SET TRANSACTION READ ONLY`); err != nil {
					return err
				}
				var handlerErr error
				result, handlerErr = next(boundCtx, msg)
				return handlerErr
			})
			return result, err
		}
	}
}
