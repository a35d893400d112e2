package dispatch

import (
	"context"
	"errors"

	"github.com/wisbric/eaf/pkg/tenantctx"
)

// ErrMissingTenant is returned when a command or query payload's TenantID
// is blank.
var ErrMissingTenant = errors.New("dispatch: tenantId is required")

// ErrTenantMismatch is returned when a command's payload tenantId
// disagrees with the tenant already bound to the context it was
// dispatched from.
var ErrTenantMismatch = errors.New("dispatch: payload tenantId does not match bound context")

// CommandChain builds the command interceptor chain: TenantEnrich,
// TracingInject, Metrics, then handler. T must implement HasTenant since
// every command is required by framework convention to carry tenantId.
func CommandChain[T HasTenant](handler Handler[T]) Handler[T] {
	return Chain(handler,
		tenantEnrichCommand[T],
		tracingInject[T],
		commandMetrics[T],
	)
}

// tenantEnrichCommand reads tenantId from the payload rather than from
// the ambient context, since commands may originate from background
// contexts where no tenant is bound yet. When both are present and
// disagree, the command is rejected rather than silently preferring one.
func tenantEnrichCommand[T HasTenant](next Handler[T]) Handler[T] {
	return func(ctx context.Context, msg T) (any, error) {
		tenantID := msg.TenantID()
		if tenantID == "" {
			return nil, ErrMissingTenant
		}
		if current := tenantctx.Current(ctx); current != "" && current != tenantID {
			return nil, ErrTenantMismatch
		}

		pushed, err := tenantctx.Push(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		defer tenantctx.Pop(pushed)

		return next(pushed, msg)
	}
}
