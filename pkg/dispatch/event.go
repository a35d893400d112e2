package dispatch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/wisbric/eaf/pkg/eventstore"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

// ErrAccessDenied is the single generic message every auth or dispatch
// failure surfaces externally, including an event whose
// metadata.tenantId is missing, null, or blank.
var ErrAccessDenied = errors.New("access denied: required context missing")

// EventEnvelope is the minimum shape the event chain needs from a
// delivered message: its type name (for metrics/span naming) and its
// carried metadata.
type EventEnvelope struct {
	Event eventstore.Event
}

func (e EventEnvelope) Kind() string { return e.Event.EventType }

// Updater is the per-tenant, idempotent projection/consumer callback the
// event chain ultimately invokes.
type Updater func(ctx context.Context, event eventstore.Event) error

// EventChain builds the event interceptor chain: TenantRestore,
// RateLimit, TracingRestore, Metrics, then the updater. The unwind always
// pops the bound tenant, even when the updater returns an error, which
// is the chain's mitigation against cross-tenant leakage on pooled
// workers.
func EventChain(limiter *RateLimiter, updater Updater) func(ctx context.Context, event eventstore.Event) error {
	return func(ctx context.Context, event eventstore.Event) error {
		tenantID := event.Metadata.TenantID
		if tenantID == "" {
			return ErrAccessDenied
		}

		pushed, err := tenantctx.Push(ctx, tenantID)
		if err != nil {
			return ErrAccessDenied
		}
		defer tenantctx.Pop(pushed)

		if limiter != nil {
			allowed, degraded, limitErr := limiter.Allow(pushed, tenantID)
			if degraded {
				rateLimitErrors.Inc()
			} else if limitErr == nil && !allowed {
				return ErrAccessDenied
			}
		}

		spanCtx, span := RestoreRemoteSpan(pushed, event.EventType, event.Metadata.TraceID, event.Metadata.SpanID)
		defer span.End()

		start := time.Now()
		handlerErr := updater(spanCtx, event)
		outcome := "success"
		if handlerErr != nil {
			outcome = "failure"
			span.RecordError(handlerErr)
			span.SetStatus(codes.Error, handlerErr.Error())
		}
		eventDuration.WithLabelValues(event.EventType, outcome).Observe(time.Since(start).Seconds())

		return handlerErr
	}
}
