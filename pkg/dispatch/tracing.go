package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/wisbric/eaf/pkg/dispatch")

// TraceCarrier is an optional capability a command payload can implement
// so TracingInject can copy the active span's identifiers into outgoing
// metadata, letting a downstream event inherit the same trace.
type TraceCarrier interface {
	SetTraceContext(traceID, spanID, traceFlags string)
}

// tracingInject copies {traceId, spanId, traceFlags} from the active span
// into msg's metadata when msg implements TraceCarrier and a span is
// active. Messages that don't carry metadata are passed through
// unchanged; this middleware never fails a command over missing tracing.
func tracingInject[T any](next Handler[T]) Handler[T] {
	return func(ctx context.Context, msg T) (any, error) {
		sc := trace.SpanContextFromContext(ctx)
		if sc.IsValid() {
			if carrier, ok := any(msg).(TraceCarrier); ok {
				carrier.SetTraceContext(sc.TraceID().String(), sc.SpanID().String(), sc.TraceFlags().String())
			}
		}
		return next(ctx, msg)
	}
}

// RestoreRemoteSpan reconstructs a remote span context from the hex
// identifiers carried in event metadata (traceId: 32 hex, spanId: 16 hex)
// and starts a child span named for the event type. Malformed or absent
// identifiers are not an error: the event is still delivered, just
// without a linked trace, since TracingRestore's failure mode in the
// event chain is decoupled from the handler's own.
func RestoreRemoteSpan(ctx context.Context, eventType, traceID, spanID string) (context.Context, trace.Span) {
	if traceID == "" || spanID == "" {
		return tracer.Start(ctx, eventType)
	}

	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return tracer.Start(ctx, eventType)
	}
	sid, err := trace.SpanIDFromHex(spanID)
	if err != nil {
		return tracer.Start(ctx, eventType)
	}

	remote := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	return tracer.Start(ctx, eventType)
}
