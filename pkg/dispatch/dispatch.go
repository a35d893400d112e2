// Package dispatch implements the dispatch pipeline: three generic
// interceptor chains (command, query, event) built from the same
// Handler/Middleware shape. Each chain's ordering and unwind semantics
// are fixed by the message kind; see command.go, query.go, event.go.
package dispatch

import "context"

// Handler processes one message of type T and returns a handler-defined
// result (e.g. the aggregate's new version, or a read-model row).
type Handler[T any] func(ctx context.Context, msg T) (any, error)

// Middleware wraps a Handler, typically pushing state onto the context
// before calling next and popping it on every exit path afterward.
type Middleware[T any] func(next Handler[T]) Handler[T]

// Chain composes middlewares around a terminal handler in the order
// given: mws[0] runs first on the way in and last on the way out.
func Chain[T any](terminal Handler[T], mws ...Middleware[T]) Handler[T] {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// HasTenant is the capability interface command and query payloads must
// implement so TenantEnrich can read tenantId without reflection: the
// compiler rejects CommandChain/QueryChain instantiations whose T
// does not satisfy it, which is the "checked at registration" guarantee
// described for this component.
type HasTenant interface {
	TenantID() string
}

// Typed is an optional capability a message type can implement so metrics
// are labelled with a stable type name instead of the Go type string.
type Typed interface {
	Kind() string
}

func kindOf[T any](msg T) string {
	if t, ok := any(msg).(Typed); ok {
		return t.Kind()
	}
	return fmtType(msg)
}
