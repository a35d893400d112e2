// Package projection implements the projection host: it delivers events
// from the event store through the event interceptor chain to
// registered, idempotent updaters, and classifies updater failures as
// either a poison pill (malformed event, never retryable) or a transient
// failure (infrastructure policy outside the core may retry), mirroring
// the Term()-vs-Nak() split used for JetStream delivery elsewhere.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/wisbric/eaf/pkg/eventstore"
)

// ProjectionError is what Host.Run passes to onError for a transient failure.
// Projections can always be reconstructed from the event log, so losing
// projection state is never data loss; the caller's retry policy decides
// whether and when to redeliver.
type ProjectionError struct {
	EventID string
	Cause   error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection: transient failure delivering event %s: %v", e.EventID, e.Cause)
}

func (e *ProjectionError) Unwrap() error { return e.Cause }

// PoisonPill marks an event an updater can never successfully process
// (malformed payload, unknown schema version). The infrastructure layer
// should not retry; it is the caller's responsibility to route the event
// to a dead-letter destination or alert.
type PoisonPill struct {
	EventID string
	Cause   error
}

func (e *PoisonPill) Error() string {
	return fmt.Sprintf("projection: poison pill event %s: %v", e.EventID, e.Cause)
}

func (e *PoisonPill) Unwrap() error { return e.Cause }

// ErrPoisonous lets an updater mark its own error as non-retryable by
// wrapping it: errors.Is(err, ErrPoisonous) == true routes the event to
// PoisonPill instead of ProjectionError.
var ErrPoisonous = errors.New("projection: non-retryable")

// EventSource polls or streams events for delivery. Ordered, at-least-
// once delivery per aggregate stream and per tenant is the source's
// responsibility; the host never reorders what it receives.
type EventSource interface {
	// Next blocks until the next event is available or ctx is
	// cancelled.
	Next(ctx context.Context) (eventstore.Event, error)
}

// Chain is the event interceptor chain (dispatch.EventChain) the host
// routes every delivered event through before calling the updater.
type Chain func(ctx context.Context, event eventstore.Event) error

// Host drives delivery from an EventSource through chain, which carries
// the updaters.
type Host struct {
	source EventSource
	chain  Chain
}

// New constructs a Host. chain is expected to already be bound to the
// concrete updater dispatch table; Host only concerns itself with
// sourcing events and classifying the chain's resulting error.
func New(source EventSource, chain Chain) *Host {
	return &Host{source: source, chain: chain}
}

// Run delivers events until ctx is cancelled or the source returns a
// non-cancellation error. onError is called for every classified
// failure; it never stops delivery of subsequent events.
func (h *Host) Run(ctx context.Context, onError func(error)) error {
	for {
		event, err := h.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := h.chain(ctx, event); err != nil {
			if onError != nil {
				onError(classify(event, err))
			}
		}
	}
}

func classify(event eventstore.Event, err error) error {
	if errors.Is(err, ErrPoisonous) {
		return &PoisonPill{EventID: event.ID, Cause: err}
	}
	return &ProjectionError{EventID: event.ID, Cause: err}
}
