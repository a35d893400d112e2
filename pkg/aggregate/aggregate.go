// Package aggregate implements the aggregate runtime: a generic
// load-apply-append loop over the event store that reconstitutes an
// aggregate's state by folding its event history and appends whatever new
// events a command handler raises, using optimistic concurrency.
package aggregate

import (
	"context"
	"fmt"

	"github.com/wisbric/eaf/pkg/eventstore"
)

// Aggregate is the domain contract every aggregate type implements. State
// is never mutated by the runtime directly; Apply returns the next state,
// keeping the (State, []Event) shape the fold relies on.
type Aggregate[S any] interface {
	// Apply folds one historical or newly raised event into state,
	// returning the resulting state. It must be total for every event
	// type this aggregate can produce: an unrecognized type is a
	// programming error, reported as InvalidState rather than silently
	// ignored.
	Apply(state S, event eventstore.Event) (S, error)
}

// InvalidState is returned when Apply is given an event type the
// aggregate does not recognize.
type InvalidState struct {
	AggregateType string
	EventType     string
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("aggregate: %s cannot apply event type %q", e.AggregateType, e.EventType)
}

// DomainError is returned by a command handler to reject a command for a
// business reason, distinct from ConcurrencyConflict so callers can
// separate the two failure classes and react to each appropriately.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string { return "aggregate: domain rule violated: " + e.Reason }

// Recorder is handed to command handlers so they can raise events without
// reaching into the runtime's internals. Raised events are synchronously
// applied to state and accumulated for the eventual append call.
type Recorder[S any] struct {
	agg     Aggregate[S]
	state   S
	raised  []eventstore.Event
	aggType string
}

// State returns the recorder's current folded state, including any
// events already raised during this invocation.
func (r *Recorder[S]) State() S { return r.state }

// Raise applies event to the current state and queues it for append. The
// caller is responsible for setting every Event field except Version,
// which the runtime assigns at append time.
func (r *Recorder[S]) Raise(event eventstore.Event) error {
	next, err := r.agg.Apply(r.state, event)
	if err != nil {
		return err
	}
	r.state = next
	r.raised = append(r.raised, event)
	return nil
}

// HandlerFunc is the domain logic for one command: given the current
// state (zero value if the aggregate does not yet exist), it raises zero
// or more events via rec, or returns a DomainError to reject the command.
type HandlerFunc[S any] func(ctx context.Context, rec *Recorder[S]) error

// Runtime executes the load-apply-append loop for one aggregate type.
type Runtime[S any] struct {
	store   eventstore.Store
	agg     Aggregate[S]
	aggType string
}

// New constructs a Runtime for an aggregate type backed by store.
func New[S any](store eventstore.Store, agg Aggregate[S], aggregateType string) *Runtime[S] {
	return &Runtime[S]{store: store, agg: agg, aggType: aggregateType}
}

// Dispatch loads aggregateID's history (empty for a creation command),
// reconstitutes state, runs handler, and appends whatever events handler
// raised. It returns the new version on success, or the handler's
// DomainError, an InvalidState from a malformed history, or the store's
// ConcurrencyConflict.
func (r *Runtime[S]) Dispatch(ctx context.Context, aggregateID string, handler HandlerFunc[S]) (int64, []eventstore.Event, error) {
	history, err := r.store.Load(ctx, aggregateID)
	if err != nil {
		return 0, nil, err
	}

	var zero S
	rec := &Recorder[S]{agg: r.agg, state: zero, aggType: r.aggType}
	for _, e := range history {
		next, err := r.agg.Apply(rec.state, e)
		if err != nil {
			return 0, nil, &InvalidState{AggregateType: r.aggType, EventType: e.EventType}
		}
		rec.state = next
	}
	expectedVersion := int64(len(history))

	if err := handler(ctx, rec); err != nil {
		return 0, nil, err
	}

	if len(rec.raised) == 0 {
		return expectedVersion, nil, nil
	}

	newVersion, err := r.store.Append(ctx, aggregateID, rec.raised, expectedVersion)
	if err != nil {
		return 0, nil, err
	}
	return newVersion, rec.raised, nil
}
