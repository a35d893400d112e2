package aggregate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisbric/eaf/pkg/eventstore"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

type counterState struct {
	Value int
}

type counterAggregate struct{}

func (counterAggregate) Apply(state counterState, event eventstore.Event) (counterState, error) {
	switch event.EventType {
	case "Incremented":
		state.Value++
		return state, nil
	default:
		return state, &InvalidState{AggregateType: "Counter", EventType: event.EventType}
	}
}

func incrementEvent(tenantID, aggregateID string) eventstore.Event {
	return eventstore.Event{
		AggregateID:   aggregateID,
		AggregateType: "Counter",
		EventType:     "Incremented",
		Payload:       json.RawMessage(`{}`),
		TenantID:      tenantID,
		Metadata:      eventstore.Metadata{TenantID: tenantID},
	}
}

func TestDispatchCreatesAndPersists(t *testing.T) {
	store := eventstore.NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	runtime := New[counterState](store, counterAggregate{}, "Counter")

	version, raised, err := runtime.Dispatch(ctx, "agg-1", func(ctx context.Context, rec *Recorder[counterState]) error {
		return rec.Raise(incrementEvent("11111111-1111-1111-1111-111111111111", "agg-1"))
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	require.Len(t, raised, 1)

	events, err := store.Load(ctx, "agg-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestDispatchReconstitutesFromHistory(t *testing.T) {
	store := eventstore.NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	runtime := New[counterState](store, counterAggregate{}, "Counter")

	for i := 0; i < 3; i++ {
		_, _, err := runtime.Dispatch(ctx, "agg-1", func(ctx context.Context, rec *Recorder[counterState]) error {
			return rec.Raise(incrementEvent("11111111-1111-1111-1111-111111111111", "agg-1"))
		})
		require.NoError(t, err)
	}

	var observed int
	_, _, err = runtime.Dispatch(ctx, "agg-1", func(ctx context.Context, rec *Recorder[counterState]) error {
		observed = rec.State().Value
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, observed)
}

func TestDispatchSurfacesDomainError(t *testing.T) {
	store := eventstore.NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	runtime := New[counterState](store, counterAggregate{}, "Counter")

	_, _, err = runtime.Dispatch(ctx, "agg-1", func(ctx context.Context, rec *Recorder[counterState]) error {
		return &DomainError{Reason: "not allowed"}
	})
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
}

func TestDispatchSurfacesConcurrencyConflict(t *testing.T) {
	store := eventstore.NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	_, err = store.Append(ctx, "agg-1", []eventstore.Event{incrementEvent("11111111-1111-1111-1111-111111111111", "agg-1")}, 0)
	require.NoError(t, err)

	runtime := New[counterState](store, counterAggregate{}, "Counter")

	// Simulate a stale load by constructing the runtime call directly against
	// a would-be expected version of 0, which Dispatch would only reach if
	// history were stale; here we instead force the conflict by appending
	// concurrently through the lower-level store API with the same expected
	// version Dispatch will compute.
	_, _, err = runtime.Dispatch(ctx, "agg-1", func(ctx context.Context, rec *Recorder[counterState]) error {
		// Concurrent writer advances the aggregate before this handler's
		// append lands.
		_, concErr := store.Append(ctx, "agg-1", []eventstore.Event{incrementEvent("11111111-1111-1111-1111-111111111111", "agg-1")}, 1)
		require.NoError(t, concErr)
		return rec.Raise(incrementEvent("11111111-1111-1111-1111-111111111111", "agg-1"))
	})
	var conflict *eventstore.ConcurrencyConflict
	require.ErrorAs(t, err, &conflict)
}
