package eventstore

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wisbric/eaf/pkg/tenantctx"
)

const (
	tenantT = "11111111-1111-1111-1111-111111111111"
	tenantU = "22222222-2222-2222-2222-222222222222"
	aggA    = "33333333-3333-3333-3333-333333333333"
)

func newEvent(tenantID string, version int64) Event {
	return Event{
		ID:            uuid.NewString(),
		AggregateID:   aggA,
		AggregateType: "VmRequest",
		EventType:     "VmRequestCreated",
		Payload:       json.RawMessage(`{}`),
		Metadata:      Metadata{TenantID: tenantID},
		TenantID:      tenantID,
		Version:       version,
	}
}

func TestHappyPathAppendLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), tenantT)
	require.NoError(t, err)

	newVersion, err := store.Append(ctx, aggA, []Event{newEvent(tenantT, 0)}, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), newVersion)

	events, err := store.Load(ctx, aggA)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int64(1), events[0].Version)
	require.Equal(t, tenantT, events[0].TenantID)

	tenantctx.Pop(ctx)
	require.Equal(t, 0, tenantctx.Depth(ctx))
}

func TestOptimisticConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), tenantT)
	require.NoError(t, err)

	_, err = store.Append(ctx, aggA, []Event{newEvent(tenantT, 0), newEvent(tenantT, 0)}, 0)
	require.NoError(t, err)

	v, err := store.Append(ctx, aggA, []Event{newEvent(tenantT, 0)}, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)

	_, err = store.Append(ctx, aggA, []Event{newEvent(tenantT, 0)}, 2)
	var conflict *ConcurrencyConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(2), conflict.Expected)
	require.Equal(t, int64(3), conflict.Actual)

	events, err := store.Load(ctx, aggA)
	require.NoError(t, err)
	require.Len(t, events, 3)
}

func TestTenantIsolation(t *testing.T) {
	store := NewMemoryStore()

	ctxT, err := tenantctx.Push(t.Context(), tenantT)
	require.NoError(t, err)
	_, err = store.Append(ctxT, aggA, []Event{newEvent(tenantT, 0)}, 0)
	require.NoError(t, err)
	tenantctx.Pop(ctxT)

	ctxU, err := tenantctx.Push(t.Context(), tenantU)
	require.NoError(t, err)

	events, err := store.Load(ctxU, aggA)
	require.NoError(t, err)
	require.Empty(t, events)

	v, err := store.Append(ctxU, aggA, []Event{newEvent(tenantU, 0)}, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	events, err = store.Load(ctxU, aggA)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, tenantU, events[0].TenantID)
}

func TestAppendEmptySliceIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), tenantT)
	require.NoError(t, err)

	v, err := store.Append(ctx, aggA, nil, 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	events, err := store.Load(ctx, aggA)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestAppendRequiresTenantContext(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Append(t.Context(), aggA, []Event{newEvent(tenantT, 0)}, 0)
	require.Error(t, err)
}

func TestAppendRejectsMixedTenantEvent(t *testing.T) {
	store := NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), tenantT)
	require.NoError(t, err)

	_, err = store.Append(ctx, aggA, []Event{newEvent(tenantU, 0)}, 0)
	require.Error(t, err)
	var failure *StorageFailure
	require.ErrorAs(t, err, &failure)
}
