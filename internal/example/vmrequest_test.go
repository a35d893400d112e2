package example

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisbric/eaf/pkg/aggregate"
	"github.com/wisbric/eaf/pkg/eventstore"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

const (
	tenantT = "11111111-1111-1111-1111-111111111111"
	aggA    = "33333333-3333-3333-3333-333333333333"
)

func TestCreateVmRequestEndToEnd(t *testing.T) {
	store := eventstore.NewMemoryStore()
	ctx, err := tenantctx.Push(t.Context(), tenantT)
	require.NoError(t, err)

	runtime := aggregate.New[VmRequestState](store, VmRequestAggregate{}, "VmRequest")

	cmd := CreateVmRequest{Tenant: tenantT, RequestID: aggA, RequestedBy: "alice", Size: "large"}

	version, raised, err := runtime.Dispatch(ctx, aggA, func(ctx context.Context, rec *aggregate.Recorder[VmRequestState]) error {
		event, err := NewVmRequestCreated(cmd)
		if err != nil {
			return err
		}
		return rec.Raise(event)
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	require.Len(t, raised, 1)

	events, err := store.Load(ctx, aggA)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int64(1), events[0].Version)
	require.Equal(t, tenantT, events[0].TenantID)

	tenantctx.Pop(ctx)
	require.Equal(t, 0, tenantctx.Depth(ctx))
}
