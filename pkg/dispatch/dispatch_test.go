package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisbric/eaf/pkg/eventstore"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

type createWidget struct {
	Tenant string
	Name   string
}

func (c createWidget) TenantID() string { return c.Tenant }

func TestCommandChainPushesAndPopsTenant(t *testing.T) {
	var depthDuringHandler int

	handler := CommandChain(func(ctx context.Context, msg createWidget) (any, error) {
		depthDuringHandler = tenantctx.Depth(ctx)
		return "ok", nil
	})

	result, err := handler(t.Context(), createWidget{Tenant: "11111111-1111-1111-1111-111111111111", Name: "widget"})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 1, depthDuringHandler)
}

func TestCommandChainRejectsMissingTenant(t *testing.T) {
	handler := CommandChain(func(ctx context.Context, msg createWidget) (any, error) {
		t.Fatal("handler must not run without a tenant")
		return nil, nil
	})

	_, err := handler(t.Context(), createWidget{Name: "widget"})
	require.ErrorIs(t, err, ErrMissingTenant)
}

func TestCommandChainRejectsTenantMismatch(t *testing.T) {
	ctx, err := tenantctx.Push(t.Context(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	handler := CommandChain(func(ctx context.Context, msg createWidget) (any, error) {
		t.Fatal("handler must not run on tenant mismatch")
		return nil, nil
	})

	_, err = handler(ctx, createWidget{Tenant: "22222222-2222-2222-2222-222222222222", Name: "widget"})
	require.ErrorIs(t, err, ErrTenantMismatch)
}

func TestEventChainRejectsMissingTenantMetadata(t *testing.T) {
	chain := EventChain(nil, func(ctx context.Context, event eventstore.Event) error {
		t.Fatal("updater must not run without tenant metadata")
		return nil
	})

	err := chain(t.Context(), eventstore.Event{EventType: "WidgetCreated", Payload: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestEventChainRestoresAndClearsTenant(t *testing.T) {
	var depthDuringUpdater int
	var tenantDuringUpdater string

	chain := EventChain(nil, func(ctx context.Context, event eventstore.Event) error {
		depthDuringUpdater = tenantctx.Depth(ctx)
		tenantDuringUpdater = tenantctx.Current(ctx)
		return nil
	})

	baseCtx := t.Context()
	require.Equal(t, 0, tenantctx.Depth(baseCtx))

	err := chain(baseCtx, eventstore.Event{
		EventType: "WidgetCreated",
		Payload:   json.RawMessage(`{}`),
		Metadata:  eventstore.Metadata{TenantID: "11111111-1111-1111-1111-111111111111"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, depthDuringUpdater)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", tenantDuringUpdater)
	require.Equal(t, 0, tenantctx.Depth(baseCtx))
}

var errFailingHandler = errors.New("updater failed")

func TestEventChainPopsOnHandlerError(t *testing.T) {
	baseCtx := t.Context()

	chain := EventChain(nil, func(ctx context.Context, event eventstore.Event) error {
		return errFailingHandler
	})
	err := chain(baseCtx, eventstore.Event{
		EventType: "WidgetCreated",
		Payload:   json.RawMessage(`{}`),
		Metadata:  eventstore.Metadata{TenantID: "11111111-1111-1111-1111-111111111111"},
	})

	require.ErrorIs(t, err, errFailingHandler)
	require.Equal(t, 0, tenantctx.Depth(baseCtx))
}

func TestEnrichCorrelationFillsFromContext(t *testing.T) {
	ctx, err := tenantctx.Push(t.Context(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	meta := EnrichCorrelation(ctx, eventstore.Metadata{})
	require.Equal(t, "11111111-1111-1111-1111-111111111111", meta.TenantID)
}

func TestEnrichCorrelationLeavesSystemEventUnenriched(t *testing.T) {
	meta := EnrichCorrelation(t.Context(), eventstore.Metadata{})
	require.Empty(t, meta.TenantID)
}
