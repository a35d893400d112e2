package sessionbinder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisbric/eaf/pkg/tenantctx"
)

func TestBindFailsClosedWithoutTenantContext(t *testing.T) {
	_, _, _, err := Bind(t.Context(), nil)
	require.Error(t, err)
}

func TestBindRequiresTenantBeforeTouchingPool(t *testing.T) {
	// A nil pool would panic on Begin; reaching that line without error
	// would mean the tenant check was skipped, so asserting the tenant
	// error surfaces first also asserts Begin was never reached.
	ctx, err := tenantctx.Push(t.Context(), "")
	require.Error(t, err)
	_, _, _, err = Bind(ctx, nil)
	require.ErrorIs(t, err, tenantctx.ErrMissingTenantContext)
}
