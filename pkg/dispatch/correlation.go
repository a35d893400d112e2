package dispatch

import (
	"context"

	"github.com/wisbric/eaf/pkg/eventstore"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

// EnrichCorrelation fills in meta.TenantID from the tenant bound to ctx
// when meta does not already carry one. A command handler publishing a
// genuinely system-level event with no bound tenant is left unenriched;
// the event chain then rejects it on consumption (fail closed) rather
// than this function inventing a tenant for it.
func EnrichCorrelation(ctx context.Context, meta eventstore.Metadata) eventstore.Metadata {
	if meta.TenantID != "" {
		return meta
	}
	if tenantID := tenantctx.Current(ctx); tenantID != "" {
		meta.TenantID = tenantID
	}
	return meta
}
