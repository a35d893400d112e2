// Package ingress implements the HTTP ingress filter: chi middleware that
// extracts the bearer token from every inbound request, runs it through
// the token validator, pushes the resulting tenant id onto the tenant
// context stack for the duration of the request, and guarantees exactly
// one pop on every exit path.
package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wisbric/eaf/pkg/principal"
	"github.com/wisbric/eaf/pkg/tenantctx"
	"github.com/wisbric/eaf/pkg/tokenvalidator"
)

type principalCtxKey struct{}

// PrincipalFromContext returns the principal attached by the filter, or
// nil if none is set (e.g. for unauthenticated routes mounted outside the
// filter's chain).
func PrincipalFromContext(ctx context.Context) *principal.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*principal.Principal)
	return p
}

// TokenValidator is the subset of *tokenvalidator.Validator the filter
// needs, kept as an interface so tests can supply a fake pipeline.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*principal.Principal, error)
}

// Filter builds the IngressFilter middleware. logDenied, if non-nil, is
// called with the underlying error for observability before the generic
// denial response is written; it never sees the client.
func Filter(validator TokenValidator, logDenied func(error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			p, err := validator.Validate(r.Context(), token)
			if err != nil {
				if logDenied != nil {
					logDenied(err)
				}
				denyAccess(w)
				return
			}

			ctx, err := tenantctx.Push(r.Context(), p.TenantID)
			if err != nil {
				if logDenied != nil {
					logDenied(err)
				}
				denyAccess(w)
				return
			}
			defer tenantctx.Pop(ctx)

			ctx = context.WithValue(ctx, principalCtxKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// denyAccess writes the single generic message used for every externally
// visible auth or dispatch failure, regardless of which layer or
// interceptor actually rejected the request.
func denyAccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": tokenvalidator.DeniedMessage})
}
