package ingress

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wisbric/eaf/pkg/principal"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

// stubValidator implements the TokenValidator interface for tests.
type stubValidator struct {
	p   *principal.Principal
	err error
}

func (s stubValidator) Validate(ctx context.Context, token string) (*principal.Principal, error) {
	return s.p, s.err
}

func TestFilterPushesAndPopsTenant(t *testing.T) {
	want := &principal.Principal{TenantID: "11111111-1111-1111-1111-111111111111", UserID: "u1"}

	var depthDuringRequest int
	var gotPrincipal *principal.Principal

	handler := Filter(stubValidator{p: want}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		depthDuringRequest = tenantctx.Depth(r.Context())
		gotPrincipal = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if depthDuringRequest != 1 {
		t.Fatalf("depth during request = %d, want 1", depthDuringRequest)
	}
	if gotPrincipal == nil || gotPrincipal.TenantID != want.TenantID {
		t.Fatalf("principal = %+v, want %+v", gotPrincipal, want)
	}
}

func TestFilterDeniesOnValidationFailure(t *testing.T) {
	handler := Filter(stubValidator{err: errors.New("boom")}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on validation failure")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestFilterDeniesOnMissingBearerToken(t *testing.T) {
	handler := Filter(stubValidator{err: errors.New("empty token")}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
