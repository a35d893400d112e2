// Package tokenvalidator implements the ten-layer JWT validation pipeline
// that derives the authoritative Principal consumed by the rest of
// the framework. Layers 2/3 (signature, algorithm) use JWKS-backed RS256
// verification (MicahParks/keyfunc/v3 + golang-jwt/jwt/v5); every other
// layer is first-class Go logic.
package tokenvalidator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wisbric/eaf/pkg/principal"
)

// KeySource resolves the verification key for a parsed, not-yet-verified
// token. keyfunc.Keyfunc satisfies this interface; tests supply a fixed
// RSA public key instead of a live JWKS endpoint.
type KeySource interface {
	Keyfunc(token *jwt.Token) (interface{}, error)
}

// Validator runs the ten-layer token validation pipeline.
type Validator struct {
	cfg        Config
	keys       KeySource
	revocation RevocationChecker
	patterns   []patternMatcher
}

type patternMatcher interface {
	MatchString(string) bool
}

// New constructs a Validator with an explicit key source and revocation
// checker, for use in tests or when the caller already owns a keyfunc.
func New(cfg Config, keys KeySource, revocation RevocationChecker) (*Validator, error) {
	compiled, err := cfg.compiledPatterns()
	if err != nil {
		return nil, fmt.Errorf("tokenvalidator: compiling injection patterns: %w", err)
	}
	matchers := make([]patternMatcher, len(compiled))
	for i, re := range compiled {
		matchers[i] = re
	}
	return &Validator{cfg: cfg, keys: keys, revocation: revocation, patterns: matchers}, nil
}

// NewWithJWKSDiscovery constructs a Validator whose key source is a live
// JWKS endpoint discovered from cfg.DiscoveryURL, matching the production
// wiring of the reference authorization plugin.
func NewWithJWKSDiscovery(ctx context.Context, cfg Config, revocation RevocationChecker) (*Validator, error) {
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.DiscoveryURL})
	if err != nil {
		return nil, fmt.Errorf("tokenvalidator: discovering JWKS at %s: %w", cfg.DiscoveryURL, err)
	}
	return New(cfg, jwks, revocation)
}

var errDisallowedAlgorithm = errors.New("tokenvalidator: algorithm not in RS256 allowlist")

// claims is the subset of JWT claims the pipeline inspects directly; all
// other claims are carried in the decoded map for role extraction.
type claims struct {
	Subject  string
	Issuer   string
	Audience string
	Expiry   time.Time
	IssuedAt time.Time
	JTI      string
	TenantID string
}

// Validate runs all ten layers in order and returns the resulting
// Principal, or a *SecurityError identifying the first layer that failed.
func (v *Validator) Validate(ctx context.Context, raw string) (*principal.Principal, error) {
	if err := v.checkFormat(raw); err != nil {
		return nil, err
	}

	token, rawClaims, err := v.verifySignatureAndAlgorithm(ctx, raw)
	if err != nil {
		return nil, err
	}

	parsed, err := v.checkClaimSchema(rawClaims)
	if err != nil {
		return nil, err
	}

	if err := v.checkTemporal(parsed); err != nil {
		return nil, err
	}

	if err := v.checkIssuerAudience(parsed); err != nil {
		return nil, err
	}

	if err := v.checkRevocation(ctx, parsed.JTI); err != nil {
		return nil, err
	}

	roles, err := v.checkRoles(rawClaims)
	if err != nil {
		return nil, err
	}

	if err := v.checkUserStatus(rawClaims); err != nil {
		return nil, err
	}

	if err := v.checkInjection(token, rawClaims); err != nil {
		return nil, err
	}

	return &principal.Principal{
		UserID:   parsed.Subject,
		TenantID: parsed.TenantID,
		Roles:    roles,
		JTI:      parsed.JTI,
	}, nil
}

// --- L1: Format ---

func (v *Validator) checkFormat(raw string) error {
	const layer = 1
	if raw == "" {
		recordLayer("format", false)
		return newSecurityError(layer, EmptyToken, nil)
	}
	maxBytes := v.cfg.MaxTokenBytes
	if maxBytes <= 0 {
		maxBytes = DefaultConfig().MaxTokenBytes
	}
	if len(raw) > maxBytes {
		recordLayer("format", false)
		return newSecurityError(layer, TooLarge, fmt.Errorf("%d bytes exceeds max %d", len(raw), maxBytes))
	}
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		recordLayer("format", false)
		return newSecurityError(layer, InvalidStructure, fmt.Errorf("expected 3 dot-separated segments, got %d", len(segments)))
	}
	for i, seg := range segments {
		// An empty signature segment (an unsigned token) passes here; its
		// algorithm is rejected at L3.
		if (seg == "" && i < 2) || !isBase64URL(seg) {
			recordLayer("format", false)
			return newSecurityError(layer, InvalidFormat, errors.New("segment is not base64url"))
		}
	}
	recordLayer("format", true)
	return nil
}

func isBase64URL(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '=':
		default:
			return false
		}
	}
	return true
}

// --- L2 + L3: Signature, Algorithm ---
//
// A JWT's algorithm is read from its own (unverified) header, so the
// algorithm allowlist and the signature check are necessarily interleaved
// by the underlying library; this method still reports two distinct
// failure codes by inspecting which check rejected the token.

func (v *Validator) verifySignatureAndAlgorithm(ctx context.Context, raw string) (*jwt.Token, jwt.MapClaims, error) {
	parsedClaims := jwt.MapClaims{}

	keyfuncWrapper := func(t *jwt.Token) (interface{}, error) {
		method, ok := t.Method.(*jwt.SigningMethodRSA)
		if !ok || method.Alg() != "RS256" {
			return nil, errDisallowedAlgorithm
		}
		return v.keys.Keyfunc(t)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(raw, parsedClaims, keyfuncWrapper)
	if err != nil {
		if errors.Is(err, errDisallowedAlgorithm) || isUnsupportedAlgorithmError(err) {
			recordLayer("algorithm", false)
			return nil, nil, newSecurityError(3, UnsupportedAlgorithm, err)
		}
		recordLayer("signature", false)
		return nil, nil, newSecurityError(2, InvalidSignature, err)
	}
	recordLayer("signature", true)
	recordLayer("algorithm", true)
	return token, parsedClaims, nil
}

func isUnsupportedAlgorithmError(err error) bool {
	return strings.Contains(err.Error(), "signing method") || strings.Contains(err.Error(), "unavailable")
}

// --- L4: Claim schema ---

func (v *Validator) checkClaimSchema(raw jwt.MapClaims) (*claims, error) {
	const layer = 4
	required := []string{"sub", "iss", "aud", "exp", "iat", "jti", "tenant_id"}
	for _, name := range required {
		if _, ok := raw[name]; !ok {
			recordLayer("claim_schema", false)
			return nil, newSecurityError(layer, MissingClaim, fmt.Errorf("missing claim %q", name))
		}
	}

	sub, _ := raw["sub"].(string)
	tenantID, _ := raw["tenant_id"].(string)
	if _, err := uuid.Parse(sub); err != nil {
		recordLayer("claim_schema", false)
		return nil, newSecurityError(layer, InvalidClaimFormat, fmt.Errorf("sub is not a UUID: %w", err))
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		recordLayer("claim_schema", false)
		return nil, newSecurityError(layer, InvalidClaimFormat, fmt.Errorf("tenant_id is not a UUID: %w", err))
	}

	exp, err := numericDate(raw["exp"])
	if err != nil {
		recordLayer("claim_schema", false)
		return nil, newSecurityError(layer, InvalidClaimFormat, fmt.Errorf("exp: %w", err))
	}
	iat, err := numericDate(raw["iat"])
	if err != nil {
		recordLayer("claim_schema", false)
		return nil, newSecurityError(layer, InvalidClaimFormat, fmt.Errorf("iat: %w", err))
	}

	iss, _ := raw["iss"].(string)
	aud, err := audienceString(raw["aud"])
	if err != nil {
		recordLayer("claim_schema", false)
		return nil, newSecurityError(layer, InvalidClaimFormat, fmt.Errorf("aud: %w", err))
	}
	jti, _ := raw["jti"].(string)

	recordLayer("claim_schema", true)
	return &claims{
		Subject:  sub,
		Issuer:   iss,
		Audience: aud,
		Expiry:   exp,
		IssuedAt: iat,
		JTI:      jti,
		TenantID: tenantID,
	}, nil
}

func numericDate(v interface{}) (time.Time, error) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(int64(f), 0), nil
	default:
		return time.Time{}, fmt.Errorf("not a numeric date: %T", v)
	}
}

func audienceString(v interface{}) (string, error) {
	switch a := v.(type) {
	case string:
		return a, nil
	case []interface{}:
		if len(a) == 0 {
			return "", errors.New("empty audience list")
		}
		s, ok := a[0].(string)
		if !ok {
			return "", errors.New("audience list entry is not a string")
		}
		return s, nil
	default:
		return "", fmt.Errorf("unsupported audience shape: %T", v)
	}
}

// --- L5: Temporal ---

func (v *Validator) checkTemporal(c *claims) error {
	const layer = 5
	skew := time.Duration(v.cfg.ClockSkewSeconds) * time.Second
	if v.cfg.ClockSkewSeconds == 0 {
		skew = time.Duration(DefaultConfig().ClockSkewSeconds) * time.Second
	}
	maxAge := time.Duration(v.cfg.MaxAgeHours) * time.Hour
	if v.cfg.MaxAgeHours == 0 {
		maxAge = time.Duration(DefaultConfig().MaxAgeHours) * time.Hour
	}

	now := time.Now()

	if now.After(c.Expiry.Add(skew)) {
		recordLayer("temporal", false)
		return newSecurityError(layer, TokenExpired, fmt.Errorf("exp=%s now=%s skew=%s", c.Expiry, now, skew))
	}
	if c.IssuedAt.After(now.Add(skew)) {
		recordLayer("temporal", false)
		return newSecurityError(layer, FutureToken, fmt.Errorf("iat=%s now=%s skew=%s", c.IssuedAt, now, skew))
	}
	if now.Sub(c.IssuedAt) > maxAge {
		recordLayer("temporal", false)
		return newSecurityError(layer, TokenTooOld, fmt.Errorf("iat=%s now=%s maxAge=%s", c.IssuedAt, now, maxAge))
	}
	recordLayer("temporal", true)
	return nil
}

// --- L6: Issuer/audience ---

func (v *Validator) checkIssuerAudience(c *claims) error {
	const layer = 6
	if v.cfg.Issuer != "" && c.Issuer != v.cfg.Issuer {
		recordLayer("issuer_audience", false)
		return newSecurityError(layer, InvalidIssuer, fmt.Errorf("got %q want %q", c.Issuer, v.cfg.Issuer))
	}
	if v.cfg.Audience != "" && c.Audience != v.cfg.Audience {
		recordLayer("issuer_audience", false)
		return newSecurityError(layer, InvalidAudience, fmt.Errorf("got %q want %q", c.Audience, v.cfg.Audience))
	}
	recordLayer("issuer_audience", true)
	return nil
}

// --- L7: Revocation ---

func (v *Validator) checkRevocation(ctx context.Context, jti string) error {
	const layer = 7
	if v.revocation == nil {
		recordLayer("revocation", true)
		return nil
	}
	revoked, err := v.revocation.IsRevoked(ctx, jti)
	if err != nil {
		recordLayer("revocation", false)
		return newSecurityError(layer, RevocationCheckFailed, err)
	}
	if revoked {
		recordLayer("revocation", false)
		return newSecurityError(layer, TokenRevoked, nil)
	}
	recordLayer("revocation", true)
	return nil
}

// --- L8: Roles ---

func (v *Validator) checkRoles(raw jwt.MapClaims) ([]string, error) {
	const layer = 8
	rawRoles, err := extractRoleClaims(raw)
	if err != nil {
		recordLayer("roles", false)
		return nil, newSecurityError(layer, RoleValidationError, err)
	}
	if len(rawRoles) == 0 {
		recordLayer("roles", false)
		return nil, newSecurityError(layer, NoRolesAssigned, nil)
	}
	normalized, err := principal.NormalizeRoles(rawRoles)
	if err != nil {
		recordLayer("roles", false)
		return nil, newSecurityError(layer, RoleValidationError, err)
	}
	if len(normalized) == 0 {
		recordLayer("roles", false)
		return nil, newSecurityError(layer, NoRolesAssigned, nil)
	}
	recordLayer("roles", true)
	return normalized, nil
}

// extractRoleClaims reads a top-level "roles" array, or falls back to the
// nested "realm_access.roles" shape.
func extractRoleClaims(raw jwt.MapClaims) ([]string, error) {
	if v, ok := raw["roles"]; ok {
		return stringSlice(v)
	}
	if realm, ok := raw["realm_access"].(map[string]interface{}); ok {
		if v, ok := realm["roles"]; ok {
			return stringSlice(v)
		}
	}
	return nil, nil
}

func stringSlice(v interface{}) ([]string, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("roles claim has unexpected shape: %T", v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("roles claim entry has unexpected shape: %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// --- L9: User status ---
//
// The token contract does not mandate active/locked/expired claims; they
// are treated as optional, defaulting to "active" when entirely absent.
// A present-but-malformed value still fails the layer rather than being
// silently ignored.

func (v *Validator) checkUserStatus(raw jwt.MapClaims) error {
	const layer = 9
	if active, ok := raw["active"]; ok {
		b, ok := active.(bool)
		if !ok {
			recordLayer("user_status", false)
			return newSecurityError(layer, UserInactive, errors.New("active claim is not a boolean"))
		}
		if !b {
			recordLayer("user_status", false)
			return newSecurityError(layer, UserInactive, nil)
		}
	}
	if locked, ok := raw["locked"]; ok {
		b, ok := locked.(bool)
		if !ok {
			recordLayer("user_status", false)
			return newSecurityError(layer, UserLocked, errors.New("locked claim is not a boolean"))
		}
		if b {
			recordLayer("user_status", false)
			return newSecurityError(layer, UserLocked, nil)
		}
	}
	if expiresAt, ok := raw["status_expires_at"]; ok {
		t, err := numericDate(expiresAt)
		if err != nil {
			recordLayer("user_status", false)
			return newSecurityError(layer, UserExpired, fmt.Errorf("status_expires_at: %w", err))
		}
		if time.Now().After(t) {
			recordLayer("user_status", false)
			return newSecurityError(layer, UserExpired, nil)
		}
	}
	recordLayer("user_status", true)
	return nil
}

// --- L10: Injection ---

func (v *Validator) checkInjection(token *jwt.Token, raw jwt.MapClaims) error {
	const layer = 10
	headerJSON, err := json.Marshal(token.Header)
	if err != nil {
		recordLayer("injection", false)
		return newSecurityError(layer, InjectionDetected, err)
	}
	payloadJSON, err := json.Marshal(map[string]interface{}(raw))
	if err != nil {
		recordLayer("injection", false)
		return newSecurityError(layer, InjectionDetected, err)
	}
	combined := string(headerJSON) + string(payloadJSON)
	for _, p := range v.patterns {
		if p.MatchString(combined) {
			recordLayer("injection", false)
			return newSecurityError(layer, InjectionDetected, nil)
		}
	}
	recordLayer("injection", true)
	return nil
}
