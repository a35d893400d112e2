// Package principal holds the validated-subject type produced by the token
// pipeline (pkg/tokenvalidator) and the role-normalisation algorithm shared
// between that pipeline and any downstream authorisation check.
package principal

import (
	"fmt"
	"regexp"
	"strings"
)

// Principal is the authenticated subject of a unit of work, immutable once
// validated.
type Principal struct {
	UserID    string
	TenantID  string
	Roles     []string
	JTI       string
	SessionID string
}

// HasRole reports whether p carries the given normalised role or
// permission string exactly.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var allowedChars = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

const maxRoleLength = 256

// NormalizeRole implements the role-normalisation algorithm used by L8 of
// the token pipeline and by any downstream authorisation check:
//
//   - Outer whitespace is trimmed; blank after trim is rejected.
//   - Length after normalisation must be <= 256, and every character must be
//     a letter, digit, '_', '-', '.', or ':'.
//   - A name containing ':' is a permission of the form a:b:..., every
//     colon-separated segment non-empty and passing the character rule;
//     permissions are returned verbatim (but still trimmed).
//   - Otherwise all leading case-insensitive "ROLE_" prefixes are stripped
//     (so "ROLE_ROLE_x" -> "x"); blank after stripping is rejected; the
//     result is returned as "ROLE_" + stripped.
//
// NormalizeRole is idempotent: NormalizeRole(NormalizeRole(x)) ==
// NormalizeRole(x) for every x it accepts.
func NormalizeRole(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("principal: blank role")
	}

	if strings.Contains(trimmed, ":") {
		return normalizePermission(trimmed)
	}

	if len(trimmed) > maxRoleLength {
		return "", fmt.Errorf("principal: role %q exceeds %d characters", trimmed, maxRoleLength)
	}
	if !allowedChars.MatchString(trimmed) {
		return "", fmt.Errorf("principal: role %q contains disallowed characters", trimmed)
	}

	stripped := trimmed
	for {
		upper := strings.ToUpper(stripped)
		if !strings.HasPrefix(upper, "ROLE_") {
			break
		}
		stripped = stripped[len("ROLE_"):]
	}
	if stripped == "" {
		return "", fmt.Errorf("principal: role %q is only ROLE_ prefixes", trimmed)
	}
	if len(stripped) > maxRoleLength {
		return "", fmt.Errorf("principal: role %q exceeds %d characters", trimmed, maxRoleLength)
	}

	return "ROLE_" + stripped, nil
}

func normalizePermission(trimmed string) (string, error) {
	if len(trimmed) > maxRoleLength {
		return "", fmt.Errorf("principal: permission %q exceeds %d characters", trimmed, maxRoleLength)
	}
	segments := strings.Split(trimmed, ":")
	for _, seg := range segments {
		if seg == "" {
			return "", fmt.Errorf("principal: permission %q has an empty segment", trimmed)
		}
		if !allowedChars.MatchString(seg) {
			return "", fmt.Errorf("principal: permission segment %q contains disallowed characters", seg)
		}
	}
	return trimmed, nil
}

// NormalizeRoles normalises every entry in raw, skipping duplicates after
// normalisation but failing the whole set if any single entry is invalid —
// the token pipeline treats a malformed role claim as a schema error, not
// as a silently dropped one.
func NormalizeRoles(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n, err := NormalizeRole(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}
