package claimsmap

// Package claimsmap maps raw token claims into the domain claims shape using
// configurable JMESPath expressions, so renamed or nested provider claims
// ("resource_access.console.is_admin") need no code changes.

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
)

// Paths holds the JMESPath expressions locating authorization attributes in a
// raw claims document.
type Paths struct {
	Admin string
	Email string
	Role  string
}

// Mapper extracts domain claims from raw token claims.
type Mapper struct {
	paths Paths
}

// New validates the configured expressions. Role may be empty (providers that
// never set one); Admin and Email are required.
func New(paths Paths) (*Mapper, error) {
	if strings.TrimSpace(paths.Admin) == "" {
		return nil, fmt.Errorf("admin claim path is required")
	}
	if strings.TrimSpace(paths.Email) == "" {
		return nil, fmt.Errorf("email claim path is required")
	}

	if _, err := jmespath.Compile(paths.Admin); err != nil {
		return nil, fmt.Errorf("compile admin claim path %q: %w", paths.Admin, err)
	}
	if _, err := jmespath.Compile(paths.Email); err != nil {
		return nil, fmt.Errorf("compile email claim path %q: %w", paths.Email, err)
	}
	if paths.Role != "" {
		if _, err := jmespath.Compile(paths.Role); err != nil {
			return nil, fmt.Errorf("compile role claim path %q: %w", paths.Role, err)
		}
	}

	return &Mapper{paths: paths}, nil
}

// Map produces a claims snapshot from a raw claims document. IssuedAt and
// ExpiresAt come from the document's "iat"/"exp" when present, falling back
// to the supplied defaults.
func (m *Mapper) Map(raw map[string]any, issuedAt, expiresAt time.Time) domainsession.Claims {
	claims := domainsession.Claims{
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	if v, err := jmespath.Search(m.paths.Admin, raw); err == nil {
		claims.IsAdmin = truthy(v)
	}
	if v, err := jmespath.Search(m.paths.Email, raw); err == nil {
		claims.Email = stringValue(v)
	}
	if m.paths.Role != "" {
		if v, err := jmespath.Search(m.paths.Role, raw); err == nil {
			claims.Role = stringValue(v)
		}
	}

	if iat, ok := timeClaim(raw["iat"]); ok {
		claims.IssuedAt = iat
	}
	if exp, ok := timeClaim(raw["exp"]); ok {
		claims.ExpiresAt = exp
	}

	return claims
}

// truthy interprets the admin claim across the value shapes providers emit:
// booleans, "true"/"1" strings, and numeric flags.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// timeClaim converts a JSON numeric epoch claim to a time.Time.
func timeClaim(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0), true
	case int64:
		return time.Unix(t, 0), true
	case int:
		return time.Unix(int64(t), 0), true
	default:
		return time.Time{}, false
	}
}
