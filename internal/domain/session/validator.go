package session

import (
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Result is the outcome of validating a claims snapshot.
type Result string

const (
	ResultValid                 Result = "valid"
	ResultExpired               Result = "expired"
	ResultInsufficientPrivilege Result = "insufficient_privilege"
	ResultMalformed             Result = "malformed"
)

// Reason returns the human-readable denial reason for a non-valid result.
// These strings survive the redirect to the login page, so they are written
// for end users, not logs.
func (r Result) Reason() string {
	switch r {
	case ResultExpired:
		return "Session expired"
	case ResultInsufficientPrivilege:
		return "Admin access required"
	case ResultMalformed:
		return "Session invalid"
	case ResultValid:
		return ""
	default:
		return "Session invalid"
	}
}

// PrivilegePredicate decides whether a claims snapshot carries enough
// privilege for console access. The exact policy is a configuration decision;
// see AdminFlagPolicy and AdminDomainPolicy.
type PrivilegePredicate func(c Claims) bool

// Validator applies the validation rules to a claims snapshot.
// It is pure: no I/O, no side effects, no clock access of its own.
type Validator struct {
	Privileged PrivilegePredicate
}

// NewValidator constructs a Validator. A nil predicate falls back to
// AdminFlagPolicy.
func NewValidator(privileged PrivilegePredicate) Validator {
	if privileged == nil {
		privileged = AdminFlagPolicy()
	}
	return Validator{Privileged: privileged}
}

// Validate decides the validity of a claims snapshot at the given instant.
// Rules apply in order, first match wins:
//  1. nil or unusable claims -> Malformed
//  2. now at or past expiry  -> Expired
//  3. predicate rejects      -> InsufficientPrivilege
//  4. otherwise              -> Valid
//
// Expiry is checked before privilege: an expired token's claims cannot be
// trusted to represent current privilege, so "expired" is the more
// actionable answer for an expired-but-formerly-admin user.
func (v Validator) Validate(claims *Claims, now time.Time) Result {
	if claims == nil || claims.ExpiresAt.IsZero() {
		return ResultMalformed
	}
	if !now.Before(claims.ExpiresAt) {
		return ResultExpired
	}
	if v.Privileged != nil && !v.Privileged(*claims) {
		return ResultInsufficientPrivilege
	}
	return ResultValid
}

// AdminFlagPolicy grants privilege on the admin claim alone.
func AdminFlagPolicy() PrivilegePredicate {
	return func(c Claims) bool { return c.IsAdmin }
}

// AdminDomainPolicy grants privilege when the admin claim is set AND the
// claim email's domain is in the allowlist. Allowlist entries and email
// domains are compared on their registrable domain (eTLD+1), so
// "ops.example.com" matches an "example.com" entry while
// "evil-example.com" does not.
func AdminDomainPolicy(allowedDomains []string) PrivilegePredicate {
	allowed := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		allowed[registrableDomain(d)] = struct{}{}
	}

	return func(c Claims) bool {
		if !c.IsAdmin {
			return false
		}
		at := strings.LastIndex(c.Email, "@")
		if at < 0 || at == len(c.Email)-1 {
			return false
		}
		host := strings.ToLower(c.Email[at+1:])
		_, ok := allowed[registrableDomain(host)]
		return ok
	}
}

// registrableDomain reduces a host to its eTLD+1, falling back to the input
// when the public suffix list cannot resolve it (e.g., bare internal names).
func registrableDomain(host string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}
