package ports

// Package ports defines interfaces (hexagonal ports) for identity and session
// bookkeeping behavior. Implementations live in internal/adapters and
// internal/data; orchestration in internal/service.

import (
	"context"
	"time"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
)

// IdentityProvider wraps the external identity/token service. Implementations
// must not retry internally; retry policy belongs to the caller.
type IdentityProvider interface {
	// Ready probes the provider for availability. It is called by session
	// initialization with its own timeout and retry budget.
	Ready(ctx context.Context) error

	// SignIn authenticates with email and password and returns the credential.
	SignIn(ctx context.Context, email, password string) (domainsession.Credential, error)

	// SignOut invalidates the provider-side session. Callers treat failure as
	// non-fatal: local sign-out must never be blockable by provider
	// reachability.
	SignOut(ctx context.Context) error

	// CurrentCredential returns the cached current credential, or nil when
	// signed out. It performs no I/O.
	CurrentCredential() *domainsession.Credential

	// FetchClaims returns a claims snapshot for the credential. With
	// forceRefresh the provider must bypass any local cache and derive the
	// snapshot from a freshly obtained token.
	FetchClaims(ctx context.Context, cred domainsession.Credential, forceRefresh bool) (domainsession.Claims, error)

	// OnCredentialChanged registers a listener invoked whenever the provider's
	// notion of the current credential changes (sign-in, sign-out, external
	// expiry). The returned function unsubscribes the listener.
	OnCredentialChanged(listener func(*domainsession.Credential)) (unsubscribe func())
}

// ActivityStore persists best-effort session bookkeeping. Failures are logged
// by callers and never fail the calling operation.
type ActivityStore interface {
	TouchActivity(ctx context.Context, userID string, at time.Time) error
	ClearActivity(ctx context.Context, userID string) error
}

// PendingRedirect carries the originally requested path and the denial reason
// across the redirect to the login entry point.
type PendingRedirect struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// PendingRedirectStore is the short-lived store backing "redirect back after
// login". Keys identify the browser client, not the user: denials mostly
// happen while signed out.
type PendingRedirectStore interface {
	SavePending(ctx context.Context, clientKey string, p PendingRedirect) error

	// TakePending returns and removes the pending redirect for the client.
	// A missing entry is reported via the store's not-found sentinel.
	TakePending(ctx context.Context, clientKey string) (PendingRedirect, error)
}

// AuditEvent is a single entry in the auth audit trail.
type AuditEvent struct {
	ID     string
	Type   AuditEventType
	UserID string
	Email  string
	Path   string
	Reason string
	At     time.Time
}

// AuditEventType categorizes audit trail entries.
type AuditEventType string

const (
	AuditLoginSucceeded AuditEventType = "login_succeeded"
	AuditLoginFailed    AuditEventType = "login_failed"
	AuditSignedOut      AuditEventType = "signed_out"
	AuditAccessDenied   AuditEventType = "access_denied"
)

// AuditRecorder persists auth events best-effort. The session-validity
// decision never depends on these writes succeeding.
type AuditRecorder interface {
	Record(ctx context.Context, ev AuditEvent) error
}
