package httpx

import (
	"context"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
)

// credentialKey is an unexported context key type to avoid collisions across packages.
type credentialKey struct{}

// SetCredentialInContext returns a child context carrying the given credential.
// If cred is nil, the original ctx is returned unchanged.
func SetCredentialInContext(ctx context.Context, cred *domainsession.Credential) context.Context {
	if cred == nil {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, cred)
}

// CredentialFromContext returns the credential from context and a boolean
// indicating presence.
func CredentialFromContext(ctx context.Context) (*domainsession.Credential, bool) {
	if cred, ok := ctx.Value(credentialKey{}).(*domainsession.Credential); ok && cred != nil {
		return cred, true
	}
	return nil, false
}
