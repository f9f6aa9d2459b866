package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	mocksession "github.com/guestwave/console-auth/internal/mocks/session"
	"github.com/guestwave/console-auth/internal/ports"
)

// fakeSessions is a minimal SessionChecker for guard tests.
type fakeSessions struct {
	user       *domainsession.Credential
	result     domainsession.Result
	err        error
	checkCalls int
}

func (f *fakeSessions) CurrentUser() *domainsession.Credential { return f.user }

func (f *fakeSessions) Check(ctx context.Context) (domainsession.Result, error) {
	f.checkCalls++
	return f.result, f.err
}

func newTestGuard(sessions SessionChecker) (*Guard, *mocksession.MemoryPendingRedirectStore, *mocksession.MemoryAuditRecorder) {
	pending := mocksession.NewMemoryPendingRedirectStore()
	audit := mocksession.NewMemoryAuditRecorder()
	g := NewGuard(GuardOptions{
		Sessions:          sessions,
		Pending:           pending,
		Audit:             audit,
		LoginPath:         "/login",
		PublicPaths:       []string{"/signed-out", "/health"},
		ProtectedPrefixes: []string{"/admin"},
	})
	return g, pending, audit
}

func TestGuard_ClassifyFailClosed(t *testing.T) {
	g, _, _ := newTestGuard(&fakeSessions{})

	assert.Equal(t, ClassPublic, g.Classify("/login"))
	assert.Equal(t, ClassPublic, g.Classify("/health"))
	assert.Equal(t, ClassProtected, g.Classify("/admin/settings"))
	// unregistered paths are protected, never implicitly public
	assert.Equal(t, ClassProtected, g.Classify("/never-registered"))
	assert.Equal(t, ClassProtected, g.Classify("/"))
}

func TestGuard_ClassifyNormalizesPaths(t *testing.T) {
	g, _, _ := newTestGuard(&fakeSessions{})

	assert.Equal(t, ClassPublic, g.Classify("/login/"))
	assert.Equal(t, ClassPublic, g.Classify(" /login "))
}

func TestGuard_AuthorizePublicAlwaysAllows(t *testing.T) {
	sessions := &fakeSessions{}
	g, _, _ := newTestGuard(sessions)

	decision := g.Authorize(context.Background(), "/login")
	assert.True(t, decision.Allow)
	assert.Zero(t, sessions.checkCalls)
}

func TestGuard_AuthorizeNoUser(t *testing.T) {
	sessions := &fakeSessions{}
	g, _, _ := newTestGuard(sessions)

	decision := g.Authorize(context.Background(), "/admin/settings")
	assert.False(t, decision.Allow)
	assert.Equal(t, "Authentication required", decision.Reason)
	// no claims check without a user
	assert.Zero(t, sessions.checkCalls)
}

func TestGuard_AuthorizeValidSession(t *testing.T) {
	sessions := &fakeSessions{
		user:   &domainsession.Credential{UserID: "u1"},
		result: domainsession.ResultValid,
	}
	g, _, _ := newTestGuard(sessions)

	decision := g.Authorize(context.Background(), "/admin/settings")
	assert.True(t, decision.Allow)
	assert.Equal(t, 1, sessions.checkCalls)
}

func TestGuard_AuthorizeDenialReasons(t *testing.T) {
	tests := []struct {
		name   string
		result domainsession.Result
		reason string
	}{
		{"expired", domainsession.ResultExpired, "Session expired"},
		{"insufficient privilege", domainsession.ResultInsufficientPrivilege, "Admin access required"},
		{"malformed", domainsession.ResultMalformed, "Session invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{
				user:   &domainsession.Credential{UserID: "u1"},
				result: tt.result,
			}
			g, _, _ := newTestGuard(sessions)

			decision := g.Authorize(context.Background(), "/admin/settings")
			assert.False(t, decision.Allow)
			assert.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestGuard_AuthorizeCheckError(t *testing.T) {
	sessions := &fakeSessions{
		user:   &domainsession.Credential{UserID: "u1"},
		result: domainsession.ResultMalformed,
		err:    context.DeadlineExceeded,
	}
	g, _, _ := newTestGuard(sessions)

	decision := g.Authorize(context.Background(), "/admin/settings")
	assert.False(t, decision.Allow)
	assert.Equal(t, "Session invalid", decision.Reason)
}

func TestGuard_OnDenyRedirectsOnce(t *testing.T) {
	g, pending, audit := newTestGuard(&fakeSessions{})
	ctx := context.Background()

	target, issued := g.OnDeny(ctx, "client-1", "/admin", "/admin/settings", "Authentication required")
	assert.True(t, issued)
	assert.Equal(t, "/login", target)

	// further denials while the redirect is pending are suppressed
	_, issued = g.OnDeny(ctx, "client-1", "/admin", "/admin/reports", "Authentication required")
	assert.False(t, issued)

	saved, err := pending.TakePending(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "/admin/settings", saved.Path)
	assert.Equal(t, "Authentication required", saved.Reason)

	denied := audit.EventsOfType(ports.AuditAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "/admin/settings", denied[0].Path)
}

func TestGuard_OnDenySuppressedOnPublicPath(t *testing.T) {
	g, pending, _ := newTestGuard(&fakeSessions{})
	ctx := context.Background()

	// stray auth checks fired from the login page must never redirect
	for i := 0; i < 5; i++ {
		_, issued := g.OnDeny(ctx, "client-1", "/login", "/admin/settings", "Authentication required")
		assert.False(t, issued)
	}
	assert.Zero(t, pending.Len())
}

func TestGuard_RedirectPendingClearsOnPublicArrival(t *testing.T) {
	g, _, _ := newTestGuard(&fakeSessions{})
	ctx := context.Background()

	_, issued := g.OnDeny(ctx, "client-1", "/admin", "/admin/settings", "Authentication required")
	require.True(t, issued)

	// landing on the login page resolves the pending redirect
	assert.True(t, g.Authorize(ctx, "/login").Allow)

	_, issued = g.OnDeny(ctx, "client-1", "/admin", "/admin/settings", "Authentication required")
	assert.True(t, issued)
}

func TestGuard_ConsumePending(t *testing.T) {
	g, _, _ := newTestGuard(&fakeSessions{})
	ctx := context.Background()

	_, issued := g.OnDeny(ctx, "client-1", "/admin", "/admin/settings", "Session expired")
	require.True(t, issued)

	p := g.ConsumePending(ctx, "client-1", "/dashboard")
	assert.Equal(t, "/admin/settings", p.Path)
	assert.Equal(t, "Session expired", p.Reason)

	// consumed: next take falls back to the default path
	p = g.ConsumePending(ctx, "client-1", "/dashboard")
	assert.Equal(t, "/dashboard", p.Path)
}
