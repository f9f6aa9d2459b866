package routing

// Package routing gates navigation on session validity and dispatches allowed
// navigations to registered view activations.

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	"github.com/guestwave/console-auth/internal/ports"
)

// Classification is the access class of a path.
type Classification string

const (
	ClassPublic    Classification = "public"
	ClassProtected Classification = "protected"
)

// Decision is the outcome of an authorization check. Reason is set only on
// denial and is written for end-user display.
type Decision struct {
	Allow  bool
	Reason string
}

// Allow is the affirmative decision.
var Allow = Decision{Allow: true}

// Deny builds a denial with the given reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// SessionChecker is the slice of the session manager the guard needs.
type SessionChecker interface {
	CurrentUser() *domainsession.Credential
	Check(ctx context.Context) (domainsession.Result, error)
}

// GuardOptions groups dependencies for Guard.
type GuardOptions struct {
	Sessions          SessionChecker
	Pending           ports.PendingRedirectStore // optional, backs redirect-back-after-login
	Audit             ports.AuditRecorder        // optional, best-effort
	LoginPath         string
	PublicPaths       []string
	ProtectedPrefixes []string
	Logger            *slog.Logger
}

// Guard classifies paths and authorizes protected navigation. Unknown paths
// are protected: classification fails closed. Its only state beyond the
// registered path sets is the redirect-pending flag used for loop prevention.
type Guard struct {
	sessions  SessionChecker
	pending   ports.PendingRedirectStore
	audit     ports.AuditRecorder
	loginPath string
	logger    *slog.Logger

	mu                sync.RWMutex
	publicPaths       map[string]struct{}
	protectedPaths    map[string]struct{}
	protectedPrefixes []string
	redirectPending   bool
}

// NewGuard constructs a Guard. The login path is always public.
func NewGuard(opts GuardOptions) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	g := &Guard{
		sessions:       opts.Sessions,
		pending:        opts.Pending,
		audit:          opts.Audit,
		loginPath:      loginPath,
		logger:         logger,
		publicPaths:    make(map[string]struct{}),
		protectedPaths: make(map[string]struct{}),
	}
	g.RegisterPublic(loginPath)
	g.RegisterPublic(opts.PublicPaths...)
	g.RegisterProtectedPrefix(opts.ProtectedPrefixes...)
	return g
}

// RegisterPublic adds paths to the public set.
func (g *Guard) RegisterPublic(paths ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range paths {
		p = normalizePath(p)
		if p == "" {
			continue
		}
		g.publicPaths[p] = struct{}{}
	}
}

// RegisterProtected adds exact paths to the protected set.
func (g *Guard) RegisterProtected(paths ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range paths {
		p = normalizePath(p)
		if p == "" {
			continue
		}
		g.protectedPaths[p] = struct{}{}
	}
}

// RegisterProtectedPrefix adds path prefixes to the protected set.
func (g *Guard) RegisterProtectedPrefix(prefixes ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range prefixes {
		p = normalizePath(p)
		if p == "" {
			continue
		}
		g.protectedPrefixes = append(g.protectedPrefixes, p)
	}
}

// Classify returns the access class of a path. Public requires explicit
// registration; everything else, including unknown paths, is protected.
func (g *Guard) Classify(path string) Classification {
	path = normalizePath(path)
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.publicPaths[path]; ok {
		return ClassPublic
	}
	return ClassProtected
}

// Authorize decides whether a navigation to path may proceed. Public paths
// always pass; protected paths require a signed-in user whose force-refreshed
// claims validate.
func (g *Guard) Authorize(ctx context.Context, path string) Decision {
	if g.Classify(path) == ClassPublic {
		// Arriving on a public path resolves any pending redirect.
		g.mu.Lock()
		g.redirectPending = false
		g.mu.Unlock()
		return Allow
	}

	if g.sessions.CurrentUser() == nil {
		return Deny("Authentication required")
	}

	result, err := g.sessions.Check(ctx)
	if err != nil {
		g.logger.Warn("session check failed during authorization", "path", path, "error", err)
		return Deny("Session invalid")
	}
	if result != domainsession.ResultValid {
		return Deny(result.Reason())
	}
	return Allow
}

// OnDeny handles a denial: it records the requested path and reason for the
// post-login redirect and reports the login path as the redirect target.
// It is a no-op when the current path is already public (the login page
// itself must never bounce to login) or when a redirect is already pending,
// so denial storms issue at most one redirect.
func (g *Guard) OnDeny(ctx context.Context, clientKey, currentPath, requestedPath, reason string) (redirectTo string, issued bool) {
	if g.Classify(currentPath) == ClassPublic {
		return "", false
	}

	g.mu.Lock()
	if g.redirectPending {
		g.mu.Unlock()
		return "", false
	}
	g.redirectPending = true
	g.mu.Unlock()

	if g.pending != nil && clientKey != "" {
		p := ports.PendingRedirect{Path: requestedPath, Reason: reason}
		if err := g.pending.SavePending(ctx, clientKey, p); err != nil {
			g.logger.Warn("save pending redirect failed", "path", requestedPath, "error", err)
		}
	}
	g.recordDenied(ctx, requestedPath, reason)

	return g.loginPath, true
}

// ConsumePending returns and clears the stored redirect for a client after
// login, falling back to defaultPath when none is stored.
func (g *Guard) ConsumePending(ctx context.Context, clientKey, defaultPath string) ports.PendingRedirect {
	fallback := ports.PendingRedirect{Path: defaultPath}
	if g.pending == nil || clientKey == "" {
		return fallback
	}
	p, err := g.pending.TakePending(ctx, clientKey)
	if err != nil {
		return fallback
	}
	if p.Path == "" {
		p.Path = defaultPath
	}
	return p
}

func (g *Guard) recordDenied(ctx context.Context, path, reason string) {
	if g.audit == nil {
		return
	}
	event := ports.AuditEvent{Type: ports.AuditAccessDenied, Path: path, Reason: reason}
	if cred := g.sessions.CurrentUser(); cred != nil {
		event.UserID = cred.UserID
		event.Email = cred.Email
	}
	if err := g.audit.Record(ctx, event); err != nil {
		g.logger.Warn("audit record failed", "event_type", string(event.Type), "error", err)
	}
}

// normalizePath trims whitespace and any trailing slash (except for the root
// path) so registration and lookup agree on one spelling.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}
