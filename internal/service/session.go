package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/guestwave/console-auth/config"
	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	apperrors "github.com/guestwave/console-auth/internal/errors"
	"github.com/guestwave/console-auth/internal/ports"
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Provider  ports.IdentityProvider
	Validator domainsession.Validator
	Activity  ports.ActivityStore // optional, best-effort bookkeeping
	Audit     ports.AuditRecorder // optional, best-effort audit trail
	Config    config.SessionConfig
	Logger    *slog.Logger
	Now       func() time.Time
}

// SessionManager owns the process-wide session lifecycle: one-time
// initialization, login/sign-out, periodic re-validation, and listener
// fan-out on state change. It is the sole mutator of the session state.
type SessionManager struct {
	provider  ports.IdentityProvider
	validator domainsession.Validator
	activity  ports.ActivityStore
	audit     ports.AuditRecorder
	cfg       config.SessionConfig
	logger    *slog.Logger
	now       func() time.Time

	initFlight singleflight.Group

	mu             sync.Mutex
	state          domainsession.State
	credUnsub      func()
	listeners      map[int]func(*domainsession.Credential)
	nextListenerID int
	revalStop      chan struct{}
	revalFailures  int
	signingOut     bool
}

// NewSessionManager constructs a SessionManager. The session starts
// uninitialized; callers must run Initialize before login or authorization.
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config
	cfg.Sanitize()

	return &SessionManager{
		provider:  opts.Provider,
		validator: opts.Validator,
		activity:  opts.Activity,
		audit:     opts.Audit,
		cfg:       cfg,
		logger:    logger,
		now:       now,
		state:     domainsession.State{Status: domainsession.StatusUninitialized},
		listeners: make(map[int]func(*domainsession.Credential)),
	}
}

// Initialize performs the provider readiness check and one immediate session
// check. It is idempotent under concurrency: overlapping callers share one
// in-flight initialization and observe the same result, with no duplicate
// provider calls or listener registrations. On readiness failure the session
// is left in a safe logged-out posture and the error is surfaced.
func (m *SessionManager) Initialize(ctx context.Context) (domainsession.State, error) {
	v, err, _ := m.initFlight.Do("init", func() (any, error) {
		return m.runInitialize(ctx)
	})
	state, ok := v.(domainsession.State)
	if !ok {
		state = m.CurrentState()
	}
	return state, err
}

func (m *SessionManager) runInitialize(ctx context.Context) (domainsession.State, error) {
	m.setStatus(domainsession.StatusInitializing)

	if err := m.awaitProviderReady(ctx); err != nil {
		m.mu.Lock()
		m.state = domainsession.State{Status: domainsession.StatusInvalid}
		m.mu.Unlock()
		m.logger.Error("session initialization failed", "error", err)
		return m.CurrentState(), err
	}

	m.ensureCredentialSubscription()
	return m.checkExistingSession(ctx), nil
}

// awaitProviderReady runs the readiness probe with a per-attempt timeout and
// bounded retries. Only provider-unavailable errors are retried. The probe is
// raced against a timer; a late result is disregarded, not aborted.
func (m *SessionManager) awaitProviderReady(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.InitRetries; attempt++ {
		err := m.readyWithTimeout(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if apperrors.IsInitTimeout(err) || !apperrors.IsProviderUnavailable(err) {
			return err
		}
		if attempt < m.cfg.InitRetries {
			m.logger.Warn("identity provider not ready, retrying",
				"attempt", attempt, "backoff", m.cfg.InitRetryBackoff, "error", err)
			select {
			case <-time.After(m.cfg.InitRetryBackoff):
			case <-ctx.Done():
				return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeProviderUnavailable, "initialization cancelled")
			}
		}
	}
	return lastErr
}

func (m *SessionManager) readyWithTimeout(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- m.provider.Ready(ctx)
	}()

	timer := time.NewTimer(m.cfg.InitTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err == nil || apperrors.IsProviderUnavailable(err) {
			return err
		}
		return apperrors.Wrap(err, apperrors.ErrCodeProviderUnavailable, "identity provider readiness check failed")
	case <-timer.C:
		return apperrors.Newf(apperrors.ErrCodeInitTimeout,
			"identity provider readiness check exceeded %s", m.cfg.InitTimeout)
	}
}

// checkExistingSession validates any credential the provider already holds
// (e.g., restored from a prior process) and establishes the session on
// success. Absence of a credential is a normal logged-out posture, not an
// error.
func (m *SessionManager) checkExistingSession(ctx context.Context) domainsession.State {
	cred := m.provider.CurrentCredential()
	if cred == nil {
		m.setStatus(domainsession.StatusInvalid)
		return m.CurrentState()
	}

	claims, err := m.provider.FetchClaims(ctx, *cred, true)
	if err != nil {
		m.logger.Warn("claims fetch failed during initialization", "error", err)
		m.signOut(ctx, "Session invalid", domainsession.StatusInvalid)
		return m.CurrentState()
	}

	result := m.validator.Validate(&claims, m.now())
	if result != domainsession.ResultValid {
		m.signOut(ctx, result.Reason(), statusForResult(result))
		return m.CurrentState()
	}

	m.establishSession(*cred, claims)
	return m.CurrentState()
}

// Login authenticates, then immediately force-refreshes claims and validates
// them. Any non-valid outcome signs the half-established session back out and
// fails the call with the corresponding reason.
func (m *SessionManager) Login(ctx context.Context, email, password string) (domainsession.Credential, error) {
	cred, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		m.recordAudit(ctx, ports.AuditEvent{Type: ports.AuditLoginFailed, Email: email, Reason: "sign-in rejected"})
		return domainsession.Credential{}, err
	}

	claims, err := m.provider.FetchClaims(ctx, cred, true)
	if err != nil {
		m.signOut(ctx, "Session invalid", domainsession.StatusInvalid)
		m.recordAudit(ctx, ports.AuditEvent{
			Type: ports.AuditLoginFailed, UserID: cred.UserID, Email: cred.Email, Reason: "claims fetch failed",
		})
		return domainsession.Credential{}, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "fetch claims after sign-in")
	}

	result := m.validator.Validate(&claims, m.now())
	if result != domainsession.ResultValid {
		reason := result.Reason()
		m.signOut(ctx, reason, statusForResult(result))
		m.recordAudit(ctx, ports.AuditEvent{
			Type: ports.AuditLoginFailed, UserID: cred.UserID, Email: cred.Email, Reason: reason,
		})
		return domainsession.Credential{}, errorForResult(result)
	}

	m.establishSession(cred, claims)
	m.touchActivity(ctx, cred.UserID)
	m.recordAudit(ctx, ports.AuditEvent{
		Type: ports.AuditLoginSucceeded, UserID: cred.UserID, Email: cred.Email,
	})
	return cred, nil
}

// establishSession installs a validated credential/claims pair, notifies
// listeners, and (re-)arms the background re-validation timer.
func (m *SessionManager) establishSession(cred domainsession.Credential, claims domainsession.Claims) {
	m.mu.Lock()
	m.state = domainsession.State{
		Credential:      &cred,
		Claims:          &claims,
		Status:          domainsession.StatusValid,
		LastValidatedAt: m.now(),
	}
	m.revalFailures = 0
	m.mu.Unlock()

	m.notify(&cred)
	m.armRevalidation()
}

// SignOut clears the session, notifies listeners with a nil credential, and
// tears down the re-validation timer. It is idempotent: a concurrent call
// while one is in flight is a no-op, and repeating it on a signed-out session
// does not re-notify listeners. Provider sign-out and bookkeeping failures
// are logged, never propagated; local sign-out must not be blockable by
// provider reachability.
func (m *SessionManager) SignOut(ctx context.Context, reason string) {
	m.signOut(ctx, reason, domainsession.StatusInvalid)
}

func (m *SessionManager) signOut(ctx context.Context, reason string, final domainsession.Status) {
	m.mu.Lock()
	if m.signingOut {
		m.mu.Unlock()
		return
	}
	m.signingOut = true
	cred := m.state.Credential
	alreadyOut := cred == nil && m.state.Status == final
	m.state = domainsession.State{Status: final}
	m.stopRevalidationLocked()
	m.revalFailures = 0
	m.mu.Unlock()

	if !alreadyOut {
		m.notify(nil)
	}

	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("provider sign-out failed", "error", err)
	}
	if cred != nil {
		if m.activity != nil {
			if err := m.activity.ClearActivity(ctx, cred.UserID); err != nil {
				m.logger.Warn("clear activity failed", "user_id", cred.UserID, "error", err)
			}
		}
		m.recordAudit(ctx, ports.AuditEvent{
			Type: ports.AuditSignedOut, UserID: cred.UserID, Email: cred.Email, Reason: reason,
		})
	}

	m.mu.Lock()
	m.signingOut = false
	m.mu.Unlock()
}

// CurrentUser returns the current credential, or nil when signed out.
func (m *SessionManager) CurrentUser() *domainsession.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Credential == nil {
		return nil
	}
	cred := *m.state.Credential
	return &cred
}

// IsAuthenticated reports whether a validated session is present.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated()
}

// CurrentState returns a snapshot of the session state.
func (m *SessionManager) CurrentState() domainsession.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener invoked on every session state transition
// with the new credential (nil on sign-out). The returned function
// unsubscribes. A panicking listener is logged and never breaks the fan-out.
func (m *SessionManager) Subscribe(listener func(*domainsession.Credential)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextListenerID
	m.nextListenerID++
	m.listeners[id] = listener
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Check force-refreshes claims for the current credential and validates them,
// updating the session on a valid outcome and signing out with the matching
// reason otherwise. Callers gate protected actions on the returned result.
func (m *SessionManager) Check(ctx context.Context) (domainsession.Result, error) {
	cred := m.CurrentUser()
	if cred == nil {
		return domainsession.ResultMalformed, apperrors.InvalidCredentials("no signed-in user")
	}

	claims, err := m.provider.FetchClaims(ctx, *cred, true)
	if err != nil {
		m.logger.Warn("claims refresh failed during check", "user_id", cred.UserID, "error", err)
		m.signOut(ctx, "Session invalid", domainsession.StatusInvalid)
		return domainsession.ResultMalformed, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "refresh claims")
	}

	result := m.validator.Validate(&claims, m.now())
	if result != domainsession.ResultValid {
		m.signOut(ctx, result.Reason(), statusForResult(result))
		return result, nil
	}

	m.mu.Lock()
	if m.state.Status == domainsession.StatusValid {
		m.state.Claims = &claims
		m.state.LastValidatedAt = m.now()
	}
	m.mu.Unlock()
	m.touchActivity(ctx, cred.UserID)
	return domainsession.ResultValid, nil
}

// Close tears down the manager: re-validation timer, provider subscription,
// and listener set.
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.stopRevalidationLocked()
	unsub := m.credUnsub
	m.credUnsub = nil
	m.listeners = make(map[int]func(*domainsession.Credential))
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// RevalidationActive reports whether the background re-validation timer is
// armed. Exposed for lifecycle observability.
func (m *SessionManager) RevalidationActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revalStop != nil
}

func (m *SessionManager) setStatus(status domainsession.Status) {
	m.mu.Lock()
	m.state.Status = status
	m.mu.Unlock()
}

// ensureCredentialSubscription registers the provider credential-change
// listener exactly once across any number of Initialize calls.
func (m *SessionManager) ensureCredentialSubscription() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credUnsub != nil {
		return
	}
	m.credUnsub = m.provider.OnCredentialChanged(m.onProviderCredentialChanged)
}

// onProviderCredentialChanged reacts to provider-side credential loss
// (external expiry, remote sign-out). Sign-ins flow through Login and need no
// handling here.
func (m *SessionManager) onProviderCredentialChanged(cred *domainsession.Credential) {
	if cred != nil {
		return
	}
	m.mu.Lock()
	wasValid := m.state.Status == domainsession.StatusValid
	m.mu.Unlock()
	if wasValid {
		m.logger.Info("provider reported credential loss, signing out")
		m.signOut(context.Background(), "Session expired", domainsession.StatusExpired)
	}
}

// armRevalidation starts the background re-validation timer. Arming is an
// atomic clear-then-set: any prior timer is stopped first, so at most one
// timer exists at a time across any number of sign-in/sign-out cycles.
func (m *SessionManager) armRevalidation() {
	m.mu.Lock()
	m.stopRevalidationLocked()
	stop := make(chan struct{})
	m.revalStop = stop
	m.mu.Unlock()

	go m.revalidateLoop(stop)
}

func (m *SessionManager) stopRevalidationLocked() {
	if m.revalStop != nil {
		close(m.revalStop)
		m.revalStop = nil
	}
}

func (m *SessionManager) revalidateLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.RevalidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.revalidateOnce(context.Background())
		}
	}
}

// revalidateOnce is one background tick: force-refresh claims and re-run the
// validator. Provider errors are tolerated up to the configured number of
// consecutive failures before signing out; a non-valid validation outcome
// signs out immediately with the matching reason.
func (m *SessionManager) revalidateOnce(ctx context.Context) {
	m.mu.Lock()
	if m.state.Status != domainsession.StatusValid || m.state.Credential == nil {
		m.mu.Unlock()
		return
	}
	cred := *m.state.Credential
	m.mu.Unlock()

	claims, err := m.provider.FetchClaims(ctx, cred, true)
	if err != nil {
		m.mu.Lock()
		m.revalFailures++
		failures := m.revalFailures
		m.mu.Unlock()

		if failures < m.cfg.RevalidateFailureTolerance {
			m.logger.Warn("background re-validation failed, retrying next tick",
				"user_id", cred.UserID, "consecutive_failures", failures, "error", err)
			return
		}
		m.logger.Warn("background re-validation failed, signing out",
			"user_id", cred.UserID, "consecutive_failures", failures, "error", err)
		m.signOut(ctx, "Session invalid", domainsession.StatusInvalid)
		return
	}

	m.mu.Lock()
	m.revalFailures = 0
	m.mu.Unlock()

	result := m.validator.Validate(&claims, m.now())
	if result != domainsession.ResultValid {
		m.logger.Info("background re-validation rejected session",
			"user_id", cred.UserID, "result", string(result))
		m.signOut(ctx, result.Reason(), statusForResult(result))
		return
	}

	m.mu.Lock()
	if m.state.Status == domainsession.StatusValid {
		m.state.Claims = &claims
		m.state.LastValidatedAt = m.now()
	}
	m.mu.Unlock()
	m.touchActivity(ctx, cred.UserID)
}

// notify fans the new credential out to all listeners. Each invocation is
// isolated: a panic in one listener is recovered and logged, and the
// remaining listeners still run.
func (m *SessionManager) notify(cred *domainsession.Credential) {
	m.mu.Lock()
	listeners := make([]func(*domainsession.Credential), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("session listener panicked", "panic", r)
				}
			}()
			listener(cred)
		}()
	}
}

func (m *SessionManager) touchActivity(ctx context.Context, userID string) {
	if m.activity == nil {
		return
	}
	if err := m.activity.TouchActivity(ctx, userID, m.now()); err != nil {
		m.logger.Warn("touch activity failed", "user_id", userID, "error", err)
	}
}

func (m *SessionManager) recordAudit(ctx context.Context, event ports.AuditEvent) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Record(ctx, event); err != nil {
		m.logger.Warn("audit record failed", "event_type", string(event.Type), "error", err)
	}
}

func statusForResult(result domainsession.Result) domainsession.Status {
	if result == domainsession.ResultExpired {
		return domainsession.StatusExpired
	}
	return domainsession.StatusInvalid
}

func errorForResult(result domainsession.Result) error {
	switch result {
	case domainsession.ResultExpired:
		return apperrors.SessionExpired(result.Reason())
	case domainsession.ResultInsufficientPrivilege:
		return apperrors.InsufficientPrivilege(result.Reason())
	default:
		return apperrors.MalformedClaims(result.Reason())
	}
}
