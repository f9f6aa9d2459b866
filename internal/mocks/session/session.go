package session

// Package session contains simple hand-written test doubles for identity and
// bookkeeping ports. These are lightweight and suitable for unit tests
// without codegen.

import (
	"context"
	"sync"
	"time"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	"github.com/guestwave/console-auth/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider     = (*MockIdentityProvider)(nil)
	_ ports.ActivityStore        = (*MemoryActivityStore)(nil)
	_ ports.AuditRecorder        = (*MemoryAuditRecorder)(nil)
	_ ports.PendingRedirectStore = (*MemoryPendingRedirectStore)(nil)
)

// MockIdentityProvider simulates an identity provider for tests with
// overridable behavior and call counting. It is safe for concurrent use.
type MockIdentityProvider struct {
	ReadyFunc       func(ctx context.Context) error
	SignInFunc      func(ctx context.Context, email, password string) (domainsession.Credential, error)
	SignOutFunc     func(ctx context.Context) error
	FetchClaimsFunc func(ctx context.Context, cred domainsession.Credential, forceRefresh bool) (domainsession.Claims, error)

	// Defaults used when the corresponding Func is nil.
	DefaultCredential domainsession.Credential
	DefaultClaims     domainsession.Claims

	mu             sync.Mutex
	current        *domainsession.Credential
	listeners      map[int]func(*domainsession.Credential)
	nextListenerID int
	readyCalls     int
	signInCalls    int
	signOutCalls   int
	fetchCalls     int
}

// NewMockIdentityProvider creates a MockIdentityProvider with a signed-out
// default posture and an admin default user.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		DefaultCredential: domainsession.Credential{
			UserID:      "mock-user-1",
			Email:       "mock.user@guestwave.io",
			DisplayName: "Mock User",
		},
		DefaultClaims: domainsession.Claims{
			IsAdmin: true,
			Email:   "mock.user@guestwave.io",
		},
		listeners: make(map[int]func(*domainsession.Credential)),
	}
}

func (m *MockIdentityProvider) Ready(ctx context.Context) error {
	m.mu.Lock()
	m.readyCalls++
	m.mu.Unlock()
	if m.ReadyFunc != nil {
		return m.ReadyFunc(ctx)
	}
	return nil
}

func (m *MockIdentityProvider) SignIn(ctx context.Context, email, password string) (domainsession.Credential, error) {
	m.mu.Lock()
	m.signInCalls++
	m.mu.Unlock()
	if m.SignInFunc != nil {
		cred, err := m.SignInFunc(ctx, email, password)
		if err == nil {
			m.SetCurrentCredential(&cred)
		}
		return cred, err
	}

	cred := m.DefaultCredential
	cred.Email = email
	m.SetCurrentCredential(&cred)
	return cred, nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()
	m.SetCurrentCredential(nil)
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx)
	}
	return nil
}

func (m *MockIdentityProvider) CurrentCredential() *domainsession.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cred := *m.current
	return &cred
}

func (m *MockIdentityProvider) FetchClaims(ctx context.Context, cred domainsession.Credential, forceRefresh bool) (domainsession.Claims, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()
	if m.FetchClaimsFunc != nil {
		return m.FetchClaimsFunc(ctx, cred, forceRefresh)
	}

	claims := m.DefaultClaims
	if claims.Email == "" {
		claims.Email = cred.Email
	}
	if claims.ExpiresAt.IsZero() {
		claims.IssuedAt = time.Now()
		claims.ExpiresAt = time.Now().Add(time.Hour)
	}
	return claims, nil
}

func (m *MockIdentityProvider) OnCredentialChanged(listener func(*domainsession.Credential)) func() {
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

// SetCurrentCredential replaces the provider's current credential and
// notifies change listeners. Passing nil simulates provider-side sign-out or
// external expiry.
func (m *MockIdentityProvider) SetCurrentCredential(cred *domainsession.Credential) {
	m.mu.Lock()
	if cred == nil {
		m.current = nil
	} else {
		copied := *cred
		m.current = &copied
	}
	listeners := make([]func(*domainsession.Credential), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(cred)
	}
}

// ReadyCalls returns how many times Ready was invoked.
func (m *MockIdentityProvider) ReadyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyCalls
}

// SignInCalls returns how many times SignIn was invoked.
func (m *MockIdentityProvider) SignInCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signInCalls
}

// SignOutCalls returns how many times SignOut was invoked.
func (m *MockIdentityProvider) SignOutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}

// FetchClaimsCalls returns how many times FetchClaims was invoked.
func (m *MockIdentityProvider) FetchClaimsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// ListenerCount returns the number of registered change listeners.
func (m *MockIdentityProvider) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// MemoryActivityStore is an in-memory ports.ActivityStore.
type MemoryActivityStore struct {
	mu       sync.Mutex
	activity map[string]time.Time
	failWith error
}

// NewMemoryActivityStore creates an empty MemoryActivityStore.
func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{activity: make(map[string]time.Time)}
}

// FailWith makes every subsequent call return err. Pass nil to heal.
func (s *MemoryActivityStore) FailWith(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *MemoryActivityStore) TouchActivity(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.activity[userID] = at
	return nil
}

func (s *MemoryActivityStore) ClearActivity(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	delete(s.activity, userID)
	return nil
}

// LastActivity returns the recorded activity time and whether one exists.
func (s *MemoryActivityStore) LastActivity(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.activity[userID]
	return at, ok
}

// MemoryAuditRecorder is an in-memory ports.AuditRecorder.
type MemoryAuditRecorder struct {
	mu     sync.Mutex
	events []ports.AuditEvent
}

// NewMemoryAuditRecorder creates an empty MemoryAuditRecorder.
func NewMemoryAuditRecorder() *MemoryAuditRecorder {
	return &MemoryAuditRecorder{}
}

func (r *MemoryAuditRecorder) Record(ctx context.Context, ev ports.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of all recorded events in order.
func (r *MemoryAuditRecorder) Events() []ports.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOfType returns recorded events with the given type, in order.
func (r *MemoryAuditRecorder) EventsOfType(t ports.AuditEventType) []ports.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.AuditEvent
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// MemoryPendingRedirectStore is an in-memory ports.PendingRedirectStore.
type MemoryPendingRedirectStore struct {
	mu      sync.Mutex
	pending map[string]ports.PendingRedirect
}

// NewMemoryPendingRedirectStore creates an empty MemoryPendingRedirectStore.
func NewMemoryPendingRedirectStore() *MemoryPendingRedirectStore {
	return &MemoryPendingRedirectStore{pending: make(map[string]ports.PendingRedirect)}
}

func (s *MemoryPendingRedirectStore) SavePending(ctx context.Context, clientKey string, p ports.PendingRedirect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[clientKey] = p
	return nil
}

func (s *MemoryPendingRedirectStore) TakePending(ctx context.Context, clientKey string) (ports.PendingRedirect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[clientKey]
	if !ok {
		return ports.PendingRedirect{}, errNotFound{}
	}
	delete(s.pending, clientKey)
	return p, nil
}

// Len returns the number of stored pending redirects.
func (s *MemoryPendingRedirectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }
