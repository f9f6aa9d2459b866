package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestwave/console-auth/config"
	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	apperrors "github.com/guestwave/console-auth/internal/errors"
	mocksession "github.com/guestwave/console-auth/internal/mocks/session"
	"github.com/guestwave/console-auth/internal/ports"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		InitTimeout:                500 * time.Millisecond,
		InitRetries:                3,
		InitRetryBackoff:           time.Millisecond,
		RevalidateInterval:         time.Hour,
		RevalidateFailureTolerance: 1,
	}
}

func newTestManager(provider *mocksession.MockIdentityProvider, cfg config.SessionConfig) (*SessionManager, *mocksession.MemoryActivityStore, *mocksession.MemoryAuditRecorder) {
	activity := mocksession.NewMemoryActivityStore()
	audit := mocksession.NewMemoryAuditRecorder()
	mgr := NewSessionManager(SessionManagerOptions{
		Provider:  provider,
		Validator: domainsession.NewValidator(nil),
		Activity:  activity,
		Audit:     audit,
		Config:    cfg,
	})
	return mgr, activity, audit
}

func TestSessionManager_InitializeSignedOut(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	state, err := mgr.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domainsession.StatusInvalid, state.Status)
	assert.False(t, mgr.IsAuthenticated())
	assert.Equal(t, 1, provider.ReadyCalls())
	assert.Equal(t, 1, provider.ListenerCount())
}

func TestSessionManager_InitializeConcurrentSharesOneFlight(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	release := make(chan struct{})
	provider.ReadyFunc = func(ctx context.Context) error {
		<-release
		return nil
	}
	cred := domainsession.Credential{UserID: "u1", Email: "ops@guestwave.io"}
	provider.SetCurrentCredential(&cred)

	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	const callers = 8
	states := make([]domainsession.State, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i], errs[i] = mgr.Initialize(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// one readiness probe, one subscription, identical outcomes
	assert.Equal(t, 1, provider.ReadyCalls())
	assert.Equal(t, 1, provider.ListenerCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, domainsession.StatusValid, states[i].Status)
	}
	assert.True(t, mgr.IsAuthenticated())
}

func TestSessionManager_InitializeRetriesProviderUnavailable(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	attempts := 0
	provider.ReadyFunc = func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.ProviderUnavailable("still warming up")
		}
		return nil
	}

	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	state, err := mgr.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, domainsession.StatusInvalid, state.Status) // no credential present
}

func TestSessionManager_InitializeExhaustedRetries(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	provider.ReadyFunc = func(ctx context.Context) error {
		return apperrors.ProviderUnavailable("down")
	}

	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	state, err := mgr.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderUnavailable(err))
	assert.Equal(t, domainsession.StatusInvalid, state.Status)
	assert.Equal(t, 3, provider.ReadyCalls())
	assert.Equal(t, 0, provider.ListenerCount())
}

func TestSessionManager_InitializeTimeout(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	provider.ReadyFunc = func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	}
	cfg := testSessionConfig()
	cfg.InitTimeout = 20 * time.Millisecond
	cfg.InitRetries = 1

	mgr, _, _ := newTestManager(provider, cfg)
	defer mgr.Close()

	state, err := mgr.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsInitTimeout(err))
	assert.Equal(t, domainsession.StatusInvalid, state.Status)
	assert.False(t, mgr.IsAuthenticated())
}

func TestSessionManager_LoginEstablishesSession(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, activity, audit := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Initialize(context.Background())
	require.NoError(t, err)

	cred, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ops@guestwave.io", cred.Email)
	assert.True(t, mgr.IsAuthenticated())
	assert.True(t, mgr.RevalidationActive())

	_, touched := activity.LastActivity(cred.UserID)
	assert.True(t, touched)
	require.Len(t, audit.EventsOfType(ports.AuditLoginSucceeded), 1)
}

func TestSessionManager_LoginBadPasswordLeavesNoPartialSession(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	provider.SignInFunc = func(ctx context.Context, email, password string) (domainsession.Credential, error) {
		return domainsession.Credential{}, apperrors.InvalidCredentials("invalid email or password")
	}
	mgr, _, audit := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "a@x.com", "bad")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidCredentials(err))
	assert.False(t, mgr.IsAuthenticated())
	assert.Nil(t, mgr.CurrentUser())
	assert.False(t, mgr.RevalidationActive())
	require.Len(t, audit.EventsOfType(ports.AuditLoginFailed), 1)
}

func TestSessionManager_LoginNonAdminSignsBackOut(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	provider.DefaultClaims.IsAdmin = false
	mgr, _, audit := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "guest@guestwave.io", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsInsufficientPrivilege(err))
	assert.False(t, mgr.IsAuthenticated())
	// the half-established provider session must be torn down
	assert.Equal(t, 1, provider.SignOutCalls())

	failed := audit.EventsOfType(ports.AuditLoginFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "Admin access required", failed[0].Reason)
}

func TestSessionManager_LoginExpiredClaims(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	provider.DefaultClaims = domainsession.Claims{
		IsAdmin:   true,
		IssuedAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Second),
	}
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionExpired(err))
	assert.Equal(t, domainsession.StatusExpired, mgr.CurrentState().Status)
}

func TestSessionManager_SignOutIdempotent(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, activity, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	cred, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)

	var notifications []*domainsession.Credential
	var mu sync.Mutex
	unsub := mgr.Subscribe(func(c *domainsession.Credential) {
		mu.Lock()
		notifications = append(notifications, c)
		mu.Unlock()
	})
	defer unsub()

	mgr.SignOut(context.Background(), "Session expired")
	mgr.SignOut(context.Background(), "Session expired")

	assert.False(t, mgr.IsAuthenticated())
	assert.False(t, mgr.RevalidationActive())
	_, touched := activity.LastActivity(cred.UserID)
	assert.False(t, touched)

	mu.Lock()
	defer mu.Unlock()
	// repeated sign-out does not re-notify
	require.Len(t, notifications, 1)
	assert.Nil(t, notifications[0])
}

func TestSessionManager_ListenerPanicIsolated(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	var secondCalled bool
	mgr.Subscribe(func(*domainsession.Credential) { panic("listener bug") })
	mgr.Subscribe(func(*domainsession.Credential) { secondCalled = true })

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)
	assert.True(t, secondCalled)
}

func TestSessionManager_SubscribeUnsubscribe(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	calls := 0
	unsub := mgr.Subscribe(func(*domainsession.Credential) { calls++ })

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsub()
	mgr.SignOut(context.Background(), "done")
	assert.Equal(t, 1, calls)
}

func TestSessionManager_RevalidatePrivilegeFlip(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)
	require.True(t, mgr.IsAuthenticated())

	// privilege revoked server-side; the next tick must sign out
	provider.DefaultClaims.IsAdmin = false
	mgr.revalidateOnce(context.Background())

	assert.False(t, mgr.IsAuthenticated())
	assert.Equal(t, domainsession.StatusInvalid, mgr.CurrentState().Status)
	assert.False(t, mgr.RevalidationActive())
}

func TestSessionManager_RevalidateExpiry(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)

	provider.DefaultClaims = domainsession.Claims{
		IsAdmin:   true,
		IssuedAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	mgr.revalidateOnce(context.Background())

	assert.Equal(t, domainsession.StatusExpired, mgr.CurrentState().Status)
	assert.False(t, mgr.IsAuthenticated())
}

func TestSessionManager_RevalidateFailureTolerance(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	cfg := testSessionConfig()
	cfg.RevalidateFailureTolerance = 2
	mgr, _, _ := newTestManager(provider, cfg)
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)

	provider.FetchClaimsFunc = func(ctx context.Context, cred domainsession.Credential, force bool) (domainsession.Claims, error) {
		return domainsession.Claims{}, apperrors.TokenFetch("transient")
	}

	// first failure is tolerated
	mgr.revalidateOnce(context.Background())
	assert.True(t, mgr.IsAuthenticated())

	// second consecutive failure signs out
	mgr.revalidateOnce(context.Background())
	assert.False(t, mgr.IsAuthenticated())
}

func TestSessionManager_RevalidateFailureCounterResets(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	cfg := testSessionConfig()
	cfg.RevalidateFailureTolerance = 2
	mgr, _, _ := newTestManager(provider, cfg)
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)

	fail := true
	provider.FetchClaimsFunc = func(ctx context.Context, cred domainsession.Credential, force bool) (domainsession.Claims, error) {
		if fail {
			return domainsession.Claims{}, apperrors.TokenFetch("transient")
		}
		return domainsession.Claims{
			IsAdmin:   true,
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil
	}

	mgr.revalidateOnce(context.Background())
	fail = false
	mgr.revalidateOnce(context.Background()) // success resets the counter
	fail = true
	mgr.revalidateOnce(context.Background())

	assert.True(t, mgr.IsAuthenticated())
}

func TestSessionManager_SingleTimerAcrossCycles(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	for i := 0; i < 3; i++ {
		_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
		require.NoError(t, err)
		assert.True(t, mgr.RevalidationActive())
		mgr.SignOut(context.Background(), "cycling")
		assert.False(t, mgr.RevalidationActive())
	}
}

func TestSessionManager_ProviderCredentialLossSignsOut(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Initialize(context.Background())
	require.NoError(t, err)
	_, err = mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)

	// provider detects external expiry
	provider.SetCurrentCredential(nil)

	assert.False(t, mgr.IsAuthenticated())
	assert.Equal(t, domainsession.StatusExpired, mgr.CurrentState().Status)
}

func TestSessionManager_CheckRefreshesAndValidates(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)
	before := provider.FetchClaimsCalls()

	result, err := mgr.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domainsession.ResultValid, result)
	assert.Equal(t, before+1, provider.FetchClaimsCalls())
}

func TestSessionManager_CheckWithoutUser(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Check(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidCredentials(err))
}

func TestSessionManager_CheckExpiredSignsOut(t *testing.T) {
	provider := mocksession.NewMockIdentityProvider()
	mgr, _, _ := newTestManager(provider, testSessionConfig())
	defer mgr.Close()

	_, err := mgr.Login(context.Background(), "ops@guestwave.io", "secret")
	require.NoError(t, err)

	provider.DefaultClaims = domainsession.Claims{
		IsAdmin:   true,
		IssuedAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Second),
	}

	result, err := mgr.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domainsession.ResultExpired, result)
	assert.False(t, mgr.IsAuthenticated())
}
