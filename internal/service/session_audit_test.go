package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	"github.com/guestwave/console-auth/internal/mocks"
	mocksession "github.com/guestwave/console-auth/internal/mocks/session"
)

// Audit writes are best-effort. A failing sink must not block login or
// sign-out.
func TestSessionManager_AuditFailureDoesNotBlockLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditRecorder(ctrl)
	audit.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("audit sink down")).AnyTimes()

	provider := mocksession.NewMockIdentityProvider()
	mgr := NewSessionManager(SessionManagerOptions{
		Provider:  provider,
		Validator: domainsession.NewValidator(nil),
		Activity:  mocksession.NewMemoryActivityStore(),
		Audit:     audit,
		Config:    testSessionConfig(),
	})
	defer mgr.Close()

	_, err := mgr.Initialize(context.Background())
	require.NoError(t, err)

	cred, err := mgr.Login(context.Background(), "ops@guestwave.io", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "ops@guestwave.io", cred.Email)
	assert.True(t, mgr.IsAuthenticated())

	mgr.SignOut(context.Background(), "Signed out")
	assert.False(t, mgr.IsAuthenticated())
}

// ClearActivity failures are logged, never surfaced.
func TestSessionManager_ActivityFailureDoesNotBlockSignOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	activity := mocks.NewMockActivityStore(ctrl)
	activity.EXPECT().TouchActivity(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	activity.EXPECT().ClearActivity(gomock.Any(), gomock.Any()).Return(errors.New("redis down")).AnyTimes()

	provider := mocksession.NewMockIdentityProvider()
	mgr := NewSessionManager(SessionManagerOptions{
		Provider:  provider,
		Validator: domainsession.NewValidator(nil),
		Activity:  activity,
		Audit:     mocksession.NewMemoryAuditRecorder(),
		Config:    testSessionConfig(),
	})
	defer mgr.Close()

	_, err := mgr.Initialize(context.Background())
	require.NoError(t, err)

	_, err = mgr.Login(context.Background(), "ops@guestwave.io", "correct-horse")
	require.NoError(t, err)

	mgr.SignOut(context.Background(), "Signed out")
	assert.False(t, mgr.IsAuthenticated())
	assert.Nil(t, mgr.CurrentUser())
}
