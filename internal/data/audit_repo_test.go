package data_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestwave/console-auth/internal/data"
	"github.com/guestwave/console-auth/internal/ports"
	"github.com/guestwave/console-auth/internal/testutil"
)

func TestAuditRepo_RecordAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := data.NewAuditRepo(db)
	ctx := context.Background()

	event := ports.AuditEvent{
		Type:   ports.AuditLoginSucceeded,
		UserID: "user-1",
		Email:  "staff@guestwave.io",
		At:     time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Record(ctx, event))

	events, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got, err := repo.GetByID(ctx, events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ports.AuditLoginSucceeded, got.Type)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "staff@guestwave.io", got.Email)
	assert.WithinDuration(t, event.At, got.At, time.Second)
}

func TestAuditRepo_RecordFillsDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	repo := data.NewAuditRepo(db).WithTimeProvider(data.NewFixedTimeProvider(fixed))
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, ports.AuditEvent{Type: ports.AuditSignedOut}))

	events, err := repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.WithinDuration(t, fixed, events[0].At, time.Second)
}

func TestAuditRepo_DuplicateID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := data.NewAuditRepo(db)
	ctx := context.Background()

	event := ports.AuditEvent{
		ID:   "6d2f1f9e-6f4a-4e61-9f0a-02f9a4c7b8d1",
		Type: ports.AuditAccessDenied,
		Path: "/admin/settings",
	}
	require.NoError(t, repo.Record(ctx, event))

	err := repo.Record(ctx, event)
	assert.ErrorIs(t, err, data.ErrDuplicateAuditEvent)
}

func TestAuditRepo_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := data.NewAuditRepo(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, data.ErrAuditEventNotFound)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, data.ErrAuditEventNotFound)
}

func TestAuditRepo_ListByUserAndCounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := data.NewAuditRepo(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	fixtures := []ports.AuditEvent{
		{Type: ports.AuditLoginSucceeded, UserID: "alice", At: base},
		{Type: ports.AuditAccessDenied, UserID: "alice", Path: "/admin", At: base.Add(time.Minute)},
		{Type: ports.AuditLoginFailed, UserID: "bob", At: base.Add(2 * time.Minute)},
	}
	for _, event := range fixtures {
		require.NoError(t, repo.Record(ctx, event))
	}

	aliceEvents, err := repo.ListByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, aliceEvents, 2)
	// newest first
	assert.Equal(t, ports.AuditAccessDenied, aliceEvents[0].Type)
	assert.Equal(t, ports.AuditLoginSucceeded, aliceEvents[1].Type)

	counts, err := repo.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[ports.AuditLoginSucceeded])
	assert.Equal(t, int64(1), counts[ports.AuditAccessDenied])
	assert.Equal(t, int64(1), counts[ports.AuditLoginFailed])
}
