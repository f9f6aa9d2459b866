package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/guestwave/console-auth/internal/adapters/redis"
	"github.com/guestwave/console-auth/internal/ports"
	"github.com/guestwave/console-auth/internal/testutil"
)

func TestActivityStore_TouchAndclear(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := redisadapter.NewActivityStore(client, time.Minute)
	ctx := context.Background()

	at := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchActivity(ctx, "user-1", at))

	got, err := store.LastActivity(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	require.NoError(t, store.ClearActivity(ctx, "user-1"))
	_, err = store.LastActivity(ctx, "user-1")
	assert.ErrorIs(t, err, redisadapter.ErrNotFound)
}

func TestActivityStore_EmptyUserID(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := redisadapter.NewActivityStore(client, time.Minute)
	ctx := context.Background()

	assert.Error(t, store.TouchActivity(ctx, "", time.Now()))
	// clearing nothing is fine
	assert.NoError(t, store.ClearActivity(ctx, ""))
	_, err := store.LastActivity(ctx, "")
	assert.ErrorIs(t, err, redisadapter.ErrNotFound)
}

func TestPendingRedirectStore_SaveAndTake(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := redisadapter.NewPendingRedirectStore(client, time.Minute)
	ctx := context.Background()

	pending := ports.PendingRedirect{Path: "/admin/campaigns/7", Reason: "Authentication required"}
	require.NoError(t, store.SavePending(ctx, "client-abc", pending))

	got, err := store.TakePending(ctx, "client-abc")
	require.NoError(t, err)
	assert.Equal(t, pending, got)

	// consumed on take
	_, err = store.TakePending(ctx, "client-abc")
	assert.ErrorIs(t, err, redisadapter.ErrNotFound)
}

func TestPendingRedirectStore_Missing(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := redisadapter.NewPendingRedirectStore(client, time.Minute)

	_, err := store.TakePending(context.Background(), "never-saved")
	assert.ErrorIs(t, err, redisadapter.ErrNotFound)
}

func TestPendingRedirectStore_Expiry(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := redisadapter.NewPendingRedirectStore(client, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.SavePending(ctx, "client-ttl", ports.PendingRedirect{Path: "/admin"}))
	time.Sleep(120 * time.Millisecond)

	_, err := store.TakePending(ctx, "client-ttl")
	assert.ErrorIs(t, err, redisadapter.ErrNotFound)
}
