package redis

// Package redis provides Redis-based session bookkeeping adapters.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guestwave/console-auth/internal/ports"
)

// ActivityStore records last-activity timestamps. Writes are best-effort from
// the caller's point of view; this store just reports errors faithfully.
type ActivityStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewActivityStore creates an ActivityStore with the default key prefix.
func NewActivityStore(client redis.UniversalClient, ttl time.Duration) *ActivityStore {
	return &ActivityStore{
		client: client,
		prefix: "activity:",
		ttl:    ttl,
	}
}

func (s *ActivityStore) TouchActivity(ctx context.Context, userID string, at time.Time) error {
	if userID == "" {
		return errors.New("user ID cannot be empty")
	}
	key := s.prefix + userID
	return s.client.Set(ctx, key, at.UTC().Format(time.RFC3339), s.ttl).Err()
}

func (s *ActivityStore) ClearActivity(ctx context.Context, userID string) error {
	if userID == "" {
		return nil // Nothing to clear
	}
	return s.client.Del(ctx, s.prefix+userID).Err()
}

// LastActivity returns the recorded last-activity time for a user.
func (s *ActivityStore) LastActivity(ctx context.Context, userID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, ErrNotFound
	}
	raw, err := s.client.Get(ctx, s.prefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis get: %w", err)
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse activity timestamp: %w", err)
	}
	return at, nil
}

// PendingRedirectStore persists the denied path and reason across the login
// redirect. Entries expire on their own; a consumed entry is removed.
type PendingRedirectStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewPendingRedirectStore creates a PendingRedirectStore with the given TTL.
func NewPendingRedirectStore(client redis.UniversalClient, ttl time.Duration) *PendingRedirectStore {
	return &PendingRedirectStore{
		client: client,
		prefix: "pending_redirect:",
		ttl:    ttl,
	}
}

func (s *PendingRedirectStore) SavePending(ctx context.Context, clientKey string, p ports.PendingRedirect) error {
	if clientKey == "" {
		return errors.New("client key cannot be empty")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending redirect: %w", err)
	}
	return s.client.Set(ctx, s.prefix+clientKey, data, s.ttl).Err()
}

func (s *PendingRedirectStore) TakePending(ctx context.Context, clientKey string) (ports.PendingRedirect, error) {
	if clientKey == "" {
		return ports.PendingRedirect{}, ErrNotFound
	}

	key := s.prefix + clientKey
	data, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.PendingRedirect{}, ErrNotFound
		}
		return ports.PendingRedirect{}, fmt.Errorf("redis getdel: %w", err)
	}

	var p ports.PendingRedirect
	if unmarshalErr := json.Unmarshal([]byte(data), &p); unmarshalErr != nil {
		return ports.PendingRedirect{}, fmt.Errorf("unmarshal pending redirect: %w", unmarshalErr)
	}
	return p, nil
}

// ErrNotFound is returned when an entry is not present.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var ErrNotFound error = notFoundError{}
