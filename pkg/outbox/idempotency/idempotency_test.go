package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[key], nil
}

func (m *memStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "se:idempotency:" + scope + ":" + id
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newMemStore(), -time.Second)
	require.Error(t, err)
}

func TestBeginCommitMarksDone(t *testing.T) {
	store := newMemStore()
	manager, err := NewManager(store, 24*time.Hour, WithClaimTTL(30*time.Second))
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()
	claimKey := "se:idempotency:evt:claim:notification-worker:" + eventID.String()
	doneKey := "se:idempotency:evt:done:notification-worker:" + eventID.String()

	claim, dup, err := manager.Begin(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	require.False(t, dup)
	require.Equal(t, 30*time.Second, store.ttls[claimKey])

	require.NoError(t, claim.Commit(ctx))
	require.Equal(t, 24*time.Hour, store.ttls[doneKey])
	require.NotContains(t, store.values, claimKey)

	claim, dup, err = manager.Begin(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	require.True(t, dup)
	require.Nil(t, claim)

	_, dup, err = manager.Begin(ctx, "audit-worker", eventID)
	require.NoError(t, err)
	require.False(t, dup, "consumers are tracked independently")
}

func TestBeginWhileClaimedIsInFlight(t *testing.T) {
	manager, err := NewManager(newMemStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	first, _, err := manager.Begin(ctx, "notification-worker", eventID)
	require.NoError(t, err)

	_, _, err = manager.Begin(ctx, "notification-worker", eventID)
	require.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, first.Abort(ctx))
	again, dup, err := manager.Begin(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	require.False(t, dup)
	require.NotNil(t, again)
}

func TestBeginErrors(t *testing.T) {
	store := newMemStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = manager.Begin(ctx, "", uuid.New())
	require.Error(t, err)
	_, _, err = manager.Begin(ctx, "notification-worker", uuid.Nil)
	require.Error(t, err)

	store.err = errors.New("boom")
	_, _, err = manager.Begin(ctx, "notification-worker", uuid.New())
	require.ErrorContains(t, err, "boom")
}
