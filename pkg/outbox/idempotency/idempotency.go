// Package idempotency deduplicates at-least-once Pub/Sub deliveries per
// consumer.
//
// A delivery first takes a short in-flight claim. Only after the handler's
// side effects are durable is the event marked done for the full TTL. A
// worker that dies mid-handler leaves just the claim, which expires and lets
// redelivery retry instead of silently dropping the event.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/redis"
)

const defaultClaimTTL = 2 * time.Minute

// ErrInFlight means another delivery of the same event holds the claim.
// Callers should nack so Pub/Sub redelivers later.
var ErrInFlight = errors.New("idempotency: event is being handled elsewhere")

type Manager struct {
	store    redis.IdempotencyStore
	doneTTL  time.Duration
	claimTTL time.Duration
}

type Option func(*Manager)

// WithClaimTTL bounds how long a crashed handler can block redelivery.
func WithClaimTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.claimTTL = d
		}
	}
}

// NewManager remembers handled events for ttl. A zero ttl keeps the done
// marker until it is evicted.
func NewManager(store redis.IdempotencyStore, ttl time.Duration, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	m := &Manager{store: store, doneTTL: ttl, claimTTL: defaultClaimTTL}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Claim is an in-flight reservation for one event. Exactly one of Commit or
// Abort should follow.
type Claim struct {
	store    redis.IdempotencyStore
	doneKey  string
	claimKey string
	ttl      time.Duration
}

// Begin reserves eventID for consumer. duplicate reports that the event was
// already handled; the returned claim is then nil.
func (m *Manager) Begin(ctx context.Context, consumer string, eventID uuid.UUID) (claim *Claim, duplicate bool, err error) {
	if consumer == "" {
		return nil, false, errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return nil, false, errors.New("event id is required")
	}
	id := eventID.String()
	doneKey := m.store.IdempotencyKey("evt:done:"+consumer, id)
	claimKey := m.store.IdempotencyKey("evt:claim:"+consumer, id)

	marker, err := m.store.Get(ctx, doneKey)
	if err != nil && !redis.IsNil(err) {
		return nil, false, err
	}
	if marker != "" {
		return nil, true, nil
	}

	won, err := m.store.SetNX(ctx, claimKey, "1", m.claimTTL)
	if err != nil {
		return nil, false, err
	}
	if !won {
		return nil, false, ErrInFlight
	}
	return &Claim{store: m.store, doneKey: doneKey, claimKey: claimKey, ttl: m.doneTTL}, false, nil
}

// Commit marks the event done and drops the claim.
func (c *Claim) Commit(ctx context.Context) error {
	if _, err := c.store.SetNX(ctx, c.doneKey, "1", c.ttl); err != nil {
		return err
	}
	return c.store.Del(ctx, c.claimKey)
}

// Abort drops the claim so a redelivery can retry immediately.
func (c *Claim) Abort(ctx context.Context) error {
	return c.store.Del(ctx, c.claimKey)
}
