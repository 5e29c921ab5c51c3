package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/registry"
)

const testTopic = "surplus-domain-events"

type harness struct {
	repo     *fakeRepo
	pub      *fakePublisher
	registry *fakeRegistry
	dlq      *fakeDLQRepo
	recorder *fakeRecorder
	service  *Service
}

func newHarness(t *testing.T, outboxCfg config.OutboxConfig, events ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		repo: &fakeRepo{events: events},
		pub:  &fakePublisher{},
		registry: &fakeRegistry{resolved: &registry.ResolvedEvent{
			Descriptor: registry.EventDescriptor{Topic: testTopic},
			Payload:    &payloads.FoodPostedEvent{},
		}},
		dlq:      &fakeDLQRepo{},
		recorder: &fakeRecorder{},
	}
	service, err := NewService(ServiceParams{
		Config:        &config.Config{Outbox: outboxCfg},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            &fakeDB{},
		PubSub:        &fakePubSubClient{},
		Repository:    h.repo,
		Registry:      h.registry,
		DLQRepository: h.dlq,
		Metrics:       h.recorder,
		Publishers: func(topic string) publisher {
			if topic != testTopic {
				return nil
			}
			return h.pub
		},
	})
	require.NoError(t, err)
	h.service = service
	return h
}

func defaultOutboxConfig() config.OutboxConfig {
	return config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
}

func foodEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventFoodPosted,
		AggregateType: enums.AggregateFoodItem,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
		CreatedAt:     time.Now(),
		AttemptCount:  attempts,
	}
}

func TestProcessBatchKeepsGoingAfterTransientFailure(t *testing.T) {
	first, second := foodEvent(t, 0), foodEvent(t, 0)
	h := newHarness(t, defaultOutboxConfig(), first, second)
	h.pub.results = []publishResult{fakePublishResult{err: errors.New("transient")}, fakePublishResult{}}

	found, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	require.Empty(t, h.dlq.entries)
	require.Equal(t, []string{"food-posted/retry", "food-posted/published"}, h.recorder.results)
	require.Equal(t, 1, h.recorder.batches)
}

func TestProcessBatchSetsMessageAttributes(t *testing.T) {
	event := foodEvent(t, 0)
	h := newHarness(t, defaultOutboxConfig(), event)
	h.pub.results = []publishResult{fakePublishResult{}}

	_, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.pub.sent, 1)

	msg := h.pub.sent[0]
	require.JSONEq(t, string(event.Payload), string(msg.Data))
	require.Equal(t, event.ID.String(), msg.Attributes["event_id"])
	require.Equal(t, string(enums.EventFoodPosted), msg.Attributes["event_type"])
	require.Equal(t, string(enums.AggregateFoodItem), msg.Attributes["aggregate_type"])
	require.Equal(t, event.AggregateID.String(), msg.Attributes["aggregate_id"])
	require.NotEmpty(t, msg.Attributes["created_at"])
}

func TestProcessBatchDeadLetters(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		arrange  func(h *harness)
		reason   enums.OutboxDLQErrorReason
	}{
		{
			name: "undecodable row",
			arrange: func(h *harness) {
				h.registry.err = registry.NewNonRetryableError(errors.New("invalid payload"))
				h.registry.resolved = nil
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		{
			name: "topic without publisher",
			arrange: func(h *harness) {
				h.registry.resolved.Descriptor.Topic = "missing-topic"
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "attempt budget spent",
			attempts: 4,
			arrange: func(h *harness) {
				h.pub.results = []publishResult{fakePublishResult{err: errors.New("deadline exceeded")}}
			},
			reason: enums.OutboxDLQReasonMaxAttempts,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := foodEvent(t, tc.attempts)
			h := newHarness(t, defaultOutboxConfig(), event)
			tc.arrange(h)

			found, err := h.service.processBatch(context.Background())
			require.NoError(t, err)
			require.True(t, found)

			require.Len(t, h.dlq.entries, 1)
			entry := h.dlq.entries[0]
			require.Equal(t, event.ID, entry.EventID)
			require.Equal(t, tc.reason, entry.ErrorReason)
			require.JSONEq(t, string(event.Payload), string(entry.Payload))
			require.NotNil(t, entry.ErrorMessage)

			require.Equal(t, []uuid.UUID{event.ID}, h.repo.terminal)
			require.Empty(t, h.repo.published)
			require.Empty(t, h.repo.failed)
			require.Equal(t, []string{"food-posted/dead_lettered"}, h.recorder.results)
		})
	}
}

func TestProcessBatchRetriesBelowAttemptBudget(t *testing.T) {
	event := foodEvent(t, 3)
	h := newHarness(t, defaultOutboxConfig(), event)
	h.pub.results = []publishResult{fakePublishResult{err: errors.New("unavailable")}}

	_, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{event.ID}, h.repo.failed)
	require.Empty(t, h.dlq.entries)
}

func TestProcessBatchEmpty(t *testing.T) {
	h := newHarness(t, defaultOutboxConfig())

	found, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, found)
	require.Zero(t, h.recorder.batches)
}

func TestProcessBatchSurfacesBookkeepingErrors(t *testing.T) {
	h := newHarness(t, defaultOutboxConfig(), foodEvent(t, 0))
	h.pub.results = []publishResult{fakePublishResult{}}
	h.repo.markErr = errors.New("connection reset")

	_, err := h.service.processBatch(context.Background())
	require.ErrorContains(t, err, "connection reset")
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	require.EqualError(t, err, "logger is required")
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{})
	require.Equal(t, defaultBatchSize, h.service.batchSize)
	require.Equal(t, defaultMaxAttempts, h.service.maxAttempts)
	require.Equal(t, defaultPollMs*time.Millisecond, h.service.pace.poll)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	h := newHarness(t, defaultOutboxConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, h.service.Run(ctx), context.Canceled)
}

func TestRunFailsWhenDependencyUnready(t *testing.T) {
	h := newHarness(t, defaultOutboxConfig())
	h.service.pubsub = &fakePubSubClient{pingErr: errors.New("permission denied")}

	err := h.service.Run(context.Background())
	require.ErrorContains(t, err, "pubsub ping failed")
}

func TestPacer(t *testing.T) {
	p := newPacer(100 * time.Millisecond)
	p.jitter = func(d time.Duration) time.Duration { return d }

	require.Equal(t, 100*time.Millisecond, p.next(false, nil))
	require.Zero(t, p.next(true, nil))

	boom := errors.New("boom")
	require.Equal(t, 200*time.Millisecond, p.next(false, boom))
	require.Equal(t, 400*time.Millisecond, p.next(false, boom))
	for range 10 {
		p.next(false, boom)
	}
	require.Equal(t, maxBackoff, p.backoff)

	require.Zero(t, p.next(true, nil))
	require.Equal(t, 100*time.Millisecond, p.backoff)
}

func TestWithJitterStaysInWindow(t *testing.T) {
	require.Zero(t, withJitter(0))
	for range 20 {
		got := withJitter(time.Second)
		require.GreaterOrEqual(t, got, time.Second)
		require.Less(t, got, time.Second+jitterWindow)
	}
}

func TestTopicCacheSkipsUnknownTopics(t *testing.T) {
	client := &fakePubSubClient{}
	cache := newTopicCache(client)

	require.Nil(t, cache.lookup("ghost"))
	require.Nil(t, cache.lookup("ghost"))
	require.Equal(t, 2, client.lookups)
}

func envelopePayload(tb testing.TB) json.RawMessage {
	tb.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(tb, err)
	return raw
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, limit int) ([]models.OutboxEvent, error) {
	return f.events[:min(limit, len(f.events))], nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct {
	pingErr error
	lookups int
}

func (f *fakePubSubClient) Ping(context.Context) error { return f.pingErr }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher {
	f.lookups++
	return nil
}

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.EventType = event.EventType
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope = outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()}
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeRecorder struct {
	results []string
	batches int
}

func (f *fakeRecorder) IncEvent(eventType, result string) {
	f.results = append(f.results, eventType+"/"+result)
}

func (f *fakeRecorder) ObserveBatch(time.Duration) {
	f.batches++
}
