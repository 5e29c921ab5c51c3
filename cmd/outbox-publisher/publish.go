package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/registry"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicCache hands out one publisher per topic for the life of the process.
type topicCache struct {
	client pubSubClient

	mu     sync.Mutex
	topics map[string]publisher
}

func newTopicCache(client pubSubClient) *topicCache {
	return &topicCache{client: client, topics: make(map[string]publisher)}
}

func (c *topicCache) lookup(topic string) publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.topics[topic]; ok {
		return pub
	}
	raw := c.client.Publisher(topic)
	if raw == nil {
		return nil
	}
	pub := gcpTopic{raw}
	c.topics[topic] = pub
	return pub
}

type gcpTopic struct {
	pub *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.pub.Publish(ctx, msg)
}

// toMessage forwards the stored envelope as-is. Routing metadata goes into
// attributes so subscribers can filter before decoding.
func toMessage(event models.OutboxEvent, eventID string) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// publish blocks until the broker acks or defaultPublishTimeout passes. A
// topic with no publisher can never succeed and is reported as non-retryable.
func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, toMessage(event, resolved.Envelope.EventID))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %q returned no result", topic))
	}
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
