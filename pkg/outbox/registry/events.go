package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
)

// EventDescriptor is the publish side view of a catalog entry.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row whose envelope and payload checked out.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type publishable struct {
	desc   EventDescriptor
	decode decoderFunc
}

// EventRegistry validates outbox rows before the publisher sends them.
type EventRegistry struct {
	entries map[enums.OutboxEventType]publishable
}

// NewEventRegistry routes every catalog event to the configured events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, errors.New("events topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]publishable, len(catalog))}
	for _, e := range catalog {
		reg.entries[e.eventType] = publishable{
			desc: EventDescriptor{
				EventType:     e.eventType,
				AggregateType: e.aggregate,
				Topic:         cfg.EventsTopic,
			},
			decode: e.decode,
		}
	}
	return reg, nil
}

// Resolve checks the row against its catalog entry and decodes its payload.
// Every error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	entry, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case entry.desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s, row says %s",
			event.EventType, entry.desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	env, _, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload, err := entry.decode(env.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: entry.desc, Envelope: env, Payload: payload}, nil
}
