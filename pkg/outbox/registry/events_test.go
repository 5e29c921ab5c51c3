package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	foodID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventFoodPosted,
		AggregateType: enums.AggregateFoodItem,
		AggregateID:   foodID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.FoodPostedEvent{
			FoodItemID: foodID,
			Title:      "Day-old bread",
		})),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	require.Equal(t, "events-topic", resolved.Descriptor.Topic)
	require.Equal(t, enums.EventFoodPosted, resolved.Descriptor.EventType)
	payload, ok := resolved.Payload.(*payloads.FoodPostedEvent)
	require.True(t, ok)
	require.Equal(t, foodID, payload.FoodItemID)
	require.NotEmpty(t, resolved.Envelope.EventID)
	require.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistryCoversAllEventTypes(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventFoodPosted, enums.EventFoodExpired, enums.EventMatchCreated,
		enums.EventMatchAccepted, enums.EventMatchCompleted, enums.EventMatchCancelled,
	} {
		_, ok := reg.entries[eventType]
		require.True(t, ok, "missing descriptor for %s", eventType)
	}
}

func TestEventRegistryResolveFailuresAreNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "food-donated",
			AggregateType: enums.AggregateFoodItem,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventMatchAccepted,
			AggregateType: enums.AggregateFoodItem,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventMatchAccepted,
			AggregateType: enums.AggregateMatch,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventMatchAccepted,
			AggregateType: enums.AggregateMatch,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"bad envelope": {
			EventType:     enums.EventMatchAccepted,
			AggregateType: enums.AggregateMatch,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`not-json`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			require.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{EventsTopic: "events-topic"})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	require.NoError(t, err)
	return data
}
