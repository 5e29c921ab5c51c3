// Package registry knows every lifecycle event the engine emits: which
// aggregate owns it, how its payload decodes, and where it is published.
package registry

import (
	"encoding/json"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type catalogEntry struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	decode    decoderFunc
}

// catalog lists the v1 schema of each event.
var catalog = []catalogEntry{
	entry[payloads.FoodPostedEvent](enums.EventFoodPosted, enums.AggregateFoodItem),
	entry[payloads.FoodExpiredEvent](enums.EventFoodExpired, enums.AggregateFoodItem),
	entry[payloads.MatchCreatedEvent](enums.EventMatchCreated, enums.AggregateMatch),
	entry[payloads.MatchAcceptedEvent](enums.EventMatchAccepted, enums.AggregateMatch),
	entry[payloads.MatchCompletedEvent](enums.EventMatchCompleted, enums.AggregateMatch),
	entry[payloads.MatchCancelledEvent](enums.EventMatchCancelled, enums.AggregateMatch),
}

func entry[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) catalogEntry {
	return catalogEntry{eventType: eventType, aggregate: aggregate, decode: jsonDecoder[T]()}
}

// jsonDecoder decodes into a fresh *T.
func jsonDecoder[T any]() decoderFunc {
	return func(payload json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// NonRetryableError marks a row that can never be published as is.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }
