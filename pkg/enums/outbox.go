package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateFoodItem OutboxAggregateType = "food_item"
	AggregateMatch    OutboxAggregateType = "match"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateFoodItem,
	AggregateMatch,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return member(a, validAggregateTypes)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, "aggregate type", validAggregateTypes)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventFoodPosted     OutboxEventType = "food-posted"
	EventFoodExpired    OutboxEventType = "food-expired"
	EventMatchCreated   OutboxEventType = "match-created"
	EventMatchAccepted  OutboxEventType = "match-accepted"
	EventMatchCompleted OutboxEventType = "match-completed"
	EventMatchCancelled OutboxEventType = "match-cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventFoodPosted,
	EventFoodExpired,
	EventMatchCreated,
	EventMatchAccepted,
	EventMatchCompleted,
	EventMatchCancelled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return member(e, validOutboxEventTypes)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, "event type", validOutboxEventTypes)
}

// OutboxDLQErrorReason maps to outbox_dlq_error_reason_enum. Rows land in the
// dead letter table either because publishing can never succeed or because
// the publisher ran out of attempts.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}

// ParseOutboxDLQErrorReason accepts the empty string as "any reason".
func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	r := OutboxDLQErrorReason(value)
	if r != "" && !r.IsValid() {
		return "", fmt.Errorf("invalid dead letter reason %q", value)
	}
	return r, nil
}
