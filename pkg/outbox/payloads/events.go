package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

// FoodPostedEvent announces a new listing to nearby recipients.
type FoodPostedEvent struct {
	FoodItemID   uuid.UUID          `json:"food_item_id"`
	BusinessID   uuid.UUID          `json:"business_id"`
	Title        string             `json:"title"`
	Category     enums.FoodCategory `json:"category"`
	UrgencyLevel enums.UrgencyLevel `json:"urgency_level"`
	Lat          float64            `json:"lat"`
	Lng          float64            `json:"lng"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

// FoodExpiredEvent is emitted by the expiry sweep.
type FoodExpiredEvent struct {
	FoodItemID uuid.UUID `json:"food_item_id"`
	BusinessID uuid.UUID `json:"business_id"`
	Title      string    `json:"title"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// MatchCreatedEvent covers both recipient requests and oracle proposals.
type MatchCreatedEvent struct {
	MatchID      uuid.UUID         `json:"match_id"`
	FoodItemID   uuid.UUID         `json:"food_item_id"`
	BusinessID   uuid.UUID         `json:"business_id"`
	RecipientID  uuid.UUID         `json:"recipient_id"`
	Title        string            `json:"title"`
	ScoreSource  enums.ScoreSource `json:"score_source"`
	ScoreOverall float64           `json:"score_overall"`
	Proposed     bool              `json:"proposed"`
}

type MatchAcceptedEvent struct {
	MatchID          uuid.UUID   `json:"match_id"`
	FoodItemID       uuid.UUID   `json:"food_item_id"`
	BusinessID       uuid.UUID   `json:"business_id"`
	RecipientID      uuid.UUID   `json:"recipient_id"`
	Title            string      `json:"title"`
	DeclinedMatchIDs []uuid.UUID `json:"declined_match_ids,omitempty"`
	AcceptedAt       time.Time   `json:"accepted_at"`
}

type MatchCompletedEvent struct {
	MatchID       uuid.UUID  `json:"match_id"`
	FoodItemID    uuid.UUID  `json:"food_item_id"`
	BusinessID    uuid.UUID  `json:"business_id"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	DriverID      *uuid.UUID `json:"driver_id,omitempty"`
	Title         string     `json:"title"`
	MealsProvided int        `json:"meals_provided"`
	DeliveredAt   time.Time  `json:"delivered_at"`
}

type MatchCancelledEvent struct {
	MatchID          uuid.UUID `json:"match_id"`
	FoodItemID       uuid.UUID `json:"food_item_id"`
	BusinessID       uuid.UUID `json:"business_id"`
	RecipientID      uuid.UUID `json:"recipient_id"`
	CancelledBy      uuid.UUID `json:"cancelled_by"`
	FoodItemReverted bool      `json:"food_item_reverted"`
	CancelledAt      time.Time `json:"cancelled_at"`
}
