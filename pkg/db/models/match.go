package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

// Match pairs a food item with a recipient and, later, a driver. BusinessID is
// copied from the food item at creation and never re-derived.
type Match struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FoodItemID  uuid.UUID  `gorm:"column:food_item_id;type:uuid;not null" json:"foodItemId"`
	BusinessID  uuid.UUID  `gorm:"column:business_id;type:uuid;not null" json:"businessId"`
	RecipientID uuid.UUID  `gorm:"column:recipient_id;type:uuid;not null" json:"recipientId"`
	DriverID    *uuid.UUID `gorm:"column:driver_id;type:uuid" json:"driverId,omitempty"`

	ScoreOverall    float64           `gorm:"column:score_overall;not null" json:"scoreOverall"`
	ScoreDistance   float64           `gorm:"column:score_distance;not null" json:"scoreDistance"`
	ScoreUrgency    float64           `gorm:"column:score_urgency;not null" json:"scoreUrgency"`
	ScoreCapacity   float64           `gorm:"column:score_capacity;not null" json:"scoreCapacity"`
	ScorePreference float64           `gorm:"column:score_preference;not null" json:"scorePreference"`
	ScoreSource     enums.ScoreSource `gorm:"column:score_source;not null" json:"scoreSource"`

	ImpactMealsProvided int             `gorm:"column:impact_meals_provided;not null;default:0" json:"impactMealsProvided"`
	ImpactPeopleServed  int             `gorm:"column:impact_people_served;not null;default:0" json:"impactPeopleServed"`
	ImpactCO2Saved      float64         `gorm:"column:impact_co2_saved;not null;default:0" json:"impactCo2Saved"`
	ImpactMoneySaved    decimal.Decimal `gorm:"column:impact_money_saved;type:numeric(12,2);not null;default:0" json:"impactMoneySaved"`

	Status  enums.MatchStatus `gorm:"column:status;type:match_status;not null;default:pending" json:"status"`
	Message *string           `gorm:"column:message" json:"message,omitempty"`

	MatchedAt   time.Time  `gorm:"column:matched_at;not null" json:"matchedAt"`
	AcceptedAt  *time.Time `gorm:"column:accepted_at" json:"acceptedAt,omitempty"`
	PickupAt    *time.Time `gorm:"column:pickup_at" json:"pickupAt,omitempty"`
	DeliveredAt *time.Time `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`

	Feedback datatypes.JSONType[MatchFeedback] `gorm:"column:feedback;type:jsonb" json:"feedback"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Match) TableName() string { return "matches" }

// MatchFeedback holds at most one entry per party.
type MatchFeedback struct {
	Business  *PartyFeedback `json:"business,omitempty"`
	Recipient *PartyFeedback `json:"recipient,omitempty"`
	Driver    *PartyFeedback `json:"driver,omitempty"`
}

type PartyFeedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}
