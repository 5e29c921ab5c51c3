package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

// FoodItem is a posted unit of surplus food. Status, assignment and delivery
// columns are owned by the match lifecycle; descriptive columns by the business.
type FoodItem struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID  uuid.UUID          `gorm:"column:business_id;type:uuid;not null" json:"businessId"`
	Title       string             `gorm:"column:title;not null" json:"title"`
	Description string             `gorm:"column:description;not null;default:''" json:"description"`
	Category    enums.FoodCategory `gorm:"column:category;type:food_category;not null" json:"category"`

	QuantityValue  float64            `gorm:"column:quantity_value;not null" json:"quantityValue"`
	QuantityUnit   enums.QuantityUnit `gorm:"column:quantity_unit;type:quantity_unit;not null" json:"quantityUnit"`
	EstimatedValue decimal.Decimal    `gorm:"column:estimated_value;type:numeric(12,2);not null;default:0" json:"estimatedValue"`

	DietaryInfo pq.StringArray `gorm:"column:dietary_info;type:text[]" json:"dietaryInfo"`
	Allergens   pq.StringArray `gorm:"column:allergens;type:text[]" json:"allergens"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`

	PreparationDate     *time.Time `gorm:"column:preparation_date" json:"preparationDate,omitempty"`
	StorageInstructions *string    `gorm:"column:storage_instructions" json:"storageInstructions,omitempty"`
	PickupInstructions  *string    `gorm:"column:pickup_instructions" json:"pickupInstructions,omitempty"`
	ContactPhone        *string    `gorm:"column:contact_phone" json:"contactPhone,omitempty"`
	ContactEmail        *string    `gorm:"column:contact_email" json:"contactEmail,omitempty"`

	Address  string               `gorm:"column:address;not null;default:''" json:"address"`
	Location types.GeographyPoint `gorm:"column:location;type:geography(Point,4326);not null" json:"location"`

	AvailableFrom time.Time            `gorm:"column:available_from;not null" json:"availableFrom"`
	ExpiresAt     time.Time            `gorm:"column:expires_at;not null" json:"expiresAt"`
	UrgencyLevel  enums.UrgencyLevel   `gorm:"column:urgency_level;type:urgency_level;not null" json:"urgencyLevel"`
	Status        enums.FoodItemStatus `gorm:"column:status;type:food_item_status;not null;default:available" json:"status"`

	AssignedRecipientID *uuid.UUID `gorm:"column:assigned_recipient_id;type:uuid" json:"assignedRecipientId,omitempty"`
	AssignedDriverID    *uuid.UUID `gorm:"column:assigned_driver_id;type:uuid" json:"assignedDriverId,omitempty"`
	AssignedAt          *time.Time `gorm:"column:assigned_at" json:"assignedAt,omitempty"`

	PickupTime    *time.Time `gorm:"column:pickup_time" json:"pickupTime,omitempty"`
	DeliveryTime  *time.Time `gorm:"column:delivery_time" json:"deliveryTime,omitempty"`
	DeliveryProof *string    `gorm:"column:delivery_proof" json:"deliveryProof,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (FoodItem) TableName() string { return "food_items" }

// FoodItemInterest is the lightweight "who is interested" log kept next to
// each item. Match rows stay authoritative.
type FoodItemInterest struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	FoodItemID  uuid.UUID         `gorm:"column:food_item_id;type:uuid;not null" json:"foodItemId"`
	RecipientID uuid.UUID         `gorm:"column:recipient_id;type:uuid;not null" json:"recipientId"`
	MatchID     uuid.UUID         `gorm:"column:match_id;type:uuid;not null" json:"matchId"`
	Status      enums.MatchStatus `gorm:"column:status;type:match_status;not null" json:"status"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (FoodItemInterest) TableName() string { return "food_item_interests" }
