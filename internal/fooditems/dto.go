package fooditems

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

// CreateInput carries a new listing. Location falls back to the business
// profile, then to geocoding Address.
type CreateInput struct {
	Title               string
	Description         string
	Category            enums.FoodCategory
	QuantityValue       float64
	QuantityUnit        enums.QuantityUnit
	EstimatedValue      decimal.Decimal
	DietaryInfo         []string
	Allergens           []string
	Tags                []string
	PreparationDate     *time.Time
	StorageInstructions *string
	PickupInstructions  *string
	ContactPhone        *string
	ContactEmail        *string
	Address             string
	Location            *types.GeographyPoint
	AvailableFrom       *time.Time
	ExpiresAt           time.Time
}

// UpdateInput is a partial patch; nil fields are left untouched.
type UpdateInput struct {
	Title               *string
	Description         *string
	Category            *enums.FoodCategory
	QuantityValue       *float64
	QuantityUnit        *enums.QuantityUnit
	EstimatedValue      *decimal.Decimal
	DietaryInfo         *[]string
	Allergens           *[]string
	Tags                *[]string
	PreparationDate     *time.Time
	StorageInstructions *string
	PickupInstructions  *string
	ContactPhone        *string
	ContactEmail        *string
	Address             *string
	Location            *types.GeographyPoint
	AvailableFrom       *time.Time
	ExpiresAt           *time.Time
}

// DefaultRadiusKm applies to public listings filtered by coordinates.
const DefaultRadiusKm = 10.0

// PublicFilters drives the recipient facing listing.
type PublicFilters struct {
	Status   enums.FoodItemStatus
	Category *enums.FoodCategory
	Urgency  *enums.UrgencyLevel
	Dietary  []enums.DietaryTag
	Search   string
	Lat      *float64
	Lng      *float64
	RadiusKm float64
	Page     pagination.Page
}

// MineSort enumerates the business listing orderings.
type MineSort string

const (
	SortNewest    MineSort = "newest"
	SortOldest    MineSort = "oldest"
	SortExpiring  MineSort = "expiring"
	SortValueHigh MineSort = "value_high"
	SortValueLow  MineSort = "value_low"
)

func (s MineSort) IsValid() bool {
	switch s {
	case SortNewest, SortOldest, SortExpiring, SortValueHigh, SortValueLow:
		return true
	}
	return false
}

type MineFilters struct {
	Status    *enums.FoodItemStatus
	Category  *enums.FoodCategory
	StartDate *time.Time
	Sort      MineSort
	Page      pagination.Page
}

// FoodItemView is a food item as returned to callers.
type FoodItemView struct {
	models.FoodItem
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

type ListResult struct {
	Items []FoodItemView      `json:"items"`
	Page  pagination.PageMeta `json:"pagination"`
}

// MineResult adds per status counts across all of the business's items.
type MineResult struct {
	Items        []models.FoodItem              `json:"items"`
	Page         pagination.PageMeta            `json:"pagination"`
	StatusCounts map[enums.FoodItemStatus]int64 `json:"statusCounts"`
}

// BulkResult reports what a bulk call touched.
type BulkResult struct {
	IDs      []uuid.UUID `json:"ids"`
	Affected int64       `json:"affected"`
}
