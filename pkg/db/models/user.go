package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

// User is the engine's profile of an identity issued by the auth provider.
// Role specific columns are nil for other roles.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string         `gorm:"type:text;not null;uniqueIndex" json:"email"`
	FirstName string         `gorm:"column:first_name;not null" json:"firstName"`
	LastName  string         `gorm:"column:last_name;not null" json:"lastName"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null" json:"role"`
	IsActive  bool           `gorm:"column:is_active;not null" json:"isActive"`
	Phone     *string        `gorm:"column:phone" json:"phone,omitempty"`

	BusinessName *string `gorm:"column:business_name" json:"businessName,omitempty"`
	BusinessType *string `gorm:"column:business_type" json:"businessType,omitempty"`

	OrganizationType    *string        `gorm:"column:organization_type" json:"organizationType,omitempty"`
	ServingCapacity     *int           `gorm:"column:serving_capacity" json:"servingCapacity,omitempty"`
	DietaryRestrictions pq.StringArray `gorm:"column:dietary_restrictions;type:text[]" json:"dietaryRestrictions"`

	VehicleType  *string `gorm:"column:vehicle_type" json:"vehicleType,omitempty"`
	VehiclePlate *string `gorm:"column:vehicle_plate" json:"vehiclePlate,omitempty"`

	Address  *string               `gorm:"column:address" json:"address,omitempty"`
	Location *types.GeographyPoint `gorm:"column:location;type:geography(Point,4326)" json:"location,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// DisplayName prefers the business name for businesses.
func (u User) DisplayName() string {
	if u.Role == enums.UserRoleBusiness && u.BusinessName != nil && *u.BusinessName != "" {
		return *u.BusinessName
	}
	return u.FirstName + " " + u.LastName
}
