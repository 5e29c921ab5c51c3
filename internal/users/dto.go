package users

import (
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

// ProfileInput provisions or edits the caller's engine profile. Role is only
// honored when the profile is first created; nil fields are left untouched.
type ProfileInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
	Location  *types.GeographyPoint

	BusinessName *string
	BusinessType *string

	OrganizationType    *string
	ServingCapacity     *int
	DietaryRestrictions *[]string

	VehicleType  *string
	VehiclePlate *string
}

const (
	DefaultNearbyRadiusKm = 10.0
	MaxNearbyRadiusKm     = 100.0
	DefaultNearbyLimit    = 20
	MaxNearbyLimit        = 100
)

// NearbyQuery lists active users of a role around a point.
type NearbyQuery struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	Role     enums.UserRole
	Limit    int
}

// NearbyUser is a user with its distance from the query point.
type NearbyUser struct {
	models.User
	DistanceKm float64 `json:"distanceKm"`
}
