package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/api/responses"
	"github.com/angelmondragon/surplus-engine/api/validators"
	"github.com/angelmondragon/surplus-engine/internal/stats"
	"github.com/angelmondragon/surplus-engine/internal/users"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

type profileRequest struct {
	Email     *string          `json:"email,omitempty" validate:"omitempty,email"`
	FirstName *string          `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string          `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Phone     *string          `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address   *string          `json:"address,omitempty" validate:"omitempty,max=300"`
	Location  *locationPayload `json:"location,omitempty"`

	BusinessName *string `json:"businessName,omitempty" validate:"omitempty,max=200"`
	BusinessType *string `json:"businessType,omitempty" validate:"omitempty,max=100"`

	OrganizationType    *string   `json:"organizationType,omitempty" validate:"omitempty,max=100"`
	ServingCapacity     *int      `json:"servingCapacity,omitempty" validate:"omitempty,min=1"`
	DietaryRestrictions *[]string `json:"dietaryRestrictions,omitempty"`

	VehicleType  *string `json:"vehicleType,omitempty" validate:"omitempty,max=50"`
	VehiclePlate *string `json:"vehiclePlate,omitempty" validate:"omitempty,max=20"`
}

func (r profileRequest) toInput() users.ProfileInput {
	return users.ProfileInput{
		Email:               r.Email,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Phone:               r.Phone,
		Address:             r.Address,
		Location:            r.Location.point(),
		BusinessName:        r.BusinessName,
		BusinessType:        r.BusinessType,
		OrganizationType:    r.OrganizationType,
		ServingCapacity:     r.ServingCapacity,
		DietaryRestrictions: r.DietaryRestrictions,
		VehicleType:         r.VehicleType,
		VehiclePlate:        r.VehiclePlate,
	}
}

// publicProfile omits contact details from profiles viewed by other users.
type publicProfile struct {
	ID               uuid.UUID      `json:"id"`
	FirstName        string         `json:"firstName"`
	LastName         string         `json:"lastName"`
	Role             enums.UserRole `json:"role"`
	BusinessName     *string        `json:"businessName,omitempty"`
	BusinessType     *string        `json:"businessType,omitempty"`
	OrganizationType *string        `json:"organizationType,omitempty"`
	VehicleType      *string        `json:"vehicleType,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

func newPublicProfile(user models.User) publicProfile {
	return publicProfile{
		ID:               user.ID,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Role:             user.Role,
		BusinessName:     user.BusinessName,
		BusinessType:     user.BusinessType,
		OrganizationType: user.OrganizationType,
		VehicleType:      user.VehicleType,
		CreatedAt:        user.CreatedAt,
	}
}

func UserMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "users")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		user, err := svc.GetProfile(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// UserUpdateMe creates the caller's profile on first use, then patches it.
func UserUpdateMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "users")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body profileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.UpsertProfile(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func UserMyStats(svc users.Service, statsSvc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || statsSvc == nil {
			unavailable(w, r, logg, "users")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		user, err := svc.GetProfile(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := statsSvc.ForUser(r.Context(), *user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UserProfile returns another user's public profile and role stats.
func UserProfile(svc users.Service, statsSvc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || statsSvc == nil {
			unavailable(w, r, logg, "users")
			return
		}
		id, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"user": newPublicProfile(*user)}
		if user.Role != enums.UserRoleAdmin {
			result, err := statsSvc.ForUser(r.Context(), *user)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			payload["stats"] = result
		}
		responses.WriteSuccess(w, payload)
	}
}

func UserNearby(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "users")
			return
		}

		lat, err := validators.ParseQueryFloat(r, "lat", -90, 90)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lng, err := validators.ParseQueryFloat(r, "lng", -180, 180)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if lat == nil || lng == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng are required"))
			return
		}
		radius, err := validators.ParseQueryFloat(r, "radius", 0.1, users.MaxNearbyRadiusKm)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", users.DefaultNearbyLimit, 1, users.MaxNearbyLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := users.NearbyQuery{Lat: *lat, Lng: *lng, Limit: limit}
		if radius != nil {
			query.RadiusKm = *radius
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			role, err := enums.ParseUserRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			query.Role = role
		}

		found, err := svc.Nearby(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(found))
		for _, user := range found {
			out = append(out, map[string]any{
				"user":       newPublicProfile(user.User),
				"distanceKm": user.DistanceKm,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
