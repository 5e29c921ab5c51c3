package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/geo"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/maps"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

var validate = validator.New()

type store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Within(ctx context.Context, center types.GeographyPoint, radiusMeters float64, role enums.UserRole, limit int) ([]models.User, error)
}

type geocoder interface {
	Geocode(ctx context.Context, address string) (*maps.Place, error)
}

// Service manages engine profiles for identities issued elsewhere.
type Service interface {
	GetProfile(ctx context.Context, actor auth.Actor) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpsertProfile(ctx context.Context, actor auth.Actor, input ProfileInput) (*models.User, error)
	Nearby(ctx context.Context, query NearbyQuery) ([]NearbyUser, error)
}

type ServiceParams struct {
	Store    store
	Geocoder geocoder
	Logger   *logger.Logger
}

type service struct {
	store    store
	geocoder geocoder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("users store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: params.Store, geocoder: params.Geocoder, logg: params.Logger}, nil
}

func (s *service) GetProfile(ctx context.Context, actor auth.Actor) (*models.User, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	return s.Get(ctx, actor.UserID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) UpsertProfile(ctx context.Context, actor auth.Actor, input ProfileInput) (*models.User, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if !actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}

	existing, err := s.store.FindByID(ctx, actor.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	user := existing
	if user == nil {
		user = &models.User{ID: actor.UserID, Role: actor.Role, IsActive: true}
	}
	updates, err := s.apply(ctx, user, input)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if user.Email == "" || user.FirstName == "" || user.LastName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email, firstName and lastName are required for a new profile")
		}
		if err := s.store.Create(ctx, user); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
		}
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "profile created")
		return user, nil
	}

	if err := s.store.Update(ctx, user.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "profile updated")
	return user, nil
}

// apply merges input into user and returns the changed columns.
func (s *service) apply(ctx context.Context, user *models.User, input ProfileInput) (map[string]any, error) {
	updates := map[string]any{}
	details := map[string]string{}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if err := validate.Var(email, "required,email"); err != nil {
			details["email"] = "invalid email"
		}
		user.Email = email
		updates["email"] = email
	}
	setName := func(field, column string, value *string, target *string) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" {
			details[field] = "must not be empty"
		}
		*target = trimmed
		updates[column] = trimmed
	}
	setName("firstName", "first_name", input.FirstName, &user.FirstName)
	setName("lastName", "last_name", input.LastName, &user.LastName)

	setOptional := func(column string, value *string, target **string) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		*target = &trimmed
		updates[column] = trimmed
	}
	setOptional("phone", input.Phone, &user.Phone)
	setOptional("address", input.Address, &user.Address)

	switch user.Role {
	case enums.UserRoleBusiness:
		setOptional("business_name", input.BusinessName, &user.BusinessName)
		setOptional("business_type", input.BusinessType, &user.BusinessType)
	case enums.UserRoleRecipient:
		setOptional("organization_type", input.OrganizationType, &user.OrganizationType)
		if input.ServingCapacity != nil {
			if *input.ServingCapacity < 1 {
				details["servingCapacity"] = "must be at least 1"
			}
			capacity := *input.ServingCapacity
			user.ServingCapacity = &capacity
			updates["serving_capacity"] = capacity
		}
		if input.DietaryRestrictions != nil {
			tags, err := enums.ParseDietaryTags(*input.DietaryRestrictions)
			if err != nil {
				details["dietaryRestrictions"] = err.Error()
			}
			restrictions := make(pq.StringArray, 0, len(tags))
			for _, tag := range tags {
				restrictions = append(restrictions, string(tag))
			}
			user.DietaryRestrictions = restrictions
			updates["dietary_restrictions"] = restrictions
		}
	case enums.UserRoleDriver:
		setOptional("vehicle_type", input.VehicleType, &user.VehicleType)
		setOptional("vehicle_plate", input.VehiclePlate, &user.VehiclePlate)
	}

	switch {
	case input.Location != nil:
		if err := input.Location.Validate(); err != nil {
			details["location"] = err.Error()
		}
		location := *input.Location
		user.Location = &location
		updates["location"] = location
	case input.Address != nil && user.Address != nil && *user.Address != "" && s.geocoder != nil:
		place, err := s.geocoder.Geocode(ctx, *user.Address)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				details["address"] = "address could not be located"
				break
			}
			return nil, err
		}
		location := place.Location
		user.Location = &location
		updates["location"] = location
	}

	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid profile").WithDetails(details)
	}
	return updates, nil
}

func (s *service) Nearby(ctx context.Context, query NearbyQuery) ([]NearbyUser, error) {
	center := types.GeographyPoint{Lat: query.Lat, Lng: query.Lng}
	if err := center.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
	}
	if query.Role == "" {
		query.Role = enums.UserRoleRecipient
	}
	if !query.Role.IsValid() || query.Role == enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	if query.RadiusKm <= 0 {
		query.RadiusKm = DefaultNearbyRadiusKm
	}
	if query.RadiusKm > MaxNearbyRadiusKm {
		query.RadiusKm = MaxNearbyRadiusKm
	}
	if query.Limit <= 0 {
		query.Limit = DefaultNearbyLimit
	}
	if query.Limit > MaxNearbyLimit {
		query.Limit = MaxNearbyLimit
	}

	found, err := s.store.Within(ctx, center, query.RadiusKm*1000, query.Role, query.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query nearby users")
	}
	out := make([]NearbyUser, 0, len(found))
	for _, user := range found {
		if user.Location == nil {
			continue
		}
		d := geo.DistanceKm(query.Lat, query.Lng, user.Location.Lat, user.Location.Lng)
		out = append(out, NearbyUser{User: user, DistanceKm: geo.RoundKm(d)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}
