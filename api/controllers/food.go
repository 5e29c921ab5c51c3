package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/surplus-engine/api/responses"
	"github.com/angelmondragon/surplus-engine/api/validators"
	"github.com/angelmondragon/surplus-engine/internal/fooditems"
	"github.com/angelmondragon/surplus-engine/internal/stats"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

const maxSearchLen = 100

type quantityPayload struct {
	Value float64            `json:"value" validate:"gt=0"`
	Unit  enums.QuantityUnit `json:"unit" validate:"required"`
}

type locationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l *locationPayload) point() *types.GeographyPoint {
	if l == nil {
		return nil
	}
	return &types.GeographyPoint{Lat: l.Lat, Lng: l.Lng}
}

type foodCreateRequest struct {
	Title               string             `json:"title" validate:"required,min=3,max=100"`
	Description         string             `json:"description" validate:"max=500"`
	Category            enums.FoodCategory `json:"category" validate:"required"`
	Quantity            quantityPayload    `json:"quantity"`
	EstimatedValue      decimal.Decimal    `json:"estimatedValue"`
	DietaryInfo         []string           `json:"dietaryInfo"`
	Allergens           []string           `json:"allergens"`
	Tags                []string           `json:"tags"`
	PreparationDate     *time.Time         `json:"preparationDate"`
	StorageInstructions *string            `json:"storageInstructions"`
	PickupInstructions  *string            `json:"pickupInstructions"`
	ContactPhone        *string            `json:"contactPhone"`
	ContactEmail        *string            `json:"contactEmail" validate:"omitempty,email"`
	Address             string             `json:"address"`
	Location            *locationPayload   `json:"location"`
	AvailableFrom       *time.Time         `json:"availableFrom"`
	ExpiresAt           time.Time          `json:"expiresAt" validate:"required"`
}

func (r foodCreateRequest) toInput() fooditems.CreateInput {
	return fooditems.CreateInput{
		Title:               r.Title,
		Description:         r.Description,
		Category:            r.Category,
		QuantityValue:       r.Quantity.Value,
		QuantityUnit:        r.Quantity.Unit,
		EstimatedValue:      r.EstimatedValue,
		DietaryInfo:         r.DietaryInfo,
		Allergens:           r.Allergens,
		Tags:                r.Tags,
		PreparationDate:     r.PreparationDate,
		StorageInstructions: r.StorageInstructions,
		PickupInstructions:  r.PickupInstructions,
		ContactPhone:        r.ContactPhone,
		ContactEmail:        r.ContactEmail,
		Address:             r.Address,
		Location:            r.Location.point(),
		AvailableFrom:       r.AvailableFrom,
		ExpiresAt:           r.ExpiresAt,
	}
}

type foodUpdateRequest struct {
	Title               *string             `json:"title,omitempty" validate:"omitempty,min=3,max=100"`
	Description         *string             `json:"description,omitempty" validate:"omitempty,max=500"`
	Category            *enums.FoodCategory `json:"category,omitempty"`
	Quantity            *struct {
		Value *float64            `json:"value,omitempty" validate:"omitempty,gt=0"`
		Unit  *enums.QuantityUnit `json:"unit,omitempty"`
	} `json:"quantity,omitempty"`
	EstimatedValue      *decimal.Decimal `json:"estimatedValue,omitempty"`
	DietaryInfo         *[]string        `json:"dietaryInfo,omitempty"`
	Allergens           *[]string        `json:"allergens,omitempty"`
	Tags                *[]string        `json:"tags,omitempty"`
	PreparationDate     *time.Time       `json:"preparationDate,omitempty"`
	StorageInstructions *string          `json:"storageInstructions,omitempty"`
	PickupInstructions  *string          `json:"pickupInstructions,omitempty"`
	ContactPhone        *string          `json:"contactPhone,omitempty"`
	ContactEmail        *string          `json:"contactEmail,omitempty" validate:"omitempty,email"`
	Address             *string          `json:"address,omitempty"`
	Location            *locationPayload `json:"location,omitempty"`
	AvailableFrom       *time.Time       `json:"availableFrom,omitempty"`
	ExpiresAt           *time.Time       `json:"expiresAt,omitempty"`
}

func (r foodUpdateRequest) toInput() fooditems.UpdateInput {
	input := fooditems.UpdateInput{
		Title:               r.Title,
		Description:         r.Description,
		Category:            r.Category,
		EstimatedValue:      r.EstimatedValue,
		DietaryInfo:         r.DietaryInfo,
		Allergens:           r.Allergens,
		Tags:                r.Tags,
		PreparationDate:     r.PreparationDate,
		StorageInstructions: r.StorageInstructions,
		PickupInstructions:  r.PickupInstructions,
		ContactPhone:        r.ContactPhone,
		ContactEmail:        r.ContactEmail,
		Address:             r.Address,
		Location:            r.Location.point(),
		AvailableFrom:       r.AvailableFrom,
		ExpiresAt:           r.ExpiresAt,
	}
	if r.Quantity != nil {
		input.QuantityValue = r.Quantity.Value
		input.QuantityUnit = r.Quantity.Unit
	}
	return input
}

type bulkIDsRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
}

type bulkStatusRequest struct {
	IDs    []uuid.UUID          `json:"ids" validate:"required,min=1,max=100"`
	Status enums.FoodItemStatus `json:"status" validate:"required"`
}

// FoodList serves the public listing. Coordinates enable the radius filter
// and the distanceKm field.
func FoodList(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}

		filters, err := publicFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func publicFilters(r *http.Request) (fooditems.PublicFilters, error) {
	var filters fooditems.PublicFilters
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseFoodItemStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filters.Status = status
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := enums.ParseFoodCategory(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		filters.Category = &category
	}
	if raw := strings.TrimSpace(q.Get("urgency")); raw != "" {
		urgency, err := enums.ParseUrgencyLevel(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid urgency")
		}
		filters.Urgency = &urgency
	}
	dietary, err := enums.ParseDietaryTags(validators.ParseQueryList(r, "dietary"))
	if err != nil {
		return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dietary filter")
	}
	filters.Dietary = dietary
	filters.Search = validators.SanitizeString(q.Get("search"), maxSearchLen)

	if filters.Lat, err = validators.ParseQueryFloat(r, "lat", -90, 90); err != nil {
		return filters, err
	}
	if filters.Lng, err = validators.ParseQueryFloat(r, "lng", -180, 180); err != nil {
		return filters, err
	}
	if (filters.Lat == nil) != (filters.Lng == nil) {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must be provided together")
	}
	radius, err := validators.ParseQueryFloat(r, "radius", 0.1, 500)
	if err != nil {
		return filters, err
	}
	if radius != nil {
		filters.RadiusKm = *radius
	}

	if filters.Page, err = pageFromQuery(r); err != nil {
		return filters, err
	}
	return filters, nil
}

func FoodDetail(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		id, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func FoodCreate(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body foodCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// FoodMine lists the caller's own items with per status counts.
func FoodMine(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		filters, err := mineFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListMine(r.Context(), actor, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func mineFilters(r *http.Request) (fooditems.MineFilters, error) {
	filters := fooditems.MineFilters{Sort: fooditems.SortNewest}
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseFoodItemStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := enums.ParseFoodCategory(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		filters.Category = &category
	}
	if raw := strings.TrimSpace(q.Get("sort")); raw != "" {
		sort := fooditems.MineSort(raw)
		if !sort.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort").WithDetails(map[string]any{"field": "sort"})
		}
		filters.Sort = sort
	}

	var err error
	if filters.StartDate, err = validators.ParseQueryTime(r, "startDate"); err != nil {
		return filters, err
	}
	if filters.Page, err = pageFromQuery(r); err != nil {
		return filters, err
	}
	return filters, nil
}

// FoodStats returns the calling business's dashboard numbers.
func FoodStats(svc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "stats")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.Business(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func FoodUpdate(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body foodUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Update(r.Context(), actor, id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func FoodDelete(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id.String(), "status": "deleted"})
	}
}

func FoodCancel(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "foodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func FoodBulkDelete(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body bulkIDsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BulkDelete(r.Context(), actor, body.IDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func FoodBulkUpdateStatus(svc fooditems.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "food")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body bulkStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BulkUpdateStatus(r.Context(), actor, body.IDs, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
