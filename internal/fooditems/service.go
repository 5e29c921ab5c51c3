package fooditems

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

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
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

const (
	minTitleLen       = 3
	maxTitleLen       = 100
	maxDescriptionLen = 500
	maxBulkIDs        = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type geocoder interface {
	Geocode(ctx context.Context, address string) (*maps.Place, error)
}

// ProposalDispatcher schedules proposeMatches for a freshly committed item.
type ProposalDispatcher interface {
	Dispatch(foodItemID uuid.UUID) bool
}

// Service owns food item creation, edits and the business driven status
// transitions. Match driven transitions live in the matches package.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateInput) (*models.FoodItem, error)
	Get(ctx context.Context, id uuid.UUID) (*models.FoodItem, error)
	List(ctx context.Context, filters PublicFilters) (*ListResult, error)
	ListMine(ctx context.Context, actor auth.Actor, filters MineFilters) (*MineResult, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*models.FoodItem, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	BulkUpdateStatus(ctx context.Context, actor auth.Actor, ids []uuid.UUID, status enums.FoodItemStatus) (*BulkResult, error)
	BulkDelete(ctx context.Context, actor auth.Actor, ids []uuid.UUID) (*BulkResult, error)
	Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.FoodItem, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// ServiceParams wires the food item service.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Profiles   profileLoader
	Geocoder   geocoder
	Dispatcher ProposalDispatcher
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outbox.Emitter
	profiles   profileLoader
	geocoder   geocoder
	dispatcher ProposalDispatcher
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("food items repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile loader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		outbox:     params.Outbox,
		profiles:   params.Profiles,
		geocoder:   params.Geocoder,
		dispatcher: params.Dispatcher,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*models.FoodItem, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if !actor.Is(enums.UserRoleBusiness) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only businesses can post food")
	}

	now := s.now()
	item, err := buildItem(actor.UserID, input, now)
	if err != nil {
		return nil, err
	}
	if err := s.resolveLocation(ctx, item, input); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create food item")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFoodPosted,
			AggregateType: enums.AggregateFoodItem,
			AggregateID:   item.ID,
			Actor:         actorRef(actor),
			Data: payloads.FoodPostedEvent{
				FoodItemID:   item.ID,
				BusinessID:   item.BusinessID,
				Title:        item.Title,
				Category:     item.Category,
				UrgencyLevel: item.UrgencyLevel,
				Lat:          item.Location.Lat,
				Lng:          item.Location.Lng,
				ExpiresAt:    item.ExpiresAt,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, asDependency(err, "create food item")
	}

	logCtx := s.logg.WithFoodItemID(ctx, item.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "urgency", item.UrgencyLevel), "food item posted")

	if s.dispatcher != nil && !s.dispatcher.Dispatch(item.ID) {
		s.logg.Warn(logCtx, "proposal dispatch skipped")
	}
	return item, nil
}

func buildItem(businessID uuid.UUID, input CreateInput, now time.Time) (*models.FoodItem, error) {
	details := map[string]string{}

	title := strings.TrimSpace(input.Title)
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		details["title"] = fmt.Sprintf("must be between %d and %d characters", minTitleLen, maxTitleLen)
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		details["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLen)
	}
	if !input.Category.IsValid() {
		details["category"] = "unknown category"
	}
	if !(input.QuantityValue > 0) {
		details["quantity.value"] = "must be greater than 0"
	}
	if !input.QuantityUnit.IsValid() {
		details["quantity.unit"] = "unknown unit"
	}
	if input.EstimatedValue.IsNegative() {
		details["estimatedValue"] = "must not be negative"
	}
	dietary, err := enums.ParseDietaryTags(input.DietaryInfo)
	if err != nil {
		details["dietaryInfo"] = err.Error()
	}

	availableFrom := now
	if input.AvailableFrom != nil {
		availableFrom = input.AvailableFrom.UTC()
	}
	expiresAt := input.ExpiresAt.UTC()
	if input.ExpiresAt.IsZero() {
		details["expiresAt"] = "required"
	} else if !expiresAt.After(availableFrom) {
		details["expiresAt"] = "must be after availableFrom"
	}
	if input.Location != nil {
		if err := input.Location.Validate(); err != nil {
			details["location"] = err.Error()
		}
	}

	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid food item").WithDetails(details)
	}

	item := &models.FoodItem{
		BusinessID:          businessID,
		Title:               title,
		Description:         description,
		Category:            input.Category,
		QuantityValue:       input.QuantityValue,
		QuantityUnit:        input.QuantityUnit,
		EstimatedValue:      input.EstimatedValue.Round(2),
		DietaryInfo:         dietaryArray(dietary),
		Allergens:           cleanStrings(input.Allergens),
		Tags:                cleanStrings(input.Tags),
		PreparationDate:     input.PreparationDate,
		StorageInstructions: input.StorageInstructions,
		PickupInstructions:  input.PickupInstructions,
		ContactPhone:        input.ContactPhone,
		ContactEmail:        input.ContactEmail,
		Address:             strings.TrimSpace(input.Address),
		AvailableFrom:       availableFrom,
		ExpiresAt:           expiresAt,
		UrgencyLevel:        ComputeUrgency(now, expiresAt),
		Status:              enums.FoodItemStatusAvailable,
	}
	if input.Location != nil {
		item.Location = *input.Location
	}
	return item, nil
}

// resolveLocation applies the explicit location, then the business profile,
// then geocodes the address.
func (s *service) resolveLocation(ctx context.Context, item *models.FoodItem, input CreateInput) error {
	if input.Location != nil {
		return nil
	}

	profile, err := s.profiles.FindByID(ctx, item.BusinessID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business profile")
	}
	if profile != nil && profile.Location != nil {
		item.Location = *profile.Location
		if item.Address == "" && profile.Address != nil {
			item.Address = *profile.Address
		}
		return nil
	}

	if item.Address != "" && s.geocoder != nil {
		place, err := s.geocoder.Geocode(ctx, item.Address)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "geocode address")
		}
		item.Location = place.Location
		if place.FormattedAddress != "" {
			item.Address = place.FormattedAddress
		}
		return nil
	}

	return pkgerrors.New(pkgerrors.CodeValidation, "location is required").
		WithDetails(map[string]string{"location": "provide coordinates or set a location on the business profile"})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.FoodItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load food item")
	}
	return item, nil
}

func (s *service) List(ctx context.Context, filters PublicFilters) (*ListResult, error) {
	if filters.Status == "" {
		filters.Status = enums.FoodItemStatusAvailable
	}
	if !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if (filters.Lat == nil) != (filters.Lng == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must be provided together")
	}
	if filters.Lat != nil {
		if err := (types.GeographyPoint{Lat: *filters.Lat, Lng: *filters.Lng}).Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
		}
		if filters.RadiusKm <= 0 {
			filters.RadiusKm = DefaultRadiusKm
		}
	}
	filters.Page = filters.Page.Normalize()

	items, total, err := s.repo.ListPublic(ctx, filters, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list food items")
	}

	views := make([]FoodItemView, 0, len(items))
	for _, item := range items {
		view := FoodItemView{FoodItem: item}
		if filters.Lat != nil {
			d := geo.RoundKm(geo.DistanceKm(*filters.Lat, *filters.Lng, item.Location.Lat, item.Location.Lng))
			view.DistanceKm = &d
		}
		views = append(views, view)
	}
	return &ListResult{Items: views, Page: filters.Page.Meta(total)}, nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, filters MineFilters) (*MineResult, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if !actor.Is(enums.UserRoleBusiness) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only businesses have listings")
	}
	if filters.Sort == "" {
		filters.Sort = SortNewest
	}
	if !filters.Sort.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort")
	}
	filters.Page = filters.Page.Normalize()

	items, total, err := s.repo.ListByBusiness(ctx, actor.UserID, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list business food items")
	}
	counts, err := s.repo.CountByStatus(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count business food items")
	}
	return &MineResult{Items: items, Page: filters.Page.Meta(total), StatusCounts: counts}, nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*models.FoodItem, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	var updated *models.FoodItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		items, err := repo.LockByIDs(ctx, []uuid.UUID{id})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "food item not found")
		}
		item := items[0]
		if item.BusinessID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning business can edit this item")
		}
		if item.Status != enums.FoodItemStatusAvailable {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only available items can be edited").
				WithDetails(map[string]any{"status": item.Status})
		}

		updates, err := applyPatch(&item, input, s.now())
		if err != nil {
			return err
		}
		if err := repo.Update(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update food item")
		}
		updated = &item
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "update food item")
	}

	s.logg.Info(s.logg.WithFoodItemID(ctx, id.String()), "food item updated")
	return updated, nil
}

// applyPatch merges input into item, validates the merged entity and returns
// the column updates.
func applyPatch(item *models.FoodItem, input UpdateInput, now time.Time) (map[string]any, error) {
	updates := map[string]any{}
	details := map[string]string{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
			details["title"] = fmt.Sprintf("must be between %d and %d characters", minTitleLen, maxTitleLen)
		}
		item.Title = title
		updates["title"] = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if utf8.RuneCountInString(description) > maxDescriptionLen {
			details["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLen)
		}
		item.Description = description
		updates["description"] = description
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			details["category"] = "unknown category"
		}
		item.Category = *input.Category
		updates["category"] = *input.Category
	}
	if input.QuantityValue != nil {
		if !(*input.QuantityValue > 0) {
			details["quantity.value"] = "must be greater than 0"
		}
		item.QuantityValue = *input.QuantityValue
		updates["quantity_value"] = *input.QuantityValue
	}
	if input.QuantityUnit != nil {
		if !input.QuantityUnit.IsValid() {
			details["quantity.unit"] = "unknown unit"
		}
		item.QuantityUnit = *input.QuantityUnit
		updates["quantity_unit"] = *input.QuantityUnit
	}
	if input.EstimatedValue != nil {
		if input.EstimatedValue.IsNegative() {
			details["estimatedValue"] = "must not be negative"
		}
		item.EstimatedValue = input.EstimatedValue.Round(2)
		updates["estimated_value"] = item.EstimatedValue
	}
	if input.DietaryInfo != nil {
		dietary, err := enums.ParseDietaryTags(*input.DietaryInfo)
		if err != nil {
			details["dietaryInfo"] = err.Error()
		}
		item.DietaryInfo = dietaryArray(dietary)
		updates["dietary_info"] = item.DietaryInfo
	}
	if input.Allergens != nil {
		item.Allergens = cleanStrings(*input.Allergens)
		updates["allergens"] = item.Allergens
	}
	if input.Tags != nil {
		item.Tags = cleanStrings(*input.Tags)
		updates["tags"] = item.Tags
	}
	if input.PreparationDate != nil {
		item.PreparationDate = input.PreparationDate
		updates["preparation_date"] = *input.PreparationDate
	}
	setOptional := func(column string, value *string, target **string) {
		if value == nil {
			return
		}
		*target = value
		updates[column] = *value
	}
	setOptional("storage_instructions", input.StorageInstructions, &item.StorageInstructions)
	setOptional("pickup_instructions", input.PickupInstructions, &item.PickupInstructions)
	setOptional("contact_phone", input.ContactPhone, &item.ContactPhone)
	setOptional("contact_email", input.ContactEmail, &item.ContactEmail)
	if input.Address != nil {
		item.Address = strings.TrimSpace(*input.Address)
		updates["address"] = item.Address
	}
	if input.Location != nil {
		if err := input.Location.Validate(); err != nil {
			details["location"] = err.Error()
		}
		item.Location = *input.Location
		updates["location"] = *input.Location
	}
	if input.AvailableFrom != nil {
		item.AvailableFrom = input.AvailableFrom.UTC()
		updates["available_from"] = item.AvailableFrom
	}
	if input.ExpiresAt != nil {
		item.ExpiresAt = input.ExpiresAt.UTC()
		updates["expires_at"] = item.ExpiresAt
		item.UrgencyLevel = ComputeUrgency(now, item.ExpiresAt)
		updates["urgency_level"] = item.UrgencyLevel
	}
	if (input.ExpiresAt != nil || input.AvailableFrom != nil) && !item.ExpiresAt.After(item.AvailableFrom) {
		details["expiresAt"] = "must be after availableFrom"
	}

	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid food item").WithDetails(details)
	}
	return updates, nil
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		items, err := repo.LockByIDs(ctx, []uuid.UUID{id})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "food item not found")
		}
		if items[0].BusinessID != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning business or an admin can delete this item")
		}
		if _, err := repo.Delete(ctx, []uuid.UUID{id}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete food item")
		}
		return nil
	})
	if err != nil {
		return asDependency(err, "delete food item")
	}
	s.logg.Info(s.logg.WithFoodItemID(ctx, id.String()), "food item deleted")
	return nil
}

// bulkTargets are the statuses a business may set directly; the rest are
// reachable only through the match lifecycle.
var bulkTargets = map[enums.FoodItemStatus]bool{
	enums.FoodItemStatusCancelled: true,
	enums.FoodItemStatusExpired:   true,
}

func (s *service) BulkUpdateStatus(ctx context.Context, actor auth.Actor, ids []uuid.UUID, status enums.FoodItemStatus) (*BulkResult, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if !bulkTargets[status] {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be cancelled or expired").
			WithDetails(map[string]any{"status": status})
	}
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	var affected int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		items, err := s.lockOwned(ctx, repo, actor, ids)
		if err != nil {
			return err
		}
		affected, err = s.transition(ctx, tx, repo, actor, items, status)
		return err
	})
	if err != nil {
		return nil, asDependency(err, "bulk update food items")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"count": affected, "status": status}), "food items bulk updated")
	return &BulkResult{IDs: ids, Affected: affected}, nil
}

func (s *service) BulkDelete(ctx context.Context, actor auth.Actor, ids []uuid.UUID) (*BulkResult, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	var affected int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.lockOwned(ctx, repo, actor, ids); err != nil {
			return err
		}
		affected, err = repo.Delete(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete food items")
		}
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "bulk delete food items")
	}

	s.logg.Info(s.logg.WithField(ctx, "count", affected), "food items bulk deleted")
	return &BulkResult{IDs: ids, Affected: affected}, nil
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.FoodItem, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	var cancelled *models.FoodItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		items, err := repo.LockByIDs(ctx, []uuid.UUID{id})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "food item not found")
		}
		if items[0].BusinessID != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning business can cancel this item")
		}
		if _, err := s.transition(ctx, tx, repo, actor, items, enums.FoodItemStatusCancelled); err != nil {
			return err
		}
		items[0].Status = enums.FoodItemStatusCancelled
		cancelled = &items[0]
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "cancel food item")
	}

	s.logg.Info(s.logg.WithFoodItemID(ctx, id.String()), "food item cancelled")
	return cancelled, nil
}

// lockOwned locks every id and fails with FORBIDDEN unless the actor owns all
// of them. Unknown ids count as not owned.
func (s *service) lockOwned(ctx context.Context, repo Repository, actor auth.Actor, ids []uuid.UUID) ([]models.FoodItem, error) {
	items, err := repo.LockByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food items")
	}
	owned := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if item.BusinessID == actor.UserID {
			owned[item.ID] = true
		}
	}
	var notOwned []uuid.UUID
	for _, id := range ids {
		if !owned[id] {
			notOwned = append(notOwned, id)
		}
	}
	if len(notOwned) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "some food items are not owned by the caller").
			WithDetails(map[string]any{"ids": notOwned})
	}
	return items, nil
}

// transition applies a business driven status change to locked items and
// resolves their matches. Any disallowed transition aborts the whole set.
func (s *service) transition(ctx context.Context, tx *gorm.DB, repo Repository, actor auth.Actor, items []models.FoodItem, to enums.FoodItemStatus) (int64, error) {
	ids := make([]uuid.UUID, 0, len(items))
	from := map[enums.FoodItemStatus]bool{}
	for _, item := range items {
		if !item.Status.CanTransitionTo(to) {
			return 0, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move food item from %s to %s", item.Status, to)).
				WithDetails(map[string]any{"id": item.ID, "status": item.Status})
		}
		ids = append(ids, item.ID)
		from[item.Status] = true
	}
	fromStatuses := make([]enums.FoodItemStatus, 0, len(from))
	for status := range from {
		fromStatuses = append(fromStatuses, status)
	}

	now := s.now()
	affected, err := repo.SetStatus(ctx, ids, fromStatuses, to, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update food item status")
	}
	if affected != int64(len(ids)) {
		return 0, pkgerrors.New(pkgerrors.CodeConflict, "food items changed concurrently")
	}

	switch to {
	case enums.FoodItemStatusCancelled:
		matches, err := repo.CancelLiveMatches(ctx, ids, now)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel matches")
		}
		for _, m := range matches {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventMatchCancelled,
				AggregateType: enums.AggregateMatch,
				AggregateID:   m.ID,
				Actor:         actorRef(actor),
				Data: payloads.MatchCancelledEvent{
					MatchID:     m.ID,
					FoodItemID:  m.FoodItemID,
					BusinessID:  m.BusinessID,
					RecipientID: m.RecipientID,
					CancelledBy: actor.UserID,
					CancelledAt: now,
				},
				OccurredAt: now,
			}); err != nil {
				return 0, err
			}
		}
	case enums.FoodItemStatusExpired:
		if _, err := repo.DeclinePendingMatches(ctx, ids, now); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline matches")
		}
		for _, item := range items {
			if err := s.emitExpired(ctx, tx, item, actorRef(actor), now); err != nil {
				return 0, err
			}
		}
	}
	return affected, nil
}

// ExpireDue moves available items past their expiry to expired and declines
// their pending matches. Used by the periodic sweep.
func (s *service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	var expired []models.FoodItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		expired, err = repo.ClaimDueForExpiry(ctx, now, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire food items")
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(expired))
		for _, item := range expired {
			ids = append(ids, item.ID)
		}
		if _, err := repo.DeclinePendingMatches(ctx, ids, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline matches of expired items")
		}
		for _, item := range expired {
			if err := s.emitExpired(ctx, tx, item, nil, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, asDependency(err, "expire food items")
	}
	if len(expired) > 0 {
		s.logg.Info(s.logg.WithField(ctx, "count", len(expired)), "food items expired")
	}
	return len(expired), nil
}

func (s *service) emitExpired(ctx context.Context, tx *gorm.DB, item models.FoodItem, actor *outbox.ActorRef, now time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFoodExpired,
		AggregateType: enums.AggregateFoodItem,
		AggregateID:   item.ID,
		Actor:         actor,
		Data: payloads.FoodExpiredEvent{
			FoodItemID: item.ID,
			BusinessID: item.BusinessID,
			Title:      item.Title,
			ExpiredAt:  now,
		},
		OccurredAt: now,
	})
}

func normalizeIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one id is required")
	}
	if len(out) > maxBulkIDs {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d ids per call", maxBulkIDs))
	}
	return out, nil
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.IsZero() {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func dietaryArray(tags []enums.DietaryTag) pq.StringArray {
	out := make(pq.StringArray, 0, len(tags))
	for _, tag := range tags {
		out = append(out, string(tag))
	}
	return out
}

func cleanStrings(values []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "food item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// asDependency keeps typed errors and wraps anything else from storage.
func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

