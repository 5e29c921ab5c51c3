package matches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/internal/impact"
	"github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/db"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
)

const (
	constraintPendingPair = "ux_matches_pending_food_recipient"
	constraintAccepted    = "ux_matches_accepted_food"

	acceptOutcomeAccepted = "accepted"
)

// Service owns the match lifecycle: requests, the accept race, fulfillment
// and cancellation, plus the food item transitions they drive.
type Service interface {
	Request(ctx context.Context, actor auth.Actor, input RequestInput) (*models.Match, error)
	Accept(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*AcceptResult, error)
	Decline(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error)
	AssignDriver(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error)
	RecordPickup(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error)
	Complete(ctx context.Context, actor auth.Actor, matchID uuid.UUID, proof *string) (*models.Match, error)
	Cancel(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error)
	SubmitFeedback(ctx context.Context, actor auth.Actor, matchID uuid.UUID, input FeedbackInput) (*models.Match, error)
	Get(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error)
	ListMine(ctx context.Context, actor auth.Actor, status *enums.MatchStatus, page pagination.Page) (*ListResult, error)
	ListAvailableDeliveries(ctx context.Context, actor auth.Actor, page pagination.Page) (*ListResult, error)
	CreateProposed(ctx context.Context, foodItemID uuid.UUID, proposals []Proposal) ([]models.Match, error)
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outbox.Emitter
	Profiles profileLoader
	Metrics  acceptRecorder
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outbox.Emitter
	profiles profileLoader
	metrics  acceptRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("matches repository required")
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
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		profiles: params.Profiles,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Request(ctx context.Context, actor auth.Actor, input RequestInput) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if !actor.Is(enums.UserRoleRecipient) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only recipients can request food")
	}
	if input.FoodItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "foodItemId is required")
	}
	message := trimmedOrNil(input.Message)
	if message != nil && utf8.RuneCountInString(*message) > maxMessageLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message must be at most %d characters", maxMessageLen))
	}

	capacity, err := s.servingCapacity(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	var created *models.Match
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.LockFoodItem(ctx, input.FoodItemID)
		if err != nil {
			return notFoundOr(err, "food item not found", "load food item")
		}
		now := s.now()
		if item.Status != enums.FoodItemStatusAvailable || !item.ExpiresAt.After(now) {
			return pkgerrors.New(pkgerrors.CodeNotAvailable, "food item is no longer available").
				WithDetails(map[string]any{"status": item.Status})
		}

		pending, err := repo.PendingRecipients(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending requests")
		}
		if pending[actor.UserID] {
			return pkgerrors.New(pkgerrors.CodeDuplicateRequest, "a pending request for this item already exists")
		}

		match := newMatch(*item, actor.UserID, impact.FallbackScore(), impact.ForMatch(item.QuantityValue, item.EstimatedValue, capacity), now)
		match.Message = message
		if err := s.insert(ctx, tx, repo, &match, *item, actor, false); err != nil {
			return err
		}
		created = &match
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "request food item")
	}

	s.logg.Info(s.matchCtx(ctx, created), "match requested")
	return created, nil
}

func (s *service) Accept(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*AcceptResult, error) {
	result, err := s.accept(ctx, actor, matchID)
	outcome := acceptOutcomeAccepted
	if err != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			outcome = string(typed.Code())
		}
	}
	if s.metrics != nil {
		s.metrics.IncAccept(outcome)
	}

	logCtx := s.logg.WithMatchID(ctx, matchID.String())
	switch {
	case err == nil:
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"food_item_id":   result.Match.FoodItemID.String(),
			"declined_count": len(result.DeclinedIDs),
		}), "match accepted")
	case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyResolved):
		s.logg.Info(logCtx, "accept lost to a concurrent acceptance")
	}
	return result, err
}

// accept is the compare-and-swap on the food item followed by the match flip
// and sibling declines, all in one transaction.
func (s *service) accept(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*AcceptResult, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	var result *AcceptResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match, err := repo.FindByID(ctx, matchID)
		if err != nil {
			return notFoundOr(err, "match not found", "load match")
		}
		if match.RecipientID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the match recipient can accept it")
		}
		if match.Status != enums.MatchStatusPending {
			return s.resolvedOrInvalid(ctx, repo, match)
		}

		now := s.now()
		claimed, err := repo.ClaimFoodItem(ctx, match.FoodItemID, actor.UserID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim food item")
		}
		if claimed == 0 {
			return s.claimFailure(ctx, repo, match.FoodItemID, now)
		}

		flipped, err := repo.Transition(ctx, match.ID, []enums.MatchStatus{enums.MatchStatusPending}, map[string]any{
			"status":      enums.MatchStatusAccepted,
			"accepted_at": now,
			"updated_at":  now,
		})
		if err != nil {
			if db.IsUniqueViolation(err, constraintAccepted) {
				return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "food item already claimed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept match")
		}
		if flipped == 0 {
			// the match was resolved between the read and the claim; rolls the claim back
			return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "match already resolved")
		}

		declined, err := repo.DeclineSiblings(ctx, match.FoodItemID, match.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline sibling matches")
		}
		if err := repo.SetInterestStatus(ctx, []uuid.UUID{match.ID}, enums.MatchStatusAccepted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update interest log")
		}
		if err := repo.SetInterestStatus(ctx, declined, enums.MatchStatusDeclined); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update interest log")
		}

		item, err := repo.FindFoodItem(ctx, match.FoodItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload food item")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMatchAccepted,
			AggregateType: enums.AggregateMatch,
			AggregateID:   match.ID,
			Actor:         actorRef(actor),
			Data: payloads.MatchAcceptedEvent{
				MatchID:          match.ID,
				FoodItemID:       match.FoodItemID,
				BusinessID:       match.BusinessID,
				RecipientID:      match.RecipientID,
				Title:            item.Title,
				DeclinedMatchIDs: declined,
				AcceptedAt:       now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		match.Status = enums.MatchStatusAccepted
		match.AcceptedAt = &now
		result = &AcceptResult{Match: *match, DeclinedIDs: declined}
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "accept match")
	}
	return result, nil
}

// resolvedOrInvalid classifies an accept on a match that is no longer pending.
// A sibling decline caused by another recipient's win is a lost race.
func (s *service) resolvedOrInvalid(ctx context.Context, repo Repository, match *models.Match) error {
	if match.Status == enums.MatchStatusDeclined {
		item, err := repo.FindFoodItem(ctx, match.FoodItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
		}
		if item.AssignedRecipientID != nil && *item.AssignedRecipientID != match.RecipientID {
			return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "food item already claimed by another recipient")
		}
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot accept a %s match", match.Status)).
		WithDetails(map[string]any{"status": match.Status})
}

func (s *service) claimFailure(ctx context.Context, repo Repository, foodItemID uuid.UUID, now time.Time) error {
	item, err := repo.FindFoodItem(ctx, foodItemID)
	if err != nil {
		return notFoundOr(err, "food item not found", "load food item")
	}
	switch {
	case item.Status == enums.FoodItemStatusClaimed,
		item.Status == enums.FoodItemStatusInTransit,
		item.Status == enums.FoodItemStatusDelivered:
		return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "food item already claimed")
	case item.Status == enums.FoodItemStatusAvailable && !item.ExpiresAt.After(now):
		return pkgerrors.New(pkgerrors.CodeNotAvailable, "food item has expired").
			WithDetails(map[string]any{"status": enums.FoodItemStatusExpired, "expiresAt": item.ExpiresAt})
	default:
		return pkgerrors.New(pkgerrors.CodeNotAvailable, "food item is no longer available").
			WithDetails(map[string]any{"status": item.Status})
	}
}

func (s *service) Decline(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	var declined *models.Match
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match, err := repo.LockByID(ctx, matchID)
		if err != nil {
			return notFoundOr(err, "match not found", "load match")
		}
		if match.RecipientID != actor.UserID && match.BusinessID != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the recipient or the business can decline this match")
		}
		if !match.Status.CanTransitionTo(enums.MatchStatusDeclined) {
			return invalidTransition(match.Status, enums.MatchStatusDeclined)
		}

		now := s.now()
		n, err := repo.Transition(ctx, match.ID, []enums.MatchStatus{enums.MatchStatusPending}, map[string]any{
			"status":     enums.MatchStatusDeclined,
			"updated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline match")
		}
		if n == 0 {
			return invalidTransition(match.Status, enums.MatchStatusDeclined)
		}
		if err := repo.SetInterestStatus(ctx, []uuid.UUID{match.ID}, enums.MatchStatusDeclined); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update interest log")
		}
		match.Status = enums.MatchStatusDeclined
		declined = match
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "decline match")
	}

	s.logg.Info(s.matchCtx(ctx, declined), "match declined")
	return declined, nil
}

// Cancel cancels a pending or accepted match. An accepted match that still
// holds an unpicked claim releases the food item back to available.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	var cancelled *models.Match
	var reverted bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match, err := repo.LockByID(ctx, matchID)
		if err != nil {
			return notFoundOr(err, "match not found", "load match")
		}
		if match.RecipientID != actor.UserID && match.BusinessID != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the recipient or the business can cancel this match")
		}
		if !match.Status.CanTransitionTo(enums.MatchStatusCancelled) {
			return invalidTransition(match.Status, enums.MatchStatusCancelled)
		}

		item, err := repo.LockFoodItem(ctx, match.FoodItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
		}
		if match.Status == enums.MatchStatusAccepted && item.Status != enums.FoodItemStatusClaimed {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "pickup is already underway").
				WithDetails(map[string]any{"foodItemStatus": item.Status})
		}

		now := s.now()
		n, err := repo.Transition(ctx, match.ID, []enums.MatchStatus{match.Status}, map[string]any{
			"status":       enums.MatchStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel match")
		}
		if n == 0 {
			return invalidTransition(match.Status, enums.MatchStatusCancelled)
		}
		if err := repo.SetInterestStatus(ctx, []uuid.UUID{match.ID}, enums.MatchStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update interest log")
		}

		if match.Status == enums.MatchStatusAccepted && item.AssignedRecipientID != nil && *item.AssignedRecipientID == match.RecipientID {
			others, err := repo.CountAccepted(ctx, item.ID, match.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count accepted matches")
			}
			if others == 0 {
				n, err := repo.UpdateFoodItem(ctx, item.ID, []enums.FoodItemStatus{enums.FoodItemStatusClaimed}, map[string]any{
					"status":                enums.FoodItemStatusAvailable,
					"assigned_recipient_id": nil,
					"assigned_driver_id":    nil,
					"assigned_at":           nil,
					"updated_at":            now,
				})
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release food item")
				}
				reverted = n > 0
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMatchCancelled,
			AggregateType: enums.AggregateMatch,
			AggregateID:   match.ID,
			Actor:         actorRef(actor),
			Data: payloads.MatchCancelledEvent{
				MatchID:          match.ID,
				FoodItemID:       match.FoodItemID,
				BusinessID:       match.BusinessID,
				RecipientID:      match.RecipientID,
				CancelledBy:      actor.UserID,
				FoodItemReverted: reverted,
				CancelledAt:      now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		match.Status = enums.MatchStatusCancelled
		match.CancelledAt = &now
		cancelled = match
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "cancel match")
	}

	s.logg.Info(s.logg.WithField(s.matchCtx(ctx, cancelled), "food_item_reverted", reverted), "match cancelled")
	return cancelled, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	match, err := s.repo.FindByID(ctx, matchID)
	if err != nil {
		return nil, notFoundOr(err, "match not found", "load match")
	}
	if !canView(actor, match) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "match is not visible to the caller")
	}
	return match, nil
}

func canView(actor auth.Actor, match *models.Match) bool {
	switch {
	case actor.IsAdmin():
		return true
	case match.BusinessID == actor.UserID, match.RecipientID == actor.UserID:
		return true
	case match.DriverID != nil && *match.DriverID == actor.UserID:
		return true
	case actor.Is(enums.UserRoleDriver) && match.DriverID == nil && match.Status == enums.MatchStatusAccepted:
		return true
	}
	return false
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, status *enums.MatchStatus, page pagination.Page) (*ListResult, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	page = page.Normalize()
	items, total, err := s.repo.List(ctx, ListFilters{
		Scope:  Scope{Role: actor.Role, UserID: actor.UserID},
		Status: status,
		Page:   page,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list matches")
	}
	return &ListResult{Items: items, Page: page.Meta(total)}, nil
}

func (s *service) ListAvailableDeliveries(ctx context.Context, actor auth.Actor, page pagination.Page) (*ListResult, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if !actor.Is(enums.UserRoleDriver) && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers can browse deliveries")
	}
	page = page.Normalize()
	items, total, err := s.repo.ListAvailableDeliveries(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available deliveries")
	}
	return &ListResult{Items: items, Page: page.Meta(total)}, nil
}

// insert persists a new pending match with its interest stub and emits
// match-created.
func (s *service) insert(ctx context.Context, tx *gorm.DB, repo Repository, match *models.Match, item models.FoodItem, actor auth.Actor, proposed bool) error {
	if err := repo.Create(ctx, match); err != nil {
		if db.IsUniqueViolation(err, constraintPendingPair) {
			return pkgerrors.New(pkgerrors.CodeDuplicateRequest, "a pending request for this item already exists")
		}
		if db.IsCheckViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "match rejected by schema constraints")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create match")
	}
	if err := repo.CreateInterest(ctx, &models.FoodItemInterest{
		FoodItemID:  match.FoodItemID,
		RecipientID: match.RecipientID,
		MatchID:     match.ID,
		Status:      match.Status,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append interest log")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventMatchCreated,
		AggregateType: enums.AggregateMatch,
		AggregateID:   match.ID,
		Actor:         actorRef(actor),
		Data: payloads.MatchCreatedEvent{
			MatchID:      match.ID,
			FoodItemID:   match.FoodItemID,
			BusinessID:   match.BusinessID,
			RecipientID:  match.RecipientID,
			Title:        item.Title,
			ScoreSource:  match.ScoreSource,
			ScoreOverall: match.ScoreOverall,
			Proposed:     proposed,
		},
		OccurredAt: match.MatchedAt,
	})
}

func (s *service) servingCapacity(ctx context.Context, recipientID uuid.UUID) (*int, error) {
	profile, err := s.profiles.FindByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient profile")
	}
	return profile.ServingCapacity, nil
}

func (s *service) matchCtx(ctx context.Context, match *models.Match) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"match_id":     match.ID.String(),
		"food_item_id": match.FoodItemID.String(),
		"status":       match.Status,
	})
}

func newMatch(item models.FoodItem, recipientID uuid.UUID, score impact.Score, estimate impact.Estimate, now time.Time) models.Match {
	return models.Match{
		FoodItemID:          item.ID,
		BusinessID:          item.BusinessID,
		RecipientID:         recipientID,
		ScoreOverall:        score.Overall,
		ScoreDistance:       score.Distance,
		ScoreUrgency:        score.Urgency,
		ScoreCapacity:       score.Capacity,
		ScorePreference:     score.Preference,
		ScoreSource:         score.Source,
		ImpactMealsProvided: estimate.MealsProvided,
		ImpactPeopleServed:  estimate.PeopleServed,
		ImpactCO2Saved:      estimate.CO2Saved,
		ImpactMoneySaved:    estimate.MoneySaved.Round(2),
		Status:              enums.MatchStatusPending,
		MatchedAt:           now,
	}
}

func invalidTransition(from, to enums.MatchStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move match from %s to %s", from, to)).
		WithDetails(map[string]any{"status": from})
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.IsZero() {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func notFoundOr(err error, notFound, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func asDependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
