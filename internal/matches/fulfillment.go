package matches

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/outbox/payloads"
)

func (s *service) AssignDriver(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if !actor.Is(enums.UserRoleDriver) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers can take deliveries")
	}

	var assigned *models.Match
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match, err := repo.LockByID(ctx, matchID)
		if err != nil {
			return notFoundOr(err, "match not found", "load match")
		}
		if match.Status != enums.MatchStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only accepted matches can be assigned").
				WithDetails(map[string]any{"status": match.Status})
		}
		if match.DriverID != nil {
			if *match.DriverID == actor.UserID {
				assigned = match
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "delivery already taken by another driver")
		}

		now := s.now()
		n, err := repo.AssignDriver(ctx, match.ID, actor.UserID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "delivery already taken by another driver")
		}
		if _, err := repo.UpdateFoodItem(ctx, match.FoodItemID, []enums.FoodItemStatus{enums.FoodItemStatusClaimed}, map[string]any{
			"assigned_driver_id": actor.UserID,
			"updated_at":         now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver to food item")
		}

		driverID := actor.UserID
		match.DriverID = &driverID
		assigned = match
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "assign driver")
	}

	s.logg.Info(s.logg.WithUserID(s.matchCtx(ctx, assigned), actor.UserID.String()), "driver assigned")
	return assigned, nil
}

// RecordPickup moves the claimed food item to in_transit and stamps the pickup
// on both entities.
func (s *service) RecordPickup(ctx context.Context, actor auth.Actor, matchID uuid.UUID) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}

	var picked *models.Match
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match, err := repo.LockByID(ctx, matchID)
		if err != nil {
			return notFoundOr(err, "match not found", "load match")
		}
		if !canFulfill(actor, match) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver or the business can record pickup")
		}
		if match.Status != enums.MatchStatusAccepted || match.PickupAt != nil {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "pickup can only be recorded once on an accepted match").
				WithDetails(map[string]any{"status": match.Status})
		}

		now := s.now()
		n, err := repo.UpdateFoodItem(ctx, match.FoodItemID, []enums.FoodItemStatus{enums.FoodItemStatusClaimed}, map[string]any{
			"status":      enums.FoodItemStatusInTransit,
			"pickup_time": now,
			"updated_at":  now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark food item in transit")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "food item is not awaiting pickup")
		}
		if _, err := repo.Transition(ctx, match.ID, []enums.MatchStatus{enums.MatchStatusAccepted}, map[string]any{
			"pickup_at":  now,
			"updated_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pickup")
		}

		match.PickupAt = &now
		picked = match
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "record pickup")
	}

	s.logg.Info(s.matchCtx(ctx, picked), "pickup recorded")
	return picked, nil
}

// Complete closes an accepted match and delivers its food item. Completing
// twice fails and leaves the first delivery timestamp untouched.
func (s *service) Complete(ctx context.Context, actor auth.Actor, matchID uuid.UUID, proof *string) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	proof = trimmedOrNil(proof)

	var completed *models.Match
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match, err := repo.LockByID(ctx, matchID)
		if err != nil {
			return notFoundOr(err, "match not found", "load match")
		}
		if !canFulfill(actor, match) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver or the business can complete this match")
		}
		if !match.Status.CanTransitionTo(enums.MatchStatusCompleted) {
			return invalidTransition(match.Status, enums.MatchStatusCompleted)
		}

		now := s.now()
		n, err := repo.Transition(ctx, match.ID, []enums.MatchStatus{enums.MatchStatusAccepted}, map[string]any{
			"status":       enums.MatchStatusCompleted,
			"delivered_at": now,
			"pickup_at":    gorm.Expr("COALESCE(pickup_at, ?)", now),
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete match")
		}
		if n == 0 {
			return invalidTransition(match.Status, enums.MatchStatusCompleted)
		}

		itemUpdates := map[string]any{
			"status":        enums.FoodItemStatusDelivered,
			"delivery_time": now,
			"pickup_time":   gorm.Expr("COALESCE(pickup_time, ?)", now),
			"updated_at":    now,
		}
		if proof != nil {
			itemUpdates["delivery_proof"] = *proof
		}
		n, err = repo.UpdateFoodItem(ctx, match.FoodItemID,
			[]enums.FoodItemStatus{enums.FoodItemStatusClaimed, enums.FoodItemStatusInTransit}, itemUpdates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver food item")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "food item cannot be delivered from its current status")
		}
		if err := repo.SetInterestStatus(ctx, []uuid.UUID{match.ID}, enums.MatchStatusCompleted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update interest log")
		}

		item, err := repo.FindFoodItem(ctx, match.FoodItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload food item")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMatchCompleted,
			AggregateType: enums.AggregateMatch,
			AggregateID:   match.ID,
			Actor:         actorRef(actor),
			Data: payloads.MatchCompletedEvent{
				MatchID:       match.ID,
				FoodItemID:    match.FoodItemID,
				BusinessID:    match.BusinessID,
				RecipientID:   match.RecipientID,
				DriverID:      match.DriverID,
				Title:         item.Title,
				MealsProvided: match.ImpactMealsProvided,
				DeliveredAt:   now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		match.Status = enums.MatchStatusCompleted
		match.DeliveredAt = &now
		if match.PickupAt == nil {
			match.PickupAt = &now
		}
		completed = match
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "complete match")
	}

	s.logg.Info(s.matchCtx(ctx, completed), "match completed")
	return completed, nil
}

// canFulfill is the tightened completion rule: the assigned driver, the
// owning business or an admin.
func canFulfill(actor auth.Actor, match *models.Match) bool {
	if actor.IsAdmin() || match.BusinessID == actor.UserID {
		return true
	}
	return actor.Is(enums.UserRoleDriver) && match.DriverID != nil && *match.DriverID == actor.UserID
}

func (s *service) SubmitFeedback(ctx context.Context, actor auth.Actor, matchID uuid.UUID, input FeedbackInput) (*models.Match, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	comment := strings.TrimSpace(input.Comment)
	details := map[string]string{}
	if input.Rating < 1 || input.Rating > 5 {
		details["rating"] = "must be between 1 and 5"
	}
	if utf8.RuneCountInString(comment) > maxCommentLen {
		details["comment"] = "too long"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid feedback").WithDetails(details)
	}

	var rated *models.Match
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match, err := repo.LockByID(ctx, matchID)
		if err != nil {
			return notFoundOr(err, "match not found", "load match")
		}
		if match.Status != enums.MatchStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "feedback is only accepted on completed matches")
		}

		feedback := match.Feedback.Data()
		slot := feedbackSlot(&feedback, actor, match)
		if slot == nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only parties to the match can leave feedback")
		}
		if *slot != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "feedback already submitted")
		}
		*slot = &models.PartyFeedback{Rating: input.Rating, Comment: comment, SubmittedAt: s.now()}

		if _, err := repo.Transition(ctx, match.ID, []enums.MatchStatus{enums.MatchStatusCompleted}, map[string]any{
			"feedback":   datatypes.NewJSONType(feedback),
			"updated_at": s.now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save feedback")
		}
		match.Feedback = datatypes.NewJSONType(feedback)
		rated = match
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "submit feedback")
	}

	s.logg.Info(s.logg.WithActorRole(s.matchCtx(ctx, rated), string(actor.Role)), "feedback submitted")
	return rated, nil
}

func feedbackSlot(feedback *models.MatchFeedback, actor auth.Actor, match *models.Match) **models.PartyFeedback {
	switch {
	case match.BusinessID == actor.UserID:
		return &feedback.Business
	case match.RecipientID == actor.UserID:
		return &feedback.Recipient
	case match.DriverID != nil && *match.DriverID == actor.UserID:
		return &feedback.Driver
	}
	return nil
}

