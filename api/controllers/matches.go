package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/api/responses"
	"github.com/angelmondragon/surplus-engine/api/validators"
	"github.com/angelmondragon/surplus-engine/internal/matches"
	pkgAuth "github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

type matchRequestBody struct {
	FoodItemID uuid.UUID `json:"foodItemId" validate:"required"`
	Message    *string   `json:"message,omitempty" validate:"omitempty,max=300"`
}

type matchCompleteBody struct {
	Proof *string `json:"proof,omitempty" validate:"omitempty,max=2048"`
}

type matchFeedbackBody struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// MatchRequest lets a recipient ask for an available food item.
func MatchRequest(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "matches")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body matchRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		match, err := svc.Request(r.Context(), actor, matches.RequestInput{FoodItemID: body.FoodItemID, Message: body.Message})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, match)
	}
}

// MatchAccept runs the accept race; losers get ALREADY_RESOLVED.
func MatchAccept(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "matches")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "matchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Accept(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type matchAction func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error)

// matchActionHandler covers the endpoints that take only the match id.
func matchActionHandler(svc matches.Service, logg *logger.Logger, action matchAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "matches")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "matchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		match, err := action(svc, r, actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, match)
	}
}

func MatchDecline(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return matchActionHandler(svc, logg, func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error) {
		return svc.Decline(r.Context(), actor, id)
	})
}

func MatchAssignDriver(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return matchActionHandler(svc, logg, func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error) {
		return svc.AssignDriver(r.Context(), actor, id)
	})
}

func MatchPickup(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return matchActionHandler(svc, logg, func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error) {
		return svc.RecordPickup(r.Context(), actor, id)
	})
}

func MatchCancel(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return matchActionHandler(svc, logg, func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error) {
		return svc.Cancel(r.Context(), actor, id)
	})
}

func MatchDetail(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return matchActionHandler(svc, logg, func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error) {
		return svc.Get(r.Context(), actor, id)
	})
}

// MatchComplete accepts an optional delivery proof; the body may be empty.
func MatchComplete(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return matchActionHandler(svc, logg, func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error) {
		var body matchCompleteBody
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				return nil, err
			}
		}
		return svc.Complete(r.Context(), actor, id, body.Proof)
	})
}

func MatchFeedback(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return matchActionHandler(svc, logg, func(svc matches.Service, r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (*models.Match, error) {
		var body matchFeedbackBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.SubmitFeedback(r.Context(), actor, id, matches.FeedbackInput{Rating: body.Rating, Comment: body.Comment})
	})
}

// MatchListMine returns the caller's matches from their role's side.
func MatchListMine(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "matches")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var status *enums.MatchStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseMatchStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}
		page, err := pageFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListMine(r.Context(), actor, status, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MatchListAvailable lists accepted matches still waiting for a driver.
func MatchListAvailable(svc matches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "matches")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		page, err := pageFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListAvailableDeliveries(r.Context(), actor, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
