// Package predictions serves the business-facing oracle features: surplus
// forecasts and on-demand matching runs.
package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/oracle"
)

const (
	historyWindow   = 30 * 24 * time.Hour
	defaultCapacity = 100
	defaultType     = "restaurant"

	// WarningOracleUnavailable marks a response built without the oracle.
	WarningOracleUnavailable = string(pkgerrors.CodeOracleUnavailable)
)

// Forecast is the surplus prediction returned to a business.
type Forecast struct {
	PredictedSurplus float64         `json:"predictedSurplus"`
	Confidence       float64         `json:"confidence"`
	Recommendation   string          `json:"recommendation"`
	Factors          []string        `json:"factors"`
	WeatherImpact    json.RawMessage `json:"weatherImpact,omitempty"`
	Warning          string          `json:"warning,omitempty"`
}

// MatchingRun is the outcome of a manually triggered proposal run.
type MatchingRun struct {
	Matches []models.Match `json:"matches"`
	Warning string         `json:"warning,omitempty"`
}

func fallbackForecast() *Forecast {
	return &Forecast{
		PredictedSurplus: 15,
		Confidence:       0.5,
		Recommendation:   "Unable to get AI prediction. Using default estimate.",
		Factors:          []string{"AI service unavailable"},
		Warning:          WarningOracleUnavailable,
	}
}

type Service interface {
	SurplusForecast(ctx context.Context, actor auth.Actor) (*Forecast, error)
	TriggerMatching(ctx context.Context, actor auth.Actor, foodItemID uuid.UUID) (*MatchingRun, error)
}

type history interface {
	AverageQuantity(ctx context.Context, businessID uuid.UUID, since time.Time) (float64, error)
}

type profileLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type foodLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FoodItem, error)
}

type predictor interface {
	PredictSurplus(ctx context.Context, req oracle.PredictRequest) (*oracle.Prediction, error)
}

type proposer interface {
	Propose(ctx context.Context, foodItemID uuid.UUID) ([]models.Match, error)
}

type ServiceParams struct {
	History  history
	Profiles profileLoader
	Foods    foodLoader
	Oracle   predictor
	Proposer proposer
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	history  history
	profiles profileLoader
	foods    foodLoader
	oracle   predictor
	proposer proposer
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.History == nil:
		return nil, fmt.Errorf("history repository required")
	case params.Profiles == nil:
		return nil, fmt.Errorf("profile loader required")
	case params.Foods == nil:
		return nil, fmt.Errorf("food loader required")
	case params.Oracle == nil:
		return nil, fmt.Errorf("oracle client required")
	case params.Proposer == nil:
		return nil, fmt.Errorf("proposer required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		history:  params.History,
		profiles: params.Profiles,
		foods:    params.Foods,
		oracle:   params.Oracle,
		proposer: params.Proposer,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// SurplusForecast asks the oracle to predict the business's next surplus
// from its last 30 days of postings. An unreachable oracle yields the
// default estimate tagged with an ORACLE_UNAVAILABLE warning.
func (s *service) SurplusForecast(ctx context.Context, actor auth.Actor) (*Forecast, error) {
	if !actor.Is(enums.UserRoleBusiness) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only businesses can get surplus predictions")
	}
	ctx = s.logg.WithUserID(ctx, actor.UserID.String())

	now := s.now()
	avg, err := s.history.AverageQuantity(ctx, actor.UserID, now.Add(-historyWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load posting history")
	}

	req := oracle.PredictRequest{
		BusinessID:           actor.UserID,
		BusinessType:         defaultType,
		HistoricalAvgSurplus: avg,
		Capacity:             defaultCapacity,
		Timestamp:            now,
	}
	profile, err := s.profiles.FindByID(ctx, actor.UserID)
	switch {
	case err == nil:
		if profile.BusinessType != nil && *profile.BusinessType != "" {
			req.BusinessType = *profile.BusinessType
		}
		if profile.Location != nil {
			lat, lng := profile.Location.Lat, profile.Location.Lng
			req.Lat, req.Lng = &lat, &lng
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business profile")
	}

	prediction, err := s.oracle.PredictSurplus(ctx, req)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "surplus prediction unavailable, using default estimate")
		return fallbackForecast(), nil
	}
	return &Forecast{
		PredictedSurplus: prediction.PredictedSurplus,
		Confidence:       prediction.Confidence,
		Recommendation:   prediction.Recommendation,
		Factors:          prediction.Factors,
		WeatherImpact:    prediction.WeatherImpact,
	}, nil
}

// TriggerMatching runs proposeMatches synchronously for an item the caller
// owns and returns the matches it created.
func (s *service) TriggerMatching(ctx context.Context, actor auth.Actor, foodItemID uuid.UUID) (*MatchingRun, error) {
	ctx = s.logg.WithFoodItemID(s.logg.WithUserID(ctx, actor.UserID.String()), foodItemID.String())

	item, err := s.foods.FindByID(ctx, foodItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "food item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
	}
	if item.BusinessID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to match this food item")
	}
	if item.Status != enums.FoodItemStatusAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeNotAvailable, "food item is not available")
	}

	created, err := s.proposer.Propose(ctx, item.ID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeOracleUnavailable) {
			return &MatchingRun{Matches: []models.Match{}, Warning: WarningOracleUnavailable}, nil
		}
		return nil, err
	}
	if created == nil {
		created = []models.Match{}
	}
	return &MatchingRun{Matches: created}, nil
}
