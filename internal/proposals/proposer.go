// Package proposals runs proposeMatches: candidate selection, oracle scoring
// and persistence of the proposed matches, off the request path.
package proposals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/internal/candidates"
	"github.com/angelmondragon/surplus-engine/internal/impact"
	"github.com/angelmondragon/surplus-engine/internal/matches"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/oracle"
)

// Run results reported to metrics.
const (
	ResultCreated           = "created"
	ResultNoCandidates      = "no_candidates"
	ResultNoMatches         = "no_matches"
	ResultStale             = "stale"
	ResultOracleUnavailable = "oracle_unavailable"
	ResultError             = "error"
)

type foodLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.FoodItem, error)
}

type candidateFinder interface {
	FindCandidates(ctx context.Context, item models.FoodItem) ([]candidates.Candidate, error)
}

type scorer interface {
	MatchFood(ctx context.Context, req oracle.MatchRequest) ([]oracle.MatchResult, error)
}

type proposalSink interface {
	CreateProposed(ctx context.Context, foodItemID uuid.UUID, proposals []matches.Proposal) ([]models.Match, error)
}

type runRecorder interface {
	IncProposalRun(result string)
}

type ProposerParams struct {
	Foods      foodLoader
	Candidates candidateFinder
	Oracle     scorer
	Matches    proposalSink
	Metrics    runRecorder
	Logger     *logger.Logger
}

type Proposer struct {
	foods      foodLoader
	candidates candidateFinder
	oracle     scorer
	matches    proposalSink
	metrics    runRecorder
	logg       *logger.Logger
}

func NewProposer(params ProposerParams) (*Proposer, error) {
	switch {
	case params.Foods == nil:
		return nil, fmt.Errorf("food loader required")
	case params.Candidates == nil:
		return nil, fmt.Errorf("candidate finder required")
	case params.Oracle == nil:
		return nil, fmt.Errorf("oracle client required")
	case params.Matches == nil:
		return nil, fmt.Errorf("proposal sink required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Proposer{
		foods:      params.Foods,
		candidates: params.Candidates,
		oracle:     params.Oracle,
		matches:    params.Matches,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// Propose fetches candidates for the food item, asks the oracle to score them
// and stores the scored recipients as pending matches. Oracle failures return
// an ORACLE_UNAVAILABLE error and create nothing.
func (p *Proposer) Propose(ctx context.Context, foodItemID uuid.UUID) ([]models.Match, error) {
	created, result, err := p.propose(ctx, foodItemID)
	if p.metrics != nil {
		p.metrics.IncProposalRun(result)
	}
	logCtx := p.logg.WithFields(ctx, map[string]any{"food_item_id": foodItemID.String(), "result": result})
	switch result {
	case ResultOracleUnavailable:
		p.logg.Warn(logCtx, "scoring oracle unavailable, no matches proposed")
	case ResultError:
		p.logg.Error(logCtx, "propose matches failed", err)
	default:
		p.logg.Info(p.logg.WithField(logCtx, "count", len(created)), "propose matches finished")
	}
	return created, err
}

func (p *Proposer) propose(ctx context.Context, foodItemID uuid.UUID) ([]models.Match, string, error) {
	item, err := p.foods.FindByID(ctx, foodItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ResultStale, nil
		}
		return nil, ResultError, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
	}
	if item.Status != enums.FoodItemStatusAvailable {
		return nil, ResultStale, nil
	}

	found, err := p.candidates.FindCandidates(ctx, *item)
	if err != nil {
		return nil, ResultError, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find candidates")
	}
	if len(found) == 0 {
		return nil, ResultNoCandidates, nil
	}

	results, err := p.oracle.MatchFood(ctx, buildRequest(*item, found))
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "score candidates")
		}
		return nil, ResultOracleUnavailable, err
	}

	proposals := toProposals(*item, found, results)
	if len(proposals) == 0 {
		return nil, ResultNoMatches, nil
	}

	created, err := p.matches.CreateProposed(ctx, item.ID, proposals)
	if err != nil {
		return nil, ResultError, err
	}
	if len(created) == 0 {
		return nil, ResultStale, nil
	}
	return created, ResultCreated, nil
}

func buildRequest(item models.FoodItem, found []candidates.Candidate) oracle.MatchRequest {
	recipients := make([]oracle.RecipientSummary, 0, len(found))
	for _, c := range found {
		profile := oracle.RecipientProfile{
			Location:            oracle.PointFrom(*c.Recipient.Location),
			DietaryRestrictions: append([]string{}, c.Recipient.DietaryRestrictions...),
		}
		if c.Recipient.OrganizationType != nil {
			profile.OrganizationType = *c.Recipient.OrganizationType
		}
		if c.Recipient.ServingCapacity != nil {
			profile.ServingCapacity = *c.Recipient.ServingCapacity
		}
		recipients = append(recipients, oracle.RecipientSummary{
			ID:      c.Recipient.ID,
			Name:    c.Recipient.DisplayName(),
			Profile: profile,
		})
	}
	return oracle.MatchRequest{
		FoodItem: oracle.FoodSummary{
			ID:             item.ID,
			Category:       string(item.Category),
			Quantity:       oracle.Quantity{Value: item.QuantityValue, Unit: string(item.QuantityUnit)},
			EstimatedValue: item.EstimatedValue.InexactFloat64(),
			ExpiresAt:      item.ExpiresAt,
			Location:       oracle.PointFrom(item.Location),
			DietaryInfo:    append([]string{}, item.DietaryInfo...),
		},
		Recipients: recipients,
	}
}

// toProposals keeps oracle results for known candidates only. The oracle's
// impact estimate is used when it sent one, the local formulas otherwise.
func toProposals(item models.FoodItem, found []candidates.Candidate, results []oracle.MatchResult) []matches.Proposal {
	byID := make(map[uuid.UUID]candidates.Candidate, len(found))
	for _, c := range found {
		byID[c.Recipient.ID] = c
	}

	seen := make(map[uuid.UUID]bool, len(results))
	out := make([]matches.Proposal, 0, len(results))
	for _, r := range results {
		c, ok := byID[r.RecipientID]
		if !ok || seen[r.RecipientID] {
			continue
		}
		seen[r.RecipientID] = true

		estimate := impact.ForMatch(item.QuantityValue, item.EstimatedValue, c.Recipient.ServingCapacity)
		if r.Impact.MealsProvided > 0 || r.Impact.PeopleServed > 0 {
			estimate = impact.Estimate{
				MealsProvided: r.Impact.MealsProvided,
				PeopleServed:  r.Impact.PeopleServed,
				CO2Saved:      r.Impact.CO2SavedKg,
				MoneySaved:    decimal.NewFromFloat(r.Impact.MoneySavedUSD),
			}
		}
		out = append(out, matches.Proposal{
			RecipientID: r.RecipientID,
			Score: impact.Score{
				Overall:    oracle.Clamp01(r.Score),
				Distance:   r.DistanceScore(),
				Urgency:    oracle.Clamp01(r.UrgencyScore),
				Capacity:   oracle.Clamp01(r.CapacityScore),
				Preference: oracle.Clamp01(r.PreferenceScore),
				Source:     enums.ScoreSourceOracle,
			},
			Impact: estimate,
		})
	}
	return out
}
