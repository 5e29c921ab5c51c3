// Package stats computes the per-role dashboard rollups.
package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/surplus-engine/internal/impact"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

const (
	driverImpactPerDelivery = 20
	defaultDriverRating     = 5.0
)

type ImpactTotals struct {
	MealsProvided int             `json:"mealsProvided"`
	PeopleServed  int             `json:"peopleServed"`
	CO2Saved      float64         `json:"co2Saved"`
	MoneySaved    decimal.Decimal `json:"moneySaved"`
}

type BusinessStats struct {
	TotalDonations int64                          `json:"totalDonations"`
	ActiveListings int64                          `json:"activeListings"`
	ByStatus       map[enums.FoodItemStatus]int64 `json:"byStatus"`
	TotalValue     decimal.Decimal                `json:"totalValue"`
	TotalMatches   int64                          `json:"totalMatches"`
	PendingMatches int64                          `json:"pendingMatches"`
	ImpactScore    float64                        `json:"impactScore"`
	MealsDonated   int                            `json:"mealsDonated"`
	CO2Saved       float64                        `json:"co2Saved"`
	PeopleServed   int                            `json:"peopleServed"`
}

type RecipientStats struct {
	TotalReceived  int64           `json:"totalReceived"`
	ActiveRequests int64           `json:"activeRequests"`
	MealsReceived  int             `json:"mealsReceived"`
	SavedMoney     decimal.Decimal `json:"savedMoney"`
	ImpactScore    float64         `json:"impactScore"`
	Impact         ImpactTotals    `json:"impact"`
}

type DriverStats struct {
	TotalDeliveries  int64           `json:"totalDeliveries"`
	ActiveDeliveries int64           `json:"activeDeliveries"`
	TotalEarnings    decimal.Decimal `json:"totalEarnings"`
	ImpactScore      int64           `json:"impactScore"`
	Rating           float64         `json:"rating"`
}

type Service interface {
	Business(ctx context.Context, businessID uuid.UUID) (*BusinessStats, error)
	Recipient(ctx context.Context, recipientID uuid.UUID) (*RecipientStats, error)
	Driver(ctx context.Context, driverID uuid.UUID) (*DriverStats, error)
	ForUser(ctx context.Context, user models.User) (any, error)
}

type store interface {
	FoodItemStatusCounts(ctx context.Context, businessID uuid.UUID) (map[enums.FoodItemStatus]int64, error)
	MatchStatusCounts(ctx context.Context, column string, userID uuid.UUID) (map[enums.MatchStatus]int64, error)
	BusinessItems(ctx context.Context, businessID uuid.UUID) ([]models.FoodItem, error)
	CompletedMatches(ctx context.Context, column string, userID uuid.UUID) ([]models.Match, error)
	FoodItemsByID(ctx context.Context, ids []uuid.UUID) ([]models.FoodItem, error)
	ActiveDeliveries(ctx context.Context, driverID uuid.UUID) (int64, error)
}

type service struct {
	store store
	logg  *logger.Logger
}

func NewService(store store, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("stats store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, logg: logg}, nil
}

func (s *service) Business(ctx context.Context, businessID uuid.UUID) (*BusinessStats, error) {
	byStatus, err := s.store.FoodItemStatusCounts(ctx, businessID)
	if err != nil {
		return nil, wrap(err, "count food items")
	}
	items, err := s.store.BusinessItems(ctx, businessID)
	if err != nil {
		return nil, wrap(err, "load food items")
	}
	matchCounts, err := s.store.MatchStatusCounts(ctx, "business_id", businessID)
	if err != nil {
		return nil, wrap(err, "count matches")
	}
	completed, err := s.store.CompletedMatches(ctx, "business_id", businessID)
	if err != nil {
		return nil, wrap(err, "load completed matches")
	}

	out := &BusinessStats{
		ByStatus:       byStatus,
		ActiveListings: byStatus[enums.FoodItemStatusAvailable],
		TotalValue:     decimal.Zero,
		PendingMatches: matchCounts[enums.MatchStatusPending],
	}
	for _, n := range byStatus {
		out.TotalDonations += n
	}
	for _, n := range matchCounts {
		out.TotalMatches += n
	}

	var delivered float64
	for _, item := range items {
		out.TotalValue = out.TotalValue.Add(item.EstimatedValue)
		if item.Status != enums.FoodItemStatusDelivered {
			continue
		}
		delivered += item.QuantityValue
		est := impact.ForMatch(item.QuantityValue, item.EstimatedValue, nil)
		out.MealsDonated += est.MealsProvided
		out.CO2Saved += est.CO2Saved
	}
	out.ImpactScore = impact.BusinessImpactScore(delivered)
	for _, m := range completed {
		out.PeopleServed += m.ImpactPeopleServed
	}
	return out, nil
}

func (s *service) Recipient(ctx context.Context, recipientID uuid.UUID) (*RecipientStats, error) {
	counts, err := s.store.MatchStatusCounts(ctx, "recipient_id", recipientID)
	if err != nil {
		return nil, wrap(err, "count matches")
	}
	completed, err := s.store.CompletedMatches(ctx, "recipient_id", recipientID)
	if err != nil {
		return nil, wrap(err, "load completed matches")
	}

	out := &RecipientStats{
		TotalReceived:  counts[enums.MatchStatusCompleted],
		ActiveRequests: counts[enums.MatchStatusPending] + counts[enums.MatchStatusAccepted],
		SavedMoney:     decimal.Zero,
		Impact:         ImpactTotals{MoneySaved: decimal.Zero},
	}

	ids := make([]uuid.UUID, 0, len(completed))
	for _, m := range completed {
		ids = append(ids, m.FoodItemID)
		out.Impact.MealsProvided += m.ImpactMealsProvided
		out.Impact.PeopleServed += m.ImpactPeopleServed
		out.Impact.CO2Saved += m.ImpactCO2Saved
		out.Impact.MoneySaved = out.Impact.MoneySaved.Add(m.ImpactMoneySaved)
	}
	items, err := s.store.FoodItemsByID(ctx, ids)
	if err != nil {
		return nil, wrap(err, "load received food items")
	}
	var received float64
	for _, item := range items {
		received += item.QuantityValue
		out.SavedMoney = out.SavedMoney.Add(item.EstimatedValue)
		out.MealsReceived += impact.ForMatch(item.QuantityValue, item.EstimatedValue, nil).MealsProvided
	}
	out.ImpactScore = impact.BusinessImpactScore(received)
	return out, nil
}

func (s *service) Driver(ctx context.Context, driverID uuid.UUID) (*DriverStats, error) {
	completed, err := s.store.CompletedMatches(ctx, "driver_id", driverID)
	if err != nil {
		return nil, wrap(err, "load completed deliveries")
	}
	active, err := s.store.ActiveDeliveries(ctx, driverID)
	if err != nil {
		return nil, wrap(err, "count active deliveries")
	}

	n := int64(len(completed))
	return &DriverStats{
		TotalDeliveries:  n,
		ActiveDeliveries: active,
		TotalEarnings:    impact.DriverEarnings(n),
		ImpactScore:      n * driverImpactPerDelivery,
		Rating:           driverRating(completed),
	}, nil
}

// ForUser dispatches on the user's role.
func (s *service) ForUser(ctx context.Context, user models.User) (any, error) {
	switch user.Role {
	case enums.UserRoleBusiness:
		return s.Business(ctx, user.ID)
	case enums.UserRoleRecipient:
		return s.Recipient(ctx, user.ID)
	case enums.UserRoleDriver:
		return s.Driver(ctx, user.ID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no stats for role %q", user.Role))
	}
}

// driverRating averages the business and recipient ratings left on the
// driver's completed deliveries.
func driverRating(completed []models.Match) float64 {
	var sum, n int
	for _, m := range completed {
		fb := m.Feedback.Data()
		for _, party := range []*models.PartyFeedback{fb.Business, fb.Recipient} {
			if party != nil {
				sum += party.Rating
				n++
			}
		}
	}
	if n == 0 {
		return defaultDriverRating
	}
	return decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(n))).Round(1).InexactFloat64()
}

func wrap(err error, msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
