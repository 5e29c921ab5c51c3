package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

// SeedUser inserts an active user with the given role.
func SeedUser(t testing.TB, conn *gorm.DB, role enums.UserRole, mutate ...func(*models.User)) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:        id,
		Email:     id.String() + "@example.com",
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
		IsActive:  true,
	}
	for _, fn := range mutate {
		fn(&user)
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedFoodItem inserts an available item expiring in two days.
func SeedFoodItem(t testing.TB, conn *gorm.DB, businessID uuid.UUID, mutate ...func(*models.FoodItem)) models.FoodItem {
	t.Helper()
	now := time.Now().UTC()
	item := models.FoodItem{
		ID:             uuid.New(),
		BusinessID:     businessID,
		Title:          "Day old bread",
		Description:    "Sourdough loaves",
		Category:       enums.FoodCategoryBakery,
		QuantityValue:  4,
		QuantityUnit:   enums.QuantityUnitKg,
		EstimatedValue: decimal.NewFromInt(20),
		Location:       types.GeographyPoint{Lat: 40.7128, Lng: -74.0060},
		AvailableFrom:  now.Add(-time.Hour),
		ExpiresAt:      now.Add(48 * time.Hour),
		UrgencyLevel:   enums.UrgencyLow,
		Status:         enums.FoodItemStatusAvailable,
	}
	for _, fn := range mutate {
		fn(&item)
	}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("seed food item: %v", err)
	}
	return item
}

// SeedMatch inserts a pending fallback scored match and its interest row.
func SeedMatch(t testing.TB, conn *gorm.DB, item models.FoodItem, recipientID uuid.UUID, mutate ...func(*models.Match)) models.Match {
	t.Helper()
	match := models.Match{
		ID:              uuid.New(),
		FoodItemID:      item.ID,
		BusinessID:      item.BusinessID,
		RecipientID:     recipientID,
		ScoreOverall:    0.8,
		ScoreDistance:   0.9,
		ScoreUrgency:    0.7,
		ScoreCapacity:   0.8,
		ScorePreference: 0.8,
		ScoreSource:     enums.ScoreSourceFallback,
		Status:          enums.MatchStatusPending,
		MatchedAt:       time.Now().UTC(),
	}
	for _, fn := range mutate {
		fn(&match)
	}
	if err := conn.Create(&match).Error; err != nil {
		t.Fatalf("seed match: %v", err)
	}
	interest := models.FoodItemInterest{
		ID:          uuid.New(),
		FoodItemID:  item.ID,
		RecipientID: recipientID,
		MatchID:     match.ID,
		Status:      match.Status,
	}
	if err := conn.Create(&interest).Error; err != nil {
		t.Fatalf("seed interest: %v", err)
	}
	return match
}
