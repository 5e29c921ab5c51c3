package stats

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/internal/repo"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

// Repository runs the read-only rollup queries. Everything is computed from
// committed rows on each call.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

type statusCount struct {
	Status string
	N      int64
}

// FoodItemStatusCounts groups a business's items by status.
func (r *Repository) FoodItemStatusCounts(ctx context.Context, businessID uuid.UUID) (map[enums.FoodItemStatus]int64, error) {
	var rows []statusCount
	err := r.DB(ctx).
		Model(&models.FoodItem{}).
		Select("status, COUNT(*) AS n").
		Where("business_id = ?", businessID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.FoodItemStatus]int64, len(rows))
	for _, row := range rows {
		out[enums.FoodItemStatus(row.Status)] = row.N
	}
	return out, nil
}

// MatchStatusCounts groups matches where column (business_id, recipient_id or
// driver_id) equals userID.
func (r *Repository) MatchStatusCounts(ctx context.Context, column string, userID uuid.UUID) (map[enums.MatchStatus]int64, error) {
	var rows []statusCount
	err := r.DB(ctx).
		Model(&models.Match{}).
		Select("status, COUNT(*) AS n").
		Where(column+" = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.MatchStatus]int64, len(rows))
	for _, row := range rows {
		out[enums.MatchStatus(row.Status)] = row.N
	}
	return out, nil
}

// BusinessItems returns the quantity and value columns of every item the
// business posted.
func (r *Repository) BusinessItems(ctx context.Context, businessID uuid.UUID) ([]models.FoodItem, error) {
	var items []models.FoodItem
	err := r.DB(ctx).
		Select("id", "status", "quantity_value", "estimated_value").
		Where("business_id = ?", businessID).
		Find(&items).Error
	return items, err
}

// CompletedMatches returns completed matches where column equals userID.
func (r *Repository) CompletedMatches(ctx context.Context, column string, userID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := r.DB(ctx).
		Where(column+" = ? AND status = ?", userID, enums.MatchStatusCompleted).
		Find(&matches).Error
	return matches, err
}

// FoodItemsByID loads the quantity and value columns of the given items.
func (r *Repository) FoodItemsByID(ctx context.Context, ids []uuid.UUID) ([]models.FoodItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.FoodItem
	err := r.DB(ctx).
		Select("id", "status", "quantity_value", "estimated_value").
		Where("id IN ?", ids).
		Find(&items).Error
	return items, err
}

// ActiveDeliveries counts a driver's accepted matches whose item is in transit.
func (r *Repository) ActiveDeliveries(ctx context.Context, driverID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB(ctx).
		Model(&models.Match{}).
		Joins("JOIN food_items ON food_items.id = matches.food_item_id").
		Where("matches.driver_id = ? AND matches.status = ? AND food_items.status = ?",
			driverID, enums.MatchStatusAccepted, enums.FoodItemStatusInTransit).
		Count(&n).Error
	return n, err
}
