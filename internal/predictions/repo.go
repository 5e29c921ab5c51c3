package predictions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/surplus-engine/internal/repo"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
)

// Repository reads a business's posting history.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// AverageQuantity returns the mean posted quantity of items the business
// created since the given time, 0 when there are none.
func (r *Repository) AverageQuantity(ctx context.Context, businessID uuid.UUID, since time.Time) (float64, error) {
	var avg float64
	err := r.DB(ctx).
		Model(&models.FoodItem{}).
		Select("COALESCE(AVG(quantity_value), 0)").
		Where("business_id = ? AND created_at >= ?", businessID, since).
		Scan(&avg).Error
	return avg, err
}
