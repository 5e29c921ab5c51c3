package matches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a match repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, match *models.Match) error {
	if match.ID == uuid.Nil {
		match.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(match).Error
}

func (r *repository) CreateInterest(ctx context.Context, interest *models.FoodItemInterest) error {
	if interest.ID == uuid.Nil {
		interest.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(interest).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&match).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *repository) FindFoodItem(ctx context.Context, id uuid.UUID) (*models.FoodItem, error) {
	var item models.FoodItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) LockFoodItem(ctx context.Context, id uuid.UUID) (*models.FoodItem, error) {
	var item models.FoodItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ClaimFoodItem is the accept compare-and-swap: it only succeeds while the
// item is still available, unassigned and not past expires_at. Zero rows
// means the race was lost or the item lapsed before the sweep reached it.
func (r *repository) ClaimFoodItem(ctx context.Context, foodItemID, recipientID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FoodItem{}).
		Where("id = ? AND status = ? AND assigned_recipient_id IS NULL AND expires_at > ?",
			foodItemID, enums.FoodItemStatusAvailable, now).
		Updates(map[string]any{
			"status":                enums.FoodItemStatusClaimed,
			"assigned_recipient_id": recipientID,
			"assigned_at":           now,
			"updated_at":            now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateFoodItem(ctx context.Context, foodItemID uuid.UUID, from []enums.FoodItemStatus, updates map[string]any) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FoodItem{}).Where("id = ?", foodItemID)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	res := query.Updates(updates)
	return res.RowsAffected, res.Error
}

// Transition applies updates only while the match is in one of from.
func (r *repository) Transition(ctx context.Context, matchID uuid.UUID, from []enums.MatchStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ? AND status IN ?", matchID, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) AssignDriver(ctx context.Context, matchID, driverID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("id = ? AND status = ? AND driver_id IS NULL", matchID, enums.MatchStatusAccepted).
		Updates(map[string]any{"driver_id": driverID, "updated_at": now})
	return res.RowsAffected, res.Error
}

// DeclineSiblings declines every other pending match of the food item.
func (r *repository) DeclineSiblings(ctx context.Context, foodItemID, winnerID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	db := r.db.WithContext(ctx)

	var ids []uuid.UUID
	err := db.Model(&models.Match{}).
		Where("food_item_id = ? AND id <> ? AND status = ?", foodItemID, winnerID, enums.MatchStatusPending).
		Order("matched_at ASC").
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	err = db.Model(&models.Match{}).
		Where("id IN ? AND status = ?", ids, enums.MatchStatusPending).
		Updates(map[string]any{"status": enums.MatchStatusDeclined, "updated_at": now}).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) SetInterestStatus(ctx context.Context, matchIDs []uuid.UUID, status enums.MatchStatus) error {
	if len(matchIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.FoodItemInterest{}).
		Where("match_id IN ?", matchIDs).
		Update("status", status).Error
}

func (r *repository) CountAccepted(ctx context.Context, foodItemID, exceptID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("food_item_id = ? AND id <> ? AND status IN ?", foodItemID, exceptID,
			[]enums.MatchStatus{enums.MatchStatusAccepted, enums.MatchStatusCompleted}).
		Count(&count).Error
	return count, err
}

func (r *repository) PendingRecipients(ctx context.Context, foodItemID uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("food_item_id = ? AND status = ?", foodItemID, enums.MatchStatusPending).
		Pluck("recipient_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]models.Match, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Match{})
	switch filters.Scope.Role {
	case enums.UserRoleBusiness:
		query = query.Where("business_id = ?", filters.Scope.UserID)
	case enums.UserRoleRecipient:
		query = query.Where("recipient_id = ?", filters.Scope.UserID)
	case enums.UserRoleDriver:
		query = query.Where("driver_id = ?", filters.Scope.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return r.page(query, filters.Page)
}

func (r *repository) ListAvailableDeliveries(ctx context.Context, page pagination.Page) ([]models.Match, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("status = ? AND driver_id IS NULL", enums.MatchStatusAccepted)
	return r.page(query, page)
}

func (r *repository) page(query *gorm.DB, page pagination.Page) ([]models.Match, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page = page.Normalize()
	var out []models.Match
	err := query.Session(&gorm.Session{}).
		Order("matched_at DESC").
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&out).Error
	return out, total, err
}
