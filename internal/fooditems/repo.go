package fooditems

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

// Repository defines persistence for food items and the match rows the food
// item lifecycle is allowed to touch (cancellation, expiry, deletion).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.FoodItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.FoodItem, error)
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.FoodItem, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	SetStatus(ctx context.Context, ids []uuid.UUID, from []enums.FoodItemStatus, to enums.FoodItemStatus, now time.Time) (int64, error)
	Delete(ctx context.Context, ids []uuid.UUID) (int64, error)
	ListPublic(ctx context.Context, filters PublicFilters, now time.Time) ([]models.FoodItem, int64, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, filters MineFilters) ([]models.FoodItem, int64, error)
	CountByStatus(ctx context.Context, businessID uuid.UUID) (map[enums.FoodItemStatus]int64, error)
	ClaimDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.FoodItem, error)
	CancelLiveMatches(ctx context.Context, foodItemIDs []uuid.UUID, now time.Time) ([]models.Match, error)
	DeclinePendingMatches(ctx context.Context, foodItemIDs []uuid.UUID, now time.Time) ([]models.Match, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a food item repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.FoodItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FoodItem, error) {
	var item models.FoodItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// LockByIDs loads the rows FOR UPDATE; callers must be inside a transaction.
func (r *repository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.FoodItem, error) {
	var items []models.FoodItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.FoodItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetStatus moves every row still in one of from to to.
func (r *repository) SetStatus(ctx context.Context, ids []uuid.UUID, from []enums.FoodItemStatus, to enums.FoodItemStatus, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.FoodItem{}).
		Where("id IN ? AND status IN ?", ids, from).
		Updates(map[string]any{"status": to, "updated_at": now})
	return res.RowsAffected, res.Error
}

// Delete removes the items with their matches and interest log.
func (r *repository) Delete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("food_item_id IN ?", ids).Delete(&models.FoodItemInterest{}).Error; err != nil {
		return 0, err
	}
	if err := db.Where("food_item_id IN ?", ids).Delete(&models.Match{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id IN ?", ids).Delete(&models.FoodItem{})
	return res.RowsAffected, res.Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns user text into a LIKE substring pattern in which the
// wildcards match literally. Pair it with ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

const urgencyOrder = "CASE urgency_level WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC"

func (r *repository) ListPublic(ctx context.Context, filters PublicFilters, now time.Time) ([]models.FoodItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FoodItem{}).Where("status = ?", filters.Status)
	if filters.Status == enums.FoodItemStatusAvailable {
		query = query.Where("expires_at > ?", now)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.Urgency != nil {
		query = query.Where("urgency_level = ?", *filters.Urgency)
	}
	if len(filters.Dietary) > 0 {
		tags := make([]string, 0, len(filters.Dietary))
		for _, tag := range filters.Dietary {
			tags = append(tags, string(tag))
		}
		query = query.Where("dietary_info && ?", pq.StringArray(tags))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		like := containsPattern(strings.ToLower(search))
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, like, like)
	}
	if filters.Lat != nil && filters.Lng != nil {
		query = query.Where(
			"ST_DWithin(location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)",
			*filters.Lng, *filters.Lat, filters.RadiusKm*1000,
		)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filters.Page.Normalize()
	var items []models.FoodItem
	err := query.Session(&gorm.Session{}).
		Order(urgencyOrder).
		Order("created_at DESC").
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&items).Error
	return items, total, err
}

func (r *repository) ListByBusiness(ctx context.Context, businessID uuid.UUID, filters MineFilters) ([]models.FoodItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FoodItem{}).Where("business_id = ?", businessID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.StartDate != nil {
		query = query.Where("created_at >= ?", filters.StartDate.UTC())
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Session(&gorm.Session{})
	switch filters.Sort {
	case SortOldest:
		query = query.Order("created_at ASC")
	case SortExpiring:
		query = query.Order("expires_at ASC")
	case SortValueHigh:
		query = query.Order("estimated_value DESC")
	case SortValueLow:
		query = query.Order("estimated_value ASC")
	default:
		query = query.Order("created_at DESC")
	}

	page := filters.Page.Normalize()
	var items []models.FoodItem
	err := query.Order("id ASC").Offset(page.Offset()).Limit(page.Limit).Find(&items).Error
	return items, total, err
}

func (r *repository) CountByStatus(ctx context.Context, businessID uuid.UUID) (map[enums.FoodItemStatus]int64, error) {
	var rows []struct {
		Status enums.FoodItemStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.FoodItem{}).
		Select("status, COUNT(*) AS count").
		Where("business_id = ?", businessID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.FoodItemStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ClaimDueForExpiry flips up to limit available items whose expiry has passed
// and returns them. Rows locked by a concurrent accept are skipped and picked
// up by the next sweep.
func (r *repository) ClaimDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.FoodItem, error) {
	var due []models.FoodItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND expires_at <= ?", enums.FoodItemStatusAvailable, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil || len(due) == 0 {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, item := range due {
		ids = append(ids, item.ID)
	}
	if _, err := r.SetStatus(ctx, ids, []enums.FoodItemStatus{enums.FoodItemStatusAvailable}, enums.FoodItemStatusExpired, now); err != nil {
		return nil, err
	}
	for i := range due {
		due[i].Status = enums.FoodItemStatusExpired
	}
	return due, nil
}

// CancelLiveMatches cancels pending and accepted matches of the items and
// mirrors the change into the interest log.
func (r *repository) CancelLiveMatches(ctx context.Context, foodItemIDs []uuid.UUID, now time.Time) ([]models.Match, error) {
	live := []enums.MatchStatus{enums.MatchStatusPending, enums.MatchStatusAccepted}
	return r.resolveMatches(ctx, foodItemIDs, live, enums.MatchStatusCancelled, map[string]any{
		"status":       enums.MatchStatusCancelled,
		"cancelled_at": now,
		"updated_at":   now,
	})
}

// DeclinePendingMatches declines every pending match of the items.
func (r *repository) DeclinePendingMatches(ctx context.Context, foodItemIDs []uuid.UUID, now time.Time) ([]models.Match, error) {
	return r.resolveMatches(ctx, foodItemIDs, []enums.MatchStatus{enums.MatchStatusPending}, enums.MatchStatusDeclined, map[string]any{
		"status":     enums.MatchStatusDeclined,
		"updated_at": now,
	})
}

func (r *repository) resolveMatches(ctx context.Context, foodItemIDs []uuid.UUID, from []enums.MatchStatus, to enums.MatchStatus, updates map[string]any) ([]models.Match, error) {
	if len(foodItemIDs) == 0 {
		return nil, nil
	}
	db := r.db.WithContext(ctx)

	var matches []models.Match
	if err := db.Where("food_item_id IN ? AND status IN ?", foodItemIDs, from).Find(&matches).Error; err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	if err := db.Model(&models.Match{}).Where("id IN ? AND status IN ?", ids, from).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.FoodItemInterest{}).Where("match_id IN ?", ids).Update("status", to).Error; err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].Status = to
	}
	return matches, nil
}
