package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
)

const defaultPruneLimit = 500

// Repository is the notifications table. Inbox reads and writes are always
// scoped by user_id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMany(ctx context.Context, notifications []models.Notification) (int64, error)
	List(ctx context.Context, q inboxQuery) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// inboxQuery selects up to Probe(Limit) rows strictly after After.
type inboxQuery struct {
	UserID     uuid.UUID
	Limit      int
	After      *pagination.Cursor
	UnreadOnly bool
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

// CreateMany is idempotent per (event_id, user_id): a redelivered event
// inserts nothing and reports zero rows.
func (r *repository) CreateMany(ctx context.Context, notifications []models.Notification) (int64, error) {
	if len(notifications) == 0 {
		return 0, nil
	}
	for i := range notifications {
		if notifications[i].ID == uuid.Nil {
			notifications[i].ID = uuid.New()
		}
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&notifications)
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, q inboxQuery) ([]models.Notification, error) {
	tx := r.inbox(ctx, q.UserID)
	if q.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	if c := q.After; c != nil {
		tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
	var rows []models.Notification
	err := tx.Order("created_at DESC").Order("id DESC").Limit(pagination.Probe(q.Limit)).Find(&rows).Error
	return rows, err
}

// MarkRead reports whether the notification exists for userID. Rows that are
// already read are left untouched.
func (r *repository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error) {
	res := r.inbox(ctx, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if res.Error != nil || res.RowsAffected > 0 {
		return res.RowsAffected > 0, res.Error
	}

	var n int64
	if err := r.inbox(ctx, userID).Where("id = ?", notificationID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.inbox(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteOlderThan prunes at most limit rows created before cutoff.
func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = defaultPruneLimit
	}
	oldest := r.db.Model(&models.Notification{}).
		Select("id").
		Where("created_at < ?", cutoff).
		Order("created_at").
		Limit(limit)
	res := r.db.WithContext(ctx).Where("id IN (?)", oldest).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
