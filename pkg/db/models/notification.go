package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

// Notification is an in-app inbox entry for a single user.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	EventID   *uuid.UUID             `gorm:"column:event_id;type:uuid" json:"eventId,omitempty"`
	Type      enums.NotificationType `gorm:"type:notification_type;not null" json:"type"`
	Title     string                 `gorm:"type:text;not null" json:"title"`
	Message   string                 `gorm:"type:text;not null" json:"message"`
	Link      *string                `gorm:"type:text" json:"link,omitempty"`
	ReadAt    *time.Time             `gorm:"type:timestamptz" json:"readAt,omitempty"`
	CreatedAt time.Time              `gorm:"type:timestamptz;autoCreateTime" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
