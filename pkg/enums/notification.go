package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeFoodNearby     NotificationType = "food_nearby"
	NotificationTypeMatchProposed  NotificationType = "match_proposed"
	NotificationTypeMatchRequested NotificationType = "match_requested"
	NotificationTypeMatchAccepted  NotificationType = "match_accepted"
	NotificationTypeMatchCompleted NotificationType = "match_completed"
	NotificationTypeMatchCancelled NotificationType = "match_cancelled"
	NotificationTypeFoodExpired    NotificationType = "food_expired"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeFoodNearby,
	NotificationTypeMatchProposed,
	NotificationTypeMatchRequested,
	NotificationTypeMatchAccepted,
	NotificationTypeMatchCompleted,
	NotificationTypeMatchCancelled,
	NotificationTypeFoodExpired,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return member(n, validNotificationTypes)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parse(value, "notification type", validNotificationTypes)
}
