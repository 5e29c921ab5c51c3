package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/surplus-engine/api/validators"
	"github.com/angelmondragon/surplus-engine/internal/notifications"
	pkgAuth "github.com/angelmondragon/surplus-engine/pkg/auth"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/pagination"
)

// ListNotifications pages through the caller's inbox, newest first.
// Query: limit, cursor, unreadOnly.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serveActor("notifications", svc != nil, logg, func(r *http.Request, actor pkgAuth.Actor) (any, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return nil, err
		}
		unread, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{
			UserID:     actor.UserID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly: unread,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serveActor("notifications", svc != nil, logg, func(r *http.Request, actor pkgAuth.Actor) (any, error) {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), actor.UserID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return serveActor("notifications", svc != nil, logg, func(r *http.Request, actor pkgAuth.Actor) (any, error) {
		n, err := svc.MarkAllRead(r.Context(), actor.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
