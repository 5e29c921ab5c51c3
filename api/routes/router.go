package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/surplus-engine/api/controllers"
	"github.com/angelmondragon/surplus-engine/api/middleware"
	"github.com/angelmondragon/surplus-engine/internal/fooditems"
	"github.com/angelmondragon/surplus-engine/internal/matches"
	"github.com/angelmondragon/surplus-engine/internal/notifications"
	"github.com/angelmondragon/surplus-engine/internal/predictions"
	"github.com/angelmondragon/surplus-engine/internal/stats"
	"github.com/angelmondragon/surplus-engine/internal/users"
	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/enums"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	pkgredis "github.com/angelmondragon/surplus-engine/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer uses.
type redisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
}

// Dependencies carries everything NewRouter mounts.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	Readiness controllers.ReadinessDeps
	Redis     redisStore
	Metrics   prometheus.Gatherer

	Food          fooditems.Service
	Matches       matches.Service
	Users         users.Service
	Stats         stats.Service
	Notifications notifications.Service
	Predictions   predictions.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.AccessLog(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Readiness, logg))
	})
	r.Handle("/metrics", metricsHandler(deps.Metrics))

	requestPolicy := middleware.NewRateLimitPolicy(
		"match-request",
		cfg.Matching.RequestRateWindow,
		cfg.Matching.RequestRateLimit,
	)

	business := middleware.RequireRole(logg, enums.UserRoleBusiness)
	recipient := middleware.RequireRole(logg, enums.UserRoleRecipient)
	driver := middleware.RequireRole(logg, enums.UserRoleDriver)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/food", controllers.FoodList(deps.Food, logg))
		r.Get("/food/{foodId}", controllers.FoodDetail(deps.Food, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			// flat so the static /food/mine and /food/stats win over the public {foodId}
			r.With(business).Post("/food", controllers.FoodCreate(deps.Food, logg))
			r.With(business).Get("/food/mine", controllers.FoodMine(deps.Food, logg))
			r.With(business).Get("/food/stats", controllers.FoodStats(deps.Stats, logg))
			r.With(business).Post("/food/bulk-delete", controllers.FoodBulkDelete(deps.Food, logg))
			r.With(business).Post("/food/bulk-update-status", controllers.FoodBulkUpdateStatus(deps.Food, logg))
			r.With(business).Put("/food/{foodId}", controllers.FoodUpdate(deps.Food, logg))
			r.With(business).Post("/food/{foodId}/cancel", controllers.FoodCancel(deps.Food, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleBusiness, enums.UserRoleAdmin)).
				Delete("/food/{foodId}", controllers.FoodDelete(deps.Food, logg))

			r.Route("/predictions", func(r chi.Router) {
				r.Use(business)
				r.Get("/surplus", controllers.PredictSurplus(deps.Predictions, logg))
				r.Post("/match/{foodId}", controllers.TriggerMatching(deps.Predictions, logg))
			})

			r.Route("/matches", func(r chi.Router) {
				r.With(recipient, middleware.UserRateLimit(requestPolicy, deps.Redis, logg)).
					Post("/request", controllers.MatchRequest(deps.Matches, logg))
				r.With(driver).Get("/available", controllers.MatchListAvailable(deps.Matches, logg))
				r.Get("/mine", controllers.MatchListMine(deps.Matches, logg))

				r.Route("/{matchId}", func(r chi.Router) {
					r.Get("/", controllers.MatchDetail(deps.Matches, logg))
					r.With(recipient).Post("/accept", controllers.MatchAccept(deps.Matches, logg))
					r.With(driver).Post("/assign", controllers.MatchAssignDriver(deps.Matches, logg))
					r.Post("/decline", controllers.MatchDecline(deps.Matches, logg))
					r.Post("/pickup", controllers.MatchPickup(deps.Matches, logg))
					r.Post("/complete", controllers.MatchComplete(deps.Matches, logg))
					r.Post("/cancel", controllers.MatchCancel(deps.Matches, logg))
					r.Post("/feedback", controllers.MatchFeedback(deps.Matches, logg))
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", controllers.UserMe(deps.Users, logg))
				r.Put("/me", controllers.UserUpdateMe(deps.Users, logg))
				r.Get("/me/stats", controllers.UserMyStats(deps.Users, deps.Stats, logg))
				r.Get("/nearby", controllers.UserNearby(deps.Users, logg))
				r.Get("/{userId}", controllers.UserProfile(deps.Users, deps.Stats, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})
		})
	})

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
