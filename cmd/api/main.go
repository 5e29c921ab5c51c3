package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/surplus-engine/api/controllers"
	"github.com/angelmondragon/surplus-engine/api/routes"
	"github.com/angelmondragon/surplus-engine/internal/candidates"
	"github.com/angelmondragon/surplus-engine/internal/fooditems"
	"github.com/angelmondragon/surplus-engine/internal/matches"
	"github.com/angelmondragon/surplus-engine/internal/notifications"
	"github.com/angelmondragon/surplus-engine/internal/predictions"
	"github.com/angelmondragon/surplus-engine/internal/proposals"
	"github.com/angelmondragon/surplus-engine/internal/stats"
	"github.com/angelmondragon/surplus-engine/internal/users"
	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/db"
	"github.com/angelmondragon/surplus-engine/pkg/instance"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/maps"
	"github.com/angelmondragon/surplus-engine/pkg/metrics"
	"github.com/angelmondragon/surplus-engine/pkg/migrate"
	"github.com/angelmondragon/surplus-engine/pkg/oracle"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics := metrics.NewEngineMetrics(registry)

	oracleClient, err := oracle.NewClient(cfg.Oracle, oracle.WithObserver(engineMetrics))
	if err != nil {
		return err
	}

	var geocoder *maps.Client
	if cfg.FeatureFlags.GeocodeAddress && cfg.GoogleMaps.APIKey != "" {
		geocoder, err = maps.NewClient(cfg.GoogleMaps.APIKey)
		if err != nil {
			return err
		}
	}

	gormDB := dbClient.DB()
	foodRepo := fooditems.NewRepository(gormDB)
	usersRepo := users.NewRepository(gormDB)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	userParams := users.ServiceParams{Store: usersRepo, Logger: logg}
	if geocoder != nil {
		userParams.Geocoder = geocoder
	}
	usersService, err := users.NewService(userParams)
	if err != nil {
		return err
	}

	matchesService, err := matches.NewService(matches.ServiceParams{
		Repo:     matches.NewRepository(gormDB),
		Tx:       dbClient,
		Outbox:   emitter,
		Profiles: usersRepo,
		Metrics:  engineMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	selector, err := candidates.NewSelector(usersRepo, cfg.Matching.CandidateRadiusMeters, cfg.Matching.CandidateCap)
	if err != nil {
		return err
	}
	proposer, err := proposals.NewProposer(proposals.ProposerParams{
		Foods:      foodRepo,
		Candidates: selector,
		Oracle:     oracleClient,
		Matches:    matchesService,
		Metrics:    engineMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	foodParams := fooditems.ServiceParams{
		Repo:     foodRepo,
		Tx:       dbClient,
		Outbox:   emitter,
		Profiles: usersRepo,
		Logger:   logg,
	}
	if geocoder != nil {
		foodParams.Geocoder = geocoder
	}
	if cfg.FeatureFlags.AutoPropose {
		dispatcher, err := proposals.NewDispatcher(proposals.DispatcherParams{
			Proposer:    proposer,
			Workers:     cfg.Matching.Workers,
			QueueSize:   cfg.Matching.QueueSize,
			TaskTimeout: cfg.Matching.TaskTimeout,
			Metrics:     engineMetrics,
			Logger:      logg,
		})
		if err != nil {
			return err
		}
		dispatcher.Start(ctx)
		defer dispatcher.Close()
		foodParams.Dispatcher = dispatcher
	}
	foodService, err := fooditems.NewService(foodParams)
	if err != nil {
		return err
	}

	statsService, err := stats.NewService(stats.NewRepository(gormDB), logg)
	if err != nil {
		return err
	}
	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		return err
	}
	predictionsService, err := predictions.NewService(predictions.ServiceParams{
		History:  predictions.NewRepository(gormDB),
		Profiles: usersRepo,
		Foods:    foodRepo,
		Oracle:   oracleClient,
		Proposer: proposer,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"autoPropose": cfg.FeatureFlags.AutoPropose,
		"instance":    instance.GetID(cfg.Service.Kind),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config: cfg,
			Logger: logg,
			Readiness: controllers.ReadinessDeps{
				DB:     dbClient,
				Redis:  redisClient,
				Oracle: oracleClient,
			},
			Redis:         redisClient,
			Metrics:       registry,
			Food:          foodService,
			Matches:       matchesService,
			Users:         usersService,
			Stats:         statsService,
			Notifications: notificationsService,
			Predictions:   predictionsService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
