package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/surplus-engine/internal/cron"
	"github.com/angelmondragon/surplus-engine/internal/fooditems"
	"github.com/angelmondragon/surplus-engine/internal/notifications"
	"github.com/angelmondragon/surplus-engine/internal/users"
	"github.com/angelmondragon/surplus-engine/pkg/config"
	"github.com/angelmondragon/surplus-engine/pkg/db"
	"github.com/angelmondragon/surplus-engine/pkg/instance"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
	"github.com/angelmondragon/surplus-engine/pkg/metrics"
	"github.com/angelmondragon/surplus-engine/pkg/migrate"
	"github.com/angelmondragon/surplus-engine/pkg/outbox"
	"github.com/angelmondragon/surplus-engine/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(serviceKind),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind+":"+envOrLocal(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

// buildRegistry wires the sweep to run every cycle and the housekeeping jobs
// once per maintenance period.
func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)

	foodService, err := fooditems.NewService(fooditems.ServiceParams{
		Repo:     fooditems.NewRepository(gormDB),
		Tx:       dbClient,
		Outbox:   outbox.NewService(outboxRepo, logg),
		Profiles: users.NewRepository(gormDB),
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("food items service: %w", err)
	}
	expiry, err := cron.NewFoodExpiryJob(cron.FoodExpiryJobParams{
		Logger:    logg,
		Expirer:   foodService,
		Metrics:   metrics.NewEngineMetrics(prometheus.DefaultRegisterer),
		BatchSize: cfg.Cron.ExpiryBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(gormDB),
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry(expiry)
	for _, job := range []cron.Job{retention, cleanup} {
		if err := registry.Every(job, cfg.Cron.MaintenanceEvery); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
