package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

const (
	defaultMaxRestarts    = 5
	defaultRestartBackoff = time.Second
	maxRestartBackoff     = 30 * time.Second
	// a receive loop that survived this long counts as healthy again
	healthyRunWindow = time.Minute
)

type pinger interface {
	Ping(ctx context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger         *logger.Logger
	DB             pinger
	Redis          pinger
	PubSub         pinger
	Consumer       consumer
	MaxRestarts    int
	RestartBackoff time.Duration
}

// Service supervises the inbox consumer: it checks dependencies once, then
// restarts the receive loop with backoff when Pub/Sub drops it.
type Service struct {
	logg        *logger.Logger
	deps        []dependency
	consumer    consumer
	maxRestarts int
	backoff     time.Duration
}

type dependency struct {
	name string
	ping func(context.Context) error
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Redis == nil:
		return nil, errors.New("redis client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Consumer == nil:
		return nil, errors.New("notification consumer is required")
	}

	s := &Service{
		logg: params.Logger,
		deps: []dependency{
			{"database", params.DB.Ping},
			{"redis", params.Redis.Ping},
			{"pubsub", params.PubSub.Ping},
		},
		consumer:    params.Consumer,
		maxRestarts: params.MaxRestarts,
		backoff:     params.RestartBackoff,
	}
	if s.maxRestarts <= 0 {
		s.maxRestarts = defaultMaxRestarts
	}
	if s.backoff <= 0 {
		s.backoff = defaultRestartBackoff
	}
	return s, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run returns ctx.Err() on shutdown, or the consumer's last error once it
// has failed maxRestarts times in a row.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	failures, wait := 0, s.backoff
	for {
		started := time.Now()
		err := s.consumer.Run(ctx)
		if ctx.Err() != nil {
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("consumer returned without error")
		}

		if time.Since(started) >= healthyRunWindow {
			failures, wait = 0, s.backoff
		}
		failures++
		if failures > s.maxRestarts {
			s.logg.Error(ctx, "notification consumer keeps failing, giving up", err)
			return err
		}

		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"restart_in_ms": wait.Milliseconds(),
			"failures":      failures,
		}), "notification consumer stopped, restarting", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, maxRestartBackoff)
	}
}
