package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

const defaultInterval = 5 * time.Minute

// ErrLeaseLost stops a cycle whose lock expired or was taken over mid-run.
var ErrLeaseLost = errors.New("cron lock lease lost")

type jobRecorder interface {
	ObserveDuration(job string, d time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobRecorder
	Interval time.Duration
	Clock    func() time.Time
}

// Service ticks every interval and, on the instance holding the lock, runs
// the jobs that are due.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  jobRecorder
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Clock,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run executes one cycle immediately, then one per tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle runs every due job even when an earlier one fails and returns
// the failures together. The lease is refreshed between jobs.
func (s *Service) runCycle(ctx context.Context) (err error) {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	due := s.registry.Due(s.now())
	ctx = s.logg.WithField(ctx, "jobs_due", len(due))
	s.logg.Info(ctx, "cron cycle starting")
	for i, job := range due {
		if i > 0 && !s.stillLeader(ctx) {
			return multierr.Append(err, ErrLeaseLost)
		}
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	s.logg.Info(ctx, "cron cycle complete")
	return err
}

func (s *Service) stillLeader(ctx context.Context) bool {
	r, ok := s.lock.(refresher)
	if !ok {
		return true
	}
	held, err := r.Refresh(ctx)
	if err != nil {
		s.logg.Error(ctx, "cron lock refresh failed", err)
		return false
	}
	return held
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	started := s.now()
	s.registry.MarkRun(name, started)
	err := job.Run(ctx)
	elapsed := s.now().Sub(started)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if s.metrics != nil {
		s.metrics.ObserveDuration(name, elapsed)
		if err != nil {
			s.metrics.IncFailure(name)
		} else {
			s.metrics.IncSuccess(name)
		}
	}
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(ctx, "job completed")
	return nil
}
