package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

const (
	defaultRetention  = 30 * 24 * time.Hour
	defaultPruneBatch = 500
	maxPruneBatches   = 100
)

// pruneFunc deletes at most limit rows older than cutoff and returns how many
// it removed.
type pruneFunc func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

// pruneJob deletes old rows in bounded batches until a short batch shows the
// backlog is drained. One run never exceeds maxPruneBatches.
type pruneJob struct {
	name  string
	logg  *logger.Logger
	prune pruneFunc
	keep  time.Duration
	batch int
	now   func() time.Time
}

func newPruneJob(name string, logg *logger.Logger, prune pruneFunc, keep time.Duration, batch int) (*pruneJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if keep <= 0 {
		keep = defaultRetention
	}
	if batch <= 0 {
		batch = defaultPruneBatch
	}
	return &pruneJob{name: name, logg: logg, prune: prune, keep: keep, batch: batch, now: time.Now}, nil
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	var deleted int64
	batches := 0
	for batches < maxPruneBatches {
		n, err := j.prune(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("%s after %d rows: %w", j.name, deleted, err)
		}
		batches++
		deleted += n
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
		"batches":      batches,
	}), "prune complete")
	return nil
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository interface {
		DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	}
	Retention time.Duration
	BatchSize int
}

// NewOutboxRetentionJob drops published outbox rows past retention. Unpublished
// and dead-lettered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	job, err := newPruneJob("outbox-retention", params.Logger, params.Repository.DeletePublishedBefore, params.Retention, params.BatchSize)
	if err != nil {
		return nil, err
	}
	return job, nil
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository interface {
		DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	}
	Retention time.Duration
	BatchSize int
}

// NewNotificationCleanupJob drops inbox entries past retention, read or not.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("notifications repository required")
	}
	job, err := newPruneJob("notification-cleanup", params.Logger, params.Repository.DeleteOlderThan, params.Retention, params.BatchSize)
	if err != nil {
		return nil, err
	}
	return job, nil
}
