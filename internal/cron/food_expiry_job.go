package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

const (
	defaultExpiryBatchSize = 200
	maxExpiryBatches       = 50
)

type foodExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

type expiryRecorder interface {
	AddExpired(n int)
}

type FoodExpiryJobParams struct {
	Logger    *logger.Logger
	Expirer   foodExpirer
	Metrics   expiryRecorder
	BatchSize int
}

// NewFoodExpiryJob builds the sweep that moves available items past their
// expiry to expired.
func NewFoodExpiryJob(params FoodExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("food item expirer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &foodExpiryJob{
		logg:    params.Logger,
		expirer: params.Expirer,
		metrics: params.Metrics,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type foodExpiryJob struct {
	logg    *logger.Logger
	expirer foodExpirer
	metrics expiryRecorder
	batch   int
	now     func() time.Time
}

func (j *foodExpiryJob) Name() string { return "food-expiry" }

// Run drains due items in batches. A batch shorter than the limit means the
// backlog is empty.
func (j *foodExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for i := 0; i < maxExpiryBatches; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.expirer.ExpireDue(ctx, now, j.batch)
		if err != nil {
			j.record(total)
			return fmt.Errorf("food expiry: %w", err)
		}
		total += n
		if n < j.batch {
			break
		}
	}
	j.record(total)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        now,
		"items_expired": total,
	})
	j.logg.Info(logCtx, "food expiry sweep complete")
	return nil
}

func (j *foodExpiryJob) record(n int) {
	if j.metrics != nil {
		j.metrics.AddExpired(n)
	}
}
