package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

type fakeExpirer struct {
	batches []int
	err     error
	calls   int
	now     time.Time
	limit   int
}

func (f *fakeExpirer) ExpireDue(_ context.Context, now time.Time, limit int) (int, error) {
	f.calls++
	f.now, f.limit = now, limit
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

type expiredCounter struct{ total int }

func (c *expiredCounter) AddExpired(n int) { c.total += n }

func newFoodExpiryJob(t *testing.T, expirer *fakeExpirer, counter *expiredCounter, batch int) *foodExpiryJob {
	t.Helper()
	job, err := NewFoodExpiryJob(FoodExpiryJobParams{
		Logger:    logger.New(logger.Options{Output: io.Discard}),
		Expirer:   expirer,
		Metrics:   counter,
		BatchSize: batch,
	})
	require.NoError(t, err)
	return job.(*foodExpiryJob)
}

func TestFoodExpiryJobDrainsBacklog(t *testing.T) {
	expirer := &fakeExpirer{batches: []int{3, 3, 1}}
	counter := &expiredCounter{}
	job := newFoodExpiryJob(t, expirer, counter, 3)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 3, expirer.calls)
	require.Equal(t, 3, expirer.limit)
	require.True(t, expirer.now.Equal(now))
	require.Equal(t, 7, counter.total)
}

func TestFoodExpiryJobStopsOnEmptyBatch(t *testing.T) {
	expirer := &fakeExpirer{}
	counter := &expiredCounter{}
	job := newFoodExpiryJob(t, expirer, counter, 0)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, expirer.calls)
	require.Equal(t, defaultExpiryBatchSize, expirer.limit)
	require.Zero(t, counter.total)
}

func TestFoodExpiryJobReturnsErrors(t *testing.T) {
	job := newFoodExpiryJob(t, &fakeExpirer{err: errors.New("db down")}, &expiredCounter{}, 10)
	require.Error(t, job.Run(context.Background()))

	_, err := NewFoodExpiryJob(FoodExpiryJobParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	require.Error(t, err)
}
