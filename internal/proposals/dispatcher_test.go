package proposals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/surplus-engine/internal/fooditems"
	"github.com/angelmondragon/surplus-engine/pkg/db/models"
)

type blockingProposer struct {
	mu       sync.Mutex
	seen     []uuid.UUID
	release  chan struct{}
	deadline []time.Duration
}

func (p *blockingProposer) Propose(ctx context.Context, id uuid.UUID) ([]models.Match, error) {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, id)
	if dl, ok := ctx.Deadline(); ok {
		p.deadline = append(p.deadline, time.Until(dl))
	}
	return nil, nil
}

func (p *blockingProposer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type panickyProposer struct{ calls chan struct{} }

func (p panickyProposer) Propose(context.Context, uuid.UUID) ([]models.Match, error) {
	p.calls <- struct{}{}
	panic("boom")
}

func TestDispatcherRunsQueuedTasksWithTimeout(t *testing.T) {
	prop := &blockingProposer{}
	d, err := NewDispatcher(DispatcherParams{Proposer: prop, Workers: 2, QueueSize: 8, TaskTimeout: time.Minute, Logger: quietLogger()})
	require.NoError(t, err)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.True(t, d.Dispatch(uuid.New()))
	}
	d.Close()

	require.Equal(t, 5, prop.count())
	for _, remaining := range prop.deadline {
		require.LessOrEqual(t, remaining, time.Minute)
		require.Greater(t, remaining, time.Duration(0))
	}
	require.False(t, d.Dispatch(uuid.New()))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	prop := &blockingProposer{release: make(chan struct{})}
	metrics := newRunCounter()
	d, err := NewDispatcher(DispatcherParams{Proposer: prop, Workers: 1, QueueSize: 1, Metrics: metrics, Logger: quietLogger()})
	require.NoError(t, err)

	// Workers are not started yet, so the single slot fills immediately.
	require.True(t, d.Dispatch(uuid.New()))
	require.False(t, d.Dispatch(uuid.New()))
	require.Equal(t, 1, metrics.dropped)

	d.Start(context.Background())
	close(prop.release)
	d.Close()
	require.Equal(t, 1, prop.count())
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	calls := make(chan struct{}, 2)
	d, err := NewDispatcher(DispatcherParams{Proposer: panickyProposer{calls: calls}, Workers: 1, Logger: quietLogger()})
	require.NoError(t, err)
	d.Start(context.Background())

	require.True(t, d.Dispatch(uuid.New()))
	require.True(t, d.Dispatch(uuid.New()))
	d.Close()
	require.Len(t, calls, 2)
}

var _ fooditems.ProposalDispatcher = (*Dispatcher)(nil)

func TestNewDispatcherValidation(t *testing.T) {
	_, err := NewDispatcher(DispatcherParams{Logger: quietLogger()})
	require.Error(t, err)

	d, err := NewDispatcher(DispatcherParams{Proposer: &blockingProposer{}, Logger: quietLogger()})
	require.NoError(t, err)
	require.Equal(t, defaultWorkers, d.workers)
	require.Equal(t, defaultTaskTimeout, d.timeout)
	require.Equal(t, defaultQueueSize, cap(d.queue))
}
