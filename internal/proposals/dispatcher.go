package proposals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/db/models"
	"github.com/angelmondragon/surplus-engine/pkg/logger"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultTaskTimeout = 20 * time.Second
)

type proposer interface {
	Propose(ctx context.Context, foodItemID uuid.UUID) ([]models.Match, error)
}

type dropRecorder interface {
	IncDispatchDropped()
}

type DispatcherParams struct {
	Proposer    proposer
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Metrics     dropRecorder
	Logger      *logger.Logger
}

// Dispatcher runs proposal tasks on a fixed pool of workers fed by a bounded
// queue. Dispatch never blocks the caller; a full queue drops the task.
type Dispatcher struct {
	proposer proposer
	workers  int
	timeout  time.Duration
	metrics  dropRecorder
	logg     *logger.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Proposer == nil {
		return nil, fmt.Errorf("proposer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Workers <= 0 {
		params.Workers = defaultWorkers
	}
	if params.QueueSize <= 0 {
		params.QueueSize = defaultQueueSize
	}
	if params.TaskTimeout <= 0 {
		params.TaskTimeout = defaultTaskTimeout
	}
	return &Dispatcher{
		proposer: params.Proposer,
		workers:  params.Workers,
		timeout:  params.TaskTimeout,
		metrics:  params.Metrics,
		logg:     params.Logger,
		queue:    make(chan uuid.UUID, params.QueueSize),
	}, nil
}

// Start launches the workers. Tasks derive their deadline from ctx, so ctx
// should outlive individual requests.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

// Dispatch enqueues a proposal run for the food item and reports whether it
// was accepted.
func (d *Dispatcher) Dispatch(foodItemID uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- foodItemID:
		return true
	default:
		if d.metrics != nil {
			d.metrics.IncDispatchDropped()
		}
		d.logg.Warn(d.logg.WithFoodItemID(context.Background(), foodItemID.String()), "proposal queue full, task dropped")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for id := range d.queue {
		d.run(ctx, id)
	}
}

func (d *Dispatcher) run(ctx context.Context, foodItemID uuid.UUID) {
	taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logg.Error(d.logg.WithFoodItemID(taskCtx, foodItemID.String()), "proposal task panicked", fmt.Errorf("panic: %v", r))
		}
	}()
	// Propose logs its own outcome.
	_, _ = d.proposer.Propose(taskCtx, foodItemID)
}
