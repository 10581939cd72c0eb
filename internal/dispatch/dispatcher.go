package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"feedwire/pkg/feedwire"
)

const (
	defaultWorkers     = 4
	defaultQueueBuffer = 64
	defaultTimeBudget  = time.Hour
	defaultMaxAttempts = 3
)

// FailureSink receives units that exhausted their attempts.
type FailureSink func(ctx context.Context, unit feedwire.BatchUnit, err error)

// Option mutates pool configuration.
type Option func(*Pool)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pool *Pool) {
		if logger != nil {
			pool.logger = logger
		}
	}
}

// WithWorkers sets the worker goroutine count.
func WithWorkers(workers int) Option {
	return func(pool *Pool) {
		if workers > 0 {
			pool.workers = workers
		}
	}
}

// WithQueueBuffer sets the pending unit queue capacity.
func WithQueueBuffer(buffer int) Option {
	return func(pool *Pool) {
		if buffer > 0 {
			pool.buffer = buffer
		}
	}
}

// WithTimeBudget sets the per-unit execution ceiling.
func WithTimeBudget(budget time.Duration) Option {
	return func(pool *Pool) {
		if budget > 0 {
			pool.budget = budget
		}
	}
}

// WithMaxAttempts sets how many times a unit runs before reaching the
// failure sink.
func WithMaxAttempts(attempts int) Option {
	return func(pool *Pool) {
		if attempts > 0 {
			pool.maxAttempts = attempts
		}
	}
}

// WithFailureSink sets the terminal failure handler. The default logs.
func WithFailureSink(sink FailureSink) Option {
	return func(pool *Pool) {
		if sink != nil {
			pool.onFailure = sink
		}
	}
}

// Pool is the async batch dispatcher: a bounded queue drained by a fixed
// set of workers, each run capped by the time budget.
type Pool struct {
	logger      *slog.Logger
	runner      feedwire.BatchRunner
	workers     int
	buffer      int
	budget      time.Duration
	maxAttempts int
	onFailure   FailureSink

	queue  chan feedwire.BatchUnit
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

// NewPool creates a dispatcher and starts its workers immediately.
func NewPool(runner feedwire.BatchRunner, options ...Option) *Pool {
	pool := &Pool{
		logger:      slog.Default(),
		runner:      runner,
		workers:     defaultWorkers,
		buffer:      defaultQueueBuffer,
		budget:      defaultTimeBudget,
		maxAttempts: defaultMaxAttempts,
	}
	for _, option := range options {
		option(pool)
	}
	if pool.onFailure == nil {
		pool.onFailure = pool.logFailure
	}

	pool.queue = make(chan feedwire.BatchUnit, pool.buffer)
	pool.ctx, pool.cancel = context.WithCancel(context.Background())
	pool.done = make(chan struct{})
	pool.startWorkers()

	return pool
}

// Submit enqueues one unit, blocking while the queue is full until ctx is
// done.
func (p *Pool) Submit(ctx context.Context, unit feedwire.BatchUnit) error {
	if p.closed.Load() {
		return fmt.Errorf("submit batch for post %d: %w", unit.PostID, feedwire.ErrDispatcherClosed)
	}

	select {
	case p.queue <- unit:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit batch for post %d: %w", unit.PostID, ctx.Err())
	case <-p.ctx.Done():
		return fmt.Errorf("submit batch for post %d: %w", unit.PostID, feedwire.ErrDispatcherClosed)
	}
}

// Close stops accepting units and waits for workers to exit, or returns
// when ctx expires. Units still queued at shutdown are dropped; the
// scheduling layer resubmits unfinished work on restart.
func (p *Pool) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.closed.Store(true)
		p.cancel()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close dispatcher: %w", ctx.Err())
	}
}

// startWorkers launches workers and closes done after all exit.
func (p *Pool) startWorkers() {
	workerWG := &sync.WaitGroup{}
	for idx := 0; idx < p.workers; idx++ {
		workerID := idx
		workerWG.Add(1)
		go p.runWorker(workerWG, workerID)
	}

	go func() {
		workerWG.Wait()
		close(p.done)
	}()
}

// runWorker drains the queue until pool shutdown.
func (p *Pool) runWorker(workerWG *sync.WaitGroup, workerID int) {
	defer workerWG.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case unit := <-p.queue:
			p.runUnit(workerID, unit)
		}
	}
}

// runUnit executes one unit under the time budget and routes failures into
// resubmission or the failure sink. Timed-out units are resubmitted whole;
// idempotent writes make the full re-run safe.
func (p *Pool) runUnit(workerID int, unit feedwire.BatchUnit) {
	unitCtx, cancel := context.WithTimeout(p.ctx, p.budget)
	defer cancel()

	scope := fmt.Sprintf("batch post %d attempt %d worker %d", unit.PostID, unit.Attempt, workerID)
	err := runSafely(scope, func() error {
		return p.runner.RunBatch(unitCtx, unit)
	})
	if err == nil {
		return
	}
	if errors.Is(err, context.DeadlineExceeded) && unitCtx.Err() != nil {
		err = fmt.Errorf("%s: %w", scope, feedwire.ErrBatchTimeout)
	}

	unit.Attempt++
	if unit.Attempt >= p.maxAttempts {
		p.onFailure(p.ctx, unit, err)
		return
	}

	p.logger.Warn("batch unit failed, resubmitting",
		"post_id", unit.PostID,
		"followers", len(unit.FollowerIDs),
		"attempt", unit.Attempt,
		"error", err,
	)
	select {
	case p.queue <- unit:
	default:
		// Queue full during retry: surface instead of blocking a worker.
		p.onFailure(p.ctx, unit, fmt.Errorf("resubmit after failure: queue full: %w", err))
	}
}

// logFailure is the default terminal failure sink.
func (p *Pool) logFailure(_ context.Context, unit feedwire.BatchUnit, err error) {
	p.logger.Error("batch unit abandoned after max attempts",
		"post_id", unit.PostID,
		"followers", len(unit.FollowerIDs),
		"attempts", unit.Attempt,
		"error", err,
	)
}

// runSafely executes fn and converts panics into returned errors tagged with
// scope, keeping one poisoned batch from killing a worker.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}

var _ feedwire.Dispatcher = (*Pool)(nil)
