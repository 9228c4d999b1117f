// Package watcher runs a fixed number of goroutines that follow submitted
// jobs until the simulator reports them terminal.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/metrics"
	"github.com/c12qe/c12sim-go/internal/usecase"
)

// ErrPoolClosed is returned by Enqueue once the pool has been stopped.
var ErrPoolClosed = errors.New("watcher pool is closed")

// Watcher is the work each pool goroutine runs for one job id.
type Watcher interface {
	Execute(ctx context.Context, id uuid.UUID) (bool, error)
}

var _ Watcher = (*usecase.WatchJobUsecase)(nil)

// Pool manages a fixed-size pool of goroutines that watch jobs.
type Pool struct {
	size    int
	ids     chan uuid.UUID
	watcher Watcher
	logger  *zap.Logger
	wg      sync.WaitGroup

	done     chan struct{}
	stopOnce sync.Once
}

var _ usecase.Enqueuer = (*Pool)(nil)

// NewPool creates a pool of size goroutines with a queue of capacity pending ids.
func NewPool(size, capacity int, watcher Watcher, logger *zap.Logger) *Pool {
	return &Pool{
		size:    size,
		ids:     make(chan uuid.UUID, capacity),
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches all watcher goroutines. Call Stop to wait for them to finish.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting watcher pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Enqueue hands a job id to the pool, blocking while the queue is full.
func (p *Pool) Enqueue(ctx context.Context, id uuid.UUID) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}
	select {
	case p.ids <- id:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", id, ctx.Err())
	}
}

// Stop waits for all watchers to exit. Ids still queued stay pending in
// the ledger and are resumed on the next start.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.done) })

	p.wg.Wait()
	p.logger.Info("Watcher pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Watcher started", zap.Int("watcher_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Watcher shutting down", zap.Int("watcher_id", id))
			return
		case <-p.done:
			p.logger.Debug("Watcher stopped", zap.Int("watcher_id", id))
			return
		case jobID := <-p.ids:
			p.watch(ctx, id, jobID)
		}
	}
}

// watch runs one job and keeps the goroutine alive through a panic.
func (p *Pool) watch(ctx context.Context, workerID int, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Watcher panic recovered",
				zap.Int("watcher_id", workerID),
				zap.String("job_id", jobID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	metrics.WatchersActive.Inc()
	defer metrics.WatchersActive.Dec()

	alreadyWatched, err := p.watcher.Execute(ctx, jobID)
	switch {
	case err != nil:
		p.logger.Error("Job watch failed",
			zap.Int("watcher_id", workerID),
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
	case alreadyWatched:
		p.logger.Debug("Job already watched elsewhere",
			zap.Int("watcher_id", workerID),
			zap.String("job_id", jobID.String()),
		)
	}
}
