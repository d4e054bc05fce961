// Package dispatch runs webhook processing off the request path. Admission
// replies 200 immediately; the pool does the heavy work afterwards.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkers        = 1
	defaultBufferSize = 1024
)

// Task is one unit of deferred processing.
type Task func(ctx context.Context)

// Pool fans submitted tasks out to a fixed set of workers over a bounded
// channel. Submit never blocks the request path.
type Pool struct {
	tasks   chan Task
	workers int
	logger  *zap.Logger
}

func NewPool(workers, buffer int, logger *zap.Logger) *Pool {
	if workers < minWorkers {
		workers = minWorkers
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		tasks:   make(chan Task, buffer),
		workers: workers,
		logger:  logger,
	}
}

// Start runs the workers until context cancellation. Queued tasks still in
// the buffer at shutdown are dropped.
func (p *Pool) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i + 1

		g.Go(func() error {
			p.logger.Info("dispatch worker started", zap.Int("workerId", workerID))

			for {
				select {
				case <-groupCtx.Done():
					p.logger.Info("dispatch worker stopped", zap.Int("workerId", workerID))
					return nil
				case task := <-p.tasks:
					p.run(groupCtx, task)
				}
			}
		})
	}

	return g.Wait()
}

// Submit enqueues a task. A full buffer is an error, not a stall.
func (p *Pool) Submit(task func(ctx context.Context)) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return fmt.Errorf("dispatch queue is full")
	}
}

func (p *Pool) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("dispatch task panicked", zap.Any("panic", r))
		}
	}()

	task(ctx)
}
