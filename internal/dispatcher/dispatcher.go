// Package dispatcher manages worker fan-out over the analysis queue.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
	"github.com/sitewarden/site-auditor/internal/worker"
)

// Dispatcher supervises a pool of workers over the job queue. A worker that
// panics is logged and restarted; the pool only drains on context
// cancellation.
type Dispatcher struct {
	queue   audit.Queue
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue audit.Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	done := make(chan int, len(d.workers))
	for i, w := range d.workers {
		go d.supervise(ctx, i, w, done)
	}
	for range d.workers {
		<-done
	}
}

// supervise runs one worker, restarting it after a panic until the context
// finishes.
func (d *Dispatcher) supervise(ctx context.Context, id int, w *worker.Worker, done chan<- int) {
	defer func() { done <- id }()
	for ctx.Err() == nil {
		d.runOnce(ctx, id, w)
	}
}

func (d *Dispatcher) runOnce(ctx context.Context, id int, w *worker.Worker) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker panicked, restarting",
				zap.Int("worker", id),
				zap.Any("panic", r),
			)
		}
	}()
	w.Run(ctx)
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item audit.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
