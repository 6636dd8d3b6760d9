// Package dispatcher manages worker fan-out over the update queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/worker"
)

// DefaultPoolSize is the handler pool size used when none is configured.
const DefaultPoolSize = 4

// Queue is the bounded buffer between the update stream and the workers.
type Queue[T any] interface {
	Enqueue(ctx context.Context, item T) error
	Dequeue(ctx context.Context) (T, error)
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher[T any] struct {
	queue   Queue[T]
	workers []*worker.Worker[T]
}

// New creates a Dispatcher.
func New[T any](queue Queue[T], workers []*worker.Worker[T]) *Dispatcher[T] {
	return &Dispatcher[T]{
		queue:   queue,
		workers: workers,
	}
}

// NewPool creates a Dispatcher with size workers sharing one handler.
func NewPool[T any](queue Queue[T], size int, handler worker.Handler[T], logger *zap.Logger) *Dispatcher[T] {
	if size <= 0 {
		size = DefaultPoolSize
	}
	workers := make([]*worker.Worker[T], 0, size)
	for i := 0; i < size; i++ {
		workers = append(workers, worker.New[T](i+1, queue, handler, logger))
	}
	return New(queue, workers)
}

// Size reports the number of workers.
func (d *Dispatcher[T]) Size() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher[T]) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker[T]) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher[T]) Enqueue(ctx context.Context, item T) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
