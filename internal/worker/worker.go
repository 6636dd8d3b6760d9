// Package worker implements the update handling loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/metrics"
	"github.com/JakeFAU/freebie-watch/internal/queue/memory"
)

// Source yields work items.
type Source[T any] interface {
	Dequeue(ctx context.Context) (T, error)
}

// Handler processes one item. Handlers report failures themselves.
type Handler[T any] func(ctx context.Context, item T)

// Worker consumes queue items and runs the handler on each.
type Worker[T any] struct {
	id      int
	queue   Source[T]
	handler Handler[T]
	logger  *zap.Logger
}

// New constructs a Worker.
func New[T any](id int, queue Source[T], handler Handler[T], logger *zap.Logger) *Worker[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker[T]{
		id:      id,
		queue:   queue,
		handler: handler,
		logger:  logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker[T]) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		if err := w.process(ctx, item); err != nil {
			w.logger.Error("handler failed", zap.Error(err))
		}
	}
}

func (w *Worker[T]) process(ctx context.Context, item T) (err error) {
	metrics.IncActiveHandlers()
	defer metrics.DecActiveHandlers()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			w.logger.Debug("handler panic stack", zap.ByteString("stack", debug.Stack()))
		}
	}()
	w.handler(ctx, item)
	return nil
}
