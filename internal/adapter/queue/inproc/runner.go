// Package inproc runs evaluations on a bounded in-process queue. It suits a
// single API instance; tasks still queued when the process dies are left
// pending and later failed by the stuck-job sweeper.
package inproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// ErrQueueFull is returned by Dispatch when every slot is taken.
var ErrQueueFull = errors.New("evaluation queue full")

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("evaluation queue closed")

// TaskHandler processes one evaluation task.
type TaskHandler interface {
	HandleEvaluate(ctx context.Context, task domain.EvaluateTask) error
}

// Runner implements domain.Dispatcher with a buffered channel drained by a
// fixed set of goroutines.
type Runner struct {
	handler TaskHandler
	tasks   chan domain.EvaluateTask

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ domain.Dispatcher = (*Runner)(nil)

// New starts workers goroutines reading from a queue of size capacity.
func New(handler TaskHandler, workers, capacity int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	r := &Runner{handler: handler, tasks: make(chan domain.EvaluateTask, capacity)}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.loop()
	}
	slog.Info("in-process evaluation runner started", slog.Int("workers", workers), slog.Int("capacity", capacity))
	return r
}

// Dispatch enqueues task without blocking. The task is accepted once it is
// in the channel.
func (r *Runner) Dispatch(ctx context.Context, task domain.EvaluateTask) error {
	if task.RequestID == "" {
		task.RequestID = obsctx.RequestIDFromContext(ctx)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return fmt.Errorf("op=inproc.dispatch: %w", ErrClosed)
	}
	select {
	case r.tasks <- task:
		observability.EnqueueJob(observability.JobEvaluate)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("op=inproc.dispatch: %w", ctx.Err())
	default:
		return fmt.Errorf("op=inproc.dispatch: %w", ErrQueueFull)
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for task := range r.tasks {
		r.run(task)
	}
}

func (r *Runner) run(task domain.EvaluateTask) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("evaluation handler panic", slog.String("evaluation_id", task.EvaluationID), slog.Any("panic", rec))
		}
	}()
	ctx := obsctx.ContextWithRequestID(context.Background(), task.RequestID)
	if err := r.handler.HandleEvaluate(ctx, task); err != nil {
		slog.Warn("evaluation task finished with error",
			slog.String("evaluation_id", task.EvaluationID),
			slog.Any("error", err))
	}
}

// Close stops accepting tasks and waits for queued ones to finish or for ctx
// to end, whichever comes first.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.tasks)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("op=inproc.close: %d tasks still queued: %w", len(r.tasks), ctx.Err())
	}
}
