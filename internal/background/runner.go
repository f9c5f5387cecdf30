// Package background runs fire-and-forget tasks. Task failures are logged
// and never reach the caller.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Failure is one task error, delivered on the runner's error channel.
type Failure struct {
	ID   string
	Name string
	Err  error
}

// Runner starts tasks in goroutines. Errors and panics are sent to an
// internal channel that is drained into the logger.
type Runner struct {
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	wg      sync.WaitGroup
	errs    chan Failure
	drained chan struct{}
	once    sync.Once
}

// NewRunner creates a runner whose tasks share a context derived from parent.
func NewRunner(parent context.Context, logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(parent)
	r := &Runner{
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		errs:    make(chan Failure, 16),
		drained: make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Runner) drain() {
	defer close(r.drained)
	for f := range r.errs {
		r.logger.Warn("background: task failed",
			slog.String("task", f.Name),
			slog.String("id", f.ID),
			slog.String("error", f.Err.Error()))
	}
}

// Go starts task in a new goroutine and returns its id.
func (r *Runner) Go(name string, task Task) string {
	id := uuid.NewString()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.errs <- Failure{ID: id, Name: name, Err: fmt.Errorf("panic: %v", p)}
			}
		}()

		r.logger.Debug("background: task started", slog.String("task", name), slog.String("id", id))
		if err := task(r.ctx); err != nil {
			r.errs <- Failure{ID: id, Name: name, Err: err}
			return
		}
		r.logger.Debug("background: task done", slog.String("task", name), slog.String("id", id))
	}()
	return id
}

// Wait blocks until every started task has finished or ctx is done, then
// cancels whatever is still running. It reports whether all tasks finished.
// The runner must not be used after Wait.
func (r *Runner) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	finished := true
	select {
	case <-done:
	case <-ctx.Done():
		finished = false
		r.logger.Warn("background: grace period elapsed, abandoning tasks")
	}
	r.cancel()

	if finished {
		r.once.Do(func() { close(r.errs) })
		<-r.drained
	}
	return finished
}
