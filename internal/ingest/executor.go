package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/docflow/pkg/utils"
)

// ErrExecutorClosed is returned by Submit after Shutdown has begun.
var ErrExecutorClosed = errors.New("executor is shut down")

// Executor runs detached background tasks. The submitter never waits for a
// task. With a positive limit at most that many tasks run at once and the rest
// wait their turn; zero means no limit.
type Executor struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewExecutor returns an executor bounded to maxConcurrent running tasks.
func NewExecutor(maxConcurrent int, logger *zap.Logger) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{ctx: ctx, cancel: cancel, logger: utils.OrNop(logger)}
	if maxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return e
}

// Submit starts task in its own goroutine with a context that outlives the
// submitting request. A panic in task is recovered and logged.
func (e *Executor) Submit(name string, task func(ctx context.Context)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if e.sem != nil {
			if err := e.sem.Acquire(e.ctx, 1); err != nil {
				e.logger.Warn("task dropped at shutdown", zap.String("task", name))
				return
			}
			defer e.sem.Release(1)
		}
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		task(e.ctx)
	}()
	return nil
}

// Wait blocks until every submitted task has returned.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones until ctx is done.
// On timeout the task context is cancelled and tasks still waiting for a slot
// never start.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
