package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_boundsConcurrency(t *testing.T) {
	e := NewExecutor(2, nil)
	var running, peak int32
	release := make(chan struct{})
	for i := 0; i < 6; i++ {
		require.NoError(t, e.Submit("task", func(context.Context) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
		}))
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	e.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Positive(t, atomic.LoadInt32(&peak))
}

func TestExecutor_unboundedRunsAll(t *testing.T) {
	e := NewExecutor(0, nil)
	var started int32
	release := make(chan struct{})
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Submit("task", func(context.Context) {
			atomic.AddInt32(&started, 1)
			<-release
		}))
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&started) == 5 }, time.Second, 5*time.Millisecond)
	close(release)
	e.Wait()
}

func TestExecutor_recoversPanics(t *testing.T) {
	e := NewExecutor(1, nil)
	require.NoError(t, e.Submit("boom", func(context.Context) { panic("boom") }))
	var ran atomic.Bool
	require.NoError(t, e.Submit("after", func(context.Context) { ran.Store(true) }))
	e.Wait()
	assert.True(t, ran.Load())
}

func TestExecutor_shutdown(t *testing.T) {
	e := NewExecutor(0, nil)
	done := make(chan struct{})
	require.NoError(t, e.Submit("slow", func(context.Context) { <-done }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, e.Shutdown(ctx), "shutdown should time out while a task runs")
	assert.ErrorIs(t, e.Submit("late", func(context.Context) {}), ErrExecutorClosed)

	close(done)
	e.Wait()
	assert.NoError(t, e.Shutdown(context.Background()))
}

func TestExecutor_taskContextCancelledAfterTimeout(t *testing.T) {
	e := NewExecutor(0, nil)
	cancelled := make(chan struct{})
	require.NoError(t, e.Submit("waits", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = e.Shutdown(ctx)
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
}
