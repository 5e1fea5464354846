package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_Success(t *testing.T) {
	log, _ := test.NewNullLogger()
	done := make(chan struct{})

	SafeGo(context.Background(), log, time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not execute function")
	}
}

func TestSafeGo_ErrorIsLogged(t *testing.T) {
	log, hook := test.NewNullLogger()

	SafeGo(context.Background(), log, time.Second, "failing task", func(ctx context.Context) error {
		return errors.New("test error")
	})

	require.Eventually(t, func() bool { return hook.LastEntry() != nil }, time.Second, 10*time.Millisecond)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "failing task", entry.Data["task"])
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	log, hook := test.NewNullLogger()

	SafeGo(context.Background(), log, time.Second, "panicking task", func(ctx context.Context) error {
		panic("test panic")
	})

	require.Eventually(t, func() bool { return hook.LastEntry() != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "test panic", hook.LastEntry().Data["panic"])
}

func TestSafeGo_Timeout(t *testing.T) {
	log, _ := test.NewNullLogger()
	result := make(chan error, 1)

	SafeGo(context.Background(), log, 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			result <- nil
		case <-ctx.Done():
			result <- ctx.Err()
		}
		return nil
	})

	assert.ErrorIs(t, <-result, context.DeadlineExceeded)
}

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	log, _ := test.NewNullLogger()
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 3, QueueSize: 10}, log)

	var count atomic.Int32
	for i := 0; i < 25; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(25), count.Load())
}

func TestWorkerPool_ShutdownDrainsQueue(t *testing.T) {
	log, _ := test.NewNullLogger()
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, QueueSize: 50}, log)

	release := make(chan struct{})
	var count atomic.Int32
	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error {
		<-release
		count.Add(1)
		return nil
	}))
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.TrySubmit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	close(release)
	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(21), count.Load())
}

func TestWorkerPool_TrySubmitQueueFull(t *testing.T) {
	log, _ := test.NewNullLogger()
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, QueueSize: 1}, log)
	defer pool.Shutdown(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	noop := func(context.Context) error { return nil }
	require.NoError(t, pool.TrySubmit(noop))
	assert.ErrorIs(t, pool.TrySubmit(noop), ErrQueueFull)
	assert.Equal(t, 1, pool.Pending())

	close(release)
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	log, _ := test.NewNullLogger()
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 2}, log)
	require.NoError(t, pool.Shutdown(time.Second))

	noop := func(context.Context) error { return nil }
	assert.ErrorIs(t, pool.Submit(context.Background(), noop), ErrPoolClosed)
	assert.ErrorIs(t, pool.TrySubmit(noop), ErrPoolClosed)

	// second shutdown is a no-op
	assert.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	log, _ := test.NewNullLogger()
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, QueueSize: 1}, log)

	cancelled := make(chan struct{})
	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	err := pool.Shutdown(30 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running task was not cancelled")
	}
}

func TestWorkerPool_ErrorsAndPanics(t *testing.T) {
	log, _ := test.NewNullLogger()
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 2, QueueSize: 4}, log)

	var mu sync.Mutex
	var errs []error
	pool.OnError = func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error { return errors.New("task failed") }))
	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error { panic("boom") }))
	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error { return nil }))
	require.NoError(t, pool.Shutdown(time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, errs, 2)
}

func TestWorkerPool_TaskTimeout(t *testing.T) {
	log, _ := test.NewNullLogger()
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, QueueSize: 1, TaskTimeout: 20 * time.Millisecond}, log)

	result := make(chan error, 1)
	require.NoError(t, pool.TrySubmit(func(ctx context.Context) error {
		<-ctx.Done()
		result <- ctx.Err()
		return nil
	}))

	assert.ErrorIs(t, <-result, context.DeadlineExceeded)
	require.NoError(t, pool.Shutdown(time.Second))
}
