package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsStepsInOrder(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), time.Second)

	var order []string
	sm.Register("http", func(ctx context.Context) error {
		order = append(order, "http")
		return nil
	})
	sm.Register("audit", func(ctx context.Context) error {
		order = append(order, "audit")
		return errors.New("drain timed out")
	})
	sm.Register("redis", func(ctx context.Context) error {
		order = append(order, "redis")
		return nil
	})

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit: drain timed out")
	assert.Equal(t, []string{"http", "audit", "redis"}, order)
}

func TestWaitForSignalOnContextCancel(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), time.Second)
	called := false
	sm.Register("noop", func(ctx context.Context) error {
		called = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForSignal(ctx))
	assert.True(t, called)
}
