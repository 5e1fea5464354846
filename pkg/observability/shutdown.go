package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc releases one resource
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs registered shutdown steps in registration order once a
// signal arrives. Order matters: stop accepting requests before draining queues,
// drain queues before closing the stores they write to.
type ShutdownManager struct {
	log     logrus.FieldLogger
	timeout time.Duration
	mu      sync.Mutex
	steps   []namedShutdown
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(log logrus.FieldLogger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{log: log, timeout: timeout}
}

// Register appends a named shutdown step
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.steps = append(sm.steps, namedShutdown{name: name, fn: fn})
}

// WaitForSignal blocks until SIGINT or SIGTERM, or until ctx is done, then shuts down
func (sm *ShutdownManager) WaitForSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		sm.log.WithField("signal", sig.String()).Info("Received signal, starting graceful shutdown")
	case <-ctx.Done():
		sm.log.Info("Context cancelled, starting graceful shutdown")
	}

	return sm.Shutdown()
}

// Shutdown runs every step within the configured timeout. All steps run even if
// earlier ones fail.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	steps := append([]namedShutdown(nil), sm.steps...)
	sm.mu.Unlock()

	var errs []error
	for _, step := range steps {
		start := time.Now()
		if err := step.fn(ctx); err != nil {
			sm.log.WithError(err).WithField("step", step.name).Error("Shutdown step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		sm.log.WithFields(logrus.Fields{
			"step":     step.name,
			"duration": time.Since(start).String(),
		}).Info("Shutdown step complete")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	sm.log.Info("Graceful shutdown complete")
	return nil
}
