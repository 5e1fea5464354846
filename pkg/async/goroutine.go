package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPoolClosed is returned when submitting to a pool that is shutting down
	ErrPoolClosed = errors.New("worker pool shut down")
	// ErrQueueFull is returned by TrySubmit when no queue slot is free
	ErrQueueFull = errors.New("worker pool queue full")
)

// Task is a unit of work run by the pool
type Task func(context.Context) error

// SafeGo executes fn in a goroutine with a timeout and panic recovery.
// Errors and panics are logged, never propagated.
func SafeGo(parentCtx context.Context, log logrus.FieldLogger, timeout time.Duration, taskName string, fn Task) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// PoolConfig sizes a WorkerPool
type PoolConfig struct {
	Name      string
	Workers   int
	QueueSize int
	// TaskTimeout bounds each task; zero means no per-task timeout
	TaskTimeout time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.Name == "" {
		c.Name = "worker pool"
	}
	return c
}

// WorkerPool manages a pool of workers that process tasks from a bounded queue.
type WorkerPool struct {
	cfg    PoolConfig
	log    logrus.FieldLogger
	workCh chan Task
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed and sends on workCh so Shutdown never races a send
	mu     sync.RWMutex
	closed bool

	shutdownOnce sync.Once
	shutdownErr  error

	// OnError receives task errors and recovered panics. Set before submitting.
	OnError func(error)
}

// NewWorkerPool creates and starts a worker pool.
func NewWorkerPool(ctx context.Context, cfg PoolConfig, log logrus.FieldLogger) *WorkerPool {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		cfg:    cfg,
		log:    log.WithField("pool", cfg.Name),
		workCh: make(chan Task, cfg.QueueSize),
		doneCh: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < cfg.Workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit enqueues fn, blocking while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// TrySubmit enqueues fn without blocking.
func (p *WorkerPool) TrySubmit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued tasks not yet picked up by a worker
func (p *WorkerPool) Pending() int {
	return len(p.workCh)
}

// Shutdown stops accepting work and waits up to timeout for queued tasks to drain.
// Tasks still running at the deadline have their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			p.shutdownErr = fmt.Errorf("%s shutdown timed out after %v with %d tasks queued",
				p.cfg.Name, timeout, len(p.workCh))
		}
	})
	return p.shutdownErr
}

func (p *WorkerPool) worker(id int) {
	for fn := range p.workCh {
		if p.ctx.Err() != nil {
			return
		}
		p.run(id, fn)
	}
}

func (p *WorkerPool) run(id int, fn Task) {
	ctx := p.ctx
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"worker": id,
				"panic":  r,
				"stack":  string(debug.Stack()),
			}).Error("panic in worker")
			p.reportError(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		p.reportError(err)
	}
}

func (p *WorkerPool) reportError(err error) {
	if p.OnError != nil {
		p.OnError(err)
		return
	}
	p.log.WithError(err).Warn("task failed")
}
