// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs a one-off task with panic recovery and a timeout:
//
//	async.SafeGo(ctx, log, 30*time.Second, "initial session cleanup", func(ctx context.Context) error {
//		_, err := sessions.CleanupExpiredSessions(ctx)
//		return err
//	})
//
// WorkerPool is a fixed set of workers reading from a bounded queue. Submit blocks
// while the queue is full; TrySubmit returns ErrQueueFull instead, which is what
// fire-and-forget producers such as the audit trail use:
//
//	pool := async.NewWorkerPool(ctx, async.PoolConfig{Workers: 2, QueueSize: 1024, Name: "audit"}, log)
//	defer pool.Shutdown(5 * time.Second)
//
//	if err := pool.TrySubmit(write); err != nil {
//		// dropped
//	}
//
// Shutdown stops accepting work, drains what is already queued and waits for the
// workers up to the given timeout.
package async
