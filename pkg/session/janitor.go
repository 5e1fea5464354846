package session

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultCleanupSchedule runs the sweep every 15 minutes
const DefaultCleanupSchedule = "@every 15m"

// Janitor periodically removes expired sessions
type Janitor struct {
	store *Store
	cron  *cron.Cron
	log   logrus.FieldLogger
}

// NewJanitor schedules CleanupExpiredSessions on a cron spec such as "@every 15m" or "0 * * * *"
func NewJanitor(store *Store, schedule string, log logrus.FieldLogger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}

	j := &Janitor{
		store: store,
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:   log.WithField("component", "session_janitor"),
	}

	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the schedule in the background
func (j *Janitor) Start() {
	j.cron.Start()
	j.log.Info("session cleanup scheduled")
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep
func (j *Janitor) RunOnce(ctx context.Context) {
	n, err := j.store.CleanupExpiredSessions(ctx)
	if err != nil {
		j.log.WithError(err).Error("session cleanup failed")
		return
	}
	if n > 0 {
		j.log.WithField("deleted", n).Info("expired sessions removed")
	}
}
