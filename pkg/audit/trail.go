package audit

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/warden/pkg/async"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/ids"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Config controls how records reach the writer
type Config struct {
	// Async queues records for background workers; otherwise Log writes inline
	Async        bool          `yaml:"async"`
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig queues up to 1024 records for 2 workers
func DefaultConfig() Config {
	return Config{
		Async:        true,
		Workers:      2,
		QueueSize:    1024,
		WriteTimeout: 5 * time.Second,
	}
}

// Trail records audit entries without ever failing the caller
type Trail struct {
	writer  Writer
	pool    *async.WorkerPool
	cfg     Config
	log     logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a Trail
type Option func(*Trail)

// WithMetrics counts written, failed and dropped records
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Trail) { t.metrics = m }
}

// WithClock overrides the record timestamp source
func WithClock(now func() time.Time) Option {
	return func(t *Trail) { t.now = now }
}

// NewTrail creates a trail over writer and, in async mode, starts its workers
func NewTrail(writer Writer, log logrus.FieldLogger, cfg Config, opts ...Option) *Trail {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	t := &Trail{
		writer: writer,
		cfg:    cfg,
		log:    log.WithField("component", "audit"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	if cfg.Async {
		t.pool = async.NewWorkerPool(context.Background(), async.PoolConfig{
			Name:        "audit",
			Workers:     cfg.Workers,
			QueueSize:   cfg.QueueSize,
			TaskTimeout: cfg.WriteTimeout,
		}, t.log)
	}
	return t
}

// Log records rec, assigning its id and timestamp when unset
func (t *Trail) Log(ctx context.Context, rec *Record) {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now().UTC()
	}

	if t.pool == nil {
		// request cancellation must not lose the record
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.WriteTimeout)
		defer cancel()
		t.write(writeCtx, rec)
		return
	}

	err := t.pool.TrySubmit(func(taskCtx context.Context) error {
		t.write(taskCtx, rec)
		return nil
	})
	if err != nil {
		fields := t.recordFields(rec)
		if errors.Is(err, async.ErrQueueFull) {
			t.log.WithFields(fields).Error("audit queue full, dropping record")
		} else {
			t.log.WithError(err).WithFields(fields).Error("audit trail closed, dropping record")
		}
		t.metrics.RecordAudit(string(rec.Action), "dropped")
	}
}

func (t *Trail) write(ctx context.Context, rec *Record) {
	if err := t.writer.Append(ctx, rec); err != nil {
		t.log.WithError(err).WithFields(t.recordFields(rec)).Error("audit logging failed")
		t.metrics.RecordAudit(string(rec.Action), "error")
		return
	}
	t.log.WithFields(t.recordFields(rec)).Info("audit log created")
	t.metrics.RecordAudit(string(rec.Action), "ok")
}

func (t *Trail) recordFields(rec *Record) logrus.Fields {
	fields := logrus.Fields{
		"audit_id":    rec.ID,
		"action":      rec.Action,
		"resource":    rec.Resource,
		"resource_id": rec.ResourceID,
	}
	if rec.UserID != nil {
		fields["user_id"] = *rec.UserID
	}
	return fields
}

// Close stops accepting records and waits up to timeout for queued ones to be written
func (t *Trail) Close(timeout time.Duration) error {
	if t.pool == nil {
		return nil
	}
	return t.pool.Shutdown(timeout)
}

func (t *Trail) record(ctx context.Context, user *auth.User, action Action, resource, resourceID string,
	details map[string]interface{}, meta RequestMeta) {
	rec := &Record{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}
	if user != nil {
		id := user.ID
		rec.UserID = &id
	}
	t.Log(ctx, rec)
}

// LogLogin records a successful login
func (t *Trail) LogLogin(ctx context.Context, user *auth.User, meta RequestMeta) {
	t.record(ctx, user, ActionLogin, "", "", map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	}, meta)
}

// LogLogout records a logout
func (t *Trail) LogLogout(ctx context.Context, user *auth.User, meta RequestMeta) {
	t.record(ctx, user, ActionLogout, "", "", map[string]interface{}{
		"email": user.Email,
	}, meta)
}

// LogIncidentCreate records a new incident
func (t *Trail) LogIncidentCreate(ctx context.Context, user *auth.User, inc *incident.Incident, meta RequestMeta) {
	t.record(ctx, user, ActionCreateIncident, ResourceIncident, inc.ID, map[string]interface{}{
		"title":    inc.Title,
		"severity": inc.Severity,
	}, meta)
}

// LogIncidentUpdate records the fields an update changed
func (t *Trail) LogIncidentUpdate(ctx context.Context, user *auth.User, incidentID string,
	changes map[string]incident.Change, meta RequestMeta) {
	t.record(ctx, user, ActionUpdateIncident, ResourceIncident, incidentID, map[string]interface{}{
		"changes": changes,
	}, meta)
}

// LogIncidentDelete records a deleted incident
func (t *Trail) LogIncidentDelete(ctx context.Context, user *auth.User, inc *incident.Incident, meta RequestMeta) {
	t.record(ctx, user, ActionDeleteIncident, ResourceIncident, inc.ID, map[string]interface{}{
		"title": inc.Title,
	}, meta)
}

// LogCommentCreate records a new comment
func (t *Trail) LogCommentCreate(ctx context.Context, user *auth.User, c *incident.Comment, meta RequestMeta) {
	t.record(ctx, user, ActionCreateComment, ResourceComment, c.ID, map[string]interface{}{
		"incidentId": c.IncidentID,
	}, meta)
}

// LogCommentDelete records a deleted comment
func (t *Trail) LogCommentDelete(ctx context.Context, user *auth.User, c *incident.Comment, meta RequestMeta) {
	t.record(ctx, user, ActionDeleteComment, ResourceComment, c.ID, map[string]interface{}{
		"incidentId": c.IncidentID,
	}, meta)
}

// LogIncidentView records a read of a single incident
func (t *Trail) LogIncidentView(ctx context.Context, user *auth.User, incidentID string, meta RequestMeta) {
	t.record(ctx, user, ActionViewIncident, ResourceIncident, incidentID, nil, meta)
}

// LogIncidentSearch records a free-text search and how many results it returned
func (t *Trail) LogIncidentSearch(ctx context.Context, user *auth.User, q incident.Query, resultCount int, meta RequestMeta) {
	params := map[string]interface{}{"q": q.Q}
	if q.Status != "" {
		params["status"] = q.Status
	}
	if q.Severity != "" {
		params["severity"] = q.Severity
	}
	t.record(ctx, user, ActionSearchIncidents, ResourceIncident, "", map[string]interface{}{
		"searchParams": params,
		"resultCount":  resultCount,
	}, meta)
}
