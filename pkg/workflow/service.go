package workflow

import (
	"context"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = observability.Tracer()

// Deps are the collaborators shared by every service
type Deps struct {
	RBAC    *rbac.Engine
	Audit   *audit.Trail
	Cache   *cache.Cache // nil disables caching
	Metrics *observability.Metrics
	Log     logrus.FieldLogger

	// StoreTimeout bounds each store call
	StoreTimeout time.Duration
	Now          func() time.Time
}

type base struct {
	Deps
}

func newBase(deps Deps) base {
	if deps.Log == nil {
		deps.Log = observability.NewNopLogger()
	}
	if deps.RBAC == nil {
		deps.RBAC = rbac.NewEngine(deps.Log)
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = 5 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return base{Deps: deps}
}

func (b *base) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.StoreTimeout)
}

func (b *base) logger(ctx context.Context) logrus.FieldLogger {
	return observability.WithTraceContext(ctx, observability.FromContext(ctx, b.Log))
}

func (b *base) ttls() cache.TTLs {
	if b.Cache == nil {
		return cache.DefaultTTLs()
	}
	return b.Cache.TTLs()
}

func (b *base) invalidate(ctx context.Context, incidentID string) {
	if b.Cache != nil {
		b.Cache.InvalidateIncidentCache(ctx, incidentID)
	}
}

func (b *base) audit(fn func(t *audit.Trail)) {
	if b.Audit != nil {
		fn(b.Audit)
	}
}

// readThrough serves key from the cache when one is configured
func readThrough[T any](ctx context.Context, b *base, key string, ttl time.Duration, tags []string,
	load func(context.Context) (T, error)) (T, error) {
	if b.Cache == nil {
		return load(ctx)
	}
	return cache.ReadThrough(ctx, b.Cache, key, ttl, tags, load)
}

func requireUser(user *auth.User) error {
	if user == nil || user.ID == "" {
		return apperr.Authentication("")
	}
	return nil
}

// storeError passes domain errors through and wraps anything else as internal
func storeError(message string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(message, err)
}

// fail marks span failed and returns err
func fail(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, apperr.KindOf(err).String())
	return err
}
