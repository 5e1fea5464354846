// Package ratelimit implements fixed-window request counting on a shared Redis
// so limits hold across every application instance.
//
// Each request increments the counter "<prefix>:<identifier>:<window>" where
// window = floor(now_ms / window_ms). The counter expires one window after its
// first use. If Redis is unreachable the limiter fails open.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of one counted request
type Result struct {
	Allowed   bool
	Remaining int
	// ResetTime is when the current window ends
	ResetTime time.Time
	Count     int64
	// FailedOpen is set when the store could not be consulted
	FailedOpen bool
}

// Limiter counts requests against policies
type Limiter struct {
	redis     redis.Cmdable
	log       logrus.FieldLogger
	metrics   *observability.Metrics
	now       func() time.Time
	opTimeout time.Duration
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMetrics records decisions
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithTimeout bounds each Redis round trip
func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.opTimeout = d }
}

// NewLimiter creates a limiter over a Redis client
func NewLimiter(client redis.Cmdable, log logrus.FieldLogger, opts ...Option) *Limiter {
	l := &Limiter{
		redis:     client,
		log:       log.WithField("component", "ratelimit"),
		now:       time.Now,
		opTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckLimit counts one request for identifier under policy
func (l *Limiter) CheckLimit(ctx context.Context, identifier string, policy Policy) Result {
	now := l.now()
	window := policy.windowIndex(now)
	key := policy.key(identifier, window)
	ttl := time.Duration((policy.windowMillis()+999)/1000) * time.Second

	opCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(opCtx, key)
		pipe.Expire(opCtx, key, ttl)
		return nil
	})
	if err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"policy":     policy.Name,
			"identifier": identifier,
		}).Error("rate limit check failed, allowing request")
		l.metrics.RecordRateLimit(policy.Name, "fail_open")
		return Result{
			Allowed:    true,
			Remaining:  policy.MaxRequests,
			ResetTime:  now.Add(policy.Window),
			FailedOpen: true,
		}
	}

	count := incr.Val()
	remaining := policy.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:   count <= int64(policy.MaxRequests),
		Remaining: remaining,
		ResetTime: time.UnixMilli((window + 1) * policy.windowMillis()),
		Count:     count,
	}

	if !res.Allowed {
		l.log.WithFields(logrus.Fields{
			"policy":       policy.Name,
			"identifier":   identifier,
			"count":        count,
			"max_requests": policy.MaxRequests,
			"window_ms":    policy.windowMillis(),
		}).Warn("rate limit exceeded")
		l.metrics.RecordRateLimit(policy.Name, "denied")
	} else {
		l.metrics.RecordRateLimit(policy.Name, "allowed")
	}
	return res
}

// EnforceLimit counts one request and returns a rate limit error when over the limit
func (l *Limiter) EnforceLimit(ctx context.Context, identifier string, policy Policy) error {
	res := l.CheckLimit(ctx, identifier, policy)
	if res.Allowed {
		return nil
	}
	return apperr.RateLimit(res.ResetTime.Sub(l.now()))
}
