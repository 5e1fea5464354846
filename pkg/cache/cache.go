package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TTLs for each entry class
type TTLs struct {
	Incident time.Duration `yaml:"incident"`
	List     time.Duration `yaml:"list"`
	Comments time.Duration `yaml:"comments"`
	Stats    time.Duration `yaml:"stats"`
}

// DefaultTTLs keeps single incidents for 5 minutes and lists for 2
func DefaultTTLs() TTLs {
	return TTLs{
		Incident: 5 * time.Minute,
		List:     2 * time.Minute,
		Comments: 2 * time.Minute,
		Stats:    2 * time.Minute,
	}
}

// Cache is a fail-soft JSON cache over a Backend.
type Cache struct {
	backend   Backend
	log       logrus.FieldLogger
	metrics   *observability.Metrics
	ttls      TTLs
	opTimeout time.Duration
	group     singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithMetrics records hits, misses and errors
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithTTLs overrides DefaultTTLs
func WithTTLs(ttls TTLs) Option {
	return func(c *Cache) { c.ttls = ttls }
}

// WithTimeout bounds each backend call
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.opTimeout = d }
}

// New creates a cache over backend
func New(backend Backend, log logrus.FieldLogger, opts ...Option) *Cache {
	c := &Cache{
		backend:   backend,
		log:       log.WithField("component", "cache"),
		ttls:      DefaultTTLs(),
		opTimeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTLs returns the configured entry lifetimes
func (c *Cache) TTLs() TTLs {
	return c.ttls
}

// Backend returns the underlying backend
func (c *Cache) Backend() Backend {
	return c.backend
}

// Get decodes the entry at key into dest and reports whether it was found.
// Backend and decoding errors count as misses.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.backend.Get(opCtx, key)
	if errors.Is(err, ErrMiss) {
		c.metrics.RecordCacheOp("get", "miss")
		return false
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache get failed")
		c.metrics.RecordCacheOp("get", "error")
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		c.metrics.RecordCacheOp("get", "error")
		c.Delete(ctx, key)
		return false
	}
	c.metrics.RecordCacheOp("get", "hit")
	return true
}

// Set stores value at key for ttl under tags
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tags ...string) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache value not encodable")
		c.metrics.RecordCacheOp("set", "error")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Set(opCtx, key, raw, ttl, tags...); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
		c.metrics.RecordCacheOp("set", "error")
		return
	}
	c.metrics.RecordCacheOp("set", "ok")
}

// Delete removes keys
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Delete(opCtx, keys...); err != nil {
		c.log.WithError(err).WithField("keys", keys).Warn("cache delete failed")
		c.metrics.RecordCacheOp("delete", "error")
	}
}

// InvalidateIncidentCache drops every list, search and stats entry and, when
// incidentID is set, every entry scoped to that incident. Safe to repeat.
func (c *Cache) InvalidateIncidentCache(ctx context.Context, incidentID string) {
	tags := []string{TagIncidentLists}
	if incidentID != "" {
		tags = append(tags, IncidentTag(incidentID))
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	n, err := c.backend.InvalidateTags(opCtx, tags...)
	if err != nil {
		c.log.WithError(err).WithField("incident_id", incidentID).Error("cache invalidation failed")
		c.metrics.RecordCacheOp("invalidate", "error")
		return
	}
	c.log.WithFields(logrus.Fields{
		"incident_id": incidentID,
		"deleted":     n,
	}).Debug("cache invalidated")
	c.metrics.RecordCacheOp("invalidate", "ok")
}

// ReadThrough returns the cached value at key or loads, caches and returns it.
// Concurrent misses on the same key share one load. Load errors are returned
// and never cached.
func ReadThrough[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, tags []string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		val, err := load(ctx)
		if err != nil {
			return val, err
		}
		c.Set(ctx, key, val, ttl, tags...)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
