package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
)

// HealthChecker provides liveness and readiness probes over Postgres and Redis.
// Either dependency may be nil, in which case it is skipped.
type HealthChecker struct {
	db      *sql.DB
	redis   *redis.Client
	timeout time.Duration
	now     func() time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{
		db:      db,
		redis:   redisClient,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Check results
const (
	CheckOK    = "ok"
	CheckError = "error"
)

// HealthStatus is the probe response body
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Healthy reports whether every check passed
func (s HealthStatus) Healthy() bool {
	for _, v := range s.Checks {
		if v != CheckOK {
			return false
		}
	}
	return true
}

type probe func(ctx context.Context) error

// Liveness pings every dependency
func (h *HealthChecker) Liveness(ctx context.Context) HealthStatus {
	probes := map[string]probe{}
	if h.db != nil {
		probes["database"] = func(ctx context.Context) error {
			var one int
			return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
		}
	}
	if h.redis != nil {
		probes["redis"] = func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		}
	}
	status := h.run(ctx, probes)
	status.Status = "healthy"
	if !status.Healthy() {
		status.Status = "unhealthy"
	}
	return status
}

// Readiness runs a database query and a Redis write/read/delete round trip
func (h *HealthChecker) Readiness(ctx context.Context) HealthStatus {
	probes := map[string]probe{}
	if h.db != nil {
		probes["database"] = func(ctx context.Context) error {
			var n int64
			return h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
		}
	}
	if h.redis != nil {
		probes["redis"] = h.redisRoundTrip
	}
	status := h.run(ctx, probes)
	status.Status = "ready"
	if !status.Healthy() {
		status.Status = "not ready"
	}
	return status
}

func (h *HealthChecker) redisRoundTrip(ctx context.Context) error {
	key := fmt.Sprintf("readyz:%d", h.now().UnixNano())
	if err := h.redis.Set(ctx, key, "test", 10*time.Second).Err(); err != nil {
		return err
	}
	defer h.redis.Del(ctx, key)

	val, err := h.redis.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	if val != "test" {
		return fmt.Errorf("redis read/write test failed")
	}
	return nil
}

// run executes probes concurrently. Probe failures are recorded, not returned.
func (h *HealthChecker) run(ctx context.Context, probes map[string]probe) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := HealthStatus{
		Timestamp: h.now().UTC(),
		Checks:    make(map[string]string, len(probes)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, p := range probes {
		name, p := name, p
		g.Go(func() error {
			err := p(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status.Checks[name] = CheckError
				if status.Errors == nil {
					status.Errors = map[string]string{}
				}
				status.Errors[name] = err.Error()
				return nil
			}
			status.Checks[name] = CheckOK
			return nil
		})
	}
	_ = g.Wait()

	return status
}

// LivenessHandler serves Liveness as JSON, 503 when unhealthy
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, h.Liveness(r.Context()))
}

// ReadinessHandler serves Readiness as JSON, 503 when not ready
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, h.Readiness(r.Context()))
}

func writeHealth(w http.ResponseWriter, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	if status.Healthy() {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
