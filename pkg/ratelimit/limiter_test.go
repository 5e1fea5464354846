package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setupLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis, *clock) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	// Aligned to a window boundary so window arithmetic is easy to read
	clk := &clock{t: time.UnixMilli(60_000 * 1000)}
	log, _ := test.NewNullLogger()
	return NewLimiter(client, log, WithClock(clk.now)), mr, clk
}

func TestCheckLimitWithinWindow(t *testing.T) {
	limiter, mr, _ := setupLimiter(t)
	ctx := context.Background()
	policy := APIWritePolicy(time.Minute, 3)

	for i := 1; i <= 3; i++ {
		res := limiter.CheckLimit(ctx, "user-1", policy)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3-i, res.Remaining)
		assert.Equal(t, int64(i), res.Count)
	}

	res := limiter.CheckLimit(ctx, "user-1", policy)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.UnixMilli(1001*60_000), res.ResetTime)

	key := "api_write:user-1:1000"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// Other identifiers have their own counters
	assert.True(t, limiter.CheckLimit(ctx, "user-2", policy).Allowed)
}

func TestCheckLimitNextWindowResets(t *testing.T) {
	limiter, _, clk := setupLimiter(t)
	ctx := context.Background()
	policy := LoginPolicy(15*time.Minute, 5)

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.EnforceLimit(ctx, "203.0.113.9", policy))
	}

	err := limiter.EnforceLimit(ctx, "203.0.113.9", policy)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRateLimit, e.Kind)
	assert.Contains(t, e.Message, "Rate limit exceeded. Try again in")

	clk.t = clk.t.Add(15 * time.Minute)
	assert.NoError(t, limiter.EnforceLimit(ctx, "203.0.113.9", policy))
}

func TestEnforceLimitRetryAfter(t *testing.T) {
	limiter, _, clk := setupLimiter(t)
	ctx := context.Background()
	policy := APIReadPolicy(time.Minute, 1)

	clk.t = clk.t.Add(45 * time.Second)
	require.NoError(t, limiter.EnforceLimit(ctx, "u", policy))

	err := limiter.EnforceLimit(ctx, "u", policy)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, e.RetryAfter)
	assert.Equal(t, "Rate limit exceeded. Try again in 15 seconds.", e.Message)
}

func TestCheckLimitFailsOpen(t *testing.T) {
	limiter, mr, clk := setupLimiter(t)
	mr.Close()

	policy := APIWritePolicy(time.Minute, 30)
	res := limiter.CheckLimit(context.Background(), "user-1", policy)

	assert.True(t, res.Allowed)
	assert.True(t, res.FailedOpen)
	assert.Equal(t, 30, res.Remaining)
	assert.Equal(t, clk.t.Add(time.Minute), res.ResetTime)
}

func TestSubSecondWindowExpiry(t *testing.T) {
	limiter, mr, _ := setupLimiter(t)
	policy := Policy{Name: "burst", Window: 1500 * time.Millisecond, MaxRequests: 1, KeyPrefix: "burst"}

	limiter.CheckLimit(context.Background(), "x", policy)
	for _, key := range mr.Keys() {
		assert.Equal(t, 2*time.Second, mr.TTL(key), "expiry rounds up to whole seconds")
	}
}

func TestPolicyValidate(t *testing.T) {
	for _, p := range []Policy{DefaultPolicies().Login, DefaultPolicies().APIWrite, DefaultPolicies().APIRead} {
		assert.NoError(t, p.Validate())
	}
	assert.Error(t, Policy{Name: "x", Window: 0, MaxRequests: 1, KeyPrefix: "x"}.Validate())
	assert.Error(t, Policy{Name: "x", Window: time.Second, MaxRequests: 0, KeyPrefix: "x"}.Validate())
	assert.Error(t, Policy{Name: "x", Window: time.Second, MaxRequests: 1}.Validate())
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, 15*time.Minute, p.Login.Window)
	assert.Equal(t, 5, p.Login.MaxRequests)
	assert.Equal(t, 30, p.APIWrite.MaxRequests)
	assert.Equal(t, 100, p.APIRead.MaxRequests)
}

func TestMiddleware(t *testing.T) {
	limiter, _, _ := setupLimiter(t)
	policy := LoginPolicy(15*time.Minute, 2)

	h := limiter.Middleware(policy, ByClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "198.51.100.10:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send().Code)

	rec = send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestMiddlewareIgnoresForgedForwardedFor(t *testing.T) {
	limiter, _, _ := setupLimiter(t)
	policy := LoginPolicy(15*time.Minute, 5)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	send := func(h http.Handler, peer, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = peer + ":1234"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	direct := httputil.ClientIPMiddleware(nil)(limiter.Middleware(policy, ByClientIP)(ok))
	allowed := 0
	for i := 0; i < 50; i++ {
		if send(direct, "198.51.100.7", fmt.Sprintf("203.0.113.%d", i)) == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)

	trusted, err := httputil.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	proxied := httputil.ClientIPMiddleware(trusted)(limiter.Middleware(policy, ByClientIP)(ok))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, send(proxied, "10.0.0.2", "192.0.2.50"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(proxied, "10.0.0.2", "192.0.2.50"))
	assert.Equal(t, http.StatusOK, send(proxied, "10.0.0.2", "192.0.2.51"), "each forwarded client has its own window")
}

func TestMethodSplit(t *testing.T) {
	var hit string
	read := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = "read"; next.ServeHTTP(w, r) })
	}
	write := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = "write"; next.ServeHTTP(w, r) })
	}
	h := MethodSplit(read, write)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "read", hit)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/", nil))
	assert.Equal(t, "write", hit)
}
