package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/ratelimit"
	"github.com/platinummonkey/warden/pkg/session"
	"github.com/platinummonkey/warden/pkg/storage/memory"
	"github.com/platinummonkey/warden/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "correct horse battery"

type testServer struct {
	*Server
	audit *audit.MemoryWriter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log, _ := test.NewNullLogger()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	writer := audit.NewMemoryWriter()
	db := memory.New()

	deps := workflow.Deps{
		Audit:   audit.NewTrail(writer, log, audit.Config{}),
		Metrics: metrics,
		Log:     log,
	}
	incidents := workflow.NewIncidentService(db.Incidents(), deps)
	authSvc := workflow.NewAuthService(db.Users(), session.NewStore(db.Sessions(), db.Users(), session.DefaultConfig(), log), deps)

	policies := ratelimit.DefaultPolicies()
	policies.Login = ratelimit.LoginPolicy(15*time.Minute, 3)

	srv := NewServer(Deps{
		Incidents: incidents,
		Comments:  workflow.NewCommentService(db.Comments(), incidents, deps),
		Auth:      authSvc,
		Limiter:   ratelimit.NewLimiter(client, log),
		Policies:  policies,
		Health:    observability.NewHealthChecker(nil, client),
		Metrics:   metrics,
		Gatherer:  registry,
		Cookie:    middleware.DefaultCookieConfig(),
		Log:       log,
	})

	ctx := context.Background()
	for _, u := range []struct {
		email string
		role  auth.Role
	}{
		{"alice@example.com", auth.RoleClientUser},
		{"bob@example.com", auth.RoleClientUser},
		{"analyst@example.com", auth.RoleAnalyst},
	} {
		_, err := authSvc.Register(ctx, u.email, u.email, password, u.role)
		require.NoError(t, err)
	}
	return &testServer{Server: srv, audit: writer}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := s.do(t, "POST", "/api/auth/login", loginRequest{Email: email, Password: password}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == "session-token" {
			assert.True(t, c.HttpOnly)
			assert.Len(t, c.Value, 64)
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[httputil.ErrorResponse](t, rec).Error.Code
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "Alice@Example.com")

	rec := s.do(t, "GET", "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User auth.User `json:"user"`
	}](t, rec)
	assert.Equal(t, "alice@example.com", me.User.Email)
	assert.Equal(t, auth.RoleClientUser, me.User.Role)

	// Bearer tokens are accepted as well as the cookie
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	bearer := httptest.NewRecorder()
	s.ServeHTTP(bearer, req)
	assert.Equal(t, http.StatusOK, bearer.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/api/auth/login", loginRequest{Email: "alice@example.com", Password: "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_ERROR", errorCode(t, rec))
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t)
	bad := loginRequest{Email: "alice@example.com", Password: "nope"}

	for i := 0; i < 3; i++ {
		rec := s.do(t, "POST", "/api/auth/login", bad, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := s.do(t, "POST", "/api/auth/login", bad, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, rec))
}

func TestLoginLimitKeysOnPeerAddress(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 4; i++ {
		body, err := json.Marshal(loginRequest{Email: "alice@example.com", Password: "nope"})
		require.NoError(t, err)
		req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if i < 3 {
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/auth/me", "/api/incidents", "/api/incidents/stats"} {
		rec := s.do(t, "GET", path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := s.do(t, "GET", "/api/incidents", nil, &http.Cookie{Name: "session-token", Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "alice@example.com")

	rec := s.do(t, "POST", "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")

	rec = s.do(t, "GET", "/api/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logging out without a session still succeeds
	rec = s.do(t, "POST", "/api/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, s.audit.ByAction(audit.ActionLogout), 1)
}

func TestIncidentRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice@example.com")
	bob := s.login(t, "bob@example.com")
	analyst := s.login(t, "analyst@example.com")

	rec := s.do(t, "POST", "/api/incidents", map[string]string{
		"title":       "  Database outage ",
		"description": "primary is unreachable",
		"severity":    "critical",
	}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[incident.Incident](t, rec)
	assert.Equal(t, "Database outage", created.Title)
	assert.Equal(t, incident.StatusOpen, created.Status)
	assert.Equal(t, incident.SeverityCritical, created.Severity)

	path := "/api/incidents/" + created.ID

	rec = s.do(t, "GET", path, nil, alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "GET", path, nil, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTHORIZATION_ERROR", errorCode(t, rec))

	rec = s.do(t, "GET", "/api/incidents/missing", nil, analyst)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "PATCH", path, map[string]string{"status": "closed"}, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot transition from OPEN to CLOSED", decode[httputil.ErrorResponse](t, rec).Error.Message)

	rec = s.do(t, "PATCH", path, map[string]string{"status": "in_progress"}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, incident.StatusInProgress, decode[incident.Incident](t, rec).Status)

	rec = s.do(t, "PATCH", path, map[string]interface{}{"unknown": true}, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "GET", "/api/incidents?status=in_progress", nil, analyst)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[incident.Page[*incident.Incident]](t, rec)
	require.Len(t, page.Data, 1)
	assert.Nil(t, page.Pagination.NextCursor)

	rec = s.do(t, "GET", "/api/incidents", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[incident.Page[*incident.Incident]](t, rec).Data)

	rec = s.do(t, "GET", "/api/incidents?limit=abc", nil, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "GET", "/api/incidents/stats", nil, analyst)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[incident.Stats](t, rec)
	assert.Equal(t, int64(1), stats.Total)

	rec = s.do(t, "DELETE", path, nil, alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "DELETE", path, nil, analyst)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, "GET", path, nil, analyst)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentRoutes(t *testing.T) {
	s := newTestServer(t)
	alice := s.login(t, "alice@example.com")
	bob := s.login(t, "bob@example.com")

	rec := s.do(t, "POST", "/api/incidents", map[string]string{
		"title":       "Login page down",
		"description": "502 from the edge",
		"severity":    "HIGH",
	}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inc := decode[incident.Incident](t, rec)
	commentsPath := "/api/incidents/" + inc.ID + "/comments"

	rec = s.do(t, "POST", commentsPath, commentRequest{Body: "Seeing 502s"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[incident.Comment](t, rec)

	rec = s.do(t, "POST", commentsPath, commentRequest{Body: "   "}, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", commentsPath, commentRequest{Body: "me too"}, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "GET", commentsPath+"?limit=10", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[incident.Page[*incident.Comment]](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Seeing 502s", page.Data[0].Body)

	rec = s.do(t, "DELETE", "/api/comments/"+comment.ID, nil, bob)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "DELETE", "/api/comments/"+comment.ID, nil, alice)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/api/internal/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "GET", "/api/internal/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "GET", "/api/docs/openapi.json", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.do(t, "GET", "/api/incidents", nil, nil)
	rec = s.do(t, "GET", "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "warden_http_requests_total")
}

func TestCrossOriginWritesAreRejected(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString(`{}`))
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
