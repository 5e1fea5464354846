package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Authenticator resolves a session token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// CookieConfig controls the session cookie
type CookieConfig struct {
	Name   string        `yaml:"name"`
	Secure bool          `yaml:"secure"`
	MaxAge time.Duration `yaml:"max_age"`
}

// DefaultCookieConfig returns the session-token cookie lasting one session lifetime
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:   "session-token",
		MaxAge: 24 * time.Hour,
	}
}

// SessionAuth authenticates requests by session token
type SessionAuth struct {
	auth   Authenticator
	cookie CookieConfig
	log    logrus.FieldLogger
}

// NewSessionAuth creates session middleware
func NewSessionAuth(a Authenticator, cookie CookieConfig, log logrus.FieldLogger) *SessionAuth {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieConfig().Name
	}
	return &SessionAuth{auth: a, cookie: cookie, log: log.WithField("component", "session_auth")}
}

// Token extracts the session token from the cookie or a bearer header
func (m *SessionAuth) Token(r *http.Request) string {
	if c, err := r.Cookie(m.cookie.Name); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Handler rejects requests without a valid session and stores the user otherwise
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.Token(r)
		if token == "" {
			httputil.WriteError(w, nil, apperr.Authentication(""))
			return
		}

		user, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			httputil.WriteError(w, observability.FromContext(r.Context(), m.log), err)
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		ctx = contextkeys.WithSessionToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetCookie issues the session cookie
func (m *SessionAuth) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie in the browser
func (m *SessionAuth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CurrentUser returns the user stored by Handler, or nil
func CurrentUser(r *http.Request) *auth.User {
	return contextkeys.GetUser(r.Context())
}

// ByUser keys rate limits on the authenticated user. Anonymous requests are not limited.
func ByUser(r *http.Request) (string, bool) {
	user := CurrentUser(r)
	if user == nil {
		return "", false
	}
	return user.ID, true
}
