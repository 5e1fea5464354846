// Package session issues, validates and revokes opaque session tokens with
// sliding expiration.
//
// A session lives for MaxAge after it is issued. Validating a session whose last
// refresh is older than UpdateAge pushes its expiry out to now+MaxAge, so an
// active user is never logged out while an idle one is.
package session

import (
	"context"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Session is a persisted login
type Session struct {
	Token           string
	UserID          string
	CreatedAt       time.Time
	LastRefreshedAt time.Time
	ExpiresAt       time.Time
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// Repository is the durable session store
type Repository interface {
	Create(ctx context.Context, s *Session) error
	// GetWithUser returns the session joined with its user, or nil, nil, nil when absent
	GetWithUser(ctx context.Context, token string) (*Session, *auth.User, error)
	Refresh(ctx context.Context, token string, refreshedAt, expiresAt time.Time) error
	// Delete and DeleteByUser succeed when nothing matches
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Config controls session lifetimes
type Config struct {
	MaxAge    time.Duration `yaml:"max_age"`
	UpdateAge time.Duration `yaml:"update_age"`
	// OpTimeout bounds each repository call
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// DefaultConfig returns a 24 hour lifetime refreshed at most hourly
func DefaultConfig() Config {
	return Config{
		MaxAge:    24 * time.Hour,
		UpdateAge: time.Hour,
		OpTimeout: 5 * time.Second,
	}
}

// Store manages session lifecycles
type Store struct {
	repo    Repository
	users   auth.UserStore
	cfg     Config
	log     logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics records session events
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a session store. users may be nil, in which case last login is not recorded.
func NewStore(repo Repository, users auth.UserStore, cfg Config, log logrus.FieldLogger, opts ...Option) *Store {
	def := DefaultConfig()
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.UpdateAge <= 0 {
		cfg.UpdateAge = def.UpdateAge
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}

	s := &Store{
		repo:  repo,
		users: users,
		cfg:   cfg,
		log:   log.WithField("component", "session"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration
func (s *Store) Config() Config {
	return s.cfg
}

// CreateSession issues a new token for userID and records the login time
func (s *Store) CreateSession(ctx context.Context, userID string) (string, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", apperr.Internal("failed to generate session token", err)
	}

	now := s.now()
	sess := &Session{
		Token:           token,
		UserID:          userID,
		CreatedAt:       now,
		LastRefreshedAt: now,
		ExpiresAt:       now.Add(s.cfg.MaxAge),
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	if err := s.repo.Create(opCtx, sess); err != nil {
		return "", apperr.Internal("failed to create session", err)
	}

	if s.users != nil {
		if err := s.users.RecordLogin(opCtx, userID, now); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("failed to record last login")
		}
	}

	s.metrics.RecordSession("created", 1)
	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"token":   auth.TokenPrefix(token),
	}).Debug("session created")

	return token, nil
}

// ValidateSession resolves token to its user. A missing or expired session yields
// nil, nil; expired sessions are deleted. Repository failures are returned.
func (s *Store) ValidateSession(ctx context.Context, token string) (*auth.User, error) {
	if token == "" {
		return nil, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	sess, user, err := s.repo.GetWithUser(opCtx, token)
	if err != nil {
		return nil, apperr.Internal("failed to load session", err)
	}
	if sess == nil || user == nil {
		s.metrics.RecordSession("missing", 1)
		return nil, nil
	}

	now := s.now()
	if sess.Expired(now) {
		s.metrics.RecordSession("expired", 1)
		s.DestroySession(ctx, token)
		return nil, nil
	}

	if now.Sub(sess.LastRefreshedAt) > s.cfg.UpdateAge {
		if err := s.repo.Refresh(opCtx, token, now, now.Add(s.cfg.MaxAge)); err != nil {
			// Still valid until its current expiry
			s.log.WithError(err).WithField("token", auth.TokenPrefix(token)).Warn("failed to refresh session")
		} else {
			s.metrics.RecordSession("refreshed", 1)
		}
	}

	s.metrics.RecordSession("valid", 1)
	return user, nil
}

// DestroySession deletes a session. Failures are logged; missing sessions are ignored.
func (s *Store) DestroySession(ctx context.Context, token string) {
	if token == "" {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := s.repo.Delete(opCtx, token); err != nil {
		s.log.WithError(err).WithField("token", auth.TokenPrefix(token)).Error("failed to destroy session")
		return
	}
	s.metrics.RecordSession("destroyed", 1)
}

// DestroyAllUserSessions deletes every session owned by userID. Failures are logged.
func (s *Store) DestroyAllUserSessions(ctx context.Context, userID string) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := s.repo.DeleteByUser(opCtx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to destroy user sessions")
	}
}

// CleanupExpiredSessions deletes every session that expired before now
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	n, err := s.repo.DeleteExpired(opCtx, s.now())
	if err != nil {
		return 0, apperr.Internal("failed to clean up expired sessions", err)
	}
	s.metrics.RecordSession("cleaned", int(n))
	return n, nil
}
