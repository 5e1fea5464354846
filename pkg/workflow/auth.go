package workflow

import (
	"context"
	"strings"
	"sync"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/ids"
	"github.com/platinummonkey/warden/pkg/session"
	"github.com/sirupsen/logrus"
)

var (
	dummyDigestOnce sync.Once
	dummyDigest     string
)

// equalizeTiming runs one password verification so unknown emails cost the same
// as wrong passwords
func equalizeTiming(password string) {
	dummyDigestOnce.Do(func() {
		dummyDigest, _ = auth.HashPassword("warden-timing-equalizer")
	})
	auth.VerifyPassword(dummyDigest, password)
}

// AuthService logs users in and out
type AuthService struct {
	base
	users    auth.UserStore
	sessions *session.Store
}

// NewAuthService creates an auth service
func NewAuthService(users auth.UserStore, sessions *session.Store, deps Deps) *AuthService {
	return &AuthService{base: newBase(deps), users: users, sessions: sessions}
}

// Login verifies credentials and issues a session token. Unknown emails and wrong
// passwords fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string, meta audit.RequestMeta) (string, *auth.User, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, fail(span, apperr.Validation("Email and password are required"))
	}

	storeCtx, cancel := s.storeCtx(ctx)
	acct, err := s.users.GetUserByEmail(storeCtx, email)
	cancel()
	if err != nil {
		return "", nil, fail(span, storeError("failed to load user", err))
	}

	log := s.logger(ctx).WithFields(logrus.Fields{"email": email, "ip": meta.IPAddress})
	if acct == nil {
		equalizeTiming(password)
		log.Warn("login failed: unknown email")
		return "", nil, fail(span, apperr.Authentication("Invalid credentials"))
	}
	if !auth.VerifyPassword(acct.PasswordHash, password) {
		log.Warn("login failed: wrong password")
		return "", nil, fail(span, apperr.Authentication("Invalid credentials"))
	}

	token, err := s.sessions.CreateSession(ctx, acct.ID)
	if err != nil {
		return "", nil, fail(span, err)
	}

	user := acct.User
	s.audit(func(t *audit.Trail) { t.LogLogin(ctx, &user, meta) })
	log.WithField("user_id", user.ID).Info("user logged in")
	return token, &user, nil
}

// Logout destroys the session behind token. Unknown or expired tokens succeed.
func (s *AuthService) Logout(ctx context.Context, token string, meta audit.RequestMeta) {
	ctx, span := tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if token == "" {
		return
	}

	user, err := s.sessions.ValidateSession(ctx, token)
	if err != nil {
		s.logger(ctx).WithError(err).Warn("could not resolve session on logout")
	}
	if user != nil {
		s.audit(func(t *audit.Trail) { t.LogLogout(ctx, user, meta) })
	}
	s.sessions.DestroySession(ctx, token)
}

// Authenticate resolves token to its user. Missing and expired sessions are
// authentication errors.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.User, error) {
	if token == "" {
		return nil, apperr.Authentication("")
	}
	user, err := s.sessions.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Authentication("Session expired or invalid")
	}
	return user, nil
}

// Register creates an account with a freshly hashed password
func (s *AuthService) Register(ctx context.Context, email, name, password string, role auth.Role) (*auth.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fields := map[string]interface{}{}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "Invalid email"
	}
	if len(password) < 8 {
		fields["password"] = "Password must be at least 8 characters"
	}
	if !role.Valid() {
		fields["role"] = "Invalid role"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid input").WithDetails(fields)
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}
	now := s.Now().UTC()
	acct := &auth.Account{
		User:         auth.User{ID: ids.NewAt(now), Email: email, Name: strings.TrimSpace(name), Role: role},
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.CreateUser(storeCtx, acct); err != nil {
		return nil, storeError("failed to create user", err)
	}
	s.logger(ctx).WithFields(logrus.Fields{"user_id": acct.ID, "role": role}).Info("user created")
	return acct, nil
}
