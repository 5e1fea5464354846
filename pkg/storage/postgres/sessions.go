package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/session"
)

// SessionRepository implements session.Repository. Only a SHA-256 digest of each
// token is stored, so a leaked table cannot be replayed.
type SessionRepository struct {
	conn Conn
}

var _ session.Repository = (*SessionRepository)(nil)

// NewSessionRepository creates a session repository
func NewSessionRepository(conn Conn) *SessionRepository {
	return &SessionRepository{conn: conn}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `
		INSERT INTO sessions (token_hash, user_id, created_at, last_refreshed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.conn.Primary().ExecContext(ctx, query,
		hashToken(s.Token), s.UserID, s.CreatedAt.UTC(), s.LastRefreshedAt.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetWithUser(ctx context.Context, token string) (*session.Session, *auth.User, error) {
	query := `
		SELECT s.user_id, s.created_at, s.last_refreshed_at, s.expires_at,
			u.id, u.email, u.name, u.role
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`
	var (
		sess = session.Session{Token: token}
		user auth.User
		role string
	)
	err := r.conn.Primary().QueryRowContext(ctx, query, hashToken(token)).Scan(
		&sess.UserID, &sess.CreatedAt, &sess.LastRefreshedAt, &sess.ExpiresAt,
		&user.ID, &user.Email, &user.Name, &role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	user.Role = auth.Role(role)
	return &sess, &user, nil
}

func (r *SessionRepository) Refresh(ctx context.Context, token string, refreshedAt, expiresAt time.Time) error {
	query := `UPDATE sessions SET last_refreshed_at = $1, expires_at = $2 WHERE token_hash = $3`
	if _, err := r.conn.Primary().ExecContext(ctx, query, refreshedAt.UTC(), expiresAt.UTC(), hashToken(token)); err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.conn.Primary().ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hashToken(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.conn.Primary().ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.conn.Primary().ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}
