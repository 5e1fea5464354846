package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/auth"
)

// UserStore implements auth.UserStore
type UserStore struct {
	conn Conn
}

var _ auth.UserStore = (*UserStore)(nil)

// NewUserStore creates a user store
func NewUserStore(conn Conn) *UserStore {
	return &UserStore{conn: conn}
}

const selectAccount = `
	SELECT id, email, name, role, password_hash, created_at, updated_at, last_login_at
	FROM users
`

func scanAccount(row scanner) (*auth.Account, error) {
	var (
		acct      auth.Account
		role      string
		lastLogin sql.NullTime
	)
	err := row.Scan(&acct.ID, &acct.Email, &acct.Name, &role, &acct.PasswordHash,
		&acct.CreatedAt, &acct.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	acct.Role = auth.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		acct.LastLoginAt = &t
	}
	return &acct, nil
}

func (s *UserStore) getOne(ctx context.Context, where string, arg interface{}) (*auth.Account, error) {
	acct, err := scanAccount(s.conn.Primary().QueryRowContext(ctx, selectAccount+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return acct, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.getOne(ctx, "WHERE email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*auth.Account, error) {
	return s.getOne(ctx, "WHERE id = $1", id)
}

func (s *UserStore) CreateUser(ctx context.Context, account *auth.Account) error {
	query := `
		INSERT INTO users (id, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	_, err := s.conn.Primary().ExecContext(ctx, query,
		account.ID, account.Email, account.Name, string(account.Role), account.PasswordHash,
		account.CreatedAt.UTC(), account.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("User with this email already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *UserStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1, updated_at = $2 WHERE id = $3`
	res, err := s.conn.Primary().ExecContext(ctx, query, at.UTC(), at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("User")
	}
	return nil
}
