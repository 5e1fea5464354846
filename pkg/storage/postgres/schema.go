package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// schema creates every table warden reads and writes, except audit_logs which the
// audit writer owns.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id VARCHAR(26) PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	name VARCHAR(255) NOT NULL,
	role VARCHAR(20) NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
	last_login_at TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS sessions (
	token_hash CHAR(64) PRIMARY KEY,
	user_id VARCHAR(26) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	last_refreshed_at TIMESTAMP WITH TIME ZONE NOT NULL,
	expires_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS incidents (
	id VARCHAR(26) PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	description TEXT NOT NULL,
	severity VARCHAR(20) NOT NULL,
	status VARCHAR(20) NOT NULL,
	source VARCHAR(255),
	created_by_id VARCHAR(26) NOT NULL REFERENCES users(id),
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_created_by ON incidents(created_by_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
CREATE INDEX IF NOT EXISTS idx_incidents_severity ON incidents(severity);

CREATE TABLE IF NOT EXISTS incident_comments (
	id VARCHAR(26) PRIMARY KEY,
	incident_id VARCHAR(26) NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
	author_id VARCHAR(26) NOT NULL REFERENCES users(id),
	body TEXT NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incident_comments_incident ON incident_comments(incident_id, id DESC);
`

// EnsureSchema creates missing tables and indexes
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint failure
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isForeignKeyViolation reports whether err references a missing parent row
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
