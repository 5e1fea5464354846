package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBWriter appends records to the audit_logs table
type DBWriter struct {
	db *sql.DB
}

// NewDBWriter creates a writer and ensures the audit_logs table exists
func NewDBWriter(ctx context.Context, db *sql.DB) (*DBWriter, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	w := &DBWriter{db: db}
	if err := w.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return w, nil
}

func (w *DBWriter) ensureTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id VARCHAR(26) PRIMARY KEY,
		user_id VARCHAR(64),
		action VARCHAR(50) NOT NULL,
		resource VARCHAR(50),
		resource_id VARCHAR(64),
		details JSONB,
		ip_address VARCHAR(45),
		user_agent TEXT,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource, resource_id);
	`

	_, err := w.db.ExecContext(ctx, query)
	return err
}

// Append inserts rec
func (w *DBWriter) Append(ctx context.Context, rec *Record) error {
	var details interface{}
	if rec.Details != nil {
		raw, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		details = raw
	}

	query := `
		INSERT INTO audit_logs (
			id, user_id, action, resource, resource_id,
			details, ip_address, user_agent, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := w.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, string(rec.Action), nullString(rec.Resource), nullString(rec.ResourceID),
		details, nullString(rec.IPAddress), nullString(rec.UserAgent), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
