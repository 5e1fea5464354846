package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBWriter(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

		w, err := NewDBWriter(context.Background(), db)
		require.NoError(t, err)
		assert.NotNil(t, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil database", func(t *testing.T) {
		w, err := NewDBWriter(context.Background(), nil)
		assert.Nil(t, w)
		assert.Contains(t, err.Error(), "database connection is required")
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnError(errors.New("permission denied"))

		w, err := NewDBWriter(context.Background(), db)
		assert.Nil(t, w)
		assert.Contains(t, err.Error(), "failed to ensure audit_logs table")
	})
}

func TestDBWriterAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	w, err := NewDBWriter(context.Background(), db)
	require.NoError(t, err)

	userID := "user-1"
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &Record{
		ID:         "01HZY0000000000000000000AA",
		UserID:     &userID,
		Action:     ActionUpdateIncident,
		Resource:   ResourceIncident,
		ResourceID: "inc-1",
		Details:    map[string]interface{}{"changes": map[string]interface{}{"status": map[string]string{"from": "OPEN", "to": "CLOSED"}}},
		IPAddress:  "203.0.113.4",
		Timestamp:  ts,
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(rec.ID, "user-1", "UPDATE_INCIDENT", "incident", "inc-1",
			[]byte(`{"changes":{"status":{"from":"OPEN","to":"CLOSED"}}}`), "203.0.113.4", nil, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, w.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBWriterAppendAnonymous(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := &DBWriter{db: db}
	rec := &Record{ID: "id", Action: ActionLogin, Timestamp: time.Now()}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("id", nil, "LOGIN", nil, nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = w.Append(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert audit log")
	assert.NoError(t, mock.ExpectationsWereMet())
}
