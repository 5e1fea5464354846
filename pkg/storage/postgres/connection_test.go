package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPingMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single URL", "postgres://localhost:5432/db", []string{"postgres://localhost:5432/db"}},
		{
			"URLs with whitespace and empty entries",
			" postgres://host1:5432/db ,, postgres://host2:5432/db ,",
			[]string{"postgres://host1:5432/db", "postgres://host2:5432/db"},
		},
		{"only commas and whitespace", " , , , ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestConnectionConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConnectionConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*ConnectionConfig)
	}{
		{"missing url", func(c *ConnectionConfig) { c.PrimaryURL = "" }},
		{"zero max", func(c *ConnectionConfig) { c.MaxConns = 0 }},
		{"negative min", func(c *ConnectionConfig) { c.MinConns = -1 }},
		{"min exceeds max", func(c *ConnectionConfig) { c.MinConns = c.MaxConns + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConnectionConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewConnectionManagerUnreachablePrimary(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := DefaultConnectionConfig()
	cfg.PrimaryURL = "postgres://nonexistent.invalid:9999/warden?connect_timeout=1&sslmode=disable"
	cfg.Timeout = 2 * time.Second

	cm, err := NewConnectionManager(context.Background(), cfg, log)
	assert.Nil(t, cm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping primary")
}

func TestReplicaSelection(t *testing.T) {
	log, _ := test.NewNullLogger()

	t.Run("no replicas falls back to primary", func(t *testing.T) {
		primary, _ := newPingMock(t)
		cm := NewConnectionManagerFromDB(primary, log)
		assert.Same(t, primary, cm.Replica())
		assert.Same(t, primary, cm.Primary())
	})

	t.Run("round robin", func(t *testing.T) {
		primary, _ := newPingMock(t)
		r1, _ := newPingMock(t)
		r2, _ := newPingMock(t)
		cm := NewConnectionManagerFromDB(primary, log, r1, r2)

		seen := map[*sql.DB]int{}
		for i := 0; i < 10; i++ {
			seen[cm.Replica()]++
		}
		assert.Equal(t, 5, seen[r1])
		assert.Equal(t, 5, seen[r2])
		assert.Zero(t, seen[primary])
	})

	t.Run("reader uses primary unless replica reads are on", func(t *testing.T) {
		primary, _ := newPingMock(t)
		r1, _ := newPingMock(t)
		cm := NewConnectionManagerFromDB(primary, log, r1)
		assert.Same(t, primary, cm.Reader())

		cm.config.ReplicaReads = true
		assert.Same(t, r1, cm.Reader())
	})
}

func TestHealthCheck(t *testing.T) {
	log, _ := test.NewNullLogger()

	t.Run("healthy", func(t *testing.T) {
		primary, pm := newPingMock(t)
		r1, rm := newPingMock(t)
		pm.ExpectPing()
		rm.ExpectPing()

		cm := NewConnectionManagerFromDB(primary, log, r1)
		assert.NoError(t, cm.HealthCheck(context.Background()))
		assert.NoError(t, pm.ExpectationsWereMet())
		assert.NoError(t, rm.ExpectationsWereMet())
	})

	t.Run("unhealthy primary", func(t *testing.T) {
		primary, pm := newPingMock(t)
		pm.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := NewConnectionManagerFromDB(primary, log).HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary unhealthy")
	})

	t.Run("one of two replicas down is degraded but healthy", func(t *testing.T) {
		primary, pm := newPingMock(t)
		r1, rm1 := newPingMock(t)
		r2, rm2 := newPingMock(t)
		pm.ExpectPing()
		rm1.ExpectPing()
		rm2.ExpectPing().WillReturnError(errors.New("timeout"))

		assert.NoError(t, NewConnectionManagerFromDB(primary, log, r1, r2).HealthCheck(context.Background()))
	})

	t.Run("all replicas down", func(t *testing.T) {
		primary, pm := newPingMock(t)
		r1, rm := newPingMock(t)
		pm.ExpectPing()
		rm.ExpectPing().WillReturnError(errors.New("timeout"))

		err := NewConnectionManagerFromDB(primary, log, r1).HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all replicas unhealthy")
	})
}

func TestRemoveUnhealthyReplicas(t *testing.T) {
	log, _ := test.NewNullLogger()
	primary, _ := newPingMock(t)
	r1, rm1 := newPingMock(t)
	r2, rm2 := newPingMock(t)

	rm1.ExpectPing()
	rm2.ExpectPing().WillReturnError(errors.New("connection refused"))
	rm2.ExpectClose()

	cm := NewConnectionManagerFromDB(primary, log, r1, r2)
	assert.Equal(t, 1, cm.RemoveUnhealthyReplicas(context.Background()))
	assert.Equal(t, 1, cm.ReplicaCount())
	assert.Same(t, r1, cm.Replica())
}

func TestClose(t *testing.T) {
	log, _ := test.NewNullLogger()
	primary, pm, err := sqlmock.New()
	require.NoError(t, err)
	r1, rm, err := sqlmock.New()
	require.NoError(t, err)
	pm.ExpectClose()
	rm.ExpectClose().WillReturnError(errors.New("already closed"))

	cm := NewConnectionManagerFromDB(primary, log, r1)
	err = cm.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replica-0 close error")
	assert.Zero(t, cm.ReplicaCount())
}
