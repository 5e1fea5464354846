package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/incident"
	"github.com/platinummonkey/warden/pkg/session"
	"github.com/platinummonkey/warden/pkg/storage/memory"
	"github.com/platinummonkey/warden/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

// Backend types
const (
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

// Config selects and configures the storage backend. Type is "postgres" or
// "memory"; AutoMigrate creates missing tables on startup.
type Config struct {
	Type        string                    `yaml:"type"`
	Postgres    postgres.ConnectionConfig `yaml:"postgres"`
	AutoMigrate bool                      `yaml:"auto_migrate"`
}

// DefaultConfig returns a postgres backend that creates its schema on startup
func DefaultConfig() Config {
	return Config{
		Type:        TypePostgres,
		Postgres:    postgres.DefaultConnectionConfig(),
		AutoMigrate: true,
	}
}

// Validate checks the backend type and its settings
func (c Config) Validate() error {
	switch c.Type {
	case TypePostgres:
		return c.Postgres.Validate()
	case TypeMemory:
		return nil
	default:
		return fmt.Errorf("unknown storage type %q", c.Type)
	}
}

// Stores bundles the persistence contracts for one backend
type Stores struct {
	Type      string
	Users     auth.UserStore
	Sessions  session.Repository
	Incidents incident.Store
	Comments  incident.CommentStore
	Audit     audit.Writer

	// Postgres is nil for the memory backend
	Postgres *postgres.ConnectionManager
}

// Open connects to the configured backend
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Stores, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	switch cfg.Type {
	case TypeMemory:
		db := memory.New()
		log.WithField("type", cfg.Type).Warn("using in-memory storage, data will not persist")
		return &Stores{
			Type:      cfg.Type,
			Users:     db.Users(),
			Sessions:  db.Sessions(),
			Incidents: db.Incidents(),
			Comments:  db.Comments(),
			Audit:     audit.NewMemoryWriter(),
		}, nil
	default:
		return openPostgres(ctx, cfg, log)
	}
}

func openPostgres(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Stores, error) {
	cm, err := postgres.NewConnectionManager(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, cm.Primary()); err != nil {
			cm.Close()
			return nil, err
		}
	}

	auditWriter, err := audit.NewDBWriter(ctx, cm.Primary())
	if err != nil {
		cm.Close()
		return nil, err
	}

	return &Stores{
		Type:      cfg.Type,
		Users:     postgres.NewUserStore(cm),
		Sessions:  postgres.NewSessionRepository(cm),
		Incidents: postgres.NewIncidentStore(cm),
		Comments:  postgres.NewCommentStore(cm),
		Audit:     auditWriter,
		Postgres:  cm,
	}, nil
}

// HealthCheck pings the database. The memory backend is always healthy.
func (s *Stores) HealthCheck(ctx context.Context) error {
	if s.Postgres == nil {
		return nil
	}
	return s.Postgres.HealthCheck(ctx)
}

// StartReplicaHealthCheck prunes unreachable replicas every interval until ctx is done
func (s *Stores) StartReplicaHealthCheck(ctx context.Context, interval time.Duration) {
	if s.Postgres == nil || s.Postgres.ReplicaCount() == 0 {
		return
	}
	s.Postgres.StartHealthCheckRoutine(ctx, interval)
}

// Close releases database connections
func (s *Stores) Close() error {
	if s.Postgres == nil {
		return nil
	}
	return s.Postgres.Close()
}
