// Command warden serves the incident tracking API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/warden/pkg/api"
	"github.com/platinummonkey/warden/pkg/async"
	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/ratelimit"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/session"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/storage/redisstore"
	"github.com/platinummonkey/warden/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (overrides "+config.ConfigFileEnv+")")
	flag.Parse()

	if *configFile != "" {
		os.Setenv(config.ConfigFileEnv, *configFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("warden exited with error")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxies, err := cfg.Server.Proxies()
	if err != nil {
		return err
	}

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	stores, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	stores.StartReplicaHealthCheck(ctx, 30*time.Second)
	log.WithField("type", stores.Type).Info("Storage initialized")

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			stores.Close()
			return err
		}
		log.Info("Connected to Redis")
	}

	trail := audit.NewTrail(stores.Audit, log, cfg.Audit, audit.WithMetrics(metrics))
	sessions := session.NewStore(stores.Sessions, stores.Users, cfg.Session.Config, log, session.WithMetrics(metrics))

	deps := workflow.Deps{
		RBAC:         rbac.NewEngine(log),
		Audit:        trail,
		Cache:        newCache(cfg, redisClient, metrics, log),
		Metrics:      metrics,
		Log:          log,
		StoreTimeout: cfg.Storage.Postgres.Timeout,
	}
	incidents := workflow.NewIncidentService(stores.Incidents, deps)

	serverDeps := api.Deps{
		Incidents: incidents,
		Comments:  workflow.NewCommentService(stores.Comments, incidents, deps),
		Auth:      workflow.NewAuthService(stores.Users, sessions, deps),
		Policies:  cfg.RateLimit.Policies(),
		Metrics:   metrics,
		Cookie: middleware.CookieConfig{
			Name:   middleware.DefaultCookieConfig().Name,
			Secure: cfg.Server.SecureCookies,
			MaxAge: cfg.Session.MaxAge,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: proxies,
		Log:            log,
	}
	if cfg.RateLimit.Enabled {
		serverDeps.Limiter = ratelimit.NewLimiter(redisClient, log,
			ratelimit.WithMetrics(metrics), ratelimit.WithTimeout(cfg.Redis.OpTimeout))
	}
	if cfg.Observability.MetricsEnabled {
		serverDeps.Gatherer = registry
	}
	var primary *sql.DB
	if stores.Postgres != nil {
		primary = stores.Postgres.Primary()
	}
	serverDeps.Health = observability.NewHealthChecker(primary, redisClient)

	janitor, err := session.NewJanitor(sessions, cfg.Session.CleanupSchedule, log)
	if err != nil {
		return err
	}
	janitor.Start()
	async.SafeGo(ctx, log, time.Minute, "initial session cleanup", func(ctx context.Context) error {
		janitor.RunOnce(ctx)
		return nil
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(serverDeps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(log, cfg.Server.ShutdownTimeout)
	shutdown.Register("http server", srv.Shutdown)
	shutdown.Register("session janitor", janitor.Stop)
	shutdown.Register("audit trail", func(ctx context.Context) error {
		return trail.Close(remaining(ctx))
	})
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("storage", func(context.Context) error { return stores.Close() })
	if otelProviders != nil {
		shutdown.Register("opentelemetry", otelProviders.Shutdown)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting warden API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	go func() {
		if err, ok := <-serveErr; ok {
			log.WithError(err).Error("HTTP server failed")
			stopWaiting()
		}
	}()

	if err := shutdown.WaitForSignal(waitCtx); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	log.Info("warden stopped")
	return nil
}

func newCache(cfg *config.Config, client *redis.Client, metrics *observability.Metrics, log logrus.FieldLogger) *cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}

	var backend cache.Backend
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		backend = cache.NewMemoryBackend(cfg.Cache.MemorySize, time.Hour)
	default:
		backend = cache.NewRedisBackend(client, time.Hour)
	}
	return cache.New(backend, log,
		cache.WithTTLs(cfg.Cache.TTLs),
		cache.WithMetrics(metrics),
		cache.WithTimeout(cfg.Redis.OpTimeout),
	)
}

// remaining returns the time left before ctx's deadline
func remaining(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 10 * time.Second
}
