package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/cache"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/ratelimit"
	"github.com/platinummonkey/warden/pkg/session"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/storage/redisstore"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names an optional YAML file loaded before environment overrides
const ConfigFileEnv = "WARDEN_CONFIG_FILE"

// Cache backends
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Redis         redisstore.Config   `yaml:"redis"`
	Session       SessionConfig       `yaml:"session"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Cache         CacheConfig         `yaml:"cache"`
	Audit         audit.Config        `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins may send state-changing requests; same-host requests always pass
	AllowedOrigins []string `yaml:"allowed_origins"`
	SecureCookies  bool     `yaml:"secure_cookies"`

	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Proxies parses TrustedProxies
func (s ServerConfig) Proxies() (httputil.TrustedProxies, error) {
	return httputil.ParseTrustedProxies(s.TrustedProxies)
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// SessionConfig holds session lifetimes and the expiry sweep schedule
type SessionConfig struct {
	session.Config  `yaml:",inline"`
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// LimitConfig is one fixed-window limit
type LimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// RateLimitConfig holds the limits for each request class
type RateLimitConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Login    LimitConfig `yaml:"login"`
	APIWrite LimitConfig `yaml:"api_write"`
	APIRead  LimitConfig `yaml:"api_read"`
}

// Policies converts the limits into rate limiter policies
func (c RateLimitConfig) Policies() ratelimit.Policies {
	return ratelimit.Policies{
		Login:    ratelimit.LoginPolicy(c.Login.Window, c.Login.MaxRequests),
		APIWrite: ratelimit.APIWritePolicy(c.APIWrite.Window, c.APIWrite.MaxRequests),
		APIRead:  ratelimit.APIReadPolicy(c.APIRead.Window, c.APIRead.MaxRequests),
	}
}

// CacheConfig selects the cache backend and its TTLs
type CacheConfig struct {
	Enabled bool       `yaml:"enabled"`
	Backend string     `yaml:"backend"`
	TTLs    cache.TTLs `yaml:"ttls"`

	// MemorySize caps entries held by the memory backend
	MemorySize int `yaml:"memory_size"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// OTel returns the OpenTelemetry exporter settings
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	policies := ratelimit.DefaultPolicies()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: storage.DefaultConfig(),
		Redis:   redisstore.DefaultConfig(),
		Session: SessionConfig{
			Config:          session.DefaultConfig(),
			CleanupSchedule: session.DefaultCleanupSchedule,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Login:    LimitConfig{Window: policies.Login.Window, MaxRequests: policies.Login.MaxRequests},
			APIWrite: LimitConfig{Window: policies.APIWrite.Window, MaxRequests: policies.APIWrite.MaxRequests},
			APIRead:  LimitConfig{Window: policies.APIRead.Window, MaxRequests: policies.APIRead.MaxRequests},
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    CacheBackendRedis,
			TTLs:       cache.DefaultTTLs(),
			MemorySize: 10000,
		},
		Audit: audit.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "warden",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by WARDEN_CONFIG_FILE, and WARDEN_* environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("WARDEN_HOST", s.Host)
	s.Port = getEnv("WARDEN_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("WARDEN_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WARDEN_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("WARDEN_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.AllowedOrigins = getEnvList("WARDEN_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.SecureCookies = getEnvBool("WARDEN_SECURE_COOKIES", s.SecureCookies)
	s.TrustedProxies = getEnvList("WARDEN_TRUSTED_PROXIES", s.TrustedProxies)

	st := &c.Storage
	st.Type = getEnv("WARDEN_STORAGE_TYPE", st.Type)
	st.AutoMigrate = getEnvBool("WARDEN_AUTO_MIGRATE", st.AutoMigrate)
	st.Postgres.PrimaryURL = getEnv("WARDEN_DATABASE_URL", st.Postgres.PrimaryURL)
	st.Postgres.ReplicaURLs = getEnvList("WARDEN_DATABASE_REPLICA_URLS", st.Postgres.ReplicaURLs)
	st.Postgres.MaxConns = getEnvInt("WARDEN_DATABASE_MAX_CONNS", st.Postgres.MaxConns)
	st.Postgres.MinConns = getEnvInt("WARDEN_DATABASE_MIN_CONNS", st.Postgres.MinConns)
	st.Postgres.Timeout = getEnvDuration("WARDEN_DATABASE_TIMEOUT", st.Postgres.Timeout)
	st.Postgres.ReplicaReads = getEnvBool("WARDEN_DATABASE_REPLICA_READS", st.Postgres.ReplicaReads)

	r := &c.Redis
	r.URL = getEnv("WARDEN_REDIS_URL", r.URL)
	r.Password = getEnv("WARDEN_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("WARDEN_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("WARDEN_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("WARDEN_REDIS_POOL_SIZE", r.PoolSize)
	r.OpTimeout = getEnvDuration("WARDEN_REDIS_OP_TIMEOUT", r.OpTimeout)

	ss := &c.Session
	ss.MaxAge = getEnvDuration("WARDEN_SESSION_MAX_AGE", ss.MaxAge)
	ss.UpdateAge = getEnvDuration("WARDEN_SESSION_UPDATE_AGE", ss.UpdateAge)
	ss.CleanupSchedule = getEnv("WARDEN_SESSION_CLEANUP_SCHEDULE", ss.CleanupSchedule)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("WARDEN_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Login.Window = getEnvDuration("WARDEN_RATE_LIMIT_LOGIN_WINDOW", rl.Login.Window)
	rl.Login.MaxRequests = getEnvInt("WARDEN_RATE_LIMIT_LOGIN_MAX", rl.Login.MaxRequests)
	rl.APIWrite.Window = getEnvDuration("WARDEN_RATE_LIMIT_WRITE_WINDOW", rl.APIWrite.Window)
	rl.APIWrite.MaxRequests = getEnvInt("WARDEN_RATE_LIMIT_WRITE_MAX", rl.APIWrite.MaxRequests)
	rl.APIRead.Window = getEnvDuration("WARDEN_RATE_LIMIT_READ_WINDOW", rl.APIRead.Window)
	rl.APIRead.MaxRequests = getEnvInt("WARDEN_RATE_LIMIT_READ_MAX", rl.APIRead.MaxRequests)

	ca := &c.Cache
	ca.Enabled = getEnvBool("WARDEN_CACHE_ENABLED", ca.Enabled)
	ca.Backend = getEnv("WARDEN_CACHE_BACKEND", ca.Backend)
	ca.MemorySize = getEnvInt("WARDEN_CACHE_MEMORY_SIZE", ca.MemorySize)
	ca.TTLs.Incident = getEnvDuration("WARDEN_CACHE_INCIDENT_TTL", ca.TTLs.Incident)
	ca.TTLs.List = getEnvDuration("WARDEN_CACHE_LIST_TTL", ca.TTLs.List)
	ca.TTLs.Comments = getEnvDuration("WARDEN_CACHE_COMMENTS_TTL", ca.TTLs.Comments)
	ca.TTLs.Stats = getEnvDuration("WARDEN_CACHE_STATS_TTL", ca.TTLs.Stats)

	a := &c.Audit
	a.Async = getEnvBool("WARDEN_AUDIT_ASYNC", a.Async)
	a.Workers = getEnvInt("WARDEN_AUDIT_WORKERS", a.Workers)
	a.QueueSize = getEnvInt("WARDEN_AUDIT_QUEUE_SIZE", a.QueueSize)
	a.WriteTimeout = getEnvDuration("WARDEN_AUDIT_WRITE_TIMEOUT", a.WriteTimeout)

	o := &c.Observability
	o.LogLevel = getEnv("WARDEN_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("WARDEN_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("WARDEN_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("WARDEN_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("WARDEN_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("WARDEN_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("WARDEN_OTEL_INSECURE", o.OTelInsecure)
}

// NeedsRedis reports whether any enabled component uses Redis
func (c *Config) NeedsRedis() bool {
	return c.RateLimit.Enabled || (c.Cache.Enabled && c.Cache.Backend == CacheBackendRedis)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if _, err := c.Server.Proxies(); err != nil {
		return err
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.NeedsRedis() && c.Redis.URL == "" {
		return errors.New("redis URL is required when rate limiting or the redis cache is enabled")
	}

	if c.Session.MaxAge <= 0 {
		return errors.New("session max age must be positive")
	}
	if c.Session.UpdateAge <= 0 || c.Session.UpdateAge > c.Session.MaxAge {
		return errors.New("session update age must be positive and no longer than the max age")
	}

	if c.RateLimit.Enabled {
		p := c.RateLimit.Policies()
		for _, policy := range []ratelimit.Policy{p.Login, p.APIWrite, p.APIRead} {
			if err := policy.Validate(); err != nil {
				return err
			}
		}
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheBackendRedis:
		case CacheBackendMemory:
			if c.Cache.MemorySize <= 0 {
				return errors.New("cache memory size must be positive")
			}
		default:
			return fmt.Errorf("invalid cache backend: %s (must be redis or memory)", c.Cache.Backend)
		}
	}

	if c.Audit.Async && (c.Audit.Workers <= 0 || c.Audit.QueueSize <= 0) {
		return errors.New("audit workers and queue size must be positive when async")
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
