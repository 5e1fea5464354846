// Package config loads warden configuration from defaults, an optional YAML file,
// and environment variables.
//
// # Sources
//
// Settings are resolved in order, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. The YAML file named by WARDEN_CONFIG_FILE
//  3. WARDEN_* environment variables
//
// # Environment
//
// Server settings:
//
//	WARDEN_HOST="0.0.0.0"
//	WARDEN_PORT="8080"
//	WARDEN_ALLOWED_ORIGINS="https://app.example.com,https://admin.example.com"
//	WARDEN_SECURE_COOKIES="true"
//
// Storage settings:
//
//	WARDEN_STORAGE_TYPE="postgres"  # postgres, memory
//	WARDEN_DATABASE_URL="postgres://localhost/warden"
//	WARDEN_DATABASE_REPLICA_URLS="postgres://replica-1/warden"
//	WARDEN_DATABASE_MAX_CONNS="20"
//
// Sessions, rate limits and cache:
//
//	WARDEN_SESSION_MAX_AGE="24h"
//	WARDEN_SESSION_UPDATE_AGE="1h"
//	WARDEN_RATE_LIMIT_LOGIN_MAX="5"
//	WARDEN_REDIS_URL="redis://localhost:6379/0"
//	WARDEN_CACHE_BACKEND="redis"  # redis, memory
//
// Observability settings:
//
//	WARDEN_LOG_LEVEL="info"  # debug, info, warn, error
//	WARDEN_OTEL_ENABLED="true"
//	WARDEN_OTEL_ENDPOINT="otel-collector:4317"
//
// # YAML
//
//	server:
//	  port: "9000"
//	  allowed_origins: ["https://app.example.com"]
//	session:
//	  max_age: 12h
//	cache:
//	  backend: memory
//	  ttls:
//	    incident: 1m
package config
