// Package redisstore connects to the shared Redis instance backing rate limit
// counters and the cache.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis connection settings
type Config struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"` // -1 keeps the database from the URL
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolTimeout  time.Duration `yaml:"pool_timeout"`

	// OpTimeout bounds each rate limit and cache round trip
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// DefaultConfig returns settings for a local Redis
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379/0",
		DB:           -1,
		MaxRetries:   3,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		OpTimeout:    100 * time.Millisecond,
	}
}

// Options converts the config into go-redis options
func (c Config) Options() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if c.Password != "" {
		opts.Password = c.Password
	}
	if c.DB >= 0 {
		opts.DB = c.DB
	}
	if c.MaxRetries > 0 {
		opts.MaxRetries = c.MaxRetries
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	if c.PoolTimeout > 0 {
		opts.PoolTimeout = c.PoolTimeout
	}
	return opts, nil
}

// Connect creates a client and verifies connectivity
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
