// Command warden-admin runs operator tasks against warden storage and cache.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/warden/pkg/cli"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/storage/redisstore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)

	root := cli.NewRootCommand(cli.Env{
		Open: func(ctx context.Context) (*storage.Stores, error) {
			return storage.Open(ctx, cfg.Storage, log)
		},
		OpenRedis: func(ctx context.Context) (*redis.Client, error) {
			return redisstore.Connect(ctx, cfg.Redis)
		},
		Session: cfg.Session.Config,
		Log:     log,
		Out:     os.Stdout,
	})

	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
