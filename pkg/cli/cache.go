package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/platinummonkey/warden/pkg/cache"
)

func newFlushCacheCommand(env Env) *Command {
	cmd := &Command{
		Name:        "flush-cache",
		Description: "Delete cached incidents, lists and tag sets from Redis",
		Flags:       flag.NewFlagSet("flush-cache", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(env.Out)
	pattern := cmd.Flags.String("pattern", "", "Only delete keys matching this glob (default: every cache key)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if env.OpenRedis == nil {
			return errors.New("redis is not configured")
		}

		ctx := context.Background()
		client, err := env.OpenRedis(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		patterns := cache.KeyPatterns
		if *pattern != "" {
			patterns = []string{*pattern}
		}

		backend := cache.NewRedisBackend(client, 0)
		var total int64
		for _, p := range patterns {
			n, err := backend.DeletePattern(ctx, p)
			total += n
			if err != nil {
				return err
			}
		}
		env.Log.WithField("keys", total).Info("cache flushed")
		fmt.Fprintf(env.Out, "Deleted %d cache keys\n", total)
		return nil
	}
	return cmd
}
