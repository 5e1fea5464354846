package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/platinummonkey/warden/pkg/session"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/storage/postgres"
)

func newCleanupSessionsCommand(env Env) *Command {
	cmd := &Command{
		Name:        "cleanup-sessions",
		Description: "Delete expired sessions",
		Flags:       flag.NewFlagSet("cleanup-sessions", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(env.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withStores(env, func(ctx context.Context, stores *storage.Stores) error {
			n, err := session.NewStore(stores.Sessions, stores.Users, env.Session, env.Log).CleanupExpiredSessions(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "Removed %d expired sessions\n", n)
			return nil
		})
	}
	return cmd
}

func newMigrateCommand(env Env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Create missing database tables",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(env.Out)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withStores(env, func(ctx context.Context, stores *storage.Stores) error {
			if stores.Postgres == nil {
				fmt.Fprintf(env.Out, "%s storage has no schema\n", stores.Type)
				return nil
			}
			if err := postgres.EnsureSchema(ctx, stores.Postgres.Primary()); err != nil {
				return err
			}
			fmt.Fprintln(env.Out, "Schema is up to date")
			return nil
		})
	}
	return cmd
}
