package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/warden/pkg/session"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/sirupsen/logrus"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Env is what commands need from the process: ways to open storage and Redis,
// the session settings, a logger and somewhere to print results.
type Env struct {
	Open      func(ctx context.Context) (*storage.Stores, error)
	OpenRedis func(ctx context.Context) (*redis.Client, error)
	Session   session.Config
	Log       logrus.FieldLogger
	Out       io.Writer
}

// NewRootCommand creates the root command
func NewRootCommand(env Env) *Command {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Log == nil {
		env.Log = logrus.StandardLogger()
	}

	root := &Command{
		Name:        "warden-admin",
		Description: "Warden administration",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("warden-admin", flag.ContinueOnError),
	}
	root.Flags.SetOutput(env.Out)

	for _, cmd := range []*Command{
		newCreateUserCommand(env),
		newCleanupSessionsCommand(env),
		newMigrateCommand(env),
		newFlushCacheCommand(env),
	} {
		root.Subcommands[cmd.Name] = cmd
	}
	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	if strings.EqualFold(args[0], "-h") || strings.EqualFold(args[0], "--help") {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.Flags.Output()
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-18s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// withStores opens storage for the duration of fn
func withStores(env Env, fn func(ctx context.Context, stores *storage.Stores) error) error {
	ctx := context.Background()
	stores, err := env.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer stores.Close()
	return fn(ctx, stores)
}
