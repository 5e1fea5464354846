package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/session"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/workflow"
)

// PasswordEnv supplies the password for create-user when -password is omitted
const PasswordEnv = "WARDEN_ADMIN_PASSWORD"

func newCreateUserCommand(env Env) *Command {
	cmd := &Command{
		Name:        "create-user",
		Description: "Create a user account",
		Flags:       flag.NewFlagSet("create-user", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(env.Out)

	email := cmd.Flags.String("email", "", "Email address (required)")
	name := cmd.Flags.String("name", "", "Display name")
	role := cmd.Flags.String("role", string(auth.RoleClientUser), "Role: CLIENT_USER, CLIENT_ADMIN or ANALYST")
	password := cmd.Flags.String("password", "", "Password; defaults to $"+PasswordEnv)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *email == "" {
			return fmt.Errorf("email is required")
		}
		r, err := auth.ParseRole(*role)
		if err != nil {
			return err
		}
		pw := *password
		if pw == "" {
			pw = os.Getenv(PasswordEnv)
		}

		return withStores(env, func(ctx context.Context, stores *storage.Stores) error {
			sessions := session.NewStore(stores.Sessions, stores.Users, env.Session, env.Log)
			svc := workflow.NewAuthService(stores.Users, sessions, workflow.Deps{
				Audit: audit.NewTrail(stores.Audit, env.Log, audit.Config{}),
				Log:   env.Log,
			})

			acct, err := svc.Register(ctx, *email, *name, pw, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "Created user %s (%s, %s)\n", acct.ID, acct.Email, acct.Role)
			return nil
		})
	}
	return cmd
}
