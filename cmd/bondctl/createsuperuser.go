package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/service"
	"github.com/bond-service/internal/storage"
)

type createSuperuserCmd struct {
	username string
	email    string
	password string
}

func (*createSuperuserCmd) Name() string     { return "createsuperuser" }
func (*createSuperuserCmd) Synopsis() string { return "create an administrative account" }
func (*createSuperuserCmd) Usage() string {
	return `createsuperuser -username <name> -password <password> [-email <email>]

  Creates a user that may list, read and modify every account, portfolio and bond.
  The password may also be given in the BOND_SUPERUSER_PASSWORD environment variable.
`
}

func (c *createSuperuserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "username", "", "Username (required)")
	f.StringVar(&c.email, "email", "", "Email address")
	f.StringVar(&c.password, "password", "", "Password (required unless BOND_SUPERUSER_PASSWORD is set)")
}

func (c *createSuperuserCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.password == "" {
		c.password = os.Getenv("BOND_SUPERUSER_PASSWORD")
	}
	if c.username == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -username and -password are required.")
		return subcommands.ExitUsageError
	}

	cfg := configFrom(args)
	db, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to Postgres: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	users := service.NewUserService(storage.NewUserRepository(db), auth.NewPasswordHasher(cfg.Auth.BcryptCost))
	user, err := users.CreateSuperuser(ctx, c.username, c.email, c.password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Superuser %s created (id %s)\n", user.Username, user.ID)
	return subcommands.ExitSuccess
}
