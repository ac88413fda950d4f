// helpdesk-admin runs maintenance tasks against the configured document
// store. It reads the same environment as the API server.
//
//	helpdesk-admin migrate [--dir migrations]
//	helpdesk-admin counter [--key tickets]
//	helpdesk-admin create-user --name N --email E --role R [--password P]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/observability"
	"github.com/tdhs/helpdesk-service/internal/persistence"
	"github.com/tdhs/helpdesk-service/internal/repository"
	"github.com/tdhs/helpdesk-service/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, cfg, logger, args[1:])
	case "counter":
		return runCounter(ctx, cfg, logger, args[1:])
	case "create-user":
		return runCreateUser(ctx, cfg, logger, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	dir := flagSet.String("dir", cfg.Postgres.MigrationsDir, "directory of .sql migration files")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if cfg.Store.Backend != config.StoreBackendPostgres {
		return fmt.Errorf("migrate needs STORE_BACKEND=%s, got %q", config.StoreBackendPostgres, cfg.Store.Backend)
	}

	// OpenStore would apply migrations itself; run them explicitly instead.
	cfg.Postgres.RunMigrations = false
	backend, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()
	return persistence.RunMigrations(ctx, backend.Postgres.PoolHandle(), *dir, logger)
}

func runCounter(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	flagSet := pflag.NewFlagSet("counter", pflag.ContinueOnError)
	key := flagSet.String("key", cfg.Tickets.CounterKey, "counter document id")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	backend, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	count, err := repository.NewCounterRepository(backend.Store).Peek(ctx, *key)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d issued, next %s\n", *key, count, service.FormatTicketNumber(cfg.Tickets.Prefix, count+1))
	return nil
}

func runCreateUser(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	var input service.CreateStaffInput
	var role string
	flagSet := pflag.NewFlagSet("create-user", pflag.ContinueOnError)
	flagSet.StringVar(&input.ID, "id", "", "document id (generated when empty)")
	flagSet.StringVar(&input.UID, "uid", "", "identity provider uid")
	flagSet.StringVar(&input.Name, "name", "", "display name")
	flagSet.StringVar(&input.Email, "email", "", "sign-in email")
	flagSet.StringVar(&role, "role", string(domain.RoleTechnician), "Admin, Supervisor, Technician or \"Help Desk\"")
	flagSet.StringVar(&input.Password, "password", "", "local password (omit for firebase accounts)")
	flagSet.StringVar(&input.PersalNumber, "persal", "", "persal number")
	flagSet.StringVar(&input.PhoneNumber, "phone", "", "phone number")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	input.Role = domain.Role(role)
	if input.Password == "" && input.UID == "" {
		return errors.New("one of --password or --uid is required")
	}

	backend, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	authService := service.NewAuthService(*cfg, repository.NewUserRepository(backend.Store))
	user, err := authService.CreateStaffUser(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s) as %s\n", user.ID, user.Email, user.Role)
	return nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: helpdesk-admin <command> [flags]

Commands:
  migrate       apply SQL migrations to the postgres document table
  counter       show how many ticket numbers have been issued
  create-user   add a staff account
`)
}
