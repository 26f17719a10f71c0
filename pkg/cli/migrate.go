package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/gatehouse/pkg/config"
	"github.com/platinummonkey/gatehouse/pkg/roles"
)

func newMigrateCommand() *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply database migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ExitOnError),
	}

	postgresURL := cmd.Flags.String("postgres-url", "", "Postgres URL (overrides GATEHOUSE_POSTGRES_URL)")
	timeout := cmd.Flags.Duration("timeout", 2*time.Minute, "Migration timeout")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if *postgresURL != "" {
			cfg.Database.URL = *postgresURL
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		logrus.Info("applying migrations")
		if err := roles.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logrus.Info("migrations applied")
		return nil
	}

	return cmd
}

// openDatabase opens a postgres connection pool with the configured limits
// and verifies connectivity.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
