package main

import (
	"context"

	"qms/walkin-service/internal/config"

	"github.com/golang-migrate/migrate/v4"
	migratePsql "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type migrateCommand struct {
	logger *logrus.Logger
}

func (cmd migrateCommand) command(ctx context.Context, cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "apply or roll back database migrations",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(_ *cobra.Command, args []string) error {
			return cmd.run(ctx, cfg, args[0])
		},
	}
}

func (cmd migrateCommand) run(ctx context.Context, cfg config.Config, direction string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate: DB_DSN is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "migrate: db connect")
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratePsql.WithInstance(db, &migratePsql.Config{})
	if err != nil {
		return errors.Wrap(err, "migrate: postgres driver")
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsDir, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrations instance")
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return errors.Errorf("migration command : %s is not supported", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrapf(err, "migrate %s", direction)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return errors.Wrap(verr, "migrate: read version")
	}
	cmd.logger.WithFields(logrus.Fields{"direction": direction, "version": version, "dirty": dirty}).Info("migrations applied")
	return nil
}
