package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/convopilot/config"
	"github.com/yoockh/convopilot/internal/logger"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var source, dsn string

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply or roll back the database schema",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&source, "source", "", "migration source URL (default MIGRATIONS_PATH)")
	rootCmd.PersistentFlags().StringVar(&dsn, "database", "", "postgres URL (default POSTGRES_URI)")

	open := func() (*migrate.Migrate, *logrus.Logger, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		log := logger.New(cfg.LogLevel, cfg.LogFormat)
		if source == "" {
			source = cfg.MigrationsPath
		}
		if dsn == "" {
			dsn = cfg.PostgresURI
		}
		m, err := migrate.New(source, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
		return m, log, nil
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, log, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				return report(log, "up", m.Up())
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the given number of migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				m, log, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				return report(log, "down", m.Steps(-steps))
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, log, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					log.Info("no migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				log.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema version")
				return nil
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("version must be an integer, got %q", args[0])
				}
				m, log, err := open()
				if err != nil {
					return err
				}
				defer m.Close()
				return report(log, "force", m.Force(v))
			},
		},
	)
	return rootCmd
}

func report(log logrus.FieldLogger, action string, err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.WithField("action", action).Info("database migration: no changes")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	log.WithField("action", action).Info("database migration: success")
	return nil
}
