package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
	"github.com/yanqian/persian-faqbot/internal/infra/config"
	"github.com/yanqian/persian-faqbot/internal/infra/database"
	"github.com/yanqian/persian-faqbot/internal/infra/faqfile"
	"github.com/yanqian/persian-faqbot/pkg/logger"
)

// catalogTools is what the offline catalog commands need.
type catalogTools struct {
	Store  faq.Store
	Seeder *faqfile.Seeder
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "faqbot",
		Short:         "Persian FAQ chatbot backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd(), reindexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadRuntime() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			app, cleanup, err := initializeApp(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to wire application: %w", err)
			}
			defer cleanup()
			return app.Run(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			switch cfg.Storage.Driver {
			case config.DriverPostgres:
				return database.MigratePostgres(cfg.Storage.Postgres.DSN, log)
			case config.DriverSQLite:
				db, err := database.OpenSQLite(cmd.Context(), cfg.Storage.SQLite.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				return database.MigrateSQLite(db, log)
			default:
				log.Info("memory storage has no migrations")
				return nil
			}
		},
	}
}

func seedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert FAQ entries from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Seed.Path
			}
			tools, cleanup, err := initializeCatalog(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()
			result, err := tools.Seeder.Apply(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d entries, %d failed\n", result.Applied, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d entries failed to seed", result.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "seed file (defaults to seed.path)")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Recompute every FAQ fingerprint with the configured embedder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			tools, cleanup, err := initializeCatalog(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()
			count, err := tools.Store.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d entries\n", count)
			return nil
		},
	}
}
