package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/httpserver"
	"github.com/vidtube/backend/internal/logging"
)

// Run bootstraps the VidTube backend application.
func Run(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the vidtube command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidtube",
		Short:         "VidTube video platform backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand())
	return root
}

// loadRuntime reads the configuration and builds the process logger.
func loadRuntime() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if migrate && cfg.StoreDriver == "postgres" {
				if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
					return err
				}
				logger.Info("migrations applied")
			}
			if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
				return fmt.Errorf("create upload dir: %w", err)
			}

			deps, cleanup, err := buildDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.AppPort))
			if err != nil {
				return fmt.Errorf("listen on port %d: %w", cfg.AppPort, err)
			}
			srv := httpserver.New(cfg.AppPort, handlers.NewRouter(deps), logger)
			logger.Info("starting http server", "port", cfg.AppPort, "store", cfg.StoreDriver)
			return srv.Run(ctx, l)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("applied %d migration(s)\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return cmd.Parent().RunE(cmd, nil)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
					if err := m.Down(ctx); err != nil {
						return err
					}
					cmd.Println("rolled back one migration")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
					statuses, err := m.Status(ctx)
					if err != nil {
						return err
					}
					for _, s := range statuses {
						mark := " "
						if s.Applied {
							mark = "x"
						}
						cmd.Printf("[%s] %d %s\n", mark, s.Version, s.Name)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != "postgres" {
		return fmt.Errorf("migrations need the postgres store driver, got %q", cfg.StoreDriver)
	}
	m, err := db.NewMigrator(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(cmd.Context(), m)
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <name>",
		Short: "Load <seed_dir>/<name>_seed.json into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			store, pool, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			counts, err := Seed(cmd.Context(), store, seedPath(cfg.SeedDir, args[0]))
			if err != nil {
				return err
			}
			for collection, n := range counts {
				logger.Info("seeded collection", "collection", collection, "documents", n)
			}
			cmd.Printf("applied seed %s\n", args[0])
			return nil
		},
	}
}
