package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"go-identity/internal/app"
	"go-identity/internal/config"
	"go-identity/internal/logger"
)

// NewRootCmd builds the CLI. Without a subcommand it serves HTTP.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "go-identity",
		Short:         "Identity and access service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCreateUserCmd())
	cmd.AddCommand(newPruneCmd())
	cmd.AddCommand(newOrgCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		logger.LogError(log, "failed to initialize application", err)
		return err
	}

	if err := application.Run(ctx); err != nil {
		logger.LogError(log, "application run failed", err)
		return err
	}
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the bootstrap database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreDriverPostgres {
				return oops.Code("CONFIG_INVALID").Errorf("migrate requires STORE_DRIVER=%s", config.StoreDriverPostgres)
			}

			stores, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			stores.Close()

			cmd.Println("Schema is up to date")
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired revocation entries and reset tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			stores, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			services, closeNotifier, err := app.NewServices(cfg, stores, log)
			if err != nil {
				return err
			}
			defer closeNotifier()

			revocations, resets, err := services.Pruner.PruneOnce(cmd.Context())
			if err != nil {
				return oops.Code("PRUNE_FAILED").Wrap(err)
			}

			cmd.Printf("Pruned %d revocation entries and %d reset tokens\n", revocations, resets)
			return nil
		},
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)
	return cfg, log, nil
}

func openStores(ctx context.Context, cfg *config.Config) (*app.Stores, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.StoreDriver).Wrap(err)
	}
	return stores, nil
}

func lookupEnv(key string) string {
	v, _ := os.LookupEnv(key)
	return v
}
