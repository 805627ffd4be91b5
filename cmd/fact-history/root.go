package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/fact-history/app"
	"github.com/upb/fact-history/config"
	"github.com/upb/fact-history/internal/observability"
	"go.uber.org/zap"
)

// runtime is the state every subcommand shares once configuration is loaded
type runtime struct {
	cfg             *config.Config
	logger          *zap.Logger
	shutdownTracing observability.ShutdownFunc
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}

	cmd := &cobra.Command{
		Use:   "fact-history",
		Short: "Append-only audit trail of fact revisions",
		Long: `fact-history records every revision a fact goes through (create, update,
supersede, delete) and answers history, lineage and activity queries over it.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rt.close(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand(rt))
	cmd.AddCommand(newMigrateCommand(rt))
	cmd.AddCommand(newPurgeCommand(rt))
	cmd.AddCommand(newEraseCommand(rt))
	cmd.AddCommand(newTokenCommand(rt))

	return cmd
}

func (rt *runtime) load(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	shutdown, err := observability.SetupTracing(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	rt.cfg = cfg
	rt.logger = logger
	rt.shutdownTracing = shutdown
	return nil
}

func (rt *runtime) close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if rt.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rt.shutdownTracing(ctx); err != nil {
			rt.logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
	return nil
}

// dependencies opens storage and wires services for a one-shot command
func (rt *runtime) dependencies(ctx context.Context) (*app.Dependencies, error) {
	deps, err := app.NewDependencies(ctx, rt.cfg, rt.logger)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
