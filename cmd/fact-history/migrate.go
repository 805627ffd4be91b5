package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the fact history schema",
		Long: `Opens the configured storage engine and applies the fact history schema.
PostgreSQL uses idempotent CREATE statements; SQLite applies any embedded
migrations not yet recorded in schema_migrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := rt.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close(cmd.Context())

			rt.logger.Info("schema up to date", zap.String("driver", rt.cfg.Database.Driver))
			return printJSON(cmd, map[string]string{
				"status": "ok",
				"driver": rt.cfg.Database.Driver,
			})
		},
	}
}
