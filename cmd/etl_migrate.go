package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/biocirv/agstats-cli/internal/etl"
)

var etlMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply ag_data schema migrations",
	Long:  "Applies all pending SQL migrations to the ag_data schema in lexicographic order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := etl.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "etl migrate")
		}

		zap.L().Info("all migrations applied successfully")
		return nil
	},
}

func init() {
	etlCmd.AddCommand(etlMigrateCmd)
}
