package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/etl"
)

var statusLimit int

var etlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent pipeline runs",
	Long:  "Lists recent ag_data.etl_run entries with their status, row counts, and any error.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := etl.NewRunLog(pool).List(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "etl status")
		}
		if len(entries) == 0 {
			fmt.Println("No pipeline runs recorded.")
			return nil
		}

		fmt.Printf("%-38s %-10s %-22s %10s  %s\n", "RUN", "STATUS", "STARTED", "ROWS", "NOTES")
		for _, e := range entries {
			notes := e.Error
			if notes == "" && e.Summary != nil && e.Summary.CommoditiesFailed > 0 {
				notes = fmt.Sprintf("%d commodities failed", e.Summary.CommoditiesFailed)
			}
			fmt.Printf("%-38s %-10s %-22s %10d  %s\n",
				e.RunID, e.Status, e.StartedAt.Format("2006-01-02 15:04:05"), e.RowsLoaded, notes)
		}
		return nil
	},
}

func init() {
	etlStatusCmd.Flags().IntVar(&statusLimit, "limit", 20, "max runs to show")
	etlCmd.AddCommand(etlStatusCmd)
}
