package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/etl"
	"github.com/biocirv/agstats-cli/internal/mapper"
)

var runGroupID string

var etlRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long:  "Extracts QuickStats data for every mapped commodity, transforms it, and loads it. Safe to rerun; duplicates are skipped, not duplicated.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := nassClient()
		if err != nil {
			return err
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		group := uuid.Nil
		if runGroupID != "" {
			group, err = uuid.Parse(runGroupID)
			if err != nil {
				return eris.Wrap(err, "etl run: parse group id")
			}
		}
		lineage := etl.NewLineage(group)

		pipeline := etl.NewPipeline(etl.PipelineConfig{
			Pool:       pool,
			Client:     client,
			Codes:      mapper.NewStore(pool),
			Dataset:    cfg.ETL.DatasetName,
			State:      cfg.NASS.State,
			Year:       cfg.NASS.Year,
			Statistics: cfg.NASS.Statistics,
			AggLevel:   cfg.NASS.AggLevel,
		})

		summary, err := pipeline.Run(ctx, lineage)
		if err != nil {
			return eris.Wrap(err, "etl run")
		}

		printSummary(lineage, summary)
		return nil
	},
}

func printSummary(lineage etl.Lineage, s etl.RunSummary) {
	fmt.Printf("Run %s complete\n", lineage.RunID)
	fmt.Printf("  extracted:     %d rows (%d commodities, %d failed)\n",
		s.Extracted, s.CommoditiesQueried, s.CommoditiesFailed)
	fmt.Printf("  transformed:   %d rows\n", s.Transformed)
	if len(s.Dropped) > 0 {
		var parts []string
		for reason, n := range s.Dropped {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
		}
		fmt.Printf("  dropped:       %s\n", strings.Join(parts, " "))
	}
	fmt.Printf("  records:       %d inserted, %d skipped\n", s.RecordsInserted, s.RecordsSkipped)
	fmt.Printf("  observations:  %d inserted, %d skipped\n", s.ObservationsInserted, s.ObservationsSkipped)
}

func init() {
	etlRunCmd.Flags().StringVar(&runGroupID, "group-id", "", "lineage group id tying related runs together")
	etlCmd.AddCommand(etlRunCmd)
}
