package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/etl"
	"github.com/biocirv/agstats-cli/internal/mapper"
	"github.com/biocirv/agstats-cli/internal/match"
)

var runAllSkipReview bool

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Fetch, match, review, save, and run the pipeline",
	Long:  "Composite workflow: refresh the commodity reference, auto-match, review the queue interactively, persist mappings, then run extract-transform-load. Each stage is the same code as its standalone subcommand.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cache, err := commodityCache()
		if err != nil {
			return err
		}
		refs, err := cache.FetchAll(ctx, cfg.NASS.State, false)
		if err != nil {
			return eris.Wrap(err, "run-all: fetch")
		}
		fmt.Printf("Commodity reference: %d entries\n", len(refs))

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := mapper.NewStore(pool)
		if _, err := store.SyncCommodities(ctx, refs); err != nil {
			return eris.Wrap(err, "run-all: sync commodities")
		}

		session, err := mapper.LoadSession(cfg.Cache.Dir)
		if err != nil {
			return err
		}

		m := match.NewMatcher(refs, match.Thresholds{
			Auto:   cfg.Match.AutoThreshold,
			Review: cfg.Match.ReviewThreshold,
		}, cfg.Match.MaxCandidates)

		report, err := mapper.AutoMatch(ctx, store, m, session)
		if err != nil {
			return eris.Wrap(err, "run-all: automatch")
		}
		fmt.Printf("Auto-match: %d auto, %d queued, %d unmatched\n",
			report.Auto, report.Queued, report.Unmatched)

		if !session.Resolved() && !runAllSkipReview {
			if _, err := mapper.RunReview(session, os.Stdin, os.Stdout); err != nil {
				return eris.Wrap(err, "run-all: review")
			}
		}

		if len(session.Approved) > 0 {
			result, err := mapper.NewSaver(pool).Save(ctx, session.Approved)
			if err != nil {
				return eris.Wrap(err, "run-all: save")
			}
			fmt.Printf("Saved %d mappings, skipped %d\n", result.Saved, result.Skipped)
			if err := session.ClearApproved(); err != nil {
				return err
			}
		}

		client, err := nassClient()
		if err != nil {
			return err
		}
		lineage := etl.NewLineage(uuid.Nil)
		pipeline := etl.NewPipeline(etl.PipelineConfig{
			Pool:       pool,
			Client:     client,
			Codes:      store,
			Dataset:    cfg.ETL.DatasetName,
			State:      cfg.NASS.State,
			Year:       cfg.NASS.Year,
			Statistics: cfg.NASS.Statistics,
			AggLevel:   cfg.NASS.AggLevel,
		})

		summary, err := pipeline.Run(ctx, lineage)
		if err != nil {
			return eris.Wrap(err, "run-all: pipeline")
		}
		printSummary(lineage, summary)
		return nil
	},
}

func init() {
	runAllCmd.Flags().BoolVar(&runAllSkipReview, "skip-review", false, "skip the interactive review stage")
	rootCmd.AddCommand(runAllCmd)
}
