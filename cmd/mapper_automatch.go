package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/mapper"
	"github.com/biocirv/agstats-cli/internal/match"
)

var mapperAutomatchCmd = &cobra.Command{
	Use:   "automatch",
	Short: "Auto-match unmapped resources",
	Long:  "Scores every unmapped resource against the commodity taxonomy. High-confidence matches are approved automatically; the middle band is queued for review.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cache, err := commodityCache()
		if err != nil {
			return err
		}
		refs, err := cache.FetchAll(ctx, cfg.NASS.State, false)
		if err != nil {
			return eris.Wrap(err, "mapper automatch")
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		session, err := mapper.LoadSession(cfg.Cache.Dir)
		if err != nil {
			return err
		}

		m := match.NewMatcher(refs, match.Thresholds{
			Auto:   cfg.Match.AutoThreshold,
			Review: cfg.Match.ReviewThreshold,
		}, cfg.Match.MaxCandidates)

		report, err := mapper.AutoMatch(ctx, mapper.NewStore(pool), m, session)
		if err != nil {
			return eris.Wrap(err, "mapper automatch")
		}

		fmt.Printf("Considered %d resources: %d auto-matched, %d queued for review, %d unmatched\n",
			report.Considered, report.Auto, report.Queued, report.Unmatched)
		if report.Queued > 0 {
			fmt.Println("Run `agstats-cli mapper review` to work the queue.")
		}
		return nil
	},
}

func init() {
	mapperCmd.AddCommand(mapperAutomatchCmd)
}
