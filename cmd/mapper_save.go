package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/mapper"
)

var saveKeep bool

var mapperSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist approved mappings to Postgres",
	Long:  "Writes the approved match list into ag_data.resource_usda_commodity_map. Already-mapped pairs are skipped, so rerunning is safe.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		session, err := mapper.LoadSession(cfg.Cache.Dir)
		if err != nil {
			return err
		}
		if len(session.Approved) == 0 {
			fmt.Println("No approved matches to save.")
			return nil
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		result, err := mapper.NewSaver(pool).Save(ctx, session.Approved)
		if err != nil {
			return eris.Wrap(err, "mapper save")
		}
		fmt.Printf("Saved %d mappings, skipped %d already present\n", result.Saved, result.Skipped)

		if !saveKeep {
			if err := session.ClearApproved(); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	mapperSaveCmd.Flags().BoolVar(&saveKeep, "keep", false, "leave approved_matches.json in place after saving")
	mapperCmd.AddCommand(mapperSaveCmd)
}
