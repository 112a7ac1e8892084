package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/mapper"
)

var fetchRefresh bool
var fetchSync bool

var mapperFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Refresh the commodity reference snapshot",
	Long:  "Downloads the commodity taxonomy for the configured state into the local JSON cache. With --sync the list is also upserted into ag_data.usda_commodity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cache, err := commodityCache()
		if err != nil {
			return err
		}

		refs, err := cache.FetchAll(ctx, cfg.NASS.State, fetchRefresh)
		if err != nil {
			return eris.Wrap(err, "mapper fetch")
		}
		fmt.Printf("Commodity reference: %d entries for %s\n", len(refs), cfg.NASS.State)

		if !fetchSync {
			return nil
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := mapper.NewStore(pool).SyncCommodities(ctx, refs)
		if err != nil {
			return eris.Wrap(err, "mapper fetch sync")
		}
		fmt.Printf("Synced %d commodity rows\n", n)
		return nil
	},
}

func init() {
	mapperFetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "force a refetch even if the snapshot is fresh")
	mapperFetchCmd.Flags().BoolVar(&fetchSync, "sync", false, "also upsert the list into ag_data.usda_commodity")
	mapperCmd.AddCommand(mapperFetchCmd)
}
