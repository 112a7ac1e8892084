package main

import (
	"github.com/spf13/cobra"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "QuickStats extract-transform-load",
	Long:  "Pulls QuickStats rows for every mapped commodity, normalizes them, and loads typed records plus observations into ag_data.* tables.",
}

func init() {
	rootCmd.AddCommand(etlCmd)
}
