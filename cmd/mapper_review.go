package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/mapper"
)

var mapperReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review queued matches interactively",
	Long:  "Walks the pending review queue one resource at a time. Progress is saved after every decision; quitting leaves the remainder for the next session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := mapper.LoadSession(cfg.Cache.Dir)
		if err != nil {
			return err
		}

		if _, err := mapper.RunReview(session, os.Stdin, os.Stdout); err != nil {
			return eris.Wrap(err, "mapper review")
		}
		return nil
	},
}

func init() {
	mapperCmd.AddCommand(mapperReviewCmd)
}
