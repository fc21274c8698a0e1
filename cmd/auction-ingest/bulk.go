package main

import (
	"github.com/spf13/cobra"

	"github.com/monza-lab/auction-ingest/internal/pipeline"
)

func bulkCommand() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Scrape all sources concurrently, without checkpointing",
		Long: "Bulk runs every configured source as its own concurrent task and " +
			"aggregates the results afterwards. The checkpoint file is neither " +
			"read nor written, so an interrupted bulk run starts over.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, flags, pipeline.ModeDaily, true)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&flags.endedWindowDays, "ended-window-days", 7, "ended-listing window size in days")
	return cmd
}
