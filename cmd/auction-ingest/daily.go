package main

import (
	"github.com/spf13/cobra"

	"github.com/monza-lab/auction-ingest/internal/pipeline"
)

func dailyCommand() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Scrape active listings and the recently ended tail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, flags, pipeline.ModeDaily, false)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&flags.endedWindowDays, "ended-window-days", 7, "ended-listing window size in days")
	return cmd
}
