package main

import (
	"github.com/spf13/cobra"

	"github.com/monza-lab/auction-ingest/internal/pipeline"
)

func backfillCommand() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Resumable historical scan over an explicit date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, flags, pipeline.ModeBackfill, false)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.dateFrom, "from", "", "start of the sale-date range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.dateTo, "to", "", "end of the sale-date range (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
