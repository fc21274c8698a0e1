package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/monza-lab/auction-ingest/internal/config"
)

const programName = "auction-ingest"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

// commonRun loads settings and configures the process-wide JSON logger.
func commonRun() (*config.Settings, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	logLevel := parseLevel(cfg.LogLevel)
	addSource := false
	if globalFlags.debug {
		logLevel = slog.LevelDebug
		addSource = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Vehicle auction listings ingest",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(dailyCommand())
	rootCmd.AddCommand(backfillCommand())
	rootCmd.AddCommand(bulkCommand())

	if err := rootCmd.Execute(); err != nil {
		// NOTE: we purposely don't display the error, since cobra will have already displayed it
		os.Exit(1)
	}
}
