package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/monza-lab/auction-ingest/internal/adapters"
	"github.com/monza-lab/auction-ingest/internal/config"
	"github.com/monza-lab/auction-ingest/internal/fetch"
	"github.com/monza-lab/auction-ingest/internal/metrics"
	"github.com/monza-lab/auction-ingest/internal/normalize"
	"github.com/monza-lab/auction-ingest/internal/pipeline"
	"github.com/monza-lab/auction-ingest/internal/sink"
)

// runFlags are the per-invocation knobs shared by all subcommands.
type runFlags struct {
	makeName       string
	sources        []string
	maxActivePages int
	maxEndedPages  int
	scrapeDetails  bool
	checkpointPath string
	dryRun         bool

	endedWindowDays int
	dateFrom        string
	dateTo          string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.makeName, "make", "Ferrari", "target vehicle make")
	cmd.Flags().StringSliceVar(&f.sources, "sources", adapters.Sources(), "source tags to scrape")
	cmd.Flags().IntVar(&f.maxActivePages, "max-active-pages", 5, "active discovery page cap per source")
	cmd.Flags().IntVar(&f.maxEndedPages, "max-ended-pages", 10, "ended discovery page cap per source")
	cmd.Flags().BoolVar(&f.scrapeDetails, "details", true, "fetch full detail pages instead of discovery summaries")
	cmd.Flags().StringVar(&f.checkpointPath, "checkpoint", "checkpoint.json", "checkpoint file location")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "skip all writes")
}

func (f *runFlags) runConfig(mode pipeline.Mode) pipeline.RunConfig {
	return pipeline.RunConfig{
		Mode:                    mode,
		Make:                    f.makeName,
		EndedWindowDays:         f.endedWindowDays,
		DateFrom:                f.dateFrom,
		DateTo:                  f.dateTo,
		MaxActivePagesPerSource: f.maxActivePages,
		MaxEndedPagesPerSource:  f.maxEndedPages,
		ScrapeDetails:           f.scrapeDetails,
		CheckpointPath:          f.checkpointPath,
		DryRun:                  f.dryRun,
	}
}

// environment is everything built from Settings before a run starts.
type environment struct {
	cfg     *config.Settings
	log     *slog.Logger
	client  *fetch.Client
	metrics *metrics.Metrics
	sources []adapters.SourceAdapter
	writer  sink.Writer
	csv     *sink.CSVSink
	msrv    *http.Server
}

func buildEnvironment(ctx context.Context, flags *runFlags) (*environment, error) {
	cfg, log, err := commonRun()
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	env := &environment{cfg: cfg, log: log}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		env.msrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := env.msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics listener failed", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
	}
	env.metrics = m

	env.client = fetch.NewClient(fetch.ClientOptions{
		HostInterval:   cfg.HostInterval,
		RequestTimeout: cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
		Metrics:        m,
	})
	retry := fetch.RetryPolicy{Retries: cfg.FetchRetries, BaseDelay: cfg.FetchRetryDelay}

	for _, tag := range flags.sources {
		src, err := adapters.Build(strings.TrimSpace(tag), adapters.Options{
			Client:  env.client,
			Retry:   retry,
			BaseURL: cfg.SourceBaseURLs[tag],
		})
		if err != nil {
			return nil, err
		}
		env.sources = append(env.sources, src)
	}

	switch {
	case flags.dryRun:
		env.writer = sink.DryRun{}
	case cfg.DatabaseURL == "":
		return nil, fmt.Errorf("no database configured; set AUCTION_DATABASE_URL or pass --dry-run")
	default:
		pool, err := sink.OpenPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := sink.EnsureTables(ctx, pool, cfg.Schema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure tables: %w", err)
		}
		env.writer = sink.NewPGWriter(pool, cfg.Schema, log)
	}

	if cfg.CSVPath != "" && !flags.dryRun {
		csv, err := sink.NewCSVSink(cfg.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("open csv sink: %w", err)
		}
		env.csv = csv
	}
	return env, nil
}

func (e *environment) close(ctx context.Context) {
	if err := e.writer.Close(ctx); err != nil {
		e.log.Warn("writer close failed", "err", err)
	}
	if e.msrv != nil {
		_ = e.msrv.Shutdown(ctx)
	}
}

// executeRun wires up the environment, runs the pipeline, and logs a summary.
func executeRun(cmd *cobra.Command, flags *runFlags, mode pipeline.Mode, bulk bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCfg := flags.runConfig(mode)
	if err := runCfg.Validate(); err != nil {
		return err
	}

	env, err := buildEnvironment(ctx, flags)
	if err != nil {
		return err
	}
	defer env.close(context.Background())

	norm := normalize.New(runCfg.Make)
	runner := pipeline.NewRunner(env.sources, norm, env.writer, pipeline.RunnerOptions{
		CSV:     env.csv,
		Client:  env.client,
		Metrics: env.metrics,
		Logger:  env.log,
	})

	var result *pipeline.RunResult
	if bulk {
		result, err = runner.RunBulk(ctx, runCfg)
	} else {
		result, err = runner.Run(ctx, runCfg)
	}
	if err != nil {
		return err
	}

	env.log.Info("run complete",
		"runId", result.RunID,
		"mode", string(result.Mode),
		"duration", result.Duration.Round(time.Millisecond).String(),
		"discovered", result.Totals.Discovered,
		"kept", result.Totals.Kept,
		"written", result.Totals.Written,
		"skippedTerminal", result.Totals.SkippedTerminal,
		"errored", result.Totals.Errored,
		"retried", result.Totals.Retried,
		"errors", len(result.Errors))
	for _, msg := range result.Errors {
		env.log.Warn("run error", "err", msg)
	}
	return nil
}
