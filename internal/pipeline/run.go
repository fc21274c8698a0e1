// Package pipeline orchestrates one ingest invocation: per-source discovery,
// population filtering, normalization, and persistence, with the checkpoint
// flushed after every source so a crash loses at most one source's progress.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monza-lab/auction-ingest/internal/adapters"
	"github.com/monza-lab/auction-ingest/internal/checkpoint"
	"github.com/monza-lab/auction-ingest/internal/fetch"
	"github.com/monza-lab/auction-ingest/internal/identity"
	"github.com/monza-lab/auction-ingest/internal/metrics"
	"github.com/monza-lab/auction-ingest/internal/model"
	"github.com/monza-lab/auction-ingest/internal/normalize"
	"github.com/monza-lab/auction-ingest/internal/sink"
)

// PageProgress is invoked after each fully processed discovery page. The
// checkpointed path uses it to flush the backfill cursor; other callers may
// use it for logging only.
type PageProgress func(source string, page int)

// Runner wires the pipeline stages together. Sources are scraped one at a
// time in the order given; within a source, pages ascend and candidates are
// processed in discovery order so the terminal-status guard sees the first
// observation of a listing first.
type Runner struct {
	sources []adapters.SourceAdapter
	norm    *normalize.Normalizer
	writer  sink.Writer
	csv     *sink.CSVSink
	client  *fetch.Client
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// RunnerOptions carries the optional collaborators; nil fields are valid.
type RunnerOptions struct {
	CSV     *sink.CSVSink
	Client  *fetch.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

func NewRunner(sources []adapters.SourceAdapter, norm *normalize.Normalizer, writer sink.Writer, opts RunnerOptions) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Runner{
		sources: sources,
		norm:    norm,
		writer:  writer,
		csv:     opts.CSV,
		client:  opts.Client,
		metrics: opts.Metrics,
		log:     log,
		now:     now,
	}
}

// Run executes one checkpointed invocation. Per-source errors are collected
// into the result; only configuration errors and context cancellation abort
// the run.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cp := checkpoint.Load(cfg.CheckpointPath)
	startedAt := r.now().UTC()
	meta := model.ScrapeMeta{RunID: uuid.NewString(), StartedAt: startedAt}
	result := newRunResult(meta.RunID, cfg.Mode, startedAt)

	saveCheckpoint := func() {
		if cfg.DryRun {
			return
		}
		if err := checkpoint.Save(cfg.CheckpointPath, cp); err != nil {
			r.log.Error("checkpoint save failed", "path", cfg.CheckpointPath, "err", err)
			result.Errors = append(result.Errors, fmt.Sprintf("checkpoint: %v", err))
		}
	}

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		counts := result.counts(src.Name())
		retriesBefore := r.clientRetries()

		onPage := func(source string, page int) {
			if cfg.Mode == ModeBackfill {
				cp.AdvanceBackfill(source, cfg.DateFrom, cfg.DateTo, page)
				saveCheckpoint()
			}
			r.log.Debug("page done", "source", source, "page", page)
		}

		err := r.runSource(ctx, cfg, cp, src, meta, counts, result, onPage)
		if err != nil {
			counts.Errored++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", src.Name(), err))
			r.log.Error("source failed", "source", src.Name(), "err", err)
		}
		if cfg.Mode == ModeDaily {
			cp.AdvanceDaily(src.Name(), startedAt)
		}
		counts.Retried += int(r.clientRetries() - retriesBefore)
		saveCheckpoint()
		r.log.Info("source done",
			"source", src.Name(),
			"discovered", counts.Discovered,
			"kept", counts.Kept,
			"written", counts.Written,
			"skippedTerminal", counts.SkippedTerminal,
			"errored", counts.Errored)
	}

	result.finish(r.now().UTC())
	return result, nil
}

// RunBulk scrapes every source concurrently. The checkpoint is neither read
// nor written, so bulk runs are not resumable; retry attribution is
// aggregate-only.
func (r *Runner) RunBulk(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	startedAt := r.now().UTC()
	meta := model.ScrapeMeta{RunID: uuid.NewString(), StartedAt: startedAt}
	result := newRunResult(meta.RunID, cfg.Mode, startedAt)
	retriesBefore := r.clientRetries()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, src := range r.sources {
		counts := result.counts(src.Name())
		wg.Add(1)
		go func(src adapters.SourceAdapter, counts *SourceCounts) {
			defer wg.Done()
			local := &SourceCounts{}
			sub := newRunResult(meta.RunID, cfg.Mode, startedAt)
			err := r.runSource(ctx, cfg, checkpoint.New(), src, meta, local, sub, func(string, int) {})
			mu.Lock()
			defer mu.Unlock()
			*counts = *local
			result.Errors = append(result.Errors, sub.Errors...)
			if err != nil {
				counts.Errored++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", src.Name(), err))
			}
		}(src, counts)
	}
	wg.Wait()

	result.finish(r.now().UTC())
	result.Totals.Retried = int(r.clientRetries() - retriesBefore)
	return result, nil
}

func (r *Runner) clientRetries() int64 {
	if r.client == nil {
		return 0
	}
	return r.client.Retries()
}

// runSource executes both discovery phases for one source. The returned error
// is the source-fatal one, if any; per-page and per-listing failures are
// tallied into counts and result.Errors.
func (r *Runner) runSource(ctx context.Context, cfg RunConfig, cp *checkpoint.Checkpoint, src adapters.SourceAdapter, meta model.ScrapeMeta, counts *SourceCounts, result *RunResult, onPage PageProgress) error {
	windowFrom, windowTo := cfg.window(meta.StartedAt)

	if cfg.Mode == ModeDaily && cfg.MaxActivePagesPerSource > 0 {
		err := r.discoverPhase(ctx, src, src.DiscoverActive, 1, cfg.MaxActivePagesPerSource, cfg, windowFrom, windowTo, meta, counts, result, onPage)
		if err != nil {
			return err
		}
	}

	startPage := 1
	if cfg.Mode == ModeBackfill {
		startPage = cp.BackfillResumePage(src.Name(), cfg.DateFrom, cfg.DateTo)
	}
	lastPage := startPage + cfg.MaxEndedPagesPerSource - 1
	return r.discoverPhase(ctx, src, src.DiscoverEnded, startPage, lastPage, cfg, windowFrom, windowTo, meta, counts, result, onPage)
}

type discoverFn func(ctx context.Context, page int, query string) ([]adapters.Candidate, error)

// discoverPhase pages through one discovery feed until exhaustion or the page
// cap, processing each page's candidates in order and reporting progress
// after each page.
func (r *Runner) discoverPhase(ctx context.Context, src adapters.SourceAdapter, discover discoverFn, firstPage, lastPage int, cfg RunConfig, windowFrom, windowTo time.Time, meta model.ScrapeMeta, counts *SourceCounts, result *RunResult, onPage PageProgress) error {
	for page := firstPage; page <= lastPage; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cands, err := discover(ctx, page, r.norm.TargetMake())
		if err != nil {
			// A broken discovery page ends this phase but not the run.
			counts.Errored++
			result.Errors = append(result.Errors, fmt.Sprintf("%s page %d: %v", src.Name(), page, err))
			r.log.Warn("discovery page failed", "source", src.Name(), "page", page, "err", err)
			return nil
		}
		if len(cands) == 0 {
			return nil
		}
		for _, cand := range cands {
			r.processCandidate(ctx, cfg, src, cand, windowFrom, windowTo, meta, counts, result)
		}
		onPage(src.Name(), page)
	}
	return nil
}

func (r *Runner) processCandidate(ctx context.Context, cfg RunConfig, src adapters.SourceAdapter, cand adapters.Candidate, windowFrom, windowTo time.Time, meta model.ScrapeMeta, counts *SourceCounts, result *RunResult) {
	counts.Discovered++
	canonURL := identity.Canonicalize(cand.URL)

	raw, err := r.resolveFields(ctx, cfg, src, cand, canonURL)
	if err != nil {
		counts.Errored++
		result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", src.Name(), canonURL, err))
		r.log.Warn("fetch failed", "source", src.Name(), "url", canonURL, "err", err)
		r.recordListing(src.Name(), "error")
		return
	}

	if !r.norm.InPopulation(raw.Make, raw.Title) {
		r.recordListing(src.Name(), "filtered")
		return
	}
	counts.Kept++

	explicitID := cand.ExplicitID
	if raw.ExplicitID != "" {
		explicitID = raw.ExplicitID
	}
	sourceID := identity.DeriveID(src.Name(), explicitID, canonURL)

	rec := r.norm.Normalize(src.Name(), sourceID, canonURL, raw)
	if rec == nil {
		counts.SkippedMissingFields++
		r.recordListing(src.Name(), "missing_fields")
		return
	}

	if !r.accept(cfg.Mode, rec, windowFrom, windowTo) {
		r.recordListing(src.Name(), "out_of_scope")
		return
	}

	res, err := r.writer.UpsertAll(ctx, rec, meta)
	for _, fe := range res.FacetErrors {
		result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %s", src.Name(), sourceID, fe))
	}
	if err != nil {
		counts.Errored++
		result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", src.Name(), sourceID, err))
		r.log.Warn("write failed", "source", src.Name(), "sourceId", sourceID, "err", err)
		r.recordListing(src.Name(), "error")
		return
	}
	if res.SkippedTerminal {
		counts.SkippedTerminal++
		r.recordListing(src.Name(), "skipped_terminal")
		return
	}
	if res.Wrote {
		counts.Written++
		r.recordListing(src.Name(), "written")
		if r.csv != nil {
			if err := r.csv.Append(rec, meta); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("csv %s: %v", sourceID, err))
			}
		}
	}
}

// resolveFields picks the field source for a candidate: the full detail page
// when configured, else the discovery-card summary, else the summary fetch.
func (r *Runner) resolveFields(ctx context.Context, cfg RunConfig, src adapters.SourceAdapter, cand adapters.Candidate, canonURL string) (adapters.RawFields, error) {
	if cfg.ScrapeDetails {
		return src.FetchDetail(ctx, canonURL)
	}
	if cand.Summary != nil {
		return *cand.Summary, nil
	}
	return src.FetchSummary(ctx, canonURL)
}

// accept applies the mode partition: daily owns active listings, backfill
// owns concluded ones whose sale date falls inside the window.
func (r *Runner) accept(mode Mode, rec *model.CanonicalListing, windowFrom, windowTo time.Time) bool {
	if mode == ModeDaily {
		return rec.Status == model.StatusActive
	}
	if rec.Status == model.StatusActive {
		return false
	}
	if rec.SaleDate == nil {
		return false
	}
	d := rec.SaleDate.UTC()
	return !d.Before(windowFrom) && !d.After(windowTo)
}

func (r *Runner) recordListing(source, outcome string) {
	r.metrics.RecordListing(source, outcome)
}
