package pipeline

import (
	"fmt"
	"time"
)

// Mode selects the orchestration strategy for one invocation.
type Mode string

const (
	// ModeDaily is the tail-following crawl of currently active and
	// recently ended listings.
	ModeDaily Mode = "daily"
	// ModeBackfill is the bounded, resumable historical scan over an
	// explicit date range.
	ModeBackfill Mode = "backfill"
)

const dateLayout = "2006-01-02"

// RunConfig is the immutable per-invocation configuration.
type RunConfig struct {
	Mode Mode
	Make string

	// EndedWindowDays bounds the ended-listing window in daily mode.
	EndedWindowDays int

	// DateFrom/DateTo (YYYY-MM-DD) bound a backfill. Required in
	// backfill mode, rejected in daily mode.
	DateFrom string
	DateTo   string

	MaxActivePagesPerSource int
	MaxEndedPagesPerSource  int

	// ScrapeDetails fetches the full detail page per candidate instead of
	// relying on discovery-card summaries.
	ScrapeDetails bool

	CheckpointPath string
	DryRun         bool
}

// Validate fails fast on configuration errors, before any network activity.
func (c RunConfig) Validate() error {
	if c.Make == "" {
		return fmt.Errorf("target make is required")
	}
	switch c.Mode {
	case ModeDaily:
		if c.DateFrom != "" || c.DateTo != "" {
			return fmt.Errorf("daily mode does not take a date range")
		}
		if c.EndedWindowDays <= 0 {
			return fmt.Errorf("daily mode requires a positive ended window")
		}
	case ModeBackfill:
		if c.DateFrom == "" || c.DateTo == "" {
			return fmt.Errorf("backfill mode requires an explicit date range")
		}
		from, err := time.Parse(dateLayout, c.DateFrom)
		if err != nil {
			return fmt.Errorf("invalid date-from %q: %w", c.DateFrom, err)
		}
		to, err := time.Parse(dateLayout, c.DateTo)
		if err != nil {
			return fmt.Errorf("invalid date-to %q: %w", c.DateTo, err)
		}
		if to.Before(from) {
			return fmt.Errorf("date range is inverted: %s > %s", c.DateFrom, c.DateTo)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.MaxActivePagesPerSource < 0 || c.MaxEndedPagesPerSource <= 0 {
		return fmt.Errorf("page caps must be positive")
	}
	if c.CheckpointPath == "" && !c.DryRun {
		return fmt.Errorf("checkpoint path is required")
	}
	return nil
}

// window computes the effective ended/backfill date window.
func (c RunConfig) window(now time.Time) (from, to time.Time) {
	if c.Mode == ModeBackfill {
		from, _ = time.Parse(dateLayout, c.DateFrom)
		to, _ = time.Parse(dateLayout, c.DateTo)
		// Inclusive upper bound: the whole dateTo day is in range.
		to = to.Add(24*time.Hour - time.Nanosecond)
		return from, to
	}
	to = now.UTC()
	from = to.AddDate(0, 0, -c.EndedWindowDays)
	return from, to
}
