package pipeline

import "time"

// SourceCounts accumulates per-source outcome tallies for one run.
type SourceCounts struct {
	Discovered           int `json:"discovered"`
	Kept                 int `json:"kept"`
	SkippedMissingFields int `json:"skippedMissingFields"`
	SkippedTerminal      int `json:"skippedTerminal"`
	Written              int `json:"written"`
	Errored              int `json:"errored"`
	Retried              int `json:"retried"`
}

func (c *SourceCounts) add(o SourceCounts) {
	c.Discovered += o.Discovered
	c.Kept += o.Kept
	c.SkippedMissingFields += o.SkippedMissingFields
	c.SkippedTerminal += o.SkippedTerminal
	c.Written += o.Written
	c.Errored += o.Errored
	c.Retried += o.Retried
}

// RunResult is the aggregate outcome of a pipeline invocation. Per-listing
// and per-page failures are collected here instead of aborting the run.
type RunResult struct {
	RunID     string                   `json:"runId"`
	Mode      Mode                     `json:"mode"`
	StartedAt time.Time                `json:"startedAt"`
	Duration  time.Duration            `json:"duration"`
	Sources   map[string]*SourceCounts `json:"sources"`
	Totals    SourceCounts             `json:"totals"`
	Errors    []string                 `json:"errors,omitempty"`
}

func newRunResult(runID string, mode Mode, startedAt time.Time) *RunResult {
	return &RunResult{
		RunID:     runID,
		Mode:      mode,
		StartedAt: startedAt,
		Sources:   make(map[string]*SourceCounts),
	}
}

func (r *RunResult) counts(source string) *SourceCounts {
	c, ok := r.Sources[source]
	if !ok {
		c = &SourceCounts{}
		r.Sources[source] = c
	}
	return c
}

func (r *RunResult) finish(now time.Time) {
	r.Duration = now.Sub(r.StartedAt)
	r.Totals = SourceCounts{}
	for _, c := range r.Sources {
		r.Totals.add(*c)
	}
}
