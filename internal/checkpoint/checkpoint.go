// Package checkpoint persists per-source crawl progress so a crashed run
// loses at most one source's work. One JSON file per deployment, written
// after every source, last write wins.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is the checkpoint schema version. A file with any other version is
// treated as absent.
const Version = 1

// BackfillCursor tracks a bounded historical scan over an explicit date
// range. Pages already processed are never revisited on resume.
type BackfillCursor struct {
	DateFrom          string `json:"dateFrom"`
	DateTo            string `json:"dateTo"`
	LastProcessedPage int    `json:"lastProcessedPage,omitempty"`
}

// SourceState is the cursor for one source, daily or backfill.
type SourceState struct {
	LastDailyRunAt *time.Time      `json:"lastDailyRunAt,omitempty"`
	Backfill       *BackfillCursor `json:"backfill,omitempty"`
}

type Checkpoint struct {
	Version   int                     `json:"version"`
	UpdatedAt time.Time               `json:"updatedAt"`
	Sources   map[string]*SourceState `json:"sources"`
}

// New returns a fresh "never run" checkpoint.
func New() *Checkpoint {
	return &Checkpoint{
		Version: Version,
		Sources: make(map[string]*SourceState),
	}
}

// Load reads the checkpoint at path. A missing file, unreadable JSON, or a
// wrong schema version all yield a fresh checkpoint; Load never fails.
func Load(path string) *Checkpoint {
	data, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return New()
	}
	if cp.Version != Version {
		return New()
	}
	if cp.Sources == nil {
		cp.Sources = make(map[string]*SourceState)
	}
	return &cp
}

// Save writes the full checkpoint atomically (temp file + rename), creating
// parent directories as needed and stamping UpdatedAt.
func Save(path string, cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

func (c *Checkpoint) source(tag string) *SourceState {
	st, ok := c.Sources[tag]
	if !ok {
		st = &SourceState{}
		c.Sources[tag] = st
	}
	return st
}

// AdvanceDaily records a completed daily pass for source. Backfill state is
// untouched.
func (c *Checkpoint) AdvanceDaily(source string, at time.Time) {
	u := at.UTC()
	c.source(source).LastDailyRunAt = &u
}

// AdvanceBackfill merges a backfill cursor update into the source's existing
// cursor, preserving fields not supplied: empty dates keep the stored range
// and a negative page keeps the stored page.
func (c *Checkpoint) AdvanceBackfill(source, dateFrom, dateTo string, lastProcessedPage int) {
	st := c.source(source)
	if st.Backfill == nil {
		st.Backfill = &BackfillCursor{}
	}
	if dateFrom != "" {
		st.Backfill.DateFrom = dateFrom
	}
	if dateTo != "" {
		st.Backfill.DateTo = dateTo
	}
	if lastProcessedPage >= 0 {
		st.Backfill.LastProcessedPage = lastProcessedPage
	}
}

// BackfillResumePage returns the page a backfill for the given range should
// start from: lastProcessedPage+1 when a cursor exists for the same range,
// else page 1.
func (c *Checkpoint) BackfillResumePage(source, dateFrom, dateTo string) int {
	st, ok := c.Sources[source]
	if !ok || st.Backfill == nil {
		return 1
	}
	b := st.Backfill
	if b.DateFrom != dateFrom || b.DateTo != dateTo {
		return 1
	}
	return b.LastProcessedPage + 1
}
