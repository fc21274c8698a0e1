package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/monza-lab/auction-ingest/internal/model"
)

// MemWriter mirrors PGWriter's semantics in memory. It backs the pipeline
// tests and lets the mock adapter run end-to-end without a database.
type MemWriter struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]int64

	records   map[int64]*model.CanonicalListing
	photos    map[int64][]string
	snapshots map[int64]map[time.Time]int

	// FailCore simulates a core-record write failure for error path tests.
	FailCore bool
}

func NewMemWriter() *MemWriter {
	return &MemWriter{
		byKey:     make(map[string]int64),
		records:   make(map[int64]*model.CanonicalListing),
		photos:    make(map[int64][]string),
		snapshots: make(map[int64]map[time.Time]int),
	}
}

func key(source, sourceID string) string { return source + "\x00" + sourceID }

func (w *MemWriter) UpsertAll(ctx context.Context, rec *model.CanonicalListing, meta model.ScrapeMeta) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.FailCore {
		return Result{}, fmt.Errorf("mem writer: core write unavailable")
	}

	k := key(rec.Source, rec.SourceID)
	id, exists := w.byKey[k]
	if exists {
		if w.records[id].Status.Terminal() && rec.Status == model.StatusActive {
			return Result{ID: id, SkippedTerminal: true}, nil
		}
	} else {
		w.nextID++
		id = w.nextID
		w.byKey[k] = id
	}

	stored := *rec
	if exists {
		prev := w.records[id]
		if stored.FinalPrice == nil {
			stored.FinalPrice = prev.FinalPrice
		}
		if stored.SaleDate == nil {
			stored.SaleDate = prev.SaleDate
		}
	}
	w.records[id] = &stored

	for _, url := range rec.Photos {
		dup := false
		for _, have := range w.photos[id] {
			if have == url {
				dup = true
				break
			}
		}
		if !dup {
			w.photos[id] = append(w.photos[id], url)
		}
	}

	if price := snapshotPrice(rec); price != nil {
		bucket := meta.StartedAt.UTC().Truncate(time.Hour)
		if w.snapshots[id] == nil {
			w.snapshots[id] = make(map[time.Time]int)
		}
		if _, ok := w.snapshots[id][bucket]; !ok {
			w.snapshots[id][bucket] = *price
		}
	}
	return Result{ID: id, Wrote: true}, nil
}

func (w *MemWriter) Close(ctx context.Context) error { return nil }

// Get returns the stored record for a key, or nil.
func (w *MemWriter) Get(source, sourceID string) *model.CanonicalListing {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.byKey[key(source, sourceID)]
	if !ok {
		return nil
	}
	return w.records[id]
}

// Count returns how many distinct core rows exist.
func (w *MemWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// Photos returns the stored photo URLs for a key in first-seen order.
func (w *MemWriter) Photos(source, sourceID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.byKey[key(source, sourceID)]
	if !ok {
		return nil
	}
	return append([]string(nil), w.photos[id]...)
}

// SnapshotCount returns how many price snapshots exist for a key.
func (w *MemWriter) SnapshotCount(source, sourceID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.byKey[key(source, sourceID)]
	if !ok {
		return 0
	}
	return len(w.snapshots[id])
}
