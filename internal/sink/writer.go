// Package sink persists canonical listings into the multi-table store. The
// store supports only per-table upserts, so the writer favors availability of
// the core record over all-or-nothing consistency across facets: a secondary
// facet failure never rolls back the core row.
package sink

import (
	"context"

	"github.com/monza-lab/auction-ingest/internal/model"
)

// Result reports what one UpsertAll did.
type Result struct {
	// ID is the store-assigned row identifier for the core record.
	ID int64
	// Wrote is false for dry runs and guard skips.
	Wrote bool
	// SkippedTerminal is set when the terminal-status guard rejected a
	// stale active observation for a concluded auction.
	SkippedTerminal bool
	// FacetErrors carries secondary-facet failures that were logged and
	// swallowed. The core record is the source of truth; the caller only
	// counts these.
	FacetErrors []string
}

// Writer idempotently upserts one canonical record's facets. Repeated writes
// for the same (source, sourceId) converge onto one row.
type Writer interface {
	UpsertAll(ctx context.Context, rec *model.CanonicalListing, meta model.ScrapeMeta) (Result, error)
	Close(ctx context.Context) error
}

// DryRun is a Writer that performs no I/O and reports wrote=false.
type DryRun struct{}

func (DryRun) UpsertAll(ctx context.Context, rec *model.CanonicalListing, meta model.ScrapeMeta) (Result, error) {
	return Result{Wrote: false}, nil
}

func (DryRun) Close(ctx context.Context) error { return nil }

// snapshotPrice picks whichever of final price or current bid is
// authoritative for the listing's current status. Nil when the record has no
// resolvable amount.
func snapshotPrice(rec *model.CanonicalListing) *int {
	if rec.Status.Terminal() && rec.FinalPrice != nil && *rec.FinalPrice > 0 {
		return rec.FinalPrice
	}
	if rec.CurrentBid != nil && *rec.CurrentBid > 0 {
		return rec.CurrentBid
	}
	if rec.FinalPrice != nil && *rec.FinalPrice > 0 {
		return rec.FinalPrice
	}
	return nil
}
