package normalize

import (
	"time"

	"github.com/monza-lab/auction-ingest/internal/model"
)

// Fixed completeness weights. They intentionally sum to 100 so a fully
// resolved record scores exactly 100.
const (
	weightYear     = 25
	weightModel    = 15
	weightSaleDate = 25
	weightCountry  = 15
	weightPhotos   = 10
	weightPrice    = 10
)

// QualityScore computes the 0-100 data quality heuristic for a record. The
// score is persisted as a downstream signal; nothing in the pipeline gates
// on it.
func QualityScore(rec *model.CanonicalListing, now time.Time) int {
	score := 0
	if plausibleYear(rec.Year, now) {
		score += weightYear
	}
	if rec.Model != "" {
		score += weightModel
	}
	if rec.SaleDate != nil {
		score += weightSaleDate
	}
	if rec.Country != "" && rec.Country != "Unknown" {
		score += weightCountry
	}
	if len(rec.Photos) > 0 {
		score += weightPhotos
	}
	if (rec.FinalPrice != nil && *rec.FinalPrice > 0) ||
		(rec.CurrentBid != nil && *rec.CurrentBid > 0) {
		score += weightPrice
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
