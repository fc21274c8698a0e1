package normalize

import (
	"strings"
	"time"

	"github.com/monza-lab/auction-ingest/internal/model"
)

// endedGrace is how far past the end time a listing must be before the time
// based inference treats it as concluded. Avoids flapping around clock skew
// in the final seconds of an auction.
const endedGrace = 60 * time.Second

// StatusInput is everything the status machine looks at for one observation.
type StatusInput struct {
	SourceStatus string
	PriceText    string
	CurrentBid   *int
	EndTime      *time.Time
	Now          time.Time
}

var delistPhrases = []string{"withdrawn", "cancelled", "canceled", "removed", "delisted"}

// InferStatus resolves the listing status from a coarse source status string,
// the raw price text, the current bid, and the end time.
//
// The no-signal default (no usable status, end time not yet past, no positive
// bid) is unsold on purpose: presenting a stale unknown as a live auction is
// the worse failure mode, and downstream consumers depend on this default.
func InferStatus(in StatusInput) model.Status {
	switch strings.ToUpper(strings.TrimSpace(in.SourceStatus)) {
	case "ACTIVE":
		return model.StatusActive
	case "SOLD":
		return model.StatusSold
	case "NO_SALE":
		return model.StatusUnsold
	case "ENDED":
		return resolveEnded(in)
	}

	// No usable status string from here down.
	lower := strings.ToLower(in.PriceText)
	for _, p := range delistPhrases {
		if strings.Contains(lower, p) {
			return model.StatusDelisted
		}
	}

	if in.EndTime != nil && in.Now.Sub(*in.EndTime) > endedGrace {
		return resolveEnded(in)
	}

	if positiveBid(in.CurrentBid) {
		return model.StatusActive
	}
	return model.StatusUnsold
}

// resolveEnded decides sold vs unsold for a concluded auction: sold when the
// price text carries a sold indicator or a positive bid exists.
func resolveEnded(in StatusInput) model.Status {
	if hasSoldIndicator(in.PriceText) || positiveBid(in.CurrentBid) {
		return model.StatusSold
	}
	return model.StatusUnsold
}

// hasSoldIndicator catches "Sold for $x" style phrasing while steering clear
// of "unsold" / "no sale" wording that contains the same substring.
func hasSoldIndicator(priceText string) bool {
	s := strings.ToLower(priceText)
	if strings.Contains(s, "unsold") || strings.Contains(s, "not sold") || strings.Contains(s, "no sale") {
		return false
	}
	return strings.Contains(s, "sold") || strings.Contains(s, "winning bid") || strings.Contains(s, "hammer")
}

func positiveBid(bid *int) bool { return bid != nil && *bid > 0 }
