// Package adapters contains the per-marketplace source connectors. Adapters
// are deliberately dumb: they return whatever fields a page happens to carry
// and never fail on a missing field. Transport failures are the only errors
// they surface, already routed through the rate-limited fetcher's retry
// policy. All validation and defaulting happens in the normalizer.
package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/monza-lab/auction-ingest/internal/fetch"
)

// RawFields is the best-effort intermediate structure every adapter produces.
// Any subset of fields may be present; zero values mean "not found".
type RawFields struct {
	Platform   string
	ExplicitID string
	URL        string

	Title string
	Make  string
	Model string
	Year  int

	PriceText  string
	CurrentBid *int
	BidCount   *int
	FinalPrice *int

	// StatusGuess is the source's coarse status string (ACTIVE, SOLD,
	// NO_SALE, ENDED) or empty when the page gives no signal.
	StatusGuess string

	StartTime   *time.Time
	EndTime     *time.Time
	ListDate    *time.Time
	SaleDate    *time.Time
	AuctionDate *time.Time

	MileageValue  *float64
	MileageUnit   string
	Transmission  string
	Engine        string
	ExteriorColor string
	InteriorColor string
	BodyStyle     string
	VIN           string
	ReserveStatus string

	LocationText string
	Description  string
	SellerNotes  string
	ImageURLs    []string
	AuctionHouse string
}

// Candidate is one discovered listing URL, optionally with the summary fields
// already visible on the discovery card.
type Candidate struct {
	URL        string
	ExplicitID string
	Summary    *RawFields
}

// SourceAdapter is the capability set every marketplace connector implements.
// Discovery returns one page of candidates; callers page through by
// incrementing the page index up to a configured cap. An empty page means
// discovery is exhausted.
type SourceAdapter interface {
	Name() string
	Platform() string
	DiscoverActive(ctx context.Context, page int, query string) ([]Candidate, error)
	DiscoverEnded(ctx context.Context, page int, query string) ([]Candidate, error)
	FetchSummary(ctx context.Context, url string) (RawFields, error)
	FetchDetail(ctx context.Context, url string) (RawFields, error)
}

// Options configures adapter construction.
type Options struct {
	Client  *fetch.Client
	Retry   fetch.RetryPolicy
	BaseURL string // override for tests; empty uses the adapter default
}

// Build constructs the adapter for a source tag.
func Build(source string, opts Options) (SourceAdapter, error) {
	switch source {
	case "auctionhub":
		return newAuctionHub(opts), nil
	case "motorbid":
		return newMotorBid(opts), nil
	case "bidfeed":
		return newBidFeed(opts), nil
	case "mock":
		return NewMock(0), nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

// Sources lists the buildable source tags, mock excluded.
func Sources() []string { return []string{"auctionhub", "motorbid", "bidfeed"} }

func baseOrDefault(base, def string) string {
	b := strings.TrimSpace(base)
	if b == "" {
		b = def
	}
	return strings.TrimRight(b, "/")
}
