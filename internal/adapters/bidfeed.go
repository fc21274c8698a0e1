package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/monza-lab/auction-ingest/internal/fetch"
)

const bidFeedDefaultBase = "https://api.bidfeed.io"

// bidFeed talks to a JSON marketplace API instead of scraping HTML. Lot URLs
// look like /lots/<id>; discovery is GET /api/v1/lots with a state filter.
type bidFeed struct {
	base   string
	client *fetch.Client
	retry  fetch.RetryPolicy
}

func newBidFeed(opts Options) *bidFeed {
	return &bidFeed{
		base:   baseOrDefault(opts.BaseURL, bidFeedDefaultBase),
		client: opts.Client,
		retry:  opts.Retry,
	}
}

func (b *bidFeed) Name() string     { return "bidfeed" }
func (b *bidFeed) Platform() string { return "BidFeed" }

// bidFeedLot mirrors the API payload. Pointers keep absent fields absent.
type bidFeedLot struct {
	ID           string   `json:"id"`
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Make         string   `json:"make,omitempty"`
	Model        string   `json:"model,omitempty"`
	Year         int      `json:"year,omitempty"`
	Status       string   `json:"status,omitempty"`
	PriceDisplay string   `json:"price_display,omitempty"`
	CurrentBid   *int     `json:"current_bid,omitempty"`
	BidCount     *int     `json:"bid_count,omitempty"`
	SoldPrice    *int     `json:"sold_price,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	StartsAt     string   `json:"starts_at,omitempty"`
	EndsAt       string   `json:"ends_at,omitempty"`
	SoldAt       string   `json:"sold_at,omitempty"`
	Mileage      *float64 `json:"mileage,omitempty"`
	MileageUnit  string   `json:"mileage_unit,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	Engine       string   `json:"engine,omitempty"`
	Exterior     string   `json:"exterior,omitempty"`
	Interior     string   `json:"interior,omitempty"`
	BodyStyle    string   `json:"body_style,omitempty"`
	VIN          string   `json:"vin,omitempty"`
	Reserve      string   `json:"reserve,omitempty"`
	Location     string   `json:"location,omitempty"`
	Description  string   `json:"description,omitempty"`
	SellerNotes  string   `json:"seller_notes,omitempty"`
	Photos       []string `json:"photos,omitempty"`
}

func (b *bidFeed) DiscoverActive(ctx context.Context, page int, query string) ([]Candidate, error) {
	return b.discover(ctx, "live", page, query)
}

func (b *bidFeed) DiscoverEnded(ctx context.Context, page int, query string) ([]Candidate, error) {
	return b.discover(ctx, "ended", page, query)
}

func (b *bidFeed) discover(ctx context.Context, state string, page int, query string) ([]Candidate, error) {
	u := fmt.Sprintf("%s/api/v1/lots?state=%s&make=%s&page=%d", b.base, state, url.QueryEscape(query), page)
	res, err := b.client.GetWithRetry(ctx, u, b.retry)
	if err != nil {
		return nil, err
	}

	// Accept both object-wrapped and bare-array payloads.
	var wrapped struct {
		Lots []bidFeedLot `json:"lots"`
	}
	var lots []bidFeedLot
	if err := json.Unmarshal(res.Body, &wrapped); err == nil && len(wrapped.Lots) > 0 {
		lots = wrapped.Lots
	} else if err := json.Unmarshal(res.Body, &lots); err != nil {
		return nil, fmt.Errorf("bidfeed search payload: %w", err)
	}

	out := make([]Candidate, 0, len(lots))
	for _, lot := range lots {
		if strings.TrimSpace(lot.ID) == "" {
			continue
		}
		raw := b.lotToRaw(lot)
		out = append(out, Candidate{
			URL:        b.lotURL(lot),
			ExplicitID: lot.ID,
			Summary:    &raw,
		})
	}
	return out, nil
}

func (b *bidFeed) FetchSummary(ctx context.Context, pageURL string) (RawFields, error) {
	return b.FetchDetail(ctx, pageURL)
}

func (b *bidFeed) FetchDetail(ctx context.Context, pageURL string) (RawFields, error) {
	id := lotIDFromURL(pageURL)
	u := fmt.Sprintf("%s/api/v1/lots/%s", b.base, url.PathEscape(id))
	res, err := b.client.GetWithRetry(ctx, u, b.retry)
	if err != nil {
		return RawFields{}, err
	}

	var wrapped struct {
		Lot bidFeedLot `json:"lot"`
	}
	lot := wrapped.Lot
	if err := json.Unmarshal(res.Body, &wrapped); err != nil || wrapped.Lot.ID == "" {
		if err := json.Unmarshal(res.Body, &lot); err != nil {
			return RawFields{}, fmt.Errorf("bidfeed lot payload: %w", err)
		}
	} else {
		lot = wrapped.Lot
	}
	raw := b.lotToRaw(lot)
	if raw.URL == "" {
		raw.URL = pageURL
	}
	return raw, nil
}

func (b *bidFeed) lotToRaw(lot bidFeedLot) RawFields {
	priceText := lot.PriceDisplay
	if priceText == "" && lot.Currency != "" && lot.CurrentBid != nil {
		priceText = fmt.Sprintf("%s %d", lot.Currency, *lot.CurrentBid)
	}
	return RawFields{
		Platform:      b.Platform(),
		ExplicitID:    lot.ID,
		URL:           lot.URL,
		Title:         lot.Title,
		Make:          lot.Make,
		Model:         lot.Model,
		Year:          lot.Year,
		PriceText:     priceText,
		CurrentBid:    lot.CurrentBid,
		BidCount:      lot.BidCount,
		FinalPrice:    lot.SoldPrice,
		StatusGuess:   lot.Status,
		StartTime:     parseTimeAttr(lot.StartsAt),
		EndTime:       parseTimeAttr(lot.EndsAt),
		SaleDate:      parseTimeAttr(lot.SoldAt),
		MileageValue:  lot.Mileage,
		MileageUnit:   lot.MileageUnit,
		Transmission:  lot.Transmission,
		Engine:        lot.Engine,
		ExteriorColor: lot.Exterior,
		InteriorColor: lot.Interior,
		BodyStyle:     lot.BodyStyle,
		VIN:           lot.VIN,
		ReserveStatus: lot.Reserve,
		LocationText:  lot.Location,
		Description:   lot.Description,
		SellerNotes:   lot.SellerNotes,
		ImageURLs:     lot.Photos,
	}
}

func (b *bidFeed) lotURL(lot bidFeedLot) string {
	if strings.TrimSpace(lot.URL) != "" {
		return lot.URL
	}
	return b.base + "/lots/" + url.PathEscape(lot.ID)
}

// lotIDFromURL takes the segment following /lots/ or, failing that, the last
// path segment.
func lotIDFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segs {
		if seg == "lots" && i+1 < len(segs) {
			return segs[i+1]
		}
	}
	if len(segs) > 0 {
		return segs[len(segs)-1]
	}
	return pageURL
}
