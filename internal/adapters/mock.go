package adapters

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

const mockBase = "https://marketplace.example"

// Mock produces deterministic synthetic listings without network calls. It
// backs offline demo runs and the pipeline tests.
type Mock struct {
	seed int64
	now  func() time.Time
}

func NewMock(seed int64) *Mock {
	if seed == 0 {
		seed = 1
	}
	return &Mock{seed: seed, now: time.Now}
}

// WithClock overrides the mock's clock so synthetic end times are stable in
// tests.
func (m *Mock) WithClock(now func() time.Time) *Mock {
	m.now = now
	return m
}

func (m *Mock) Name() string     { return "mock" }
func (m *Mock) Platform() string { return "Mock Marketplace" }

const mockPageSize = 8

// mockPages bounds discovery so paging loops terminate without a cap.
const mockPages = 3

func (m *Mock) DiscoverActive(ctx context.Context, page int, query string) ([]Candidate, error) {
	return m.discover(ctx, "live", page, query)
}

func (m *Mock) DiscoverEnded(ctx context.Context, page int, query string) ([]Candidate, error) {
	return m.discover(ctx, "ended", page, query)
}

func (m *Mock) discover(ctx context.Context, state string, page int, query string) ([]Candidate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if page < 1 || page > mockPages {
		return nil, nil
	}
	out := make([]Candidate, 0, mockPageSize)
	for i := 0; i < mockPageSize; i++ {
		id := fmt.Sprintf("%s-%d%03d", state, page, i+1)
		out = append(out, Candidate{
			URL:        mockBase + "/listing/" + id,
			ExplicitID: id,
		})
	}
	_ = query
	return out, nil
}

func (m *Mock) FetchSummary(ctx context.Context, url string) (RawFields, error) {
	return m.FetchDetail(ctx, url)
}

// FetchDetail synthesizes stable listing state from the URL so repeated runs
// observe the same listing.
func (m *Mock) FetchDetail(ctx context.Context, url string) (RawFields, error) {
	select {
	case <-ctx.Done():
		return RawFields{}, ctx.Err()
	default:
	}

	id := lotIDFromURL(url)
	r := rand.New(rand.NewSource(m.seed ^ int64(fnv64(id))))
	now := m.now().UTC()

	bid := 150000 + r.Intn(200000)
	year := 1985 + r.Intn(38)
	raw := RawFields{
		Platform:   m.Platform(),
		ExplicitID: id,
		URL:        url,
		Title:      fmt.Sprintf("%d Ferrari %s", year, mockModels[r.Intn(len(mockModels))]),
		Make:       "Ferrari",
		Year:       year,
		CurrentBid: &bid,
		PriceText:  "$" + strconv.Itoa(bid),
		ImageURLs: []string{
			mockBase + "/img/" + id + "/1.jpg",
			mockBase + "/img/" + id + "/2.jpg",
		},
		LocationText: "Scottsdale, AZ 85251",
		Description:  "Synthetic listing generated by the offline adapter.",
	}

	if len(id) >= 5 && id[:5] == "ended" {
		raw.StatusGuess = "SOLD"
		raw.PriceText = "Sold for $" + strconv.Itoa(bid)
		raw.FinalPrice = &bid
		sold := now.Add(-time.Duration(1+r.Intn(72)) * time.Hour)
		raw.SaleDate = &sold
		raw.EndTime = &sold
	} else {
		raw.StatusGuess = "ACTIVE"
		end := now.Add(time.Duration(1+r.Intn(96)) * time.Hour)
		raw.EndTime = &end
		n := 3 + r.Intn(40)
		raw.BidCount = &n
	}
	return raw, nil
}

var mockModels = []string{
	"360 Modena", "458 Italia", "550 Maranello", "F355 Berlinetta",
	"Testarossa", "308 GTS", "California T", "612 Scaglietti",
}

func fnv64(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var h uint64 = offset64
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
