package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/monza-lab/auction-ingest/internal/fetch"
)

const auctionHubResultsHTML = `
<html><body>
<div class="listing-card" data-listing-id="ah-4812">
  <a class="card-link" href="/listing/2019-ferrari-488-gtb">2019 Ferrari 488 GTB</a>
  <h3 class="card-title">2019 Ferrari 488 GTB</h3>
  <span class="card-price">Sold for $245,000</span>
  <span class="card-bids">45</span>
  <span class="card-status">SOLD</span>
  <time class="card-end" datetime="2025-06-10T18:00:00Z"></time>
</div>
<div class="listing-card">
  <a class="card-link" href="https://cdn.auctionhub.example/listing/1990-ferrari-f40">1990 Ferrari F40</a>
  <h3 class="card-title">1990 Ferrari F40</h3>
</div>
<div class="listing-card"><h3 class="card-title">card without link is skipped</h3></div>
</body></html>`

const auctionHubDetailHTML = `
<html><body>
<article class="listing" data-listing-id="ah-4812">
  <h1 class="listing-title">2019 Ferrari 488 GTB - One Owner</h1>
  <div class="bid-box" data-status="SOLD">
    <span class="amount">Sold for $245,000</span>
    <span class="bid-count">45 bids</span>
  </div>
  <time class="auction-end" datetime="2025-06-10T18:00:00Z"></time>
  <span class="listing-location">Scottsdale, AZ 85251</span>
  <div class="listing-description">Delivered new to Scottsdale.</div>
  <dl class="listing-specs">
    <div class="spec-row"><dt>Mileage</dt><dd>8,200 miles</dd></div>
    <div class="spec-row"><dt>VIN</dt><dd>ZFF79ALA9K0234001</dd></div>
    <div class="spec-row"><dt>Transmission</dt><dd>7-Speed DCT</dd></div>
    <div class="spec-row"><dt>Exterior Color</dt><dd>Rosso Corsa</dd></div>
  </dl>
  <div class="gallery">
    <img src="/img/4812/1.jpg">
    <img src="https://cdn.auctionhub.example/img/4812/2.jpg">
  </div>
</article>
</body></html>`

func newAuctionHubTestServer(t *testing.T) (*httptest.Server, SourceAdapter) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/results", "/auctions":
			fmt.Fprint(w, auctionHubResultsHTML)
		case "/listing/2019-ferrari-488-gtb":
			fmt.Fprint(w, auctionHubDetailHTML)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	src, err := Build("auctionhub", Options{
		Client:  fetch.NewClient(fetch.ClientOptions{HostInterval: time.Millisecond}),
		Retry:   fetch.RetryPolicy{Retries: 1, BaseDelay: time.Millisecond},
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	return srv, src
}

func TestAuctionHubDiscoverEnded(t *testing.T) {
	t.Parallel()

	srv, src := newAuctionHubTestServer(t)
	cands, err := src.DiscoverEnded(context.Background(), 1, "Ferrari")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}

	first := cands[0]
	if first.URL != srv.URL+"/listing/2019-ferrari-488-gtb" {
		t.Errorf("URL = %q, relative href not made absolute", first.URL)
	}
	if first.ExplicitID != "ah-4812" {
		t.Errorf("ExplicitID = %q", first.ExplicitID)
	}
	if first.Summary == nil {
		t.Fatal("discovery card summary missing")
	}
	if first.Summary.Year != 2019 {
		t.Errorf("Summary.Year = %d", first.Summary.Year)
	}
	if first.Summary.StatusGuess != "SOLD" {
		t.Errorf("Summary.StatusGuess = %q", first.Summary.StatusGuess)
	}
	if first.Summary.BidCount == nil || *first.Summary.BidCount != 45 {
		t.Errorf("Summary.BidCount = %v", first.Summary.BidCount)
	}

	if cands[1].URL != "https://cdn.auctionhub.example/listing/1990-ferrari-f40" {
		t.Errorf("absolute href rewritten: %q", cands[1].URL)
	}
}

func TestAuctionHubFetchDetail(t *testing.T) {
	t.Parallel()

	srv, src := newAuctionHubTestServer(t)
	raw, err := src.FetchDetail(context.Background(), srv.URL+"/listing/2019-ferrari-488-gtb")
	if err != nil {
		t.Fatal(err)
	}

	if raw.ExplicitID != "ah-4812" {
		t.Errorf("ExplicitID = %q", raw.ExplicitID)
	}
	if raw.Title != "2019 Ferrari 488 GTB - One Owner" {
		t.Errorf("Title = %q", raw.Title)
	}
	if raw.Year != 2019 {
		t.Errorf("Year = %d", raw.Year)
	}
	if raw.StatusGuess != "SOLD" {
		t.Errorf("StatusGuess = %q", raw.StatusGuess)
	}
	if raw.PriceText != "Sold for $245,000" {
		t.Errorf("PriceText = %q", raw.PriceText)
	}
	if raw.BidCount == nil || *raw.BidCount != 45 {
		t.Errorf("BidCount = %v", raw.BidCount)
	}
	if raw.EndTime == nil || !raw.EndTime.Equal(time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("EndTime = %v", raw.EndTime)
	}
	if raw.LocationText != "Scottsdale, AZ 85251" {
		t.Errorf("LocationText = %q", raw.LocationText)
	}
	if raw.MileageValue == nil || *raw.MileageValue != 8200 || raw.MileageUnit != "miles" {
		t.Errorf("mileage = %v %q", raw.MileageValue, raw.MileageUnit)
	}
	if raw.VIN != "ZFF79ALA9K0234001" {
		t.Errorf("VIN = %q", raw.VIN)
	}
	if raw.Transmission != "7-Speed DCT" {
		t.Errorf("Transmission = %q", raw.Transmission)
	}
	if raw.ExteriorColor != "Rosso Corsa" {
		t.Errorf("ExteriorColor = %q", raw.ExteriorColor)
	}
	if len(raw.ImageURLs) != 2 {
		t.Fatalf("ImageURLs = %v", raw.ImageURLs)
	}
	if raw.ImageURLs[0] != srv.URL+"/img/4812/1.jpg" {
		t.Errorf("relative image not made absolute: %q", raw.ImageURLs[0])
	}
	if raw.ImageURLs[1] != "https://cdn.auctionhub.example/img/4812/2.jpg" {
		t.Errorf("absolute image rewritten: %q", raw.ImageURLs[1])
	}
}
