package adapters

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/monza-lab/auction-ingest/internal/fetch"
)

const auctionHubDefaultBase = "https://www.auctionhub.com"

// auctionHub scrapes a card-grid marketplace. Listing URLs look like
// /listing/<slug>; discovery pages are /auctions (live) and /results (ended).
type auctionHub struct {
	base   string
	client *fetch.Client
	retry  fetch.RetryPolicy
}

func newAuctionHub(opts Options) *auctionHub {
	return &auctionHub{
		base:   baseOrDefault(opts.BaseURL, auctionHubDefaultBase),
		client: opts.Client,
		retry:  opts.Retry,
	}
}

func (a *auctionHub) Name() string     { return "auctionhub" }
func (a *auctionHub) Platform() string { return "AuctionHub" }

func (a *auctionHub) DiscoverActive(ctx context.Context, page int, query string) ([]Candidate, error) {
	return a.discover(ctx, "/auctions", page, query)
}

func (a *auctionHub) DiscoverEnded(ctx context.Context, page int, query string) ([]Candidate, error) {
	return a.discover(ctx, "/results", page, query)
}

func (a *auctionHub) discover(ctx context.Context, path string, page int, query string) ([]Candidate, error) {
	u := fmt.Sprintf("%s%s?q=%s&page=%d", a.base, path, url.QueryEscape(query), page)
	doc, err := a.getDoc(ctx, u)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	doc.Find("div.listing-card").Each(func(_ int, card *goquery.Selection) {
		href := attrOr(card.Find("a.card-link").First(), "href", "")
		if href == "" {
			return
		}
		summary := a.cardSummary(card)
		out = append(out, Candidate{
			URL:        a.absolute(href),
			ExplicitID: attrOr(card, "data-listing-id", ""),
			Summary:    &summary,
		})
	})
	return out, nil
}

func (a *auctionHub) cardSummary(card *goquery.Selection) RawFields {
	raw := RawFields{
		Platform:  a.Platform(),
		Title:     strings.TrimSpace(card.Find("h3.card-title").First().Text()),
		PriceText: strings.TrimSpace(card.Find("span.card-price").First().Text()),
	}
	raw.Year = yearFromText(raw.Title)
	raw.BidCount = parseIntText(card.Find("span.card-bids").First().Text())
	raw.EndTime = parseTimeAttr(attrOr(card.Find("time.card-end").First(), "datetime", ""))
	raw.StatusGuess = strings.TrimSpace(card.Find("span.card-status").First().Text())
	return raw
}

func (a *auctionHub) FetchSummary(ctx context.Context, pageURL string) (RawFields, error) {
	// AuctionHub has no lightweight summary endpoint; the detail page is
	// the summary.
	return a.FetchDetail(ctx, pageURL)
}

func (a *auctionHub) FetchDetail(ctx context.Context, pageURL string) (RawFields, error) {
	doc, err := a.getDoc(ctx, pageURL)
	if err != nil {
		return RawFields{}, err
	}

	raw := RawFields{
		Platform:   a.Platform(),
		URL:        pageURL,
		ExplicitID: attrOr(doc.Find("article.listing").First(), "data-listing-id", ""),
		Title:      strings.TrimSpace(doc.Find("h1.listing-title").First().Text()),
	}
	raw.Year = yearFromText(raw.Title)
	raw.PriceText = strings.TrimSpace(doc.Find("div.bid-box span.amount").First().Text())
	raw.CurrentBid = parseIntText(raw.PriceText)
	raw.BidCount = parseIntText(doc.Find("div.bid-box span.bid-count").First().Text())
	raw.StatusGuess = strings.TrimSpace(attrOr(doc.Find("div.bid-box").First(), "data-status", ""))
	raw.EndTime = parseTimeAttr(attrOr(doc.Find("time.auction-end").First(), "datetime", ""))
	raw.StartTime = parseTimeAttr(attrOr(doc.Find("time.auction-start").First(), "datetime", ""))
	raw.LocationText = strings.TrimSpace(doc.Find("span.listing-location").First().Text())
	raw.Description = strings.TrimSpace(doc.Find("div.listing-description").First().Text())
	raw.SellerNotes = strings.TrimSpace(doc.Find("div.seller-notes").First().Text())

	applySpecs(&raw, specPairs(doc.Find("dl.listing-specs div.spec-row"), "dt", "dd"))

	doc.Find("div.gallery img").Each(func(_ int, img *goquery.Selection) {
		if src := attrOr(img, "src", ""); src != "" {
			raw.ImageURLs = append(raw.ImageURLs, a.absolute(src))
		}
	})
	return raw, nil
}

func (a *auctionHub) getDoc(ctx context.Context, u string) (*goquery.Document, error) {
	res, err := a.client.GetWithRetry(ctx, u, a.retry)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html (%d bytes): %w", len(res.Body), err)
	}
	return doc, nil
}

func (a *auctionHub) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return a.base + "/" + strings.TrimLeft(href, "/")
}
