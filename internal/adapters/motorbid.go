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

const motorBidDefaultBase = "https://motorbid.co"

// motorBid scrapes a list-style marketplace that exposes most card state in
// data attributes. Listing URLs look like /auctions/<slug>; discovery is a
// single /search endpoint with a state filter.
type motorBid struct {
	base   string
	client *fetch.Client
	retry  fetch.RetryPolicy
}

func newMotorBid(opts Options) *motorBid {
	return &motorBid{
		base:   baseOrDefault(opts.BaseURL, motorBidDefaultBase),
		client: opts.Client,
		retry:  opts.Retry,
	}
}

func (m *motorBid) Name() string     { return "motorbid" }
func (m *motorBid) Platform() string { return "MotorBid" }

func (m *motorBid) DiscoverActive(ctx context.Context, page int, query string) ([]Candidate, error) {
	return m.discover(ctx, "live", page, query)
}

func (m *motorBid) DiscoverEnded(ctx context.Context, page int, query string) ([]Candidate, error) {
	return m.discover(ctx, "ended", page, query)
}

func (m *motorBid) discover(ctx context.Context, state string, page int, query string) ([]Candidate, error) {
	u := fmt.Sprintf("%s/search?state=%s&make=%s&page=%d", m.base, state, url.QueryEscape(query), page)
	doc, err := m.getDoc(ctx, u)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	doc.Find("li.auction-item").Each(func(_ int, item *goquery.Selection) {
		href := attrOr(item.Find("a").First(), "href", "")
		if href == "" {
			return
		}
		summary := RawFields{
			Platform:    m.Platform(),
			Title:       strings.TrimSpace(item.Find("span.item-title").First().Text()),
			PriceText:   strings.TrimSpace(item.Find("span.item-price").First().Text()),
			StatusGuess: attrOr(item, "data-status", ""),
		}
		summary.Year = yearFromText(summary.Title)
		summary.CurrentBid = parseIntText(summary.PriceText)
		summary.EndTime = parseTimeAttr(attrOr(item, "data-ends-at", ""))
		summary.SaleDate = parseTimeAttr(attrOr(item, "data-sold-at", ""))
		out = append(out, Candidate{
			URL:        m.absolute(href),
			ExplicitID: attrOr(item, "data-id", ""),
			Summary:    &summary,
		})
	})
	return out, nil
}

func (m *motorBid) FetchSummary(ctx context.Context, pageURL string) (RawFields, error) {
	return m.FetchDetail(ctx, pageURL)
}

func (m *motorBid) FetchDetail(ctx context.Context, pageURL string) (RawFields, error) {
	doc, err := m.getDoc(ctx, pageURL)
	if err != nil {
		return RawFields{}, err
	}

	root := doc.Find("section.auction").First()
	raw := RawFields{
		Platform:   m.Platform(),
		URL:        pageURL,
		ExplicitID: attrOr(root, "data-id", ""),
		Title:      strings.TrimSpace(doc.Find("h1").First().Text()),
	}
	raw.Year = yearFromText(raw.Title)
	raw.StatusGuess = attrOr(root, "data-status", "")
	raw.EndTime = parseTimeAttr(attrOr(root, "data-ends-at", ""))
	raw.SaleDate = parseTimeAttr(attrOr(root, "data-sold-at", ""))
	raw.PriceText = strings.TrimSpace(doc.Find("p.current-price").First().Text())
	raw.CurrentBid = parseIntText(raw.PriceText)
	raw.BidCount = parseIntText(doc.Find("p.bid-total").First().Text())
	raw.LocationText = strings.TrimSpace(doc.Find("p.seller-location").First().Text())
	raw.Description = strings.TrimSpace(doc.Find("div.auction-body").First().Text())

	applySpecs(&raw, specPairs(doc.Find("table.specs tr"), "th", "td"))

	doc.Find("ul.photo-strip img").Each(func(_ int, img *goquery.Selection) {
		if src := attrOr(img, "data-full", attrOr(img, "src", "")); src != "" {
			raw.ImageURLs = append(raw.ImageURLs, m.absolute(src))
		}
	})
	return raw, nil
}

func (m *motorBid) getDoc(ctx context.Context, u string) (*goquery.Document, error) {
	res, err := m.client.GetWithRetry(ctx, u, m.retry)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html (%d bytes): %w", len(res.Body), err)
	}
	return doc, nil
}

func (m *motorBid) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return m.base + "/" + strings.TrimLeft(href, "/")
}
