// Package normalize converts best-effort raw fields from source adapters into
// canonical listing records. It is the single place that validates and
// defaults adapter output; adapters stay dumb and everything downstream of
// this package can trust the record shape.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/monza-lab/auction-ingest/internal/adapters"
	"github.com/monza-lab/auction-ingest/internal/model"
)

// Normalizer holds the target vehicle population and a clock. The clock is
// injectable so status inference is testable around the end-time boundary.
type Normalizer struct {
	targetMake string
	now        func() time.Time

	makeWord   *regexp.Regexp
	disallowed []*regexp.Regexp
}

// titlePatterns excludes listings that mention the target make without being
// one: replicas, memorabilia, parts lots, and "<make>-powered" specials.
// Checked even when the structured make field matches, since marketplaces
// sometimes mis-tag replicas.
var titlePatterns = []string{
	`\breplicas?\b`,
	`\btributes?\b`,
	`\bkit[\s-]?cars?\b`,
	`\bmemorabilia\b`,
	`\bposters?\b`,
	`\btoys?\b`,
	`\bparts[\s-]?only\b`,
}

func New(targetMake string) *Normalizer {
	mk := strings.TrimSpace(targetMake)
	quoted := regexp.QuoteMeta(mk)
	pats := make([]*regexp.Regexp, 0, len(titlePatterns)+2)
	for _, p := range titlePatterns {
		pats = append(pats, regexp.MustCompile(`(?i)`+p))
	}
	pats = append(pats,
		regexp.MustCompile(`(?i)\b`+quoted+`[\s-]powered\b`),
		regexp.MustCompile(`(?i)\b`+quoted+`[\s-]engined\b`),
	)
	return &Normalizer{
		targetMake: mk,
		now:        time.Now,
		makeWord:   regexp.MustCompile(`(?i)\b` + quoted + `\b`),
		disallowed: pats,
	}
}

// WithClock overrides the normalizer's clock. Test hook.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// TargetMake returns the make this normalizer keeps.
func (n *Normalizer) TargetMake() string { return n.targetMake }

// InPopulation reports whether a candidate belongs to the target population:
// the declared make matches or the title carries the make as a whole word,
// and the title trips none of the exclusion patterns. Both legs are required.
func (n *Normalizer) InPopulation(rawMake, title string) bool {
	makeOK := strings.EqualFold(strings.TrimSpace(rawMake), n.targetMake) ||
		n.makeWord.MatchString(title)
	if !makeOK {
		return false
	}
	for _, re := range n.disallowed {
		if re.MatchString(title) {
			return false
		}
	}
	return true
}

// Normalize builds the canonical record for one observation. It returns nil
// when a required field (title, year, or model) cannot be resolved; callers
// count and skip such inputs instead of writing partial records.
func (n *Normalizer) Normalize(source, sourceID, canonicalURL string, raw adapters.RawFields) *model.CanonicalListing {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil
	}

	year := raw.Year
	if !plausibleYear(year, n.now()) {
		year = yearFromTitle(title, n.now())
	}
	if year == 0 {
		return nil
	}

	mdl, trim := splitModelTrim(title, n.targetMake)
	if mdl == "" {
		mdl = strings.TrimSpace(raw.Model)
	}
	if mdl == "" {
		return nil
	}

	now := n.now()
	status := InferStatus(StatusInput{
		SourceStatus: raw.StatusGuess,
		PriceText:    raw.PriceText,
		CurrentBid:   raw.CurrentBid,
		EndTime:      raw.EndTime,
		Now:          now,
	})

	currentBid := raw.CurrentBid
	finalPrice := raw.FinalPrice
	if status == model.StatusSold && finalPrice == nil {
		if amt := parseAmount(raw.PriceText); amt != nil {
			finalPrice = amt
		} else if currentBid != nil && *currentBid > 0 {
			finalPrice = currentBid
		}
	}
	if status == model.StatusActive && currentBid == nil {
		currentBid = parseAmount(raw.PriceText)
	}

	loc := ParseLocation(raw.LocationText)

	rec := &model.CanonicalListing{
		Source:    source,
		SourceID:  sourceID,
		SourceURL: canonicalURL,
		Platform:  raw.Platform,
		Title:     title,

		Year:      year,
		Make:      n.targetMake,
		Model:     mdl,
		Trim:      trim,
		BodyStyle: strings.TrimSpace(raw.BodyStyle),

		MileageKm:     MileageToKm(raw.MileageValue, raw.MileageUnit),
		VIN:           strings.ToUpper(strings.TrimSpace(raw.VIN)),
		ExteriorColor: strings.TrimSpace(raw.ExteriorColor),
		InteriorColor: strings.TrimSpace(raw.InteriorColor),
		Engine:        strings.TrimSpace(raw.Engine),
		Transmission:  strings.TrimSpace(raw.Transmission),

		CurrentBid:       currentBid,
		BidCount:         raw.BidCount,
		FinalPrice:       finalPrice,
		OriginalCurrency: DetectCurrency(raw.PriceText),
		RawPriceText:     strings.TrimSpace(raw.PriceText),
		ReserveStatus:    strings.TrimSpace(raw.ReserveStatus),

		ListDate:    dateOnly(raw.ListDate),
		SaleDate:    resolveSaleDate(raw, status),
		AuctionDate: dateOnly(raw.AuctionDate),
		StartTime:   utc(raw.StartTime),
		EndTime:     utc(raw.EndTime),

		Status: status,

		LocationString: strings.TrimSpace(raw.LocationText),
		Country:        loc.Country,
		Region:         loc.Region,
		City:           loc.City,
		PostalCode:     loc.PostalCode,

		AuctionHouse: strings.TrimSpace(raw.AuctionHouse),
		Description:  strings.TrimSpace(raw.Description),
		SellerNotes:  strings.TrimSpace(raw.SellerNotes),

		Photos: dedupePhotos(raw.ImageURLs),
	}
	rec.PhotosCount = len(rec.Photos)
	rec.DataQualityScore = QualityScore(rec, now)
	return rec
}

// resolveSaleDate prefers the explicit sale date, then the auction date, then
// the end time for concluded listings.
func resolveSaleDate(raw adapters.RawFields, status model.Status) *time.Time {
	if d := dateOnly(raw.SaleDate); d != nil {
		return d
	}
	if d := dateOnly(raw.AuctionDate); d != nil {
		return d
	}
	if status.Terminal() && raw.EndTime != nil {
		return dateOnly(raw.EndTime)
	}
	return nil
}

func dedupePhotos(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
