package adapters

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Shared helpers for the HTML adapters. Extraction here is best effort:
// helpers return zero values instead of errors so a missing node never fails
// a whole listing.

var numberRun = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)

// parseIntText extracts the first integer from text like "12 bids" or
// "$120,000", tolerating thousands separators.
func parseIntText(s string) *int {
	m := numberRun.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// parseMileageText splits "23,500 miles" style text into a value and unit.
func parseMileageText(s string) (*float64, string) {
	m := numberRun.FindString(s)
	if m == "" {
		return nil, ""
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil, ""
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "mi"):
		return &v, "miles"
	case strings.Contains(lower, "km"):
		return &v, "km"
	}
	return &v, ""
}

// parseTimeAttr parses an RFC3339 or date-only timestamp attribute.
func parseTimeAttr(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// yearFromText pulls a leading 4-digit year out of card text.
var yearRun = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func yearFromText(s string) int {
	m := yearRun.FindString(s)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

// specPairs walks dt/dd (or th/td) pairs into a lowercase-keyed map.
func specPairs(sel *goquery.Selection, keySel, valSel string) map[string]string {
	out := map[string]string{}
	sel.Each(func(_ int, row *goquery.Selection) {
		key := strings.ToLower(strings.TrimSpace(row.Find(keySel).First().Text()))
		val := strings.TrimSpace(row.Find(valSel).First().Text())
		if key != "" && val != "" {
			out[key] = val
		}
	})
	return out
}

// applySpecs maps common spec-sheet labels onto raw fields.
func applySpecs(raw *RawFields, specs map[string]string) {
	for key, val := range specs {
		switch key {
		case "mileage", "odometer":
			raw.MileageValue, raw.MileageUnit = parseMileageText(val)
		case "vin", "chassis", "chassis number":
			raw.VIN = val
		case "transmission", "gearbox":
			raw.Transmission = val
		case "engine":
			raw.Engine = val
		case "exterior color", "exterior colour", "exterior":
			raw.ExteriorColor = val
		case "interior color", "interior colour", "interior":
			raw.InteriorColor = val
		case "body style", "body":
			raw.BodyStyle = val
		case "make":
			raw.Make = val
		case "model":
			raw.Model = val
		case "year":
			if y, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				raw.Year = y
			}
		case "location":
			raw.LocationText = val
		case "reserve":
			raw.ReserveStatus = val
		}
	}
}

func attrOr(sel *goquery.Selection, attr, def string) string {
	if v, ok := sel.Attr(attr); ok {
		return strings.TrimSpace(v)
	}
	return def
}
