package normalize

import (
	"regexp"
	"strings"
)

// Location is the parsed decomposition of a free-text location string.
type Location struct {
	Country    string
	Region     string
	City       string
	PostalCode string
}

// usStates covers the 50 states plus DC, keyed by postal code.
var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana",
	"IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan",
	"MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri", "MT": "Montana",
	"NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina",
	"ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

var usStateByName = func() map[string]string {
	m := make(map[string]string, len(usStates))
	for code, name := range usStates {
		m[strings.ToLower(name)] = code
	}
	return m
}()

var ukKeywords = []string{
	"united kingdom", "england", "scotland", "wales", "northern ireland",
}

// countryAliases normalizes the country names the sources actually emit.
var countryAliases = map[string]string{
	"usa": "United States", "us": "United States", "u.s.a.": "United States",
	"united states": "United States", "united states of america": "United States",
	"uk": "United Kingdom", "united kingdom": "United Kingdom",
	"great britain": "United Kingdom",
	"germany": "Germany", "deutschland": "Germany",
	"france": "France", "italy": "Italy", "italia": "Italy",
	"switzerland": "Switzerland", "netherlands": "Netherlands",
	"holland": "Netherlands", "belgium": "Belgium", "spain": "Spain",
	"portugal": "Portugal", "austria": "Austria", "monaco": "Monaco",
	"canada": "Canada", "australia": "Australia", "japan": "Japan",
	"uae": "United Arab Emirates", "united arab emirates": "United Arab Emirates",
}

var (
	usCityState    = regexp.MustCompile(`^(.*?),\s*([A-Za-z]{2})(?:\s+(\d{5}))?$`)
	usCityFullName = regexp.MustCompile(`^(.*?),\s*([A-Za-z .]+?)\s+(\d{5})$`)
)

// ParseLocation decomposes a free-text location into country, region, city,
// and postal code. Best effort all the way down: unrecognized input ends up
// as country "Unknown" rather than an error.
func ParseLocation(s string) Location {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{Country: "Unknown"}
	}

	// "City, ST" / "City, ST 12345"
	if m := usCityState.FindStringSubmatch(s); m != nil {
		code := strings.ToUpper(m[2])
		if name, ok := usStates[code]; ok {
			return Location{
				Country:    "United States",
				Region:     name,
				City:       strings.TrimSpace(m[1]),
				PostalCode: m[3],
			}
		}
	}

	// "City, Full State Name 12345"
	if m := usCityFullName.FindStringSubmatch(s); m != nil {
		if code, ok := usStateByName[strings.ToLower(strings.TrimSpace(m[2]))]; ok {
			return Location{
				Country:    "United States",
				Region:     usStates[code],
				City:       strings.TrimSpace(m[1]),
				PostalCode: m[3],
			}
		}
	}

	lower := strings.ToLower(s)
	for _, kw := range ukKeywords {
		if strings.Contains(lower, kw) {
			loc := Location{Country: "United Kingdom"}
			if idx := strings.Index(s, ","); idx > 0 {
				loc.City = strings.TrimSpace(s[:idx])
			}
			return loc
		}
	}

	// Trailing comma-separated token as a country name.
	if idx := strings.LastIndex(s, ","); idx >= 0 {
		tail := strings.ToLower(strings.TrimSpace(s[idx+1:]))
		if country, ok := countryAliases[tail]; ok {
			return Location{
				Country: country,
				City:    strings.TrimSpace(s[:idx]),
			}
		}
	} else if country, ok := countryAliases[lower]; ok {
		// Single-token input tried as a bare country name.
		return Location{Country: country}
	}

	return Location{Country: "Unknown"}
}
