package normalize

import (
	"regexp"
	"strings"
)

var currencyCodes = []struct {
	re   *regexp.Regexp
	code string
}{
	{regexp.MustCompile(`(?i)\bUSD\b`), "USD"},
	{regexp.MustCompile(`(?i)\bGBP\b`), "GBP"},
	{regexp.MustCompile(`(?i)\bEUR\b`), "EUR"},
	{regexp.MustCompile(`(?i)\bJPY\b`), "JPY"},
	{regexp.MustCompile(`(?i)\bCHF\b`), "CHF"},
}

// DetectCurrency infers the currency from explicit codes or symbols in raw
// price text. No symbol means an empty result; the pipeline never defaults a
// currency.
func DetectCurrency(priceText string) string {
	s := strings.TrimSpace(priceText)
	if s == "" {
		return ""
	}
	for _, c := range currencyCodes {
		if c.re.MatchString(s) {
			return c.code
		}
	}
	switch {
	case strings.Contains(s, "£"):
		return "GBP"
	case strings.Contains(s, "€"):
		return "EUR"
	case strings.Contains(s, "¥"):
		return "JPY"
	case strings.Contains(s, "$"):
		return "USD"
	}
	return ""
}

var amountToken = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)

// parseAmount extracts the first monetary amount from free text, tolerating
// thousands separators. Returns nil when the text has no number.
func parseAmount(s string) *int {
	m := amountToken.FindString(s)
	if m == "" {
		return nil
	}
	m = strings.ReplaceAll(m, ",", "")
	n := 0
	for _, r := range m {
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return nil
	}
	return &n
}
