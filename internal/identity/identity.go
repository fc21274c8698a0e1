// Package identity derives stable, source-scoped listing identifiers from
// URLs. The same listing must map to the same ID no matter which entry point
// discovered it or how much tracking noise the URL carries.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const maxIDLen = 64

// hashLen is the number of hex chars kept from the URL hash fallback.
const hashLen = 16

// trackingParams are query parameters that never encode lot identity. All
// other parameters are preserved because some sources put the lot id there.
var trackingParams = map[string]bool{
	"ref":      true,
	"fbclid":   true,
	"gclid":    true,
	"igshid":   true,
	"mc_cid":   true,
	"mc_eid":   true,
	"yclid":    true,
	"msclkid":  true,
	"referrer": true,
}

// pathMarkers maps a source tag to the path segment that precedes the lot
// slug in that source's URL shape.
var pathMarkers = map[string]string{
	"auctionhub": "listing",
	"motorbid":   "auctions",
	"bidfeed":    "lots",
}

// Canonicalize strips the fragment, tracking query parameters, and a trailing
// slash from rawURL. It is deliberately conservative: anything it does not
// recognize as noise is preserved.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	changed := false
	for key := range q {
		lk := strings.ToLower(key)
		if trackingParams[lk] || strings.HasPrefix(lk, "utm_") {
			q.Del(key)
			changed = true
		}
	}
	if changed || u.RawQuery != "" {
		u.RawQuery = q.Encode()
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// DeriveID returns the stable identifier for a listing. Precedence: an
// explicit source-provided id wins verbatim (truncated), then a slug
// extracted from the source's known URL shape, then a source-prefixed hash of
// the canonical URL so that no two sources can ever collide.
func DeriveID(source, explicitID, canonicalURL string) string {
	if id := strings.TrimSpace(explicitID); id != "" {
		return truncate(id, maxIDLen)
	}
	if slug := slugFromPath(source, canonicalURL); slug != "" {
		return truncate(slug, maxIDLen)
	}
	sum := sha256.Sum256([]byte(canonicalURL))
	return source + "-" + hex.EncodeToString(sum[:])[:hashLen]
}

// slugFromPath extracts the path segment following the source's marker
// segment, e.g. /listing/<slug> for auctionhub.
func slugFromPath(source, canonicalURL string) string {
	marker, ok := pathMarkers[source]
	if !ok {
		return ""
	}
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segs {
		if seg == marker && i+1 < len(segs) && segs[i+1] != "" {
			return segs[i+1]
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
