package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var yearToken = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// modelSeparators end the model/trim region of a title. En and em dashes are
// common in marketplace headlines ("488 GTB – one owner").
const modelSeparators = "-|–—"

// yearFromTitle extracts the first plausible 4-digit model year from a title.
// Returns 0 when none is found.
func yearFromTitle(title string, now time.Time) int {
	for _, tok := range yearToken.FindAllString(title, -1) {
		y, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if plausibleYear(y, now) {
			return y
		}
	}
	return 0
}

// plausibleYear bounds a candidate year to [1900, currentYear+1].
func plausibleYear(y int, now time.Time) bool {
	return y >= 1900 && y <= now.Year()+1
}

// splitModelTrim takes the remainder of the title after the make token, cuts
// it at the first separator character, and treats the first whitespace
// delimited token as the model and the rest as the trim.
func splitModelTrim(title, make_ string) (mdl, trim string) {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(make_) + `\b`)
	loc := re.FindStringIndex(title)
	if loc == nil {
		return "", ""
	}
	rest := title[loc[1]:]
	if idx := strings.IndexAny(rest, modelSeparators); idx >= 0 {
		rest = rest[:idx]
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
