// pkg/cleaner/dates.go
package cleaner

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// fixedLayouts are tried before any heuristic parsing
var fixedLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006-1-2 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05 -0700 MST",
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var tokenSplit = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SafeParse interprets s as a date or timestamp. It reports false for
// empty input, the "NULL" sentinel and anything it cannot read, and never
// panics.
func SafeParse(s string) (t time.Time, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()

	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NULL") {
		return time.Time{}, false
	}

	for _, layout := range fixedLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}

	if parsed, ok := parseNamedMonth(s); ok {
		return parsed, true
	}

	parsed, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// parseNamedMonth reads dates made of a month name, a four digit year and
// a one or two digit day in any order, e.g. "1968 October 16" or
// "July 1961 14". Any other token shape is rejected.
func parseNamedMonth(s string) (time.Time, bool) {
	tokens := tokenSplit.Split(s, -1)

	var (
		month            time.Month
		year, day        int
		gotM, gotY, gotD bool
	)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if m, ok := monthNames[strings.ToLower(tok)]; ok && !gotM {
			month, gotM = m, true
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return time.Time{}, false
		}
		switch {
		case len(tok) == 4 && !gotY:
			year, gotY = n, true
		case len(tok) <= 2 && !gotD:
			day, gotD = n, true
		default:
			return time.Time{}, false
		}
	}
	if !gotM || !gotY || !gotD {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow; reject it instead
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}
