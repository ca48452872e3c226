// Package timeparse converts the heterogeneous timestamp strings rendered
// by the feed provider into canonical instants.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// recentlyOffset keeps vague "Recently" posts from tying with genuinely
// timestamped items when sorted by recency.
const recentlyOffset = time.Minute

// Month names the provider renders, English and Norwegian.
var months = map[string]time.Month{
	"january": time.January, "januar": time.January,
	"february": time.February, "februar": time.February,
	"march": time.March, "mars": time.March,
	"april":  time.April,
	"may":    time.May,
	"mai":    time.May,
	"june":   time.June,
	"juni":   time.June,
	"july":   time.July,
	"juli":   time.July,
	"august": time.August,
	"september": time.September,
	"october":   time.October,
	"oktober":   time.October,
	"november":  time.November,
	"december":  time.December,
	"desember":  time.December,
}

var (
	relativeExpr  = regexp.MustCompile(`^(\d+)\s*(m|min|h|t|d|w|u)$`)
	yesterdayExpr = regexp.MustCompile(`(?i)^(yesterday|i går|i gar)\s+at\s+(\d{1,2}):(\d{2})$`)
	fullExpr      = regexp.MustCompile(`(?i)^(?:[a-zæøå]+\s+)?(\d{1,2})\.?\s+([a-zæøå]+)\s+(\d{4})\s+at\s+(\d{1,2}):(\d{2})$`)
	dayMonthExpr  = regexp.MustCompile(`(?i)^(\d{1,2})\.?\s+([a-zæøå]+)\s+at\s+(\d{1,2}):(\d{2})$`)
	dateOnlyExpr  = regexp.MustCompile(`(?i)^(\d{1,2})\.?\s+([a-zæøå]+)(?:\s+(\d{4}))?$`)
	vagueTokens   = map[string]struct{}{
		"recently": {}, "nylig": {}, "just now": {}, "nå nettopp": {},
	}
)

// Parse converts a raw provider timestamp into an instant relative to now.
// The second return is false when the input is unrecognized; callers must
// treat that as "unknown", never as an error.
func Parse(raw string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := parseFull(s, now); ok {
		return t, true
	}
	if t, ok := parseDayMonthTime(s, now); ok {
		return t, true
	}
	if t, ok := parseRelative(s, now); ok {
		return t, true
	}
	if t, ok := parseYesterday(s, now); ok {
		return t, true
	}
	if t, ok := parseDateOnly(s, now); ok {
		return t, true
	}
	if _, ok := vagueTokens[strings.ToLower(s)]; ok {
		return now.Add(-recentlyOffset), true
	}
	return time.Time{}, false
}

// parseFull handles "Tuesday 24 January 2025 at 08:42" and the same form
// without the weekday prefix.
func parseFull(s string, now time.Time) (time.Time, bool) {
	m := fullExpr.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	return buildDate(year, month, day, hour, minute, now.Location())
}

// parseDayMonthTime handles "24 January at 08:42" and the localized
// "24. januar at 08:42". Years are resolved against now and rolled back one
// year when the result would land in the future.
func parseDayMonthTime(s string, now time.Time) (time.Time, bool) {
	m := dayMonthExpr.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])

	t, ok := buildDate(now.Year(), month, day, hour, minute, now.Location())
	if !ok {
		return time.Time{}, false
	}
	if t.After(now) {
		t, ok = buildDate(now.Year()-1, month, day, hour, minute, now.Location())
	}
	return t, ok
}

// parseRelative handles short forms like "5m", "7h", "2d", "1w" and the
// Norwegian "t" (timer) and "u" (uker) variants.
func parseRelative(s string, now time.Time) (time.Time, bool) {
	m := relativeExpr.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch m[2] {
	case "m", "min":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "h", "t":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "d":
		return now.AddDate(0, 0, -n), true
	case "w", "u":
		return now.AddDate(0, 0, -7*n), true
	}
	return time.Time{}, false
}

func parseYesterday(s string, now time.Time) (time.Time, bool) {
	m := yesterdayExpr.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	y := now.AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), hour, minute, 0, 0, now.Location()), true
}

// parseDateOnly handles "5 May 2025" and "5 May", defaulting to midday.
func parseDateOnly(s string, now time.Time) (time.Time, bool) {
	m := dateOnlyExpr.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])

	year := now.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(m[3])
	}

	t, ok := buildDate(year, month, day, 12, 0, now.Location())
	if !ok {
		return time.Time{}, false
	}
	if !explicitYear && t.After(now) {
		t, ok = buildDate(year-1, month, day, 12, 0, now.Location())
	}
	return t, ok
}

// buildDate validates the calendar fields; time.Date would silently
// normalize "31 February" into March.
func buildDate(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	if day < 1 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
