// Package dates normalises the calendar-date representations found in the
// store and in client payloads into the canonical ISO form YYYY-MM-DD.
package dates

import (
	"regexp"
	"strings"
	"time"
)

// ISO is the canonical layout for a DateStamp.
const ISO = "2006-01-02"

var (
	isoPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slashPattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	dashPattern  = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`)
)

// Fallback layouts tried for inputs that match none of the known shapes.
// Layouts containing a space or a T can never match: the time-of-day strip
// runs first, so only compact single-token layouts belong here.
var genericLayouts = []string{
	"2006/01/02",
}

// NormalizeISO converts raw into YYYY-MM-DD, or returns "" when the input is
// empty or cannot be read as a calendar date. Slash dates are month/day/year,
// dash dates are day-month-year; only four-digit years are recognised. Any
// time-of-day suffix (T- or space-separated) is stripped before parsing.
func NormalizeISO(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if idx := strings.IndexAny(s, "T "); idx > 0 {
		s = s[:idx]
	}

	switch {
	case isoPattern.MatchString(s):
		if _, err := time.ParseInLocation(ISO, s, time.Local); err != nil {
			return ""
		}
		return s
	case slashPattern.MatchString(s):
		t, err := time.ParseInLocation("1/2/2006", s, time.Local)
		if err != nil {
			return ""
		}
		return t.Format(ISO)
	case dashPattern.MatchString(s):
		t, err := time.ParseInLocation("2-1-2006", s, time.Local)
		if err != nil {
			return ""
		}
		return t.Format(ISO)
	}

	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Format(ISO)
		}
	}
	return ""
}

// IsValidISO reports whether s survives normalisation unchanged.
func IsValidISO(s string) bool {
	return NormalizeISO(s) == s && s != ""
}

// FormatDate renders t as YYYY-MM-DD using its own calendar fields, never a
// UTC conversion, so dates near midnight keep their local day.
func FormatDate(t time.Time) string {
	return t.Format(ISO)
}

// Parse returns the local-midnight time for a canonical DateStamp.
func Parse(stamp string) (time.Time, bool) {
	t, err := time.ParseInLocation(ISO, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Range lists every calendar date from start to end inclusive. Stepping uses
// AddDate rather than hour arithmetic so DST transitions cannot skip or
// duplicate a day. Returns nil when either bound is invalid or end precedes
// start.
func Range(start, end string) []string {
	from, ok := Parse(start)
	if !ok {
		return nil
	}
	to, ok := Parse(end)
	if !ok || to.Before(from) {
		return nil
	}
	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(ISO))
	}
	return out
}

// MonthBounds returns the first and last dates of the given month. The zero
// day of the following month resolves to the correct last day, leap years
// included.
func MonthBounds(year, month int) (string, string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.Local)
	return first.Format(ISO), last.Format(ISO)
}
