package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeISORoundTrip(t *testing.T) {
	for _, s := range []string{"2026-02-07", "2024-02-29", "1999-12-31", "2026-01-01"} {
		assert.Equal(t, s, NormalizeISO(s))
		assert.True(t, IsValidISO(s))
	}
}

func TestNormalizeISOFormats(t *testing.T) {
	cases := map[string]string{
		"02/07/2026":           "2026-02-07",
		"2/7/2026":             "2026-02-07",
		"12/31/2026":           "2026-12-31",
		"07-02-2026":           "2026-02-07",
		"31-12-2026":           "2026-12-31",
		"2026-02-07T15:04:05Z": "2026-02-07",
		"2026-02-07 15:04:05":  "2026-02-07",
		"2026/02/07":           "2026-02-07",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeISO(raw), "input %q", raw)
	}
	// Slash reads month/day/year.
	assert.Equal(t, NormalizeISO("2026-02-07"), NormalizeISO("02/07/2026"))
}

func TestNormalizeISORejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"  ",
		"13/40/2026",
		"2026-02-30",
		"32-01-2026",
		"02/07/26", // two-digit years unsupported
		"7-2-26",
		"not a date",
		"Feb 7, 2026", // worded months are not a stored format
		"7 Feb 2026",
	} {
		assert.Equal(t, "", NormalizeISO(raw), "input %q", raw)
	}
	assert.False(t, IsValidISO(""))
	assert.False(t, IsValidISO("02/07/2026"))
}

func TestFormatDateUsesLocalFields(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 23:30 local is already the next day in UTC terms only after conversion;
	// local fields must win.
	ts := time.Date(2026, 2, 7, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-02-07", FormatDate(ts))
}

func TestRangeInclusive(t *testing.T) {
	got := Range("2026-02-01", "2026-02-05")
	require.Len(t, got, 5)
	assert.Equal(t, "2026-02-01", got[0])
	assert.Equal(t, "2026-02-05", got[4])

	assert.Equal(t, []string{"2026-02-07"}, Range("2026-02-07", "2026-02-07"))
	assert.Nil(t, Range("2026-02-05", "2026-02-01"))
	assert.Nil(t, Range("bogus", "2026-02-01"))
}

func TestRangeSpansMonthBoundary(t *testing.T) {
	got := Range("2026-01-30", "2026-02-02")
	assert.Equal(t, []string{"2026-01-30", "2026-01-31", "2026-02-01", "2026-02-02"}, got)
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(2026, 2)
	assert.Equal(t, "2026-02-01", start)
	assert.Equal(t, "2026-02-28", end)

	_, leap := MonthBounds(2024, 2)
	assert.Equal(t, "2024-02-29", leap)

	_, dec := MonthBounds(2025, 12)
	assert.Equal(t, "2025-12-31", dec)

	_, apr := MonthBounds(2026, 4)
	assert.Equal(t, "2026-04-30", apr)
}
