package models

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006/01/02",
	"20060102",
	"2006-01",
}

// ParseMonth parses the date and period formats found in the raw sources and
// returns the first day of the month it falls in. Eurostat periods are
// supported: 2021M03, 2021-Q2 (first month of the quarter) and 2021 (January).
func ParseMonth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthStart(t), true
		}
	}

	return parsePeriod(s)
}

func parsePeriod(s string) (time.Time, bool) {
	if len(s) < 4 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return time.Time{}, false
	}
	rest := strings.TrimPrefix(strings.ToUpper(s[4:]), "-")

	switch {
	case rest == "":
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	case strings.HasPrefix(rest, "M"):
		m, err := strconv.Atoi(rest[1:])
		if err != nil || m < 1 || m > 12 {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC), true
	case strings.HasPrefix(rest, "Q"):
		q, err := strconv.Atoi(rest[1:])
		if err != nil || q < 1 || q > 4 {
			return time.Time{}, false
		}
		return time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// ParseValue parses a numeric cell. Empty cells and the usual NA markers are null.
func ParseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NaN", "nan", "NA", "<nil>", "null", ":":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
