package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	CompactDateLayout    = "20060102"
	HyphenatedDateLayout = "2006-01-02"
)

// ParseCloseDate accepts YYYYMMDD or YYYY-MM-DD. A hyphen anywhere selects the hyphenated layout.
// The result is a calendar date at UTC midnight.
func ParseCloseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layout := CompactDateLayout
	if strings.Contains(value, "-") {
		layout = HyphenatedDateLayout
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrorInvalidDate, value)
	}
	return t, nil
}

// ParseDateRange parses an inclusive [start, end] pair and rejects start > end.
func ParseDateRange(start string, end string) (time.Time, time.Time, error) {
	from, err := ParseCloseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseCloseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, NewValidationError("start_date", "ltefield=end_date")
	}
	return from, to, nil
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
