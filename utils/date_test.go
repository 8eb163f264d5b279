package utils

import (
	"errors"
	"testing"
	"time"
)

func TestParseCloseDate(t *testing.T) {
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"20240105", "2024-01-05", " 2024-01-05 "} {
		got, err := ParseCloseDate(in)
		if err != nil {
			t.Fatalf("ParseCloseDate(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseCloseDate(%q): want %v got %v", in, want, got)
		}
	}
}

func TestParseCloseDateInvalid(t *testing.T) {
	// a hyphen always selects YYYY-MM-DD, so mixed forms fail
	for _, in := range []string{"", "2024010", "2024-0105", "202401-05", "2024/01/05", "20241305", "2024-02-30", "yesterday"} {
		if _, err := ParseCloseDate(in); !errors.Is(err, ErrorInvalidDate) {
			t.Fatalf("ParseCloseDate(%q): want ErrorInvalidDate, got %v", in, err)
		}
	}
}

func TestParseDateRange(t *testing.T) {
	from, to, err := ParseDateRange("20240101", "2024-01-31")
	if err != nil {
		t.Fatalf("ParseDateRange: %v", err)
	}
	if to.Sub(from) != 30*24*time.Hour {
		t.Fatalf("unexpected range %v..%v", from, to)
	}
	if _, _, err := ParseDateRange("20240105", "20240105"); err != nil {
		t.Fatalf("single day range: %v", err)
	}
	if _, _, err := ParseDateRange("20240201", "20240101"); !errors.Is(err, ErrorValidation) {
		t.Fatalf("reversed range: want ErrorValidation, got %v", err)
	}
	if _, _, err := ParseDateRange("20240101", "bad"); !errors.Is(err, ErrorInvalidDate) {
		t.Fatalf("bad end: want ErrorInvalidDate, got %v", err)
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 1, 5, 23, 59, 59, 10, time.FixedZone("KST", 9*3600))
	got := DateOnly(in)
	if got.Location() != time.UTC || got.Hour() != 0 || got.Day() != 5 {
		t.Fatalf("DateOnly: %v", got)
	}
}
