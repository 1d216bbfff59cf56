package datetime

import (
	"errors"
	"testing"
	"time"
)

// wednesday is the reference "now" for deterministic weekday math.
var wednesday = time.Date(2025, 8, 13, 10, 0, 0, 0, time.UTC)

func TestParseNumericDates(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"15.08.25 19:00", time.Date(2025, 8, 15, 19, 0, 0, 0, time.UTC)},
		{"01.12.2024 14:30", time.Date(2024, 12, 1, 14, 30, 0, 0, time.UTC)},
		{"25.12.24 20.15", time.Date(2024, 12, 25, 20, 15, 0, 0, time.UTC)},
		{"31.12.2024 23:30", time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)},
		{"01.01.00 12:00", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"01.01.30 12:00", time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"01.01.31 12:00", time.Date(1931, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"01.01.99 12:00", time.Date(1999, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"15.08.25 19:00 whatever", time.Date(2025, 8, 15, 19, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := parseAt(tc.input, wednesday)
			if !got.Equal(tc.want) {
				t.Fatalf("parseAt(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseRejectsImpossibleDates(t *testing.T) {
	// 2025 is not a leap year, so the numeric path must refuse Feb 29 and
	// let the phrase path pick it up as a bare time one week ahead.
	cases := []struct {
		input string
		want  time.Time
	}{
		{"29.02.25 10:00", time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)},
		{"30.02.25 10:00", time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)},
		{"31.04.25 09:00", time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)},
		{"32.01.25 10:00", time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)},
		{"15.13.25 10:00", time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := parseAt(tc.input, wednesday)
			if !got.Equal(tc.want) {
				t.Fatalf("parseAt(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}

	got := parseAt("29.02.24 10:00", wednesday)
	want := time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("leap year Feb 29 should parse, got %s want %s", got, want)
	}
}

func TestParseNaturalPhrases(t *testing.T) {
	// The reference now is Wednesday 2025-08-13.
	cases := []struct {
		input string
		want  time.Time
	}{
		{"Friday 19:00", time.Date(2025, 8, 15, 19, 0, 0, 0, time.UTC)},
		{"fredag 19:00", time.Date(2025, 8, 15, 19, 0, 0, 0, time.UTC)},
		{"vendredi 19:00", time.Date(2025, 8, 15, 19, 0, 0, 0, time.UTC)},
		{"FRIDAY 19:00", time.Date(2025, 8, 15, 19, 0, 0, 0, time.UTC)},
		{"  Friday 19:00  ", time.Date(2025, 8, 15, 19, 0, 0, 0, time.UTC)},
		{"Monday 14.30", time.Date(2025, 8, 18, 14, 30, 0, 0, time.UTC)},
		{"måndag 14:00", time.Date(2025, 8, 18, 14, 0, 0, 0, time.UTC)},
		{"lundi 14:00", time.Date(2025, 8, 18, 14, 0, 0, 0, time.UTC)},
		{"tisdag 20:30", time.Date(2025, 8, 19, 20, 30, 0, 0, time.UTC)},
		{"mardi 20:30", time.Date(2025, 8, 19, 20, 30, 0, 0, time.UTC)},
		// Same weekday as today means a full week ahead.
		{"wednesday", time.Date(2025, 8, 20, 19, 0, 0, 0, time.UTC)},
		{"söndag", time.Date(2025, 8, 17, 19, 0, 0, 0, time.UTC)},
		{"dimanche 15.30", time.Date(2025, 8, 17, 15, 30, 0, 0, time.UTC)},
		// A bare time with no weekday lands one week ahead.
		{"around 20:00", time.Date(2025, 8, 20, 20, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := parseAt(tc.input, wednesday)
			if !got.Equal(tc.want) {
				t.Fatalf("parseAt(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseFallback(t *testing.T) {
	want := time.Date(2025, 8, 14, 19, 0, 0, 0, time.UTC)
	for _, input := range []string{"garbage", "invalid date string", "", "next time"} {
		if got := parseAt(input, wednesday); !got.Equal(want) {
			t.Fatalf("parseAt(%q) = %s, want tomorrow at 19:00 (%s)", input, got, want)
		}
	}
}

func TestParseNeverReturnsPast(t *testing.T) {
	now := time.Now().UTC()
	got := Parse("garbage")
	if got.Before(now.Add(-5 * time.Second)) {
		t.Fatalf("Parse returned a past timestamp: %s", got)
	}
	if got.Hour() != 19 || got.Minute() != 0 {
		t.Fatalf("fallback should land at 19:00, got %s", got)
	}
}

func TestParseISO(t *testing.T) {
	got, err := ParseISO("2024-12-01T19:00:00Z")
	if err != nil {
		t.Fatalf("ParseISO: %v", err)
	}
	want := time.Date(2024, 12, 1, 19, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseISO = %s, want %s", got, want)
	}

	_, err = ParseISO("not a timestamp")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.Input != "not a timestamp" {
		t.Fatalf("unexpected input in error: %q", parseErr.Input)
	}
}

func TestParseClockTimeBeatsISODate(t *testing.T) {
	// An RFC 3339 string carries a clock time, so the phrase path claims it
	// before the strict ISO step runs: one week ahead at that time.
	got := parseAt("2024-12-01T19:00:00Z", wednesday)
	want := time.Date(2025, 8, 20, 19, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("parseAt = %s, want %s", got, want)
	}
}

func TestExtractTime(t *testing.T) {
	cases := []struct {
		input  string
		hour   int
		minute int
		ok     bool
	}{
		{"friday 19:30", 19, 30, true},
		{"monday 14:00", 14, 0, true},
		{"08:45", 8, 45, true},
		{"23:59", 23, 59, true},
		{"friday 19.30", 19, 30, true},
		{"08.45", 8, 45, true},
		{"friday 25:30", 0, 0, false},
		{"monday 14:60", 0, 0, false},
		{"no time here", 0, 0, false},
		{"", 0, 0, false},
		{"19:", 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			hour, minute, ok := extractTime(tc.input)
			if ok != tc.ok || hour != tc.hour || minute != tc.minute {
				t.Fatalf("extractTime(%q) = (%d, %d, %v), want (%d, %d, %v)",
					tc.input, hour, minute, ok, tc.hour, tc.minute, tc.ok)
			}
		})
	}
}

func TestDaysUntilWeekday(t *testing.T) {
	// From a Wednesday: Thursday is tomorrow, Wednesday is a week away.
	cases := []struct {
		target int
		want   int
	}{
		{4, 1},
		{5, 2},
		{6, 3},
		{7, 4},
		{1, 5},
		{2, 6},
		{3, 7},
	}

	for _, tc := range cases {
		if got := daysUntilWeekday(tc.target, wednesday); got != tc.want {
			t.Fatalf("daysUntilWeekday(%d) = %d, want %d", tc.target, got, tc.want)
		}
	}
}

func TestFormat(t *testing.T) {
	dt := time.Date(2024, 12, 1, 19, 30, 0, 0, time.UTC)
	got := Format(dt)
	want := "Sunday, 01 December at 19:30"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}
