// Package datetime turns free-text time phrases into UTC timestamps.
package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// defaultHour is used when a phrase carries no explicit time of day.
const defaultHour = 19

// ParseError reports an input the strict ISO-8601 path could not parse.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as ISO-8601 timestamp: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts a free-text phrase into a UTC timestamp. It never fails:
// it tries an explicit numeric date ("15.08.25 19:00"), then a natural
// phrase ("friday 19:00"), then a strict ISO-8601 timestamp, and finally
// falls back to tomorrow at 19:00 UTC.
func Parse(text string) time.Time {
	return parseAt(text, time.Now().UTC())
}

func parseAt(text string, now time.Time) time.Time {
	input := strings.TrimSpace(text)

	if t, ok := parseNumericDate(input); ok {
		return t
	}
	if t, ok := parseNaturalPhrase(input, now); ok {
		return t
	}
	if t, err := ParseISO(input); err == nil {
		return t
	}

	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), defaultHour, 0, 0, 0, time.UTC)
}

// ParseISO parses a strict ISO-8601 (RFC 3339) timestamp
func ParseISO(text string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, &ParseError{Input: text, Err: err}
	}
	return t.UTC(), nil
}

// Format renders a timestamp the way it is shown to users,
// e.g. "Monday, 01 December at 19:30"
func Format(t time.Time) string {
	return t.UTC().Format("Monday, 02 January at 15:04")
}

// parseNumericDate parses "D.M.Y H:M" or "D.M.Y H.M" with a 2- or 4-digit
// year. 2-digit years up to 30 map to 2000+, the rest to 1900+.
func parseNumericDate(input string) (time.Time, bool) {
	parts := strings.Fields(input)
	if len(parts) < 2 {
		return time.Time{}, false
	}

	dateParts := strings.Split(parts[0], ".")
	if len(dateParts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(dateParts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(dateParts[1])
	if err != nil {
		return time.Time{}, false
	}

	var year int
	switch len(dateParts[2]) {
	case 2:
		y, err := strconv.Atoi(dateParts[2])
		if err != nil || y < 0 {
			return time.Time{}, false
		}
		if y <= 30 {
			year = 2000 + y
		} else {
			year = 1900 + y
		}
	case 4:
		year, err = strconv.Atoi(dateParts[2])
		if err != nil {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}

	hour, minute, ok := extractTime(parts[1])
	if !ok {
		return time.Time{}, false
	}

	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	if month == 2 && day > 29 {
		return time.Time{}, false
	}
	if (month == 4 || month == 6 || month == 9 || month == 11) && day > 30 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes out-of-range dates (Feb 29 in a non-leap year
	// becomes Mar 1), which must count as a failed parse here.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

// weekdayTokens maps localized weekday names to ISO weekday numbers
// (Monday=1..Sunday=7). Entries are scanned in order, so adding a locale
// is appending rows, not touching control flow.
var weekdayTokens = []struct {
	name string
	iso  int
}{
	{"monday", 1}, {"måndag", 1}, {"lundi", 1},
	{"tuesday", 2}, {"tisdag", 2}, {"mardi", 2},
	{"wednesday", 3}, {"onsdag", 3}, {"mercredi", 3},
	{"thursday", 4}, {"torsdag", 4}, {"jeudi", 4},
	{"friday", 5}, {"fredag", 5}, {"vendredi", 5},
	{"saturday", 6}, {"lördag", 6}, {"samedi", 6},
	{"sunday", 7}, {"söndag", 7}, {"dimanche", 7},
}

// parseNaturalPhrase handles phrases like "friday 19:00" or "tisdag 20.30".
// It matches only when the input carries a weekday token or a time token;
// a weekday without a time defaults to 19:00, a time without a weekday
// defaults to one week ahead.
func parseNaturalPhrase(input string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(input)

	hour, minute, timeFound := extractTime(lower)
	targetWeekday, weekdayFound := findWeekday(lower)
	if !weekdayFound && !timeFound {
		return time.Time{}, false
	}

	if !timeFound {
		hour, minute = defaultHour, 0
	}

	daysAhead := 7
	if weekdayFound {
		daysAhead = daysUntilWeekday(targetWeekday, now)
	}

	target := now.AddDate(0, 0, daysAhead)
	return time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, time.UTC), true
}

// findWeekday returns the ISO weekday of the first recognized token
func findWeekday(lower string) (int, bool) {
	for _, token := range weekdayTokens {
		if strings.Contains(lower, token.name) {
			return token.iso, true
		}
	}
	return 0, false
}

// daysUntilWeekday computes the days until the next occurrence of the
// target ISO weekday; the same weekday counts as a full week ahead.
func daysUntilWeekday(target int, now time.Time) int {
	today := isoWeekday(now.Weekday())
	if target > today {
		return target - today
	}
	return 7 - today + target
}

// isoWeekday converts Go's Sunday-based weekday to ISO (Monday=1..Sunday=7)
func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// extractTime finds the first colon- or dot-separated two-digit time pair
// anywhere in the input, e.g. "19:30" or "14.45"
func extractTime(input string) (int, int, bool) {
	if hour, minute, ok := timeAround(input, ':'); ok {
		return hour, minute, true
	}
	if hour, minute, ok := timeAround(input, '.'); ok {
		return hour, minute, true
	}
	return 0, 0, false
}

// timeAround reads up to two digits before and exactly two digits after
// the first occurrence of sep. Only the first occurrence is considered.
func timeAround(input string, sep byte) (int, int, bool) {
	pos := strings.IndexByte(input, sep)
	if pos == -1 {
		return 0, 0, false
	}
	if pos+3 > len(input) {
		return 0, 0, false
	}

	start := pos - 2
	if start < 0 {
		start = 0
	}
	hour, err := strconv.Atoi(input[start:pos])
	if err != nil {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(input[pos+1 : pos+3])
	if err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour >= 24 || minute < 0 || minute >= 60 {
		return 0, 0, false
	}
	return hour, minute, true
}
