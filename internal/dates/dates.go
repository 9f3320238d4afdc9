// Package dates provides canonical date/datetime parsing and the date helpers
// shared by filter compilation and DATE_FUNCTION sources.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical YYYY-MM-DD layout.
	DateLayout = "2006-01-02"
	// DatetimeLayout is the canonical minute-precision datetime layout.
	DatetimeLayout = "2006-01-02T15:04"
	// ISOLayout is the layout used when a timestamp is rendered as text.
	ISOLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// IsValidDate checks if a string is a valid YYYY-MM-DD date.
func IsValidDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !IsValidDate(s) {
		return time.Time{}, fmt.Errorf("invalid date: %q", s)
	}
	return time.Parse(DateLayout, s)
}

// IsValidDatetime checks if a string is a valid datetime.
//
// Accepted formats:
// - RFC3339 with optional fractional seconds (e.g. 2025-01-01T10:30:00Z, 2025-06-15T14:00:00.123+05:00)
// - YYYY-MM-DDTHH:MM
// - YYYY-MM-DDTHH:MM:SS
// - YYYY-MM-DD HH:MM:SS
func IsValidDatetime(s string) bool {
	_, err := ParseDatetime(s)
	return err == nil
}

// ParseDatetime parses a datetime in one of the accepted formats.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid datetime: empty")
	}

	formats := []string{
		time.RFC3339Nano,
		DatetimeLayout,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime: %q", s)
}

// Parse accepts either a date or a datetime.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsValidDate(s) {
		t, err := ParseDate(s)
		return t, err == nil
	}
	t, err := ParseDatetime(s)
	return t, err == nil
}

// IsPlainNumber reports whether s is a bare numeric literal such as "42" or "-3.5".
func IsPlainNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// LooksLikeDate reports whether s should be compared as a date: it parses as a
// date or datetime and is not also a plain number.
func LooksLikeDate(s string) bool {
	if IsPlainNumber(s) {
		return false
	}
	_, ok := Parse(s)
	return ok
}

// FormatISO renders t in UTC using ISOLayout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// EndOfWeek returns the Sunday on or after t.
func EndOfWeek(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 6)
}
