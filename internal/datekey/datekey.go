// Package datekey maps calendar days to the stable "YYYY-MM-DD" keys that
// partition planner records, and derives the day ranges built from them.
package datekey

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"

	"github.com/starford/daybook/internal/apperr"
)

// Layout is the reference layout of a date key.
const Layout = "2006-01-02"

// Format returns the date key of t's local calendar day.
// Time of day never changes the result.
func Format(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// Parse returns local midnight of the day named by key in loc.
func Parse(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(Layout, key, loc)
	if err != nil || Format(t) != key {
		return time.Time{}, fmt.Errorf("datekey: invalid key %q: %w", key, apperr.ErrValidation)
	}
	return t, nil
}

// Valid reports whether key is a well-formed, zero-padded date key.
func Valid(key string) bool {
	_, err := Parse(key, time.UTC)
	return err == nil
}

// Midnight truncates t to the start of its local day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days, landing on local midnight.
// Calendar arithmetic keeps DST transitions from skipping or repeating a day.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}

// Label renders t the way day headers show it, e.g. "Wednesday, November 19, 2025".
func Label(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// ParseAnchor resolves user input to a day. It accepts a date key, an empty
// string (today) or a natural-language phrase such as "next friday". Input
// that names no day is a validation error.
func ParseAnchor(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "today") || strings.EqualFold(input, "now") {
		return Midnight(now), nil
	}
	if t, err := Parse(input, now.Location()); err == nil {
		return t, nil
	}
	t, err := naturaldate.Parse(input, now, naturaldate.WithDirection(naturaldate.Future))
	// naturaldate hands back the reference time untouched when it
	// recognised nothing.
	if err != nil || t.Equal(now) {
		return time.Time{}, fmt.Errorf("datekey: parse anchor %q: %w", input, apperr.ErrValidation)
	}
	return Midnight(t), nil
}
