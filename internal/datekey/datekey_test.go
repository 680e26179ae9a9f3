package datekey

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/starford/daybook/internal/apperr"
)

var keyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var behindUTC = time.FixedZone("UTC-5", -5*60*60)

func TestFormat_ZeroPadded(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC), "2025-01-05"},
		{time.Date(2025, time.November, 19, 12, 30, 0, 0, time.UTC), "2025-11-19"},
		{time.Date(987, time.December, 31, 23, 59, 59, 0, time.UTC), "0987-12-31"},
	}
	for _, tc := range cases {
		if got := Format(tc.in); got != tc.want {
			t.Errorf("Format(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormat_LocalNotUTC(t *testing.T) {
	// 23:30 at UTC-5 is already the next day in UTC.
	late := time.Date(2025, time.March, 9, 23, 30, 0, 0, behindUTC)
	if got := Format(late); got != "2025-03-09" {
		t.Errorf("Format = %q, want local day 2025-03-09", got)
	}
}

func TestFormat_SameDayProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		y := rapid.IntRange(1, 9999).Draw(t, "year")
		m := rapid.IntRange(1, 12).Draw(t, "month")
		d := rapid.IntRange(1, 28).Draw(t, "day")
		h1 := rapid.IntRange(0, 23).Draw(t, "h1")
		h2 := rapid.IntRange(0, 23).Draw(t, "h2")
		min := rapid.IntRange(0, 59).Draw(t, "min")

		a := time.Date(y, time.Month(m), d, h1, min, 0, 0, behindUTC)
		b := time.Date(y, time.Month(m), d, h2, 0, 0, 0, behindUTC)
		ka, kb := Format(a), Format(b)
		if ka != kb {
			t.Fatalf("same day produced %q and %q", ka, kb)
		}
		if !keyRe.MatchString(ka) {
			t.Fatalf("key %q does not match YYYY-MM-DD", ka)
		}
	})
}

func TestParse_RoundTrip(t *testing.T) {
	got, err := Parse("2025-11-19", behindUTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if Format(got) != "2025-11-19" {
		t.Errorf("round trip = %q", Format(got))
	}
	if got.Hour() != 0 || got.Location() != behindUTC {
		t.Errorf("expected local midnight, got %v", got)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "2025-1-5", "2025/01/05", "2025-13-01", "2025-02-30", "20250105"} {
		if _, err := Parse(in, time.UTC); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
		if Valid(in) {
			t.Errorf("Valid(%q) = true", in)
		}
	}
}

func TestAddDays_CrossesMonthAndYear(t *testing.T) {
	start := time.Date(2025, time.December, 30, 15, 0, 0, 0, time.UTC)
	if got := Format(AddDays(start, 3)); got != "2026-01-02" {
		t.Errorf("AddDays = %q", got)
	}
	if got := Format(AddDays(start, -30)); got != "2025-11-30" {
		t.Errorf("AddDays back = %q", got)
	}
}

func TestLabel(t *testing.T) {
	d := time.Date(2025, time.November, 19, 0, 0, 0, 0, time.UTC)
	if got := Label(d); got != "Wednesday, November 19, 2025" {
		t.Errorf("Label = %q", got)
	}
}

func TestParseAnchor(t *testing.T) {
	now := time.Date(2025, time.November, 19, 15, 4, 5, 0, time.UTC)

	got, err := ParseAnchor("", now)
	if err != nil || Format(got) != "2025-11-19" || got.Hour() != 0 {
		t.Errorf("empty anchor = %v, %v", got, err)
	}

	got, err = ParseAnchor("2024-02-29", now)
	if err != nil || Format(got) != "2024-02-29" {
		t.Errorf("key anchor = %v, %v", got, err)
	}

	got, err = ParseAnchor("tomorrow", now)
	if err != nil {
		t.Fatalf("tomorrow: %v", err)
	}
	if diff := cmp.Diff("2025-11-20", Format(got)); diff != "" {
		t.Errorf("tomorrow (-want +got):\n%s", diff)
	}
	for _, input := range []string{"bogus", "hello world"} {
		if got, err := ParseAnchor(input, now); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ParseAnchor(%q) = %v, %v; want validation error", input, got, err)
		}
	}
}
