package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIDJSON(t *testing.T) {
	cases := []struct {
		id   ID
		want string
	}{
		{"1700000000000", `1700000000000`},
		{"job-7", `"job-7"`},
		{"007", `"007"`},
	}
	for _, tc := range cases {
		out, err := json.Marshal(tc.id)
		if err != nil {
			t.Fatalf("Marshal(%q): %v", tc.id, err)
		}
		if string(out) != tc.want {
			t.Errorf("Marshal(%q) = %s, want %s", tc.id, out, tc.want)
		}
		var back ID
		if err := json.Unmarshal(out, &back); err != nil {
			t.Fatalf("Unmarshal(%s): %v", out, err)
		}
		if back != tc.id {
			t.Errorf("round trip %q -> %q", tc.id, back)
		}
	}
}

func TestIDUnmarshal_RejectsObjects(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Error("expected error for object id")
	}
}

func TestIDGenerator_Unique(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := &IDGenerator{now: func() time.Time { return fixed }}
	seen := map[ID]bool{}
	for i := 0; i < 100; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if g.Next() != "1700000000100" {
		t.Errorf("ids should bump by one millisecond on collision")
	}
}

func TestNoteValidate(t *testing.T) {
	if err := NewNote("1", "  buy nails ").Validate(); err != nil {
		t.Errorf("valid note rejected: %v", err)
	}
	if NewNote("1", "  buy nails ").Text != "buy nails" {
		t.Error("NewNote should trim text")
	}
	for _, text := range []string{"", "   ", "\t\n"} {
		if err := (Note{ID: "1", Text: text}).Validate(); err == nil {
			t.Errorf("blank text %q accepted", text)
		}
	}
}

func TestJobValidate(t *testing.T) {
	ok := Job{ID: "a", Title: "Fix fence", DateKey: "2025-11-19", Quote: 12000}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid job rejected: %v", err)
	}

	blank := ok
	blank.Title = "  "
	if err := blank.Validate(); err == nil {
		t.Error("blank title accepted")
	}

	badKey := ok
	badKey.DateKey = "2025-1-9"
	if err := badKey.Validate(); err == nil {
		t.Error("malformed date key accepted")
	}

	negative := ok
	negative.Quote = -1
	if err := negative.Validate(); err == nil {
		t.Error("negative quote accepted")
	}
}

func TestJobJSONShape(t *testing.T) {
	j := Job{
		ID:        "1700000000000",
		Title:     "Deck",
		Quote:     125050,
		Status:    StatusPending,
		DateKey:   "2025-11-19",
		CreatedAt: time.Date(2025, time.November, 19, 8, 0, 0, 0, time.UTC),
	}
	out, err := json.Marshal(j)
	if err != nil {
		t.Fatal(err)
	}
	var flat map[string]any
	if err := json.Unmarshal(out, &flat); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"id":        float64(1700000000000),
		"title":     "Deck",
		"quote":     1250.5,
		"status":    "Pending",
		"dateKey":   "2025-11-19",
		"createdAt": "2025-11-19T08:00:00Z",
	}
	if diff := cmp.Diff(want, flat); diff != "" {
		t.Errorf("job JSON (-want +got):\n%s", diff)
	}
}

func TestStatusCycle_WrapsAfterFullTurn(t *testing.T) {
	for _, cycle := range []StatusCycle{BasicStatuses, ExtendedStatuses} {
		for _, start := range cycle {
			s := start
			for i := 0; i < len(cycle); i++ {
				s = cycle.Next(s)
			}
			if s != start {
				t.Errorf("after %d advances from %q got %q", len(cycle), start, s)
			}
		}
	}
	if BasicStatuses.Next(StatusComplete) != StatusPending {
		t.Error("Complete should wrap to Pending")
	}
	if BasicStatuses.Next("Bogus") != StatusPending {
		t.Error("unknown status should restart the cycle")
	}
}

func TestStatusCycleByName(t *testing.T) {
	c, err := StatusCycleByName("extended")
	if err != nil || len(c) != 5 {
		t.Errorf("extended = %v, %v", c, err)
	}
	if _, err := StatusCycleByName("weird"); err == nil {
		t.Error("unknown cycle accepted")
	}
}

func TestParseKind(t *testing.T) {
	if k, _ := ParseKind("Jobs"); k != KindJob {
		t.Errorf("ParseKind(Jobs) = %q", k)
	}
	if k, _ := ParseKind(""); k != KindNote {
		t.Errorf("ParseKind('') = %q", k)
	}
	if _, err := ParseKind("tasks"); err == nil {
		t.Error("unknown kind accepted")
	}
}
