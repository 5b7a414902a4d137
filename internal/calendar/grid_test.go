package calendar

import (
	"testing"
	"time"

	"hiredesk/internal/model"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestBuildLeapFebruary(t *testing.T) {
	ref := time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)
	cells := Build(ref, time.UTC, nil)

	// Feb 2024 starts on a Thursday: 4 leading cells (Sun-Wed), 29
	// current-month cells, 2 trailing cells, 35 total.
	if len(cells) != 35 {
		t.Fatalf("expected 35 cells, got %d", len(cells))
	}

	current := 0
	for _, c := range cells {
		if c.IsCurrentMonth {
			current++
		}
	}
	if current != 29 {
		t.Fatalf("expected 29 current-month cells, got %d", current)
	}

	for i, c := range cells[:4] {
		if c.IsCurrentMonth {
			t.Fatalf("leading cell %d flagged current-month", i)
		}
		if len(c.Events) != 0 {
			t.Fatalf("leading cell %d has events", i)
		}
	}
	if !cells[4].Date.Equal(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first current cell is %v, want Feb 1", cells[4].Date)
	}
}

func TestBuildGridInvariants(t *testing.T) {
	// Sweep a year of months; the shape invariants must hold for all.
	for m := time.January; m <= time.December; m++ {
		ref := time.Date(2025, m, 1, 0, 0, 0, 0, time.UTC)
		cells := Build(ref, time.UTC, nil)

		if len(cells) == 0 || len(cells)%7 != 0 {
			t.Fatalf("%v: cell count %d is not a positive multiple of 7", m, len(cells))
		}

		for i := 1; i < len(cells); i++ {
			if !cells[i].Date.After(cells[i-1].Date) {
				t.Fatalf("%v: cells not strictly ascending at %d", m, i)
			}
		}

		// Exactly one contiguous run of current-month cells, one per day.
		runs, runLen := 0, 0
		for i, c := range cells {
			if c.IsCurrentMonth {
				runLen++
				if i == 0 || !cells[i-1].IsCurrentMonth {
					runs++
				}
			}
		}
		lastDay := time.Date(2025, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
		if runs != 1 || runLen != lastDay {
			t.Fatalf("%v: got %d runs of %d current cells, want 1 run of %d", m, runs, runLen, lastDay)
		}
	}
}

func TestBuildAttributesEventsByCalendarDate(t *testing.T) {
	events := []model.ScheduleEvent{
		{ID: "a", StartDate: "2024-02-29T10:00:00Z"},
		{ID: "b", StartDate: "2024-02-05"},
		{ID: "c", StartDate: "2024-03-01"}, // outside the displayed month
		{ID: "d", StartDate: "not-a-date"},
	}
	ref := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	// Attribution must not depend on the display zone's offset.
	for _, loc := range []*time.Location{time.UTC, mustLoc(t, "America/Los_Angeles"), mustLoc(t, "Asia/Manila")} {
		cells := Build(ref, loc, events)

		placed := map[string]int{}
		for i, c := range cells {
			for _, ev := range c.Events {
				placed[ev.ID] = i
				if c.Date.Day() != 29 && ev.ID == "a" {
					t.Fatalf("%v: event a on day %d, want 29", loc, c.Date.Day())
				}
			}
		}
		if _, ok := placed["a"]; !ok {
			t.Fatalf("%v: leap-day event not placed", loc)
		}
		if _, ok := placed["b"]; !ok {
			t.Fatalf("%v: plain-date event not placed", loc)
		}
		if _, ok := placed["c"]; ok {
			t.Fatalf("%v: out-of-month event was placed", loc)
		}
		if _, ok := placed["d"]; ok {
			t.Fatalf("%v: malformed event was placed", loc)
		}
	}
}

func TestAdvanceMonthRoundTrip(t *testing.T) {
	ref := time.Date(2024, time.February, 29, 12, 30, 0, 0, time.UTC)

	fwd := AdvanceMonth(ref, Forward)
	if fwd.Year() != 2024 || fwd.Month() != time.March || fwd.Day() != 1 {
		t.Fatalf("forward from Feb 2024 = %v, want Mar 1 2024", fwd)
	}

	back := AdvanceMonth(fwd, Back)
	if back.Year() != 2024 || back.Month() != time.February || back.Day() != 1 {
		t.Fatalf("round trip = %v, want Feb 1 2024", back)
	}

	// Jan 31 must not overflow into March when moving forward.
	jan := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	if got := AdvanceMonth(jan, Forward); got.Month() != time.February {
		t.Fatalf("forward from Jan 31 = %v, want February", got)
	}
}

func TestFormatTime(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"14:05", "2:05 PM"},
		{"2:05 PM", "2:05 PM"},
		{"00:15", "12:15 AM"},
		{"12:00", "12:00 PM"},
		{"09:30:00", "9:30 AM"},
		{"9:05 am", "9:05 am"}, // already marked, passed through as-is
		{"", ""},
		{"garbage", "garbage"},
	}
	for _, tc := range cases {
		if got := FormatTime(tc.in); got != tc.want {
			t.Errorf("FormatTime(%q) = %q, want %q", tc.in, got, tc.want)
		}
		// Idempotence holds for every input.
		if once := FormatTime(tc.in); FormatTime(once) != once {
			t.Errorf("FormatTime not idempotent for %q", tc.in)
		}
	}
}
