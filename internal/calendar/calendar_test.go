package calendar

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, zone string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	if err != nil {
		t.Fatalf("LoadLocation(%q): %v", zone, err)
	}
	return loc
}

func TestParse_RejectsMalformedLabels(t *testing.T) {
	for _, s := range []string{"", "2026-1-10", "2026-13-01", "2026-02-30", "10/01/2026", "2026-01-10T00:00:00Z"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
	if d, err := Parse("2026-01-10"); err != nil || d != "2026-01-10" {
		t.Errorf("Parse(2026-01-10) = %q, %v", d, err)
	}
}

func TestMustParse_PanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustParse to panic on an invalid label")
		}
	}()
	MustParse("2026-02-30")
}

func TestDay_PrevNext_CrossBoundaries(t *testing.T) {
	cases := []struct {
		day, prev, next string
	}{
		{"2026-01-01", "2025-12-31", "2026-01-02"},
		{"2026-03-01", "2026-02-28", "2026-03-02"},
		{"2028-03-01", "2028-02-29", "2028-03-02"},
		{"2026-03-08", "2026-03-07", "2026-03-09"},
		{"2026-11-01", "2026-10-31", "2026-11-02"},
	}
	for _, c := range cases {
		d := MustParse(c.day)
		if got := d.Prev(); got != Day(c.prev) {
			t.Errorf("%s.Prev() = %s, want %s", c.day, got, c.prev)
		}
		if got := d.Next(); got != Day(c.next) {
			t.Errorf("%s.Next() = %s, want %s", c.day, got, c.next)
		}
	}
}

func TestDay_CompareIsChronological(t *testing.T) {
	a, b := MustParse("2025-12-31"), MustParse("2026-01-01")
	if !a.Before(b) || b.Before(a) || !b.After(a) {
		t.Errorf("ordering of %s and %s is wrong", a, b)
	}
	if a.Compare(a) != 0 {
		t.Error("a day must compare equal to itself")
	}
}

func TestDaysBetween(t *testing.T) {
	if n := DaysBetween("2026-01-10", "2026-01-12"); n != 2 {
		t.Errorf("DaysBetween = %d, want 2", n)
	}
	if n := DaysBetween("2026-03-01", "2026-03-31"); n != 30 {
		t.Errorf("DaysBetween across DST = %d, want 30", n)
	}
	if n := DaysBetween("2026-01-12", "2026-01-10"); n != -2 {
		t.Errorf("DaysBetween reversed = %d, want -2", n)
	}
}

func TestDay_MDY(t *testing.T) {
	if got := MustParse("2026-01-10").MDY(); got != "1/10/2026" {
		t.Errorf("MDY = %q, want 1/10/2026", got)
	}
	if got := MustParse("2026-12-03").MDY(); got != "12/3/2026" {
		t.Errorf("MDY = %q, want 12/3/2026", got)
	}
}

func TestClock_DayOf_UsesFixedZone(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	c := NewClock(ny)

	// 03:30 UTC on the 11th is still the evening of the 10th in New York.
	instant := time.Date(2026, 1, 11, 3, 30, 0, 0, time.UTC)
	if got := c.DayOf(instant); got != "2026-01-10" {
		t.Errorf("DayOf = %s, want 2026-01-10", got)
	}

	// The same instant observed from a different local zone gives the same label.
	tokyo := mustLoad(t, "Asia/Tokyo")
	if got := c.DayOf(instant.In(tokyo)); got != "2026-01-10" {
		t.Errorf("DayOf(tokyo view) = %s, want 2026-01-10", got)
	}
}

func TestClock_DayOf_AcrossDSTTransitions(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	c := NewClock(ny)

	// Spring forward: 2026-03-08 02:00 EST -> 03:00 EDT. The day is 23 hours long.
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, ny)
	end := time.Date(2026, 3, 8, 23, 59, 59, 0, ny)
	if c.DayOf(start) != "2026-03-08" || c.DayOf(end) != "2026-03-08" {
		t.Errorf("spring-forward day boundaries mislabelled: %s, %s", c.DayOf(start), c.DayOf(end))
	}
	// Subtracting 24h from 00:30 on the 9th lands at 23:30 on the 7th, which
	// is why day arithmetic must not be done on raw durations.
	naive := c.DayOf(time.Date(2026, 3, 9, 0, 30, 0, 0, ny).Add(-24 * time.Hour))
	if naive != "2026-03-07" {
		t.Fatalf("test premise changed: naive subtraction gave %s", naive)
	}
	if got := MustParse("2026-03-09").Prev(); got != "2026-03-08" {
		t.Errorf("Prev across spring-forward = %s, want 2026-03-08", got)
	}

	// Fall back: 2026-11-01 has 25 hours.
	late := time.Date(2026, 11, 1, 23, 30, 0, 0, ny)
	if got := c.DayOf(late); got != "2026-11-01" {
		t.Errorf("fall-back late evening = %s, want 2026-11-01", got)
	}
}

func TestClock_TodayUsesInjectedNow(t *testing.T) {
	fixed := time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC)
	c := NewClock(time.UTC, WithNow(func() time.Time { return fixed }))
	if got := c.Today(); got != "2026-01-12" {
		t.Errorf("Today = %s, want 2026-01-12", got)
	}
	if !c.Now().Equal(fixed) {
		t.Errorf("Now = %v, want %v", c.Now(), fixed)
	}
}

func TestLoadClock_UnknownZone(t *testing.T) {
	if _, err := LoadClock("Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown zone")
	}
}
