package aggregate

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

func row(day string, k state.Kind) state.Row {
	return state.Row{OccurredOn: calendar.MustParse(day), Kind: k}
}

func TestAggregate_Scenario(t *testing.T) {
	rows := []state.Row{
		row("2026-01-10", state.KindT1),
		row("2026-01-10", state.KindT1),
		row("2026-01-11", state.KindT2),
	}
	got := Aggregate(rows, "2026-01-10", "2026-01-12")
	want := []state.DailyBucket{
		{Day: "2026-01-12", T1: 0, T2: 0},
		{Day: "2026-01-11", T1: 0, T2: 1},
		{Day: "2026-01-10", T1: 2, T2: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("series = %+v, want %+v", got, want)
	}
	if tot := TotalsFor(got, "2026-01-12"); tot != (state.Totals{}) {
		t.Errorf("today totals = %+v, want zero", tot)
	}
}

func TestAggregate_IgnoresUnknownKinds(t *testing.T) {
	rows := []state.Row{row("2026-01-10", state.KindT1), row("2026-01-10", state.Kind(0)), row("2026-01-10", state.Kind(9))}
	got := Aggregate(rows, "2026-01-10", "2026-01-10")
	if len(got) != 1 || got[0].T1 != 1 || got[0].T2 != 0 {
		t.Errorf("series = %+v", got)
	}
}

func TestFold_SkipsMalformedDays(t *testing.T) {
	rows := []state.Row{
		row("2026-01-10", state.KindT2),
		{OccurredOn: "10/01/2026", Kind: state.KindT1},
		{OccurredOn: "", Kind: state.KindT1},
	}
	byDay := Fold(rows)
	if len(byDay) != 1 {
		t.Fatalf("Fold kept %d days, want 1: %v", len(byDay), byDay)
	}
	if byDay["2026-01-10"] != (state.Totals{T2: 1}) {
		t.Errorf("totals = %+v", byDay["2026-01-10"])
	}
}

func TestSeries_EmptyWhenTodayBeforeStart(t *testing.T) {
	got := Series(nil, "2026-01-10", "2026-01-09")
	if got == nil || len(got) != 0 {
		t.Errorf("series = %#v, want empty non-nil", got)
	}
}

func TestSeries_ContiguousAcrossBoundaries(t *testing.T) {
	start, today := calendar.Day("2025-12-20"), calendar.Day("2026-03-15")
	got := Series(nil, start, today)
	if len(got) != calendar.DaysBetween(start, today)+1 {
		t.Fatalf("len = %d, want %d", len(got), calendar.DaysBetween(start, today)+1)
	}
	if got[0].Day != today || got[len(got)-1].Day != start {
		t.Errorf("endpoints = %s..%s", got[0].Day, got[len(got)-1].Day)
	}
	seen := make(map[calendar.Day]bool)
	for i, b := range got {
		if seen[b.Day] {
			t.Errorf("duplicate day %s", b.Day)
		}
		seen[b.Day] = true
		if i > 0 && got[i-1].Day.Prev() != b.Day {
			t.Errorf("gap between %s and %s", got[i-1].Day, b.Day)
		}
	}
}

func randomRows(r *rand.Rand, n int, from calendar.Day, span int) []state.Row {
	rows := make([]state.Row, n)
	for i := range rows {
		rows[i] = state.Row{
			OccurredOn: from.AddDays(r.Intn(span)),
			Kind:       state.Kind(1 + r.Intn(2)),
		}
	}
	return rows
}

func TestAggregate_SumMatchesEventsInRange(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	start, today := calendar.Day("2026-01-10"), calendar.Day("2026-02-10")
	for trial := 0; trial < 50; trial++ {
		// Events spread before, inside and after the window.
		rows := randomRows(r, r.Intn(400), start.AddDays(-10), 50)
		inRange := 0
		for _, ro := range rows {
			if !ro.OccurredOn.Before(start) && !ro.OccurredOn.After(today) {
				inRange++
			}
		}
		sum := 0
		for _, b := range Aggregate(rows, start, today) {
			sum += b.Total()
		}
		if sum != inRange {
			t.Fatalf("trial %d: bucket sum = %d, events in range = %d", trial, sum, inRange)
		}
	}
}

func TestAggregate_OrderIndependentAndIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	start, today := calendar.Day("2026-01-10"), calendar.Day("2026-01-31")
	rows := randomRows(r, 300, start, 22)
	want := Aggregate(rows, start, today)

	for trial := 0; trial < 20; trial++ {
		perm := make([]state.Row, len(rows))
		copy(perm, rows)
		r.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		if got := Aggregate(perm, start, today); !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d: permutation changed the series", trial)
		}
	}
	if again := Aggregate(rows, start, today); !reflect.DeepEqual(again, want) {
		t.Error("second call with same input gave a different series")
	}
}

func TestTotalsFor_DayOutsideSeries(t *testing.T) {
	series := Series(map[calendar.Day]state.Totals{"2026-01-10": {T1: 3}}, "2026-01-10", "2026-01-11")
	if got := TotalsFor(series, "2026-01-10"); got.T1 != 3 {
		t.Errorf("TotalsFor(01-10) = %+v", got)
	}
	if got := TotalsFor(series, "2026-02-01"); got != (state.Totals{}) {
		t.Errorf("TotalsFor outside series = %+v, want zero", got)
	}
}
