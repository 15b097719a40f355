// Package aggregate turns an owner's event rows into per-day counts and a
// gap-free daily series.
package aggregate

import (
	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

// Fold counts rows per day and kind in a single pass. Rows with a kind
// outside the known set or a malformed day label are skipped.
func Fold(rows []state.Row) map[calendar.Day]state.Totals {
	byDay := make(map[calendar.Day]state.Totals)
	for _, r := range rows {
		if !r.Kind.Valid() {
			continue
		}
		if _, err := calendar.Parse(string(r.OccurredOn)); err != nil {
			continue
		}
		byDay[r.OccurredOn] = byDay[r.OccurredOn].Add(r.Kind, 1)
	}
	return byDay
}

// Series emits one bucket per day from today back to start inclusive,
// taking counts from byDay and zero where a day is absent. It returns an
// empty series when today precedes start.
func Series(byDay map[calendar.Day]state.Totals, start, today calendar.Day) []state.DailyBucket {
	if today.Before(start) {
		return []state.DailyBucket{}
	}
	out := make([]state.DailyBucket, 0, calendar.DaysBetween(start, today)+1)
	for d := today; !d.Before(start); d = d.Prev() {
		t := byDay[d]
		out = append(out, state.DailyBucket{Day: d, T1: t.T1, T2: t.T2})
	}
	return out
}

// Aggregate folds rows and expands them into the series for [start, today].
func Aggregate(rows []state.Row, start, today calendar.Day) []state.DailyBucket {
	return Series(Fold(rows), start, today)
}

// TotalsFor returns the counts of the bucket for day, or zero when the
// series does not cover it.
func TotalsFor(series []state.DailyBucket, day calendar.Day) state.Totals {
	for _, b := range series {
		if b.Day == day {
			return state.Totals{T1: b.T1, T2: b.T2}
		}
	}
	return state.Totals{}
}
