// Package calendar maps instants to calendar-day labels in one fixed,
// named time zone so that every viewer agrees on where a day starts and ends.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the textual form of a Day label.
const Layout = "2006-01-02"

// Day is a calendar-day label in YYYY-MM-DD form. The zero value means
// "no day" and is used by queries as an absent lower bound.
type Day string

// Parse validates s as a day label.
func Parse(s string) (Day, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return "", fmt.Errorf("parsing day %q: %w", s, err)
	}
	if t.Format(Layout) != s {
		return "", fmt.Errorf("parsing day %q: not in canonical form", s)
	}
	return Day(s), nil
}

// MustParse is like Parse but panics on an invalid label.
func MustParse(s string) Day {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// anchor returns noon UTC on d. Day arithmetic is done on this instant so a
// zone offset change can never move the result across a label boundary.
func (d Day) anchor() time.Time {
	t, err := time.Parse(Layout, string(d))
	if err != nil {
		panic(fmt.Sprintf("calendar: invalid day label %q", string(d)))
	}
	return t.Add(12 * time.Hour)
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return Day(d.anchor().AddDate(0, 0, n).Format(Layout))
}

// Prev returns the day before d.
func (d Day) Prev() Day { return d.AddDays(-1) }

// Next returns the day after d.
func (d Day) Next() Day { return d.AddDays(1) }

// Compare returns -1, 0 or +1. Labels are fixed width, so lexical order is
// chronological order.
func (d Day) Compare(o Day) int {
	return strings.Compare(string(d), string(o))
}

func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }

func (d Day) After(o Day) bool { return d.Compare(o) > 0 }

func (d Day) IsZero() bool { return d == "" }

func (d Day) String() string { return string(d) }

// MDY renders d as M/D/YYYY without zero padding, e.g. 1/10/2026.
func (d Day) MDY() string {
	t := d.anchor()
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
}

// DaysBetween returns the number of whole days from from to to. It is
// negative when to precedes from.
func DaysBetween(from, to Day) int {
	return int(to.anchor().Sub(from.anchor()).Round(time.Hour).Hours() / 24)
}

// Clock derives day labels from instants in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithNow replaces the wall-clock source, for tests and replays.
func WithNow(fn func() time.Time) ClockOption {
	return func(c *Clock) { c.now = fn }
}

// NewClock returns a Clock that labels instants in loc.
func NewClock(loc *time.Location, opts ...ClockOption) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	c := &Clock{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadClock resolves an IANA zone name and returns a Clock for it.
func LoadClock(zone string, opts ...ClockOption) (*Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", zone, err)
	}
	return NewClock(loc, opts...), nil
}

func (c *Clock) Location() *time.Location { return c.loc }

func (c *Clock) Now() time.Time { return c.now() }

// DayOf returns the label of the day containing t in the clock's zone.
func (c *Clock) DayOf(t time.Time) Day {
	return Day(t.In(c.loc).Format(Layout))
}

// Today returns the label of the current day in the clock's zone.
func (c *Clock) Today() Day {
	return c.DayOf(c.now())
}
