package tracker

import (
	"github.com/nixlim/tally/internal/aggregate"
	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

// Status is the coarse activity indicator shown next to the counters.
type Status int

const (
	StatusLoading Status = iota
	StatusIdle
	StatusSaving
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusIdle:
		return "idle"
	case StatusSaving:
		return "saving"
	case StatusError:
		return "error"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// MsgNotLoggedIn is the error text shown when no identity is available.
const MsgNotLoggedIn = "Not logged in."

// State is everything the presentation layer needs. It is only ever
// changed through Reduce.
type State struct {
	Identity state.Identity      `json:"identity"`
	Start    calendar.Day        `json:"start"`
	Today    calendar.Day        `json:"today"`
	Totals   state.Totals        `json:"totals"`
	Series   []state.DailyBucket `json:"series"`
	Status   Status              `json:"status"`
	Err      string              `json:"error,omitempty"`
	// Truncated is set when the last load hit the pagination safety cap.
	Truncated bool `json:"truncated,omitempty"`
	// Pending counts writes that have been issued but not yet resolved.
	Pending int `json:"pending"`

	// inflight holds today's optimistic bumps whose writes have not
	// resolved. Totals always equals the last authoritative count plus
	// inflight, plus any writes that succeeded since the last load.
	inflight state.Totals
	// writeFailed marks Err as coming from a failed log. A load does not
	// clear it; the next log attempt does.
	writeFailed bool
}

// Busy reports whether a load or save is running.
func (s State) Busy() bool {
	return s.Status == StatusLoading || s.Status == StatusSaving
}

// Snapshot is the result of one aggregation pass.
type Snapshot struct {
	Today     calendar.Day
	Series    []state.DailyBucket
	Truncated bool
}

// Action is a state transition request.
type Action interface{ action() }

type (
	// IdentityResolved records the signed-in user.
	IdentityResolved struct{ ID state.Identity }

	// IdentityMissing clears the user and shows the not-logged-in error.
	IdentityMissing struct{}

	// LoadStarted marks the start of an aggregation pass.
	LoadStarted struct{}

	// Loaded replaces the series and totals with an authoritative snapshot.
	Loaded struct{ Snapshot Snapshot }

	// Failed records a failed load or other non-write failure.
	Failed struct{ Err error }

	// LogStarted applies the optimistic bump. Day is the event's computed
	// occurrence day; the bump is applied only if it is the displayed day.
	LogStarted struct {
		Kind state.Kind
		Day  calendar.Day
	}

	// LogFailed rolls back a bump made by the matching LogStarted.
	LogFailed struct {
		Kind   state.Kind
		Day    calendar.Day
		Bumped bool
		Err    error
	}

	// LogSucceeded settles a bump. The displayed value stays until the
	// next Loaded replaces it.
	LogSucceeded struct {
		Kind   state.Kind
		Day    calendar.Day
		Bumped bool
	}

	// DayChanged moves the displayed day and zeroes today's counters.
	DayChanged struct{ Today calendar.Day }
)

func (IdentityResolved) action() {}
func (IdentityMissing) action()  {}
func (LoadStarted) action()      {}
func (Loaded) action()           {}
func (Failed) action()           {}
func (LogStarted) action()       {}
func (LogFailed) action()        {}
func (LogSucceeded) action()     {}
func (DayChanged) action()       {}

// Bumps reports whether a LogStarted for day would be applied to s.
func (s State) Bumps(day calendar.Day) bool {
	return s.Identity != "" && day == s.Today
}

func settle(s State) State {
	if s.Pending > 0 {
		s.Status = StatusSaving
	} else {
		s.Status = StatusIdle
	}
	return s
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// Reduce returns the state that results from applying a to s. It has no
// side effects.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case IdentityResolved:
		s.Identity = a.ID
		if s.Err == MsgNotLoggedIn {
			s.Err = ""
		}
		s.Status = StatusLoading

	case IdentityMissing:
		s.Identity = ""
		s.Totals = state.Totals{}
		s.inflight = state.Totals{}
		s.Series = nil
		s.Truncated = false
		s.Status = StatusError
		s.Err = MsgNotLoggedIn

	case LoadStarted:
		if s.Pending == 0 {
			s.Status = StatusLoading
		}

	case Loaded:
		snap := a.Snapshot
		if snap.Today.Before(s.Today) {
			// Computed for a day that has already rolled over.
			return s
		}
		if snap.Today != s.Today {
			s.Today = snap.Today
			s.inflight = state.Totals{}
		}
		s.Series = snap.Series
		s.Truncated = snap.Truncated
		base := aggregate.TotalsFor(snap.Series, s.Today)
		s.Totals = state.Totals{T1: base.T1 + s.inflight.T1, T2: base.T2 + s.inflight.T2}
		if s.writeFailed && s.Pending == 0 {
			s.Status = StatusError
			break
		}
		if !s.writeFailed {
			s.Err = ""
		}
		s = settle(s)

	case Failed:
		s.Status = StatusError
		s.Err = errText(a.Err)
		s.writeFailed = false

	case LogStarted:
		s.Pending++
		s.Status = StatusSaving
		s.Err = ""
		s.writeFailed = false
		if s.Bumps(a.Day) {
			s.Totals = s.Totals.Add(a.Kind, 1)
			s.inflight = s.inflight.Add(a.Kind, 1)
		}

	case LogFailed:
		s.Pending = max(0, s.Pending-1)
		if a.Bumped && a.Day == s.Today {
			s.Totals = s.Totals.Add(a.Kind, -1)
			s.inflight = s.inflight.Add(a.Kind, -1)
		}
		s.Status = StatusError
		s.Err = errText(a.Err)
		s.writeFailed = true

	case LogSucceeded:
		s.Pending = max(0, s.Pending-1)
		if a.Bumped && a.Day == s.Today {
			s.inflight = s.inflight.Add(a.Kind, -1)
		}
		if s.Status != StatusError {
			s = settle(s)
		}

	case DayChanged:
		if a.Today == s.Today {
			return s
		}
		s.Today = a.Today
		s.Totals = state.Totals{}
		s.inflight = state.Totals{}
	}
	return s
}
