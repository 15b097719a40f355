// Package tracker holds the display state for one user's counters and
// drives every change to it: loads, optimistic logs with rollback,
// deletes and day rollover.
//
// All transitions go through Reduce. Tracker methods perform the I/O and
// dispatch the resulting actions, so the timer and user actions never
// mutate state directly.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nixlim/tally/internal/activity"
	"github.com/nixlim/tally/internal/aggregate"
	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/events"
	"github.com/nixlim/tally/internal/export"
	"github.com/nixlim/tally/internal/identity"
	"github.com/nixlim/tally/internal/pager"
	"github.com/nixlim/tally/internal/state"
)

// Recorder receives one entry per log or delete attempt.
type Recorder interface {
	Record(e activity.Entry)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	store     state.Store
	clock     *calendar.Clock
	ids       identity.Provider
	start     calendar.Day
	pageOpts  pager.Options
	exporter  *export.Exporter
	publisher events.Publisher
	subject   string
	recorder  Recorder
	onChange  func(State)

	mu sync.Mutex
	st State
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPublisher fans out each successful log to p under subject.
func WithPublisher(p events.Publisher, subject string) Option {
	return func(t *Tracker) {
		t.publisher = p
		if subject != "" {
			t.subject = subject
		}
	}
}

// WithRecorder records every log and delete attempt.
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// WithPageOptions sets the page size and safety valve for loads.
func WithPageOptions(o pager.Options) Option {
	return func(t *Tracker) { t.pageOpts = o }
}

// WithExporter replaces the default exporter.
func WithExporter(e *export.Exporter) Option {
	return func(t *Tracker) { t.exporter = e }
}

// WithOnChange registers fn to be called with every new state. It runs
// outside the tracker lock.
func WithOnChange(fn func(State)) Option {
	return func(t *Tracker) { t.onChange = fn }
}

// New creates a Tracker. Nothing is loaded until Start is called.
func New(store state.Store, clock *calendar.Clock, ids identity.Provider, start calendar.Day, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		clock:     clock,
		ids:       ids,
		start:     start,
		pageOpts:  pager.DefaultOptions(),
		publisher: events.NoopPublisher{},
		subject:   events.SubjectEventLogged,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.exporter == nil {
		t.exporter = export.NewExporter(store, export.WithPageOptions(t.pageOpts))
	}
	t.st = State{
		Start:  start,
		Today:  clock.Today(),
		Status: StatusLoading,
	}
	return t
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

// Identity returns the signed-in user, empty when there is none.
func (t *Tracker) Identity() state.Identity {
	return t.State().Identity
}

func (t *Tracker) dispatch(a Action) State {
	t.mu.Lock()
	t.st = Reduce(t.st, a)
	s := t.st
	t.mu.Unlock()
	t.notify(s)
	return s
}

func (t *Tracker) notify(s State) {
	if t.onChange != nil {
		t.onChange(s)
	}
}

func (t *Tracker) record(e activity.Entry) {
	if t.recorder != nil {
		e.At = t.clock.Now()
		t.recorder.Record(e)
	}
}

// Start resolves the identity and performs the first load. It may be
// called again after the session changes.
func (t *Tracker) Start(ctx context.Context) error {
	id, err := t.ids.Current(ctx)
	if errors.Is(err, state.ErrNoIdentity) {
		t.dispatch(IdentityMissing{})
		return err
	}
	if err != nil {
		t.dispatch(Failed{Err: err})
		return fmt.Errorf("resolving identity: %w", err)
	}
	t.dispatch(IdentityResolved{ID: id})
	return t.Refresh(ctx)
}

// Refresh recomputes the series for the displayed day from the store.
func (t *Tracker) Refresh(ctx context.Context) error {
	cur := t.State()
	if cur.Identity == "" {
		return state.ErrNoIdentity
	}
	t.dispatch(LoadStarted{})

	snap, err := t.load(ctx, cur.Identity, cur.Today)
	if err != nil {
		t.dispatch(Failed{Err: err})
		return err
	}
	t.dispatch(Loaded{Snapshot: snap})
	return nil
}

func (t *Tracker) load(ctx context.Context, owner state.Identity, today calendar.Day) (Snapshot, error) {
	res, err := pager.FetchSince(ctx, t.store, owner, t.start, t.pageOpts)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading events: %w", err)
	}
	return Snapshot{
		Today:     today,
		Series:    aggregate.Aggregate(res.Items, t.start, today),
		Truncated: res.Truncated,
	}, nil
}

// Log records one event of kind for the current day in the tracker's zone.
// The displayed count moves at once and is rolled back if the write fails.
// After a successful write the totals are reconciled from the store; a
// failed reconciliation is reported through State, not as an error here,
// since the event itself was stored.
func (t *Tracker) Log(ctx context.Context, kind state.Kind) (state.Event, error) {
	if !kind.Valid() {
		return state.Event{}, fmt.Errorf("logging: invalid kind %d", int(kind))
	}
	day := t.clock.Today()

	t.mu.Lock()
	owner := t.st.Identity
	if owner == "" {
		t.mu.Unlock()
		return state.Event{}, state.ErrNoIdentity
	}
	bumped := t.st.Bumps(day)
	t.st = Reduce(t.st, LogStarted{Kind: kind, Day: day})
	s := t.st
	t.mu.Unlock()
	t.notify(s)

	ev, err := t.store.Insert(ctx, state.Event{Owner: owner, Kind: kind, OccurredOn: day})
	if err != nil {
		t.dispatch(LogFailed{Kind: kind, Day: day, Bumped: bumped, Err: err})
		t.record(activity.Entry{Action: "log", Kind: kind, Day: day, Err: err.Error()})
		return state.Event{}, fmt.Errorf("logging %s: %w", kind, err)
	}
	t.dispatch(LogSucceeded{Kind: kind, Day: day, Bumped: bumped})
	t.record(activity.Entry{Action: "log", Kind: kind, Day: day, EventID: ev.ID})

	if err := t.publisher.Publish(ctx, t.subject, events.NewEventLogged(ev)); err != nil {
		log.Printf("WARNING: publishing event %s: %v", ev.ID, err)
	}
	if err := t.Refresh(ctx); err != nil {
		log.Printf("WARNING: reconciling after log of %s: %v", ev.ID, err)
	}
	return ev, nil
}

// Delete removes one of the user's events and reconciles the totals.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	owner := t.Identity()
	if owner == "" {
		return state.ErrNoIdentity
	}
	if err := t.store.Delete(ctx, owner, id); err != nil {
		t.dispatch(Failed{Err: err})
		t.record(activity.Entry{Action: "delete", EventID: id, Err: err.Error()})
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	t.record(activity.Entry{Action: "delete", EventID: id})
	if err := t.publisher.Publish(ctx, events.SubjectEventDeleted, events.EventDeleted{ID: id, Owner: string(owner)}); err != nil {
		log.Printf("WARNING: publishing delete of %s: %v", id, err)
	}
	return t.Refresh(ctx)
}

// Tick re-derives today in the tracker's zone. When it differs from the
// displayed day the counters are reset and the series is reloaded. It
// reports whether the day changed.
func (t *Tracker) Tick(ctx context.Context) (bool, error) {
	today := t.clock.Today()
	prev := t.State()
	if today == prev.Today {
		return false, nil
	}
	s := t.dispatch(DayChanged{Today: today})
	log.Printf("day rolled over from %s to %s", prev.Today, today)
	if s.Identity == "" {
		return true, nil
	}
	return true, t.Refresh(ctx)
}

// Export renders the user's full history as CSV.
func (t *Tracker) Export(ctx context.Context) (export.Blob, error) {
	s := t.State()
	if s.Identity == "" {
		return export.Blob{}, state.ErrNoIdentity
	}
	return t.exporter.Export(ctx, s.Identity, s.Today)
}
