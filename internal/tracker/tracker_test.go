package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nixlim/tally/internal/activity"
	"github.com/nixlim/tally/internal/aggregate"
	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/events"
	"github.com/nixlim/tally/internal/identity"
	"github.com/nixlim/tally/internal/pager"
	"github.com/nixlim/tally/internal/state"
)

const testUser = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

// fakeClock is a settable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newClock(t *testing.T, at time.Time) (*calendar.Clock, *fakeClock) {
	t.Helper()
	fc := &fakeClock{now: at}
	c, err := calendar.LoadClock("America/New_York", calendar.WithNow(fc.Now))
	if err != nil {
		t.Fatalf("LoadClock: %v", err)
	}
	return c, fc
}

// noonNY returns 12:00 New York time on the given day.
func noonNY(t *testing.T, day string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	d, err := time.ParseInLocation(calendar.Layout, day, loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d.Add(12 * time.Hour)
}

// faultyStore wraps a Store and fails selected operations.
type faultyStore struct {
	state.Store
	mu          sync.Mutex
	failInsert  error
	failQueries error
	insertGate  chan struct{}
}

func (f *faultyStore) setInsertErr(err error) {
	f.mu.Lock()
	f.failInsert = err
	f.mu.Unlock()
}

func (f *faultyStore) setQueryErr(err error) {
	f.mu.Lock()
	f.failQueries = err
	f.mu.Unlock()
}

func (f *faultyStore) Insert(ctx context.Context, e state.Event) (state.Event, error) {
	if f.insertGate != nil {
		<-f.insertGate
	}
	f.mu.Lock()
	err := f.failInsert
	f.mu.Unlock()
	if err != nil {
		return state.Event{}, err
	}
	return f.Store.Insert(ctx, e)
}

func (f *faultyStore) QueryPage(ctx context.Context, q state.PageQuery) ([]state.Row, error) {
	f.mu.Lock()
	err := f.failQueries
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.QueryPage(ctx, q)
}

func seed(t *testing.T, s state.Store, day string, k state.Kind, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.Insert(context.Background(), state.Event{Owner: testUser, Kind: k, OccurredOn: calendar.Day(day)}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestTracker_StartScenario(t *testing.T) {
	ms := state.NewMemoryStore()
	seed(t, ms, "2026-01-10", state.KindT1, 2)
	seed(t, ms, "2026-01-11", state.KindT2, 1)
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))

	tr := New(ms, clock, identity.Static(testUser), "2026-01-10")
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s := tr.State()
	want := []state.DailyBucket{
		{Day: "2026-01-12"},
		{Day: "2026-01-11", T2: 1},
		{Day: "2026-01-10", T1: 2},
	}
	if len(s.Series) != len(want) {
		t.Fatalf("series = %+v", s.Series)
	}
	for i := range want {
		if s.Series[i] != want[i] {
			t.Errorf("bucket %d = %+v, want %+v", i, s.Series[i], want[i])
		}
	}
	if s.Totals != (state.Totals{}) || s.Status != StatusIdle {
		t.Errorf("totals %+v status %v", s.Totals, s.Status)
	}
}

func TestTracker_StartWithoutIdentity(t *testing.T) {
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(state.NewMemoryStore(), clock, identity.Static(""), "2026-01-10")

	if err := tr.Start(context.Background()); !errors.Is(err, state.ErrNoIdentity) {
		t.Fatalf("Start err = %v, want ErrNoIdentity", err)
	}
	s := tr.State()
	if s.Status != StatusError || s.Err != MsgNotLoggedIn {
		t.Errorf("status %v err %q", s.Status, s.Err)
	}
	if _, err := tr.Log(context.Background(), state.KindT1); !errors.Is(err, state.ErrNoIdentity) {
		t.Errorf("Log err = %v, want ErrNoIdentity", err)
	}
	if _, err := tr.Export(context.Background()); !errors.Is(err, state.ErrNoIdentity) {
		t.Errorf("Export err = %v, want ErrNoIdentity", err)
	}
}

func TestTracker_LogSuccessMatchesFreshAggregate(t *testing.T) {
	ms := state.NewMemoryStore()
	seed(t, ms, "2026-01-12", state.KindT1, 3)
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	pub := &recordingPublisher{}
	rec := activity.NewRingBuffer(10)

	tr := New(ms, clock, identity.Static(testUser), "2026-01-10", WithPublisher(pub, ""), WithRecorder(rec))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := tr.State().Totals.T1

	ev, err := tr.Log(context.Background(), state.KindT1)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if ev.OccurredOn != "2026-01-12" || ev.ID == "" {
		t.Errorf("event = %+v", ev)
	}
	s := tr.State()
	if s.Totals.T1 != before+1 {
		t.Errorf("T1 = %d, want %d", s.Totals.T1, before+1)
	}

	res, err := pager.FetchSince(context.Background(), ms, testUser, "2026-01-10", pager.DefaultOptions())
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	fresh := aggregate.TotalsFor(aggregate.Aggregate(res.Items, "2026-01-10", "2026-01-12"), "2026-01-12")
	if s.Totals != fresh {
		t.Errorf("displayed %+v, fresh aggregate %+v", s.Totals, fresh)
	}
	if s.Status != StatusIdle || s.Pending != 0 {
		t.Errorf("status %v pending %d", s.Status, s.Pending)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != events.SubjectEventLogged {
		t.Errorf("published %v", pub.subjects)
	}
	if got := rec.Recent(1); len(got) != 1 || got[0].EventID != ev.ID || !got[0].OK() {
		t.Errorf("activity = %+v", got)
	}
}

func TestTracker_LogFailureRollsBack(t *testing.T) {
	fs := &faultyStore{Store: state.NewMemoryStore()}
	seed(t, fs.Store, "2026-01-12", state.KindT2, 2)
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	rec := activity.NewRingBuffer(10)

	tr := New(fs, clock, identity.Static(testUser), "2026-01-10", WithRecorder(rec))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := tr.State().Totals

	fs.setInsertErr(errors.New("store rejected request"))
	if _, err := tr.Log(context.Background(), state.KindT2); err == nil {
		t.Fatal("expected error")
	}
	s := tr.State()
	if s.Totals != before {
		t.Errorf("after rollback %+v, before %+v", s.Totals, before)
	}
	if s.Status != StatusError || !strings.Contains(s.Err, "store rejected request") {
		t.Errorf("status %v err %q", s.Status, s.Err)
	}
	if len(rec.Failures()) != 1 {
		t.Errorf("failures recorded = %d, want 1", len(rec.Failures()))
	}

	// The user can retry once the store recovers.
	fs.setInsertErr(nil)
	if _, err := tr.Log(context.Background(), state.KindT2); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := tr.State(); got.Totals.T2 != before.T2+1 || got.Status != StatusIdle || got.Err != "" {
		t.Errorf("after retry: %+v %v %q", got.Totals, got.Status, got.Err)
	}
}

func TestTracker_OptimisticBumpVisibleBeforeWriteResolves(t *testing.T) {
	gate := make(chan struct{})
	fs := &faultyStore{Store: state.NewMemoryStore(), insertGate: gate}
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))

	seen := make(chan State, 16)
	tr := New(fs, clock, identity.Static(testUser), "2026-01-10", WithOnChange(func(s State) {
		select {
		case seen <- s:
		default:
		}
	}))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for len(seen) > 0 {
		<-seen
	}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Log(context.Background(), state.KindT1)
		done <- err
	}()

	select {
	case s := <-seen:
		if s.Totals.T1 != 1 || s.Status != StatusSaving {
			t.Errorf("first change = %+v %v, want optimistic bump while saving", s.Totals, s.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no optimistic update observed")
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Log: %v", err)
	}
	if tr.State().Totals.T1 != 1 {
		t.Errorf("T1 = %d after reconcile", tr.State().Totals.T1)
	}
}

func TestTracker_LogAfterUndisplayedRollover(t *testing.T) {
	ms := state.NewMemoryStore()
	clock, fc := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(ms, clock, identity.Static(testUser), "2026-01-10")
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Midnight passes in New York but the scheduler has not ticked yet.
	fc.Set(noonNY(t, "2026-01-13"))
	ev, err := tr.Log(context.Background(), state.KindT1)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if ev.OccurredOn != "2026-01-13" {
		t.Errorf("event day = %s, want 2026-01-13", ev.OccurredOn)
	}
	s := tr.State()
	if s.Today != "2026-01-12" || s.Totals.T1 != 0 {
		t.Errorf("displayed %s %+v; event for the new day must not count toward the old one", s.Today, s.Totals)
	}

	changed, err := tr.Tick(context.Background())
	if err != nil || !changed {
		t.Fatalf("Tick = %v, %v", changed, err)
	}
	s = tr.State()
	if s.Today != "2026-01-13" || s.Totals.T1 != 1 {
		t.Errorf("after tick: %s %+v", s.Today, s.Totals)
	}
	if s.Series[0].Day != "2026-01-13" || len(s.Series) != 4 {
		t.Errorf("series head %s len %d", s.Series[0].Day, len(s.Series))
	}
}

func TestTracker_TickNoChange(t *testing.T) {
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(state.NewMemoryStore(), clock, identity.Static(testUser), "2026-01-10")
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	changed, err := tr.Tick(context.Background())
	if changed || err != nil {
		t.Errorf("Tick = %v, %v; want no change", changed, err)
	}
}

func TestTracker_TickResetsCountsAtZoneMidnight(t *testing.T) {
	ms := state.NewMemoryStore()
	seed(t, ms, "2026-01-12", state.KindT1, 4)
	loc, _ := time.LoadLocation("America/New_York")
	clock, fc := newClock(t, time.Date(2026, 1, 12, 23, 59, 0, 0, loc))
	tr := New(ms, clock, identity.Static(testUser), "2026-01-10")
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if tr.State().Totals.T1 != 4 {
		t.Fatalf("T1 = %d", tr.State().Totals.T1)
	}

	// 04:59 UTC on the 13th is still the 12th in New York.
	fc.Set(time.Date(2026, 1, 13, 4, 59, 0, 0, time.UTC))
	if changed, _ := tr.Tick(context.Background()); changed {
		t.Error("day changed before New York midnight")
	}
	fc.Set(time.Date(2026, 1, 13, 0, 0, 30, 0, loc))
	if changed, err := tr.Tick(context.Background()); !changed || err != nil {
		t.Fatalf("Tick = %v, %v", changed, err)
	}
	if s := tr.State(); s.Totals != (state.Totals{}) || s.Today != "2026-01-13" {
		t.Errorf("after midnight: %s %+v", s.Today, s.Totals)
	}
}

func TestTracker_RefreshFailureSurfaces(t *testing.T) {
	fs := &faultyStore{Store: state.NewMemoryStore()}
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(fs, clock, identity.Static(testUser), "2026-01-10")

	fs.setQueryErr(errors.New("connection refused"))
	if err := tr.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	s := tr.State()
	if s.Status != StatusError || !strings.Contains(s.Err, "connection refused") {
		t.Errorf("status %v err %q", s.Status, s.Err)
	}

	fs.setQueryErr(nil)
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s := tr.State(); s.Status != StatusIdle || s.Err != "" {
		t.Errorf("after recovery: %v %q", s.Status, s.Err)
	}
}

func TestTracker_TruncationObservable(t *testing.T) {
	ms := state.NewMemoryStore()
	seed(t, ms, "2026-01-11", state.KindT1, 12)
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(ms, clock, identity.Static(testUser), "2026-01-10", WithPageOptions(pager.Options{PageSize: 2, MaxOffset: 4}))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s := tr.State()
	if !s.Truncated {
		t.Error("expected Truncated")
	}
	if s.Series[1].T1 != 6 {
		t.Errorf("01-11 T1 = %d, want the 6 rows read before the cap", s.Series[1].T1)
	}
}

func TestTracker_Delete(t *testing.T) {
	ms := state.NewMemoryStore()
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	pub := &recordingPublisher{}
	tr := New(ms, clock, identity.Static(testUser), "2026-01-10", WithPublisher(pub, "custom.subject"))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev, err := tr.Log(context.Background(), state.KindT2)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := tr.Delete(context.Background(), ev.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if tr.State().Totals.T2 != 0 {
		t.Errorf("T2 = %d after delete", tr.State().Totals.T2)
	}
	if err := tr.Delete(context.Background(), ev.ID); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	want := []string{"custom.subject", events.SubjectEventDeleted}
	if strings.Join(pub.subjects, ",") != strings.Join(want, ",") {
		t.Errorf("subjects = %v, want %v", pub.subjects, want)
	}
}

func TestTracker_PublishFailureDoesNotFailLog(t *testing.T) {
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	tr := New(state.NewMemoryStore(), clock, identity.Static(testUser), "2026-01-10", WithPublisher(pub, ""))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := tr.Log(context.Background(), state.KindT1); err != nil {
		t.Errorf("Log: %v", err)
	}
	if tr.State().Totals.T1 != 1 {
		t.Errorf("T1 = %d", tr.State().Totals.T1)
	}
}

func TestTracker_ConcurrentLogsConverge(t *testing.T) {
	ms := state.NewMemoryStore()
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(ms, clock, identity.Static(testUser), "2026-01-10")
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := state.KindT1
			if i%2 == 1 {
				k = state.KindT2
			}
			if _, err := tr.Log(context.Background(), k); err != nil {
				t.Errorf("Log: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Interleaved reconciliations may leave a stale snapshot displayed; one
	// more refresh reads the full store.
	if err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	s := tr.State()
	if s.Totals != (state.Totals{T1: 10, T2: 10}) || s.Pending != 0 {
		t.Errorf("totals %+v pending %d", s.Totals, s.Pending)
	}
}

func TestTracker_Export(t *testing.T) {
	ms := state.NewMemoryStore()
	seed(t, ms, "2025-12-01", state.KindT1, 1)
	seed(t, ms, "2026-01-11", state.KindT2, 1)
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(ms, clock, identity.Static(testUser), "2026-01-10")
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	blob, err := tr.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if blob.Filename != "events-2026-01-12.csv" || blob.Rows != 2 {
		t.Errorf("blob = %s with %d rows; export is not bounded by the start date", blob.Filename, blob.Rows)
	}
}

func TestTracker_LogRejectsInvalidKind(t *testing.T) {
	clock, _ := newClock(t, noonNY(t, "2026-01-12"))
	tr := New(state.NewMemoryStore(), clock, identity.Static(testUser), "2026-01-10")
	if _, err := tr.Log(context.Background(), state.Kind(3)); err == nil {
		t.Error("expected error")
	}
}
