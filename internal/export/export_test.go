package export

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/pager"
	"github.com/nixlim/tally/internal/state"
)

func seedStore(t *testing.T, ms *state.MemoryStore, owner state.Identity, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		k := state.KindT1
		if i%3 == 0 {
			k = state.KindT2
		}
		day := "2026-01-10"
		if i%2 == 0 {
			day = "2025-12-31"
		}
		if _, err := ms.Insert(context.Background(), state.Event{Owner: owner, Kind: k, OccurredOn: calendar.Day(day)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

// recordingStore wraps a Store and records every projected column.
type recordingStore struct {
	state.Store
	probed    []string
	probeErr  map[string]error
	failPages bool
}

func (r *recordingStore) QueryPage(ctx context.Context, q state.PageQuery) ([]state.Row, error) {
	if q.Limit == 1 && q.TimestampColumn != "" {
		r.probed = append(r.probed, q.TimestampColumn)
		if err, ok := r.probeErr[q.TimestampColumn]; ok {
			return nil, err
		}
	} else if r.failPages {
		return nil, errors.New("connection reset by peer")
	}
	return r.Store.QueryPage(ctx, q)
}

func TestResolveTimestampColumn_AdvancesPastUnknown(t *testing.T) {
	ms := state.NewMemoryStore(state.WithTimestampColumn("logged_at"))
	rs := &recordingStore{Store: ms}

	col, ok := ResolveTimestampColumn(context.Background(), rs, "u1", DefaultTimestampColumns)
	if !ok || col != "logged_at" {
		t.Fatalf("resolved (%q, %v), want (logged_at, true)", col, ok)
	}
	if strings.Join(rs.probed, ",") != "created_at,inserted_at,logged_at" {
		t.Errorf("probe order = %v", rs.probed)
	}
}

func TestResolveTimestampColumn_StopsOnOtherError(t *testing.T) {
	ms := state.NewMemoryStore()
	rs := &recordingStore{Store: ms, probeErr: map[string]error{"created_at": errors.New("permission denied")}}

	col, ok := ResolveTimestampColumn(context.Background(), rs, "u1", DefaultTimestampColumns)
	if ok || col != "" {
		t.Errorf("resolved (%q, %v), want none", col, ok)
	}
	if len(rs.probed) != 1 {
		t.Errorf("probed %v, want to stop after the first failure", rs.probed)
	}
}

func TestExport_WithTimestampColumn(t *testing.T) {
	ms := state.NewMemoryStore()
	seedStore(t, ms, "u1", 5)
	seedStore(t, ms, "someone-else", 4)

	blob, err := NewExporter(ms, WithPageOptions(pager.Options{PageSize: 2})).Export(context.Background(), "u1", "2026-01-12")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if blob.Filename != "events-2026-01-12.csv" {
		t.Errorf("Filename = %q", blob.Filename)
	}
	if blob.Degraded() || blob.TimestampColumn != "created_at" {
		t.Errorf("TimestampColumn = %q", blob.TimestampColumn)
	}
	if blob.Rows != 5 {
		t.Errorf("Rows = %d, want 5 (full history, no lower bound, one owner)", blob.Rows)
	}

	recs, err := csv.NewReader(strings.NewReader(string(blob.Data))).ReadAll()
	if err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	if len(recs) != 6 {
		t.Fatalf("records = %d, want header + 5", len(recs))
	}
	for _, rec := range recs[1:] {
		if rec[2] == "" {
			t.Errorf("row %v has empty timestamp", rec)
		}
	}
}

func TestExport_DegradedWhenNoCandidateExists(t *testing.T) {
	ms := state.NewMemoryStore(state.WithTimestampColumn(""))
	seedStore(t, ms, "u1", 3)

	blob, err := NewExporter(ms).Export(context.Background(), "u1", "2026-01-12")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !blob.Degraded() {
		t.Error("expected degraded export")
	}
	text := string(blob.Data)
	if !strings.HasPrefix(text, "#") {
		t.Fatalf("export does not begin with a comment line:\n%s", text)
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comment = '#'
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	if strings.Join(recs[0], ",") != "occurred_on,trich,timestamp" {
		t.Errorf("header = %v", recs[0])
	}
	for _, rec := range recs[1:] {
		if rec[2] != "" {
			t.Errorf("row %v has a timestamp in a degraded export", rec)
		}
	}
}

func TestExport_FetchErrorAborts(t *testing.T) {
	ms := state.NewMemoryStore()
	seedStore(t, ms, "u1", 3)
	rs := &recordingStore{Store: ms, failPages: true}

	blob, err := NewExporter(rs).Export(context.Background(), "u1", "2026-01-12")
	if err == nil {
		t.Fatal("expected error")
	}
	if blob.Data != nil {
		t.Error("failed export must not return data")
	}
}

func TestWithCandidates_IgnoresEmptyList(t *testing.T) {
	e := NewExporter(state.NewMemoryStore(), WithCandidates(nil))
	if len(e.candidates) != len(DefaultTimestampColumns) {
		t.Errorf("candidates = %v", e.candidates)
	}
}
