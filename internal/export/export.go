// Package export serializes an owner's full history to CSV.
//
// The event table may or may not carry a submission timestamp, and if it
// does the column name is not fixed. Before reading, the exporter probes a
// ranked list of candidate names with one-row queries and locks in the first
// that the store accepts. When none is accepted the export still succeeds,
// with empty timestamps and a leading comment line saying so.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/pager"
	"github.com/nixlim/tally/internal/state"
)

// DefaultTimestampColumns is the probe order used when none is configured.
var DefaultTimestampColumns = []string{"created_at", "inserted_at", "logged_at"}

// Blob is a finished export ready to be saved or served.
type Blob struct {
	Filename string
	Data     []byte
	// TimestampColumn is the column that was used, empty if none was found.
	TimestampColumn string
	Rows            int
	Truncated       bool
}

// Degraded reports whether the export lacks timestamps.
func (b Blob) Degraded() bool { return b.TimestampColumn == "" }

// FilenameFor returns the suggested download name for an export made on today.
func FilenameFor(today calendar.Day) string {
	return "events-" + string(today) + ".csv"
}

// ResolveTimestampColumn returns the first candidate the store can project.
// A candidate rejected as unknown moves the probe on to the next one. Any
// other failure ends probing, and the export proceeds without timestamps.
func ResolveTimestampColumn(ctx context.Context, store state.Store, owner state.Identity, candidates []string) (string, bool) {
	for _, col := range candidates {
		_, err := store.QueryPage(ctx, state.PageQuery{
			Owner:           owner,
			Limit:           1,
			TimestampColumn: col,
		})
		if err == nil {
			return col, true
		}
		if errors.Is(err, state.ErrUnknownColumn) {
			continue
		}
		log.Printf("WARNING: timestamp column probe for %q failed, exporting without timestamps: %v", col, err)
		return "", false
	}
	return "", false
}

// Exporter builds CSV exports from a store.
type Exporter struct {
	store      state.Store
	candidates []string
	pageOpts   pager.Options
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithCandidates replaces the ranked list of timestamp column names.
func WithCandidates(cols []string) Option {
	return func(e *Exporter) {
		if len(cols) > 0 {
			e.candidates = cols
		}
	}
}

// WithPageOptions sets the page size and safety valve for the history read.
func WithPageOptions(opts pager.Options) Option {
	return func(e *Exporter) { e.pageOpts = opts }
}

// NewExporter creates an Exporter reading from store.
func NewExporter(store state.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:      store,
		candidates: DefaultTimestampColumns,
		pageOpts:   pager.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export reads the owner's entire history, with no lower bound on day, and
// renders it as CSV. A failed read aborts the export.
func (e *Exporter) Export(ctx context.Context, owner state.Identity, today calendar.Day) (Blob, error) {
	col, found := ResolveTimestampColumn(ctx, e.store, owner, e.candidates)

	res, err := pager.FetchAll(ctx, e.pageOpts, func(ctx context.Context, offset, limit int) ([]state.Row, error) {
		return e.store.QueryPage(ctx, state.PageQuery{
			Owner:           owner,
			Offset:          offset,
			Limit:           limit,
			TimestampColumn: col,
		})
	})
	if err != nil {
		return Blob{}, fmt.Errorf("export: %w", err)
	}
	if res.Truncated {
		log.Printf("WARNING: export for %s stopped at the safety cap after %d rows", owner, len(res.Items))
	}
	if !found {
		log.Printf("WARNING: export for %s has no timestamp column (tried %v)", owner, e.candidates)
	}

	rows := make([]state.ExportRow, 0, len(res.Items))
	for _, r := range res.Items {
		rows = append(rows, state.ExportRow{OccurredOn: r.OccurredOn, Kind: r.Kind, Timestamp: r.Timestamp})
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, !found); err != nil {
		return Blob{}, fmt.Errorf("export: %w", err)
	}
	return Blob{
		Filename:        FilenameFor(today),
		Data:            buf.Bytes(),
		TimestampColumn: col,
		Rows:            len(rows),
		Truncated:       res.Truncated,
	}, nil
}
