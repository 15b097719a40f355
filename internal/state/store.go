package state

import (
	"context"

	"github.com/nixlim/tally/internal/calendar"
)

// Column names of the event table, shared by every backend.
const (
	ColumnID         = "id"
	ColumnOwner      = "user_id"
	ColumnKind       = "trich"
	ColumnOccurredOn = "occurred_on"
)

// PageQuery selects one page of an owner's events. Rows are ordered by
// occurred_on descending, with insertion order descending as tie-breaker so
// that consecutive pages neither overlap nor skip.
type PageQuery struct {
	Owner Identity
	// Since is an inclusive lower bound on OccurredOn. Zero means unbounded.
	Since  calendar.Day
	Offset int
	Limit  int
	// TimestampColumn, when set, adds that column to the projection. A
	// backend without it returns an error wrapping ErrUnknownColumn.
	TimestampColumn string
}

// Row is the projection returned by QueryPage. Timestamp holds the raw text
// of the optional timestamp column, empty when it was not projected.
type Row struct {
	ID         string
	Kind       Kind
	OccurredOn calendar.Day
	Timestamp  string
}

// Store is the event-store collaborator. Implementations must be safe for
// concurrent use.
type Store interface {
	// Insert appends an event and returns it with ID (and SubmittedAt, when
	// the backend records one) filled in.
	Insert(ctx context.Context, e Event) (Event, error)

	// QueryPage returns at most q.Limit rows starting at q.Offset.
	QueryPage(ctx context.Context, q PageQuery) ([]Row, error)

	// Delete removes one event owned by owner. It returns an error wrapping
	// ErrNotFound when nothing matched.
	Delete(ctx context.Context, owner Identity, id string) error

	Close() error
}
