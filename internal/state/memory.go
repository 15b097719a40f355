package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/idgen"
)

// DefaultTimestampColumn is the timestamp column name MemoryStore exposes
// unless configured otherwise.
const DefaultTimestampColumn = "created_at"

type memRow struct {
	seq   int64
	event Event
}

// MemoryStore is a thread-safe in-memory Store. It is the fallback when no
// persistent backend can be opened, and the reference backend in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	rows     []memRow
	nextSeq  int64
	tsColumn string
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTimestampColumn sets the name under which submission times are
// exposed. An empty name models a schema without any timestamp column.
func WithTimestampColumn(name string) MemoryOption {
	return func(ms *MemoryStore) { ms.tsColumn = name }
}

// WithStoreClock replaces the source of SubmittedAt values.
func WithStoreClock(now func() time.Time) MemoryOption {
	return func(ms *MemoryStore) { ms.now = now }
}

// NewMemoryStore creates an empty MemoryStore ready for use.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	ms := &MemoryStore{
		tsColumn: DefaultTimestampColumn,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Insert stores e under a freshly minted id.
func (ms *MemoryStore) Insert(ctx context.Context, e Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if err := ValidateEvent(e); err != nil {
		return Event{}, err
	}
	id, err := idgen.NewEventID()
	if err != nil {
		return Event{}, err
	}
	e.ID = id
	if ms.tsColumn != "" {
		e.SubmittedAt = ms.now().UTC()
	} else {
		e.SubmittedAt = time.Time{}
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.nextSeq++
	ms.rows = append(ms.rows, memRow{seq: ms.nextSeq, event: e})
	return e, nil
}

// QueryPage returns one page of the owner's events.
func (ms *MemoryStore) QueryPage(ctx context.Context, q PageQuery) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.TimestampColumn != "" && q.TimestampColumn != ms.tsColumn {
		return nil, fmt.Errorf("query page: %w: %s", ErrUnknownColumn, q.TimestampColumn)
	}

	ms.mu.RLock()
	matched := make([]memRow, 0, len(ms.rows))
	for _, r := range ms.rows {
		if r.event.Owner != q.Owner {
			continue
		}
		if !q.Since.IsZero() && r.event.OccurredOn.Before(q.Since) {
			continue
		}
		matched = append(matched, r)
	}
	ms.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if c := matched[i].event.OccurredOn.Compare(matched[j].event.OccurredOn); c != 0 {
			return c > 0
		}
		return matched[i].seq > matched[j].seq
	})

	if q.Offset >= len(matched) || q.Limit <= 0 {
		return []Row{}, nil
	}
	end := min(q.Offset+q.Limit, len(matched))

	out := make([]Row, 0, end-q.Offset)
	for _, r := range matched[q.Offset:end] {
		row := Row{
			ID:         r.event.ID,
			Kind:       r.event.Kind,
			OccurredOn: r.event.OccurredOn,
		}
		if q.TimestampColumn != "" {
			row.Timestamp = r.event.SubmittedAt.Format(time.RFC3339Nano)
		}
		out = append(out, row)
	}
	return out, nil
}

// Delete removes the owner's event with the given id.
func (ms *MemoryStore) Delete(ctx context.Context, owner Identity, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i, r := range ms.rows {
		if r.event.ID == id && r.event.Owner == owner {
			ms.rows = append(ms.rows[:i], ms.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: %w", id, ErrNotFound)
}

// Len returns the number of stored events across all owners.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.rows)
}

// Close is a no-op for MemoryStore.
func (ms *MemoryStore) Close() error {
	return nil
}

// ValidateEvent checks the fields every backend requires before writing.
func ValidateEvent(e Event) error {
	if e.Owner == "" {
		return ErrNoIdentity
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("insert: invalid kind %d", int(e.Kind))
	}
	if _, err := calendar.Parse(string(e.OccurredOn)); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}
