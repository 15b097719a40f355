package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/nixlim/tally/internal/idgen"
	"github.com/nixlim/tally/internal/state"
)

var errClosed = errors.New("store is closed")

// SQLiteStore is the default local event store.
type SQLiteStore struct {
	db              *sql.DB
	now             func() time.Time
	hasCreatedAt    bool
	closed          atomic.Bool
	cancelMaint     context.CancelFunc
	maintenanceDone chan struct{}
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock replaces the source of created_at values.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLiteStore opens the database at dbPath and starts background
// maintenance.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return newSQLiteStore(db, opts...)
}

func newSQLiteStore(db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &SQLiteStore{
		db:              db,
		now:             time.Now,
		cancelMaint:     cancel,
		maintenanceDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}

	has, err := store.columnExists("created_at")
	if err != nil {
		cancel()
		_ = db.Close()
		return nil, err
	}
	store.hasCreatedAt = has

	if err := store.checkRows(); err != nil {
		cancel()
		_ = db.Close()
		return nil, fmt.Errorf("checking stored events: %w", err)
	}

	store.startMaintenance(ctx)
	return store, nil
}

func (s *SQLiteStore) columnExists(name string) (bool, error) {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info('trich_events')")
	if err != nil {
		return false, fmt.Errorf("reading table info: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return false, fmt.Errorf("scanning table info: %w", err)
		}
		if col == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Insert writes e synchronously and returns it with its new id.
func (s *SQLiteStore) Insert(ctx context.Context, e state.Event) (state.Event, error) {
	if s.closed.Load() {
		return state.Event{}, errClosed
	}
	if err := state.ValidateEvent(e); err != nil {
		return state.Event{}, err
	}
	id, err := idgen.NewEventID()
	if err != nil {
		return state.Event{}, err
	}
	e.ID = id

	if s.hasCreatedAt {
		e.SubmittedAt = s.now().UTC()
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO trich_events (id, user_id, trich, occurred_on, created_at) VALUES (?, ?, ?, ?, ?)",
			e.ID, string(e.Owner), int(e.Kind), string(e.OccurredOn), e.SubmittedAt.Format(time.RFC3339Nano),
		)
	} else {
		e.SubmittedAt = time.Time{}
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO trich_events (id, user_id, trich, occurred_on) VALUES (?, ?, ?, ?)",
			e.ID, string(e.Owner), int(e.Kind), string(e.OccurredOn),
		)
	}
	if err != nil {
		return state.Event{}, fmt.Errorf("inserting event: %w", err)
	}
	return e, nil
}

// Close stops maintenance and closes the database.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancelMaint()
	<-s.maintenanceDone
	if err := s.checkpoint(); err != nil {
		log.Printf("WARNING: final WAL checkpoint failed: %v", err)
	}
	return s.db.Close()
}
