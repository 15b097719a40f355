// Package postgres implements state.Store backed by PostgreSQL, for
// histories shared between machines.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/nixlim/tally/internal/idgen"
	"github.com/nixlim/tally/internal/state"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements state.Store against a trich_events table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ state.Store = (*Store)(nil)

// New opens a connection to the database at databaseURL, configures the
// pool and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("open database: empty database URL")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newWithDB(db, time.Now), nil
}

func newWithDB(db *sql.DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Insert writes e, assigning an ID and submission time when absent.
func (s *Store) Insert(ctx context.Context, e state.Event) (state.Event, error) {
	if err := state.ValidateEvent(e); err != nil {
		return state.Event{}, err
	}
	if e.ID == "" {
		id, err := idgen.NewEventID()
		if err != nil {
			return state.Event{}, err
		}
		e.ID = id
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trich_events (id, user_id, trich, occurred_on, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, string(e.Owner), int(e.Kind), string(e.OccurredOn), e.SubmittedAt)
	if err != nil {
		return state.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
