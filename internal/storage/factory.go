package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/nixlim/tally/internal/config"
	"github.com/nixlim/tally/internal/state"
	"github.com/nixlim/tally/internal/storage/postgres"
)

// NewStore opens the backend named in cfg. It reports whether the store is
// persistent. An unusable SQLite path falls back to an in-memory store with
// a warning; a PostgreSQL failure is returned as an error, since silently
// writing to memory would lose a shared history.
func NewStore(ctx context.Context, cfg config.StoreConfig) (state.Store, bool, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return state.NewMemoryStore(), false, nil

	case config.BackendPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, false, fmt.Errorf("opening postgres store: %w", err)
		}
		return store, true, nil

	case config.BackendSQLite, "":
		if cfg.DBPath == "" {
			return state.NewMemoryStore(), false, nil
		}
		store, err := NewSQLiteStore(config.ExpandHome(cfg.DBPath))
		if err != nil {
			log.Printf("WARNING: SQLite storage unavailable (%v), falling back to in-memory store", err)
			return state.NewMemoryStore(), false, nil
		}
		return store, true, nil
	}
	return nil, false, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
