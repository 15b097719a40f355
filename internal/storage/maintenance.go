package storage

import (
	"context"
	"log"
	"time"
)

const (
	maintenanceInterval = 1 * time.Hour
	vacuumInterval      = 7 * 24 * time.Hour
)

func (s *SQLiteStore) startMaintenance(ctx context.Context) {
	go s.maintenanceLoop(ctx)
}

func (s *SQLiteStore) maintenanceLoop(ctx context.Context) {
	defer close(s.maintenanceDone)

	lastVacuum := time.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runMaintenanceCycle(); err != nil {
				log.Printf("ERROR: maintenance cycle failed: %v", err)
			}

			if time.Since(lastVacuum) >= vacuumInterval {
				if _, err := s.db.Exec("VACUUM"); err != nil {
					log.Printf("ERROR: VACUUM failed: %v", err)
				} else {
					lastVacuum = time.Now()
				}
			}
		}
	}
}

// runMaintenanceCycle folds the WAL back into the main file and refreshes
// query planner statistics. Events are never pruned.
func (s *SQLiteStore) runMaintenanceCycle() error {
	if err := s.checkpoint(); err != nil {
		return err
	}
	if _, err := s.db.Exec("PRAGMA optimize"); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) checkpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
