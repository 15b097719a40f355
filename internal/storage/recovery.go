package storage

import (
	"fmt"
	"log"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

// checkRows scans existing events for values the aggregator will skip and
// logs how many there are. Such rows are left in place.
func (s *SQLiteStore) checkRows() error {
	rows, err := s.db.Query("SELECT id, trich, occurred_on FROM trich_events")
	if err != nil {
		return fmt.Errorf("querying events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var total, badKind, badDay int
	for rows.Next() {
		var (
			id   string
			kind int
			day  string
		)
		if err := rows.Scan(&id, &kind, &day); err != nil {
			log.Printf("ERROR: failed to scan event row: %v", err)
			badDay++
			continue
		}
		total++
		if !state.Kind(kind).Valid() {
			badKind++
		}
		if _, err := calendar.Parse(day); err != nil {
			badDay++
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating events: %w", err)
	}

	if badKind > 0 || badDay > 0 {
		log.Printf("WARNING: %d of %d stored events are unreadable (%d unknown kind, %d bad day) and will not be counted",
			badKind+badDay, total, badKind, badDay)
	}
	return nil
}
