package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

// identRe limits projected column names to plain identifiers. They are
// interpolated unquoted: SQLite reads an unknown double-quoted identifier
// as a string literal, which would hide a missing column.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isUnknownColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such column")
}

// QueryPage returns one page of the owner's events, newest day first.
func (s *SQLiteStore) QueryPage(ctx context.Context, q state.PageQuery) ([]state.Row, error) {
	if s.closed.Load() {
		return nil, errClosed
	}

	cols := "id, trich, occurred_on"
	if q.TimestampColumn != "" {
		if !identRe.MatchString(q.TimestampColumn) {
			return nil, fmt.Errorf("query page: %w: invalid name %q", state.ErrUnknownColumn, q.TimestampColumn)
		}
		cols += ", COALESCE(CAST(" + q.TimestampColumn + " AS TEXT), '')"
	}

	query := "SELECT " + cols + " FROM trich_events WHERE user_id = ?"
	args := []any{string(q.Owner)}
	if !q.Since.IsZero() {
		query += " AND occurred_on >= ?"
		args = append(args, string(q.Since))
	}
	query += " ORDER BY occurred_on DESC, seq DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isUnknownColumn(err) {
			return nil, fmt.Errorf("query page: %w: %s", state.ErrUnknownColumn, q.TimestampColumn)
		}
		return nil, fmt.Errorf("query page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]state.Row, 0, max(q.Limit, 0))
	for rows.Next() {
		var (
			r    state.Row
			kind int
			day  string
		)
		dest := []any{&r.ID, &kind, &day}
		if q.TimestampColumn != "" {
			dest = append(dest, &r.Timestamp)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		r.Kind = state.Kind(kind)
		r.OccurredOn = calendar.Day(day)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return out, nil
}

// Delete removes one of the owner's events.
func (s *SQLiteStore) Delete(ctx context.Context, owner state.Identity, id string) error {
	if s.closed.Load() {
		return errClosed
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM trich_events WHERE id = ? AND user_id = ?", id, string(owner))
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, state.ErrNotFound)
	}
	return nil
}
