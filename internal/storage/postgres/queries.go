package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/lib/pq"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// undefinedColumn is the SQLSTATE for a reference to a missing column.
const undefinedColumn pq.ErrorCode = "42703"

func isUndefinedColumn(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == undefinedColumn
}

// QueryPage returns one page of the owner's events, newest day first.
func (s *Store) QueryPage(ctx context.Context, q state.PageQuery) ([]state.Row, error) {
	// to_char keeps day labels independent of the session DateStyle.
	cols := "id, trich, to_char(occurred_on, 'YYYY-MM-DD')"
	if q.TimestampColumn != "" {
		if !identRe.MatchString(q.TimestampColumn) {
			return nil, fmt.Errorf("query page: %w: invalid name %q", state.ErrUnknownColumn, q.TimestampColumn)
		}
		cols += ", COALESCE(" + pq.QuoteIdentifier(q.TimestampColumn) + "::text, '')"
	}

	query := "SELECT " + cols + " FROM trich_events WHERE user_id = $1"
	args := []any{string(q.Owner)}
	if !q.Since.IsZero() {
		args = append(args, string(q.Since))
		query += " AND occurred_on >= $" + strconv.Itoa(len(args)) + "::date"
	}
	args = append(args, q.Limit, q.Offset)
	query += " ORDER BY occurred_on DESC, seq DESC LIMIT $" + strconv.Itoa(len(args)-1) +
		" OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isUndefinedColumn(err) {
			return nil, fmt.Errorf("query page: %w: %s", state.ErrUnknownColumn, q.TimestampColumn)
		}
		return nil, fmt.Errorf("query page: %w", err)
	}
	defer rows.Close()

	var out []state.Row
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
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Kind = state.Kind(kind)
		r.OccurredOn = calendar.Day(day)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Delete removes one of the owner's events.
func (s *Store) Delete(ctx context.Context, owner state.Identity, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trich_events WHERE id = $1 AND user_id = $2`, id, string(owner))
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, state.ErrNotFound)
	}
	return nil
}
