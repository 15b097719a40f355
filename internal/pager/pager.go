// Package pager reads an owner's event log in fixed-size pages.
//
// A short page ends the read. A configurable maximum offset bounds the
// worst case: once the next offset would pass it, the read stops and the
// result is marked truncated. Truncation is a known limit, not an error,
// and is always logged.
package pager

import (
	"context"
	"fmt"
	"log"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

const (
	DefaultPageSize  = 1000
	DefaultMaxOffset = 50000
)

// Options controls page size and the safety valve.
type Options struct {
	PageSize  int
	MaxOffset int
}

// DefaultOptions returns the recommended page size and cap.
func DefaultOptions() Options {
	return Options{PageSize: DefaultPageSize, MaxOffset: DefaultMaxOffset}
}

func (o Options) normalized() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxOffset <= 0 {
		o.MaxOffset = DefaultMaxOffset
	}
	return o
}

// Result is the concatenation of every page read.
type Result[T any] struct {
	Items []T
	Pages int
	// Truncated is set when the safety valve stopped the read before a
	// short page was seen.
	Truncated bool
}

// PageFunc fetches one page at the given offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// FetchAll calls fetch with increasing offsets until a page comes back
// shorter than the page size or the safety valve trips. On any error the
// pages already read are discarded.
func FetchAll[T any](ctx context.Context, opts Options, fetch PageFunc[T]) (Result[T], error) {
	opts = opts.normalized()

	var res Result[T]
	offset := 0
	for {
		page, err := fetch(ctx, offset, opts.PageSize)
		if err != nil {
			return Result[T]{}, fmt.Errorf("fetching page at offset %d: %w", offset, err)
		}
		res.Pages++
		res.Items = append(res.Items, page...)
		if len(page) < opts.PageSize {
			return res, nil
		}
		offset += opts.PageSize
		if offset > opts.MaxOffset {
			res.Truncated = true
			return res, nil
		}
	}
}

// FetchSince reads every row of owner with OccurredOn >= since. Rows beyond
// the safety valve are dropped and a warning is logged.
func FetchSince(ctx context.Context, store state.Store, owner state.Identity, since calendar.Day, opts Options) (Result[state.Row], error) {
	res, err := FetchAll(ctx, opts, func(ctx context.Context, offset, limit int) ([]state.Row, error) {
		return store.QueryPage(ctx, state.PageQuery{
			Owner:  owner,
			Since:  since,
			Offset: offset,
			Limit:  limit,
		})
	})
	if err != nil {
		return res, err
	}
	if res.Truncated {
		log.Printf("WARNING: event read for %s since %s stopped at the safety cap after %d rows; older rows are not counted",
			owner, since, len(res.Items))
	}
	return res, nil
}
