package export

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/nixlim/tally/internal/state"
)

// Header is the column line of every export.
var Header = []string{state.ColumnOccurredOn, state.ColumnKind, "timestamp"}

// DegradedNote is written as the first line when timestamps are missing.
const DegradedNote = "# no timestamp column found in the event store; timestamp values are empty"

// Escape returns s as it appears in an export line: quoted when it contains
// a comma, a quote or a line break, with inner quotes doubled.
func Escape(s string) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{s})
	w.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// WriteCSV writes rows under Header. When degraded is set, DegradedNote is
// written before the header.
func WriteCSV(w io.Writer, rows []state.ExportRow, degraded bool) error {
	bw := bufio.NewWriter(w)
	if degraded {
		if _, err := bw.WriteString(DegradedNote + "\n"); err != nil {
			return err
		}
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{string(r.OccurredOn), strconv.Itoa(int(r.Kind)), r.Timestamp}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
