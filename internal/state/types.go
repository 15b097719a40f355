package state

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nixlim/tally/internal/calendar"
)

// Identity is the opaque id of the user whose events are tracked.
type Identity string

// Kind is one of the two tracked event kinds. It is stored as the integer
// value of the trich column.
type Kind int

const (
	KindT1 Kind = 1
	KindT2 Kind = 2
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindT1, KindT2}

func (k Kind) Valid() bool { return k == KindT1 || k == KindT2 }

func (k Kind) String() string {
	switch k {
	case KindT1:
		return "t1"
	case KindT2:
		return "t2"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind accepts "t1"/"t2" in any case or the bare integers "1"/"2".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t1", "1":
		return KindT1, nil
	case "t2", "2":
		return KindT2, nil
	}
	return 0, fmt.Errorf("unknown event kind %q (want t1 or t2)", s)
}

// Event is a single logged occurrence. SubmittedAt is zero when the store's
// schema carries no timestamp column.
type Event struct {
	ID          string
	Owner       Identity
	Kind        Kind
	OccurredOn  calendar.Day
	SubmittedAt time.Time
}

// DailyBucket holds the per-kind counts for one calendar day.
type DailyBucket struct {
	Day calendar.Day `json:"day"`
	T1  int          `json:"t1"`
	T2  int          `json:"t2"`
}

func (b DailyBucket) Total() int { return b.T1 + b.T2 }

// Totals is a per-kind count pair.
type Totals struct {
	T1 int `json:"t1"`
	T2 int `json:"t2"`
}

func (t Totals) Get(k Kind) int {
	switch k {
	case KindT1:
		return t.T1
	case KindT2:
		return t.T2
	}
	return 0
}

// Add returns t with delta applied to kind k. Counts never go below zero.
func (t Totals) Add(k Kind, delta int) Totals {
	switch k {
	case KindT1:
		t.T1 = max(0, t.T1+delta)
	case KindT2:
		t.T2 = max(0, t.T2+delta)
	}
	return t
}

// ExportRow is one line of a tabular export. Timestamp is empty when no
// timestamp column could be found.
type ExportRow struct {
	OccurredOn calendar.Day
	Kind       Kind
	Timestamp  string
}
