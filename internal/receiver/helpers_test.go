package receiver

import (
	"context"
	"fmt"
	"sync"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/nixlim/tally/internal/state"
)

const testUser = "6f1c2a8e-3b4d-4e5f-9a0b-1c2d3e4f5a6b"

// fakeSink records logged kinds in order.
type fakeSink struct {
	mu     sync.Mutex
	owner  state.Identity
	err    error
	// failOn makes only the nth Log call (1-based) fail with err.
	failOn int
	calls  int
	logged []state.Kind
}

func (s *fakeSink) Identity() state.Identity { return s.owner }

func (s *fakeSink) Log(_ context.Context, kind state.Kind) (state.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil && (s.failOn == 0 || s.failOn == s.calls) {
		return state.Event{}, s.err
	}
	s.logged = append(s.logged, kind)
	return state.Event{ID: fmt.Sprintf("ev_%d", len(s.logged)), Owner: s.owner, Kind: kind}, nil
}

func (s *fakeSink) kinds() []state.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]state.Kind(nil), s.logged...)
}

func strAttr(key, val string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: val}}}
}

func intAttr(key string, val int64) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: val}}}
}

func tallyRecord(attrs ...*commonpb.KeyValue) *logspb.LogRecord {
	return &logspb.LogRecord{
		TimeUnixNano: uint64(time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC).UnixNano()),
		EventName:    EventName,
		Attributes:   attrs,
	}
}

// makeLogRequest wraps records in a single resource for userID.
func makeLogRequest(userID string, records ...*logspb.LogRecord) *collogspb.ExportLogsServiceRequest {
	var resAttrs []*commonpb.KeyValue
	if userID != "" {
		resAttrs = append(resAttrs, strAttr(AttrUserID, userID))
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{
			{
				Resource:  &resourcepb.Resource{Attributes: resAttrs},
				ScopeLogs: []*logspb.ScopeLogs{{LogRecords: records}},
			},
		},
	}
}
