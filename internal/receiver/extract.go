package receiver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/nixlim/tally/internal/state"
)

// Record and attribute names understood by the receiver.
const (
	EventName    = "tally.log"
	AttrKind     = "event.kind"
	AttrUserID   = "user.id"
	attrEventKey = "event.name"
)

// Intake is one decoded log record.
type Intake struct {
	At     time.Time
	UserID string
	Kind   state.Kind
	Reason string
}

// Accepted reports whether the record should be logged.
func (in Intake) Accepted() bool { return in.Reason == "" }

// Extract decodes every tally.log record in req. Records for any user other
// than owner, or without a valid kind, carry a rejection reason. Records
// with other names are ignored.
func Extract(req *collogspb.ExportLogsServiceRequest, owner state.Identity) []Intake {
	var out []Intake
	for _, rl := range req.GetResourceLogs() {
		userID := stringAttr(rl.GetResource().GetAttributes(), AttrUserID)
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				if recordName(lr) != EventName {
					continue
				}
				out = append(out, decode(lr, userID, owner))
			}
		}
	}
	return out
}

func recordName(lr *logspb.LogRecord) string {
	if lr.GetEventName() != "" {
		return lr.GetEventName()
	}
	return stringAttr(lr.GetAttributes(), attrEventKey)
}

func decode(lr *logspb.LogRecord, userID string, owner state.Identity) Intake {
	in := Intake{UserID: userID}
	if ts := lr.GetTimeUnixNano(); ts > 0 {
		in.At = time.Unix(0, int64(ts))
	}

	switch {
	case owner == "":
		in.Reason = "not logged in"
	case userID == "":
		in.Reason = "missing " + AttrUserID
	case !strings.EqualFold(userID, string(owner)):
		in.Reason = "user mismatch"
	}
	if in.Reason != "" {
		return in
	}

	kind, err := kindAttr(lr.GetAttributes())
	if err != nil {
		in.Reason = err.Error()
		return in
	}
	in.Kind = kind
	return in
}

func kindAttr(attrs []*commonpb.KeyValue) (state.Kind, error) {
	for _, kv := range attrs {
		if kv.GetKey() != AttrKind {
			continue
		}
		switch v := kv.GetValue().GetValue().(type) {
		case *commonpb.AnyValue_StringValue:
			return state.ParseKind(v.StringValue)
		case *commonpb.AnyValue_IntValue:
			k := state.Kind(v.IntValue)
			if !k.Valid() {
				return 0, fmt.Errorf("invalid %s %d", AttrKind, v.IntValue)
			}
			return k, nil
		}
		return 0, fmt.Errorf("unsupported %s value", AttrKind)
	}
	return 0, fmt.Errorf("missing %s", AttrKind)
}

func stringAttr(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}

// outcome summarizes one request.
type outcome struct {
	stored   int64
	rejected int64
	// err is the store failure that stopped processing, if any.
	err error
}

// retryable reports whether the whole request can be resent without
// duplicating events: a store failure before anything was written.
func (o outcome) retryable() bool { return o.err != nil && o.stored == 0 }

// process logs every accepted record through sink. A store failure stops
// processing; the failed record and everything after it count as rejected.
func process(ctx context.Context, sink Sink, logger Logger, req *collogspb.ExportLogsServiceRequest) outcome {
	var o outcome
	intakes := Extract(req, sink.Identity())
	for i, in := range intakes {
		if !in.Accepted() {
			o.rejected++
			log.Printf("WARNING: receiver rejected %s record from %q: %s", EventName, in.UserID, in.Reason)
			logger.LogIntake(in, "")
			continue
		}
		ev, err := sink.Log(ctx, in.Kind)
		if err != nil {
			o.err = err
			o.rejected += int64(len(intakes) - i)
			if o.stored > 0 {
				log.Printf("ERROR: receiver stored %d record(s) then failed: %v", o.stored, err)
			}
			return o
		}
		o.stored++
		logger.LogIntake(in, ev.ID)
	}
	return o
}

func partialSuccess(o outcome) *collogspb.ExportLogsServiceResponse {
	resp := &collogspb.ExportLogsServiceResponse{}
	if o.rejected > 0 {
		msg := fmt.Sprintf("%d record(s) rejected", o.rejected)
		if o.err != nil {
			msg = fmt.Sprintf("%d record(s) not logged: %v", o.rejected, o.err)
		}
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: o.rejected,
			ErrorMessage:       msg,
		}
	}
	return resp
}
