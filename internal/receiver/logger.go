package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Logger records each tally.log record the receiver decodes.
// Implementations must be safe for concurrent use.
type Logger interface {
	// LogIntake logs a decoded record and the id of the event it produced,
	// empty when the record was rejected.
	LogIntake(in Intake, eventID string)
}

// NopLogger discards all log output. This is the default when debug logging
// is not enabled.
type NopLogger struct{}

func (NopLogger) LogIntake(Intake, string) {}

// logEntry is the JSON structure written by FileLogger.
type logEntry struct {
	Timestamp string `json:"ts"`
	User      string `json:"user"`
	Kind      string `json:"kind,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Rejected  string `json:"rejected,omitempty"`
}

// FileLogger writes one JSON object per line to an io.Writer.
type FileLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w, now: time.Now}
}

func (l *FileLogger) LogIntake(in Intake, eventID string) {
	ts := in.At
	if ts.IsZero() {
		ts = l.now()
	}
	entry := logEntry{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		User:      in.UserID,
		EventID:   eventID,
		Rejected:  in.Reason,
	}
	if in.Kind.Valid() {
		entry.Kind = in.Kind.String()
	}
	l.write(entry)
}

// write serialises entry as a single line. Serialisation errors are
// dropped so logging never disrupts the receiver.
func (l *FileLogger) write(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
