// Package events fans out successful writes to a message broker.
package events

import (
	"context"
	"time"

	"github.com/nixlim/tally/internal/state"
)

const (
	SubjectEventLogged  = "tally.event.logged"
	SubjectEventDeleted = "tally.event.deleted"
)

// EventLogged is published after an event has been stored.
type EventLogged struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Kind        string    `json:"kind"`
	OccurredOn  string    `json:"occurred_on"`
	SubmittedAt time.Time `json:"submitted_at,omitzero"`
}

// NewEventLogged builds the payload for a stored event.
func NewEventLogged(e state.Event) EventLogged {
	return EventLogged{
		ID:          e.ID,
		Owner:       string(e.Owner),
		Kind:        e.Kind.String(),
		OccurredOn:  string(e.OccurredOn),
		SubmittedAt: e.SubmittedAt,
	}
}

// EventDeleted is published after an event has been removed.
type EventDeleted struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

// Publisher emits events to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close() error
}
