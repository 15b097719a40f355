package state

import "errors"

var (
	// ErrUnknownColumn is returned by QueryPage when the requested timestamp
	// column does not exist in the backing schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNotFound is returned by Delete when no event with the id exists for
	// the owner.
	ErrNotFound = errors.New("event not found")

	// ErrNoIdentity means no user is signed in.
	ErrNoIdentity = errors.New("not logged in")
)
