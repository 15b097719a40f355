// Package idgen mints opaque event identifiers for stores that do not
// assign their own.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// EventPrefix marks ids minted for logged events.
	EventPrefix = "ev_"

	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	size     = 12
)

// NewEventID returns a fresh event id such as "ev_3k9x0q2m7a1b".
func NewEventID() (string, error) {
	return New(EventPrefix)
}

// New returns a random id carrying the given prefix.
func New(prefix string) (string, error) {
	body, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return prefix + body, nil
}

// Valid reports whether id looks like one minted with prefix.
func Valid(prefix, id string) bool {
	body, ok := strings.CutPrefix(id, prefix)
	if !ok || len(body) != size {
		return false
	}
	for _, r := range body {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
