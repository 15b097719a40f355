// Package identity resolves the user whose events are tracked.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nixlim/tally/internal/state"
)

// Provider returns the current identity, or an error wrapping
// state.ErrNoIdentity when nobody is signed in.
type Provider interface {
	Current(ctx context.Context) (state.Identity, error)
}

// Normalize validates raw as a UUID and returns it in canonical form.
func Normalize(raw string) (state.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", state.ErrNoIdentity
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", raw, err)
	}
	return state.Identity(id.String()), nil
}

// Static always returns the same configured id.
type Static string

func (s Static) Current(context.Context) (state.Identity, error) {
	return Normalize(string(s))
}

// SessionFile stores the signed-in id in a small file so that it survives
// restarts. A missing file means nobody is signed in.
type SessionFile struct {
	Path string
}

func (f SessionFile) Current(context.Context) (state.Identity, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", state.ErrNoIdentity
	}
	if err != nil {
		return "", fmt.Errorf("reading session: %w", err)
	}
	return Normalize(string(data))
}

// Login validates raw and writes it as the signed-in id.
func (f SessionFile) Login(raw string) (state.Identity, error) {
	id, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return "", fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(string(id)+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing session: %w", err)
	}
	return id, nil
}

// Logout removes the session. Logging out twice is not an error.
func (f SessionFile) Logout() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// Chain asks each provider in turn and returns the first identity found.
// Any error other than "no identity" stops the search.
type Chain []Provider

func (c Chain) Current(ctx context.Context) (state.Identity, error) {
	for _, p := range c {
		id, err := p.Current(ctx)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, state.ErrNoIdentity) {
			return "", err
		}
	}
	return "", state.ErrNoIdentity
}
