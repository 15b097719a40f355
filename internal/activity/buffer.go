// Package activity keeps a short, bounded history of log attempts for
// display.
package activity

import (
	"sync"
	"time"

	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/state"
)

// Entry is one log or delete attempt and its outcome.
type Entry struct {
	At      time.Time
	Action  string // "log" or "delete"
	Kind    state.Kind
	Day     calendar.Day
	EventID string
	Err     string // empty on success
}

func (e Entry) OK() bool { return e.Err == "" }

// RingBuffer is a fixed-capacity, thread-safe buffer of entries. When full,
// the oldest entry is overwritten.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Entry
	size  int
	head  int // index of the oldest element
	count int
}

// NewRingBuffer creates a buffer holding at most capacity entries (minimum 1).
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Entry, capacity),
		size:  capacity,
	}
}

// Record appends e, evicting the oldest entry if the buffer is full.
func (rb *RingBuffer) Record(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.size {
		rb.items[rb.head] = e
		rb.head = (rb.head + 1) % rb.size
		return
	}
	rb.items[(rb.head+rb.count)%rb.size] = e
	rb.count++
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (rb *RingBuffer) Recent(n int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (rb.head + rb.count - 1 - i) % rb.size
		out = append(out, rb.items[idx])
	}
	return out
}

// Failures returns the failed entries, newest first.
func (rb *RingBuffer) Failures() []Entry {
	var out []Entry
	for _, e := range rb.Recent(0) {
		if !e.OK() {
			out = append(out, e)
		}
	}
	return out
}

func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

func (rb *RingBuffer) Cap() int { return rb.size }
