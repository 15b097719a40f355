package idgen

import "testing"

func TestNewEventID_ShapeAndPrefix(t *testing.T) {
	id, err := NewEventID()
	if err != nil {
		t.Fatalf("NewEventID() error: %v", err)
	}
	if !Valid(EventPrefix, id) {
		t.Errorf("NewEventID() = %q, not a valid event id", id)
	}
	if len(id) != len(EventPrefix)+size {
		t.Errorf("len(%q) = %d, want %d", id, len(id), len(EventPrefix)+size)
	}
}

func TestNewEventID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id, err := NewEventID()
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d generations", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestValid_RejectsForeignIDs(t *testing.T) {
	for _, id := range []string{"", "ev_", "bd-abcdefghij12", "ev_ABCDEFGHIJKL", "ev_abc", "ev_abcdefghijk!"} {
		if Valid(EventPrefix, id) {
			t.Errorf("Valid(%q) = true, want false", id)
		}
	}
}
