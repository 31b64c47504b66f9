package events

import "testing"

func TestValidEventTypes(t *testing.T) {
	types := ValidEventTypes()
	if len(types) != 6 {
		t.Fatalf("expected 6 event types, got %d", len(types))
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if seen[et] {
			t.Errorf("duplicate event type %q", et)
		}
		seen[et] = true
	}
}

func TestIsValidEventType(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"phase", true},
		{"tool_call", true},
		{"synthesis", true},
		{"error", true},
		{"thinking", false},
		{"", false},
		{"PHASE", false},
	}

	for _, tc := range tests {
		if got := IsValidEventType(tc.input); got != tc.want {
			t.Errorf("IsValidEventType(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	if err := s.Write([]AgentEvent{{Type: EventTurn}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
