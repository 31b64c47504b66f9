package events

import (
	"testing"
	"time"
)

func TestFilterSince(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	evts := []AgentEvent{
		{Timestamp: base.Add(-2 * time.Hour), Summary: "old"},
		{Timestamp: base, Summary: "edge"},
		{Timestamp: base.Add(time.Minute), Summary: "new"},
	}

	got := FilterSince(evts, base)
	if len(got) != 2 || got[0].Summary != "edge" {
		t.Errorf("unexpected filtered events: %+v", got)
	}
	if got := FilterSince(evts, time.Time{}); len(got) != 3 {
		t.Errorf("expected zero time to keep all events, got %d", len(got))
	}
}

func TestQuery_Apply(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	evts := []AgentEvent{
		{SessionID: "a", Type: EventTurn, Timestamp: base, Summary: "a1"},
		{SessionID: "a", Type: EventToolCall, Timestamp: base.Add(time.Minute), Summary: "a2"},
		{SessionID: "b", Type: EventToolCall, Timestamp: base.Add(2 * time.Minute), Summary: "b1"},
		{SessionID: "a", Type: EventToolCall, Timestamp: base.Add(3 * time.Minute), Summary: "a3"},
		{SessionID: "a", Type: EventPhase, Timestamp: base.Add(4 * time.Minute), Summary: "a4"},
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "zero query", query: Query{}, want: []string{"a1", "a2", "b1", "a3", "a4"}},
		{name: "session", query: Query{SessionID: "b"}, want: []string{"b1"}},
		{name: "session and type", query: Query{SessionID: "a", Types: []EventType{EventToolCall}}, want: []string{"a2", "a3"}},
		{name: "since", query: Query{Since: base.Add(3 * time.Minute)}, want: []string{"a3", "a4"}},
		{name: "tail", query: Query{SessionID: "a", Tail: 2}, want: []string{"a3", "a4"}},
		{name: "tail larger than matches", query: Query{SessionID: "b", Tail: 10}, want: []string{"b1"}},
		{name: "several types", query: Query{Types: []EventType{EventTurn, EventPhase}}, want: []string{"a1", "a4"}},
		{name: "unknown session", query: Query{SessionID: "zzz"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.query.Apply(evts)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d events, want %d", len(got), len(tt.want))
			}
			for i, evt := range got {
				if evt.Summary != tt.want[i] {
					t.Errorf("event[%d] = %q, want %q", i, evt.Summary, tt.want[i])
				}
			}
		})
	}
}
