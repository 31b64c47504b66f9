package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/andywolf/concierge/internal/events"
)

func formatted(evt events.AgentEvent) string {
	var buf bytes.Buffer
	formatEvent(&buf, evt)
	return buf.String()
}

func TestFormatEvent_PlainSummary(t *testing.T) {
	got := formatted(events.AgentEvent{Summary: "hello world"})
	if got != "hello world\n" {
		t.Errorf("got %q, want %q", got, "hello world\n")
	}
}

func TestFormatEvent_WithTimestamp(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)
	got := formatted(events.AgentEvent{Timestamp: ts, Type: events.EventTurn, Summary: "user: Paris"})
	want := "[14:30:45] [TURN] user: Paris\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatEvent_ToolCall(t *testing.T) {
	failed := false
	tests := []struct {
		name    string
		success *bool
		want    string
	}{
		{"success unknown", nil, "[TOOL:get_weather ok] {}\n"},
		{"failed", &failed, "[TOOL:get_weather failed] {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatted(events.AgentEvent{Type: events.EventToolCall, ToolName: "get_weather", Summary: "{}", Success: tt.success})
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatEvent_Phase(t *testing.T) {
	got := formatted(events.AgentEvent{Type: events.EventPhase, FromPhase: "Init", Phase: "ClarifyRequirements"})
	want := "[PHASE] Init -> ClarifyRequirements\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("1h", now)
	if err != nil || !got.Equal(now.Add(-time.Hour)) {
		t.Errorf("parseSince(1h) = %v, %v", got, err)
	}
	got, err = parseSince("2026-01-01T10:00:00Z", now)
	if err != nil || got.Hour() != 10 {
		t.Errorf("parseSince(timestamp) = %v, %v", got, err)
	}
	if _, err := parseSince("yesterday", now); err == nil {
		t.Error("expected error for invalid value")
	}
}
