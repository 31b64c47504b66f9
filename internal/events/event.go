// Package events records what the agent did during a request as a stream of
// AgentEvents. The JSONL file it produces is the audit trail behind
// "concierge logs" and is handy when debugging a bad plan.
package events

import (
	"time"
)

// EventType identifies the category of an agent event.
type EventType string

const (
	// EventTurn is a user or assistant message entering the context buffer.
	EventTurn EventType = "turn"
	// EventPhase is a workflow phase transition.
	EventPhase EventType = "phase"
	// EventExtraction is the result of requirement extraction.
	EventExtraction EventType = "extraction"
	// EventToolCall is a completed tool invocation.
	EventToolCall EventType = "tool_call"
	// EventSynthesis is the final plan document.
	EventSynthesis EventType = "synthesis"
	// EventError is an error event.
	EventError EventType = "error"
)

// AgentEvent is one entry in the audit trail.
type AgentEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	RequestID string    `json:"request_id,omitempty"`
	Iteration int       `json:"iteration"`
	Type      EventType `json:"type"`

	// Phase is the phase the event happened in; for EventPhase it is the
	// phase being entered and FromPhase the one being left.
	Phase     string `json:"phase,omitempty"`
	FromPhase string `json:"from_phase,omitempty"`

	// Summary is a short human-readable description (for log display).
	Summary string `json:"summary,omitempty"`

	// Content is the full event content (may be large for tool results).
	Content string `json:"content,omitempty"`

	ToolName  string `json:"tool_name,omitempty"`
	ToolInput string `json:"tool_input,omitempty"`
	Success   *bool  `json:"success,omitempty"`
}

// ValidEventTypes returns all valid event type values.
func ValidEventTypes() []EventType {
	return []EventType{
		EventTurn,
		EventPhase,
		EventExtraction,
		EventToolCall,
		EventSynthesis,
		EventError,
	}
}

// IsValidEventType checks if the given string is a valid event type.
func IsValidEventType(s string) bool {
	for _, t := range ValidEventTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Sink receives batches of events.
type Sink interface {
	Write(events []AgentEvent) error
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Write([]AgentEvent) error { return nil }
func (NopSink) Close() error             { return nil }
