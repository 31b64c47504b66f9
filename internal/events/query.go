package events

import "time"

// Query selects events from a log. Zero fields match everything.
type Query struct {
	SessionID string
	Types     []EventType
	Since     time.Time
	// Tail keeps only the last N matches when positive.
	Tail int
}

// Apply returns the matching events in their original order.
func (q Query) Apply(evts []AgentEvent) []AgentEvent {
	out := FilterBySession(evts, q.SessionID)
	out = FilterByType(out, q.Types...)
	out = FilterSince(out, q.Since)
	if q.Tail > 0 && len(out) > q.Tail {
		out = out[len(out)-q.Tail:]
	}
	return out
}

// FilterByType keeps events of the given types. No types keeps all.
func FilterByType(evts []AgentEvent, types ...EventType) []AgentEvent {
	if len(types) == 0 {
		return evts
	}
	wanted := make(map[EventType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var out []AgentEvent
	for _, evt := range evts {
		if wanted[evt.Type] {
			out = append(out, evt)
		}
	}
	return out
}

// FilterBySession returns the events of one session. An empty id returns all.
func FilterBySession(evts []AgentEvent, sessionID string) []AgentEvent {
	if sessionID == "" {
		return evts
	}
	var out []AgentEvent
	for _, evt := range evts {
		if evt.SessionID == sessionID {
			out = append(out, evt)
		}
	}
	return out
}

// FilterSince keeps events at or after since. A zero time keeps all.
func FilterSince(evts []AgentEvent, since time.Time) []AgentEvent {
	if since.IsZero() {
		return evts
	}
	var out []AgentEvent
	for _, evt := range evts {
		if !evt.Timestamp.Before(since) {
			out = append(out, evt)
		}
	}
	return out
}
