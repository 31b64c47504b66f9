package memory

import "time"

// Role identifies who produced a memory item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Metadata types stamped on tool calls and system events.
const (
	TypeToolCall    = "tool_call"
	TypeSystemEvent = "system_event"
)

// Item is a single entry in the context buffer. Items are never modified
// after they are appended.
type Item struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Tokens    int            `json:"tokens"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// clone copies it with its own top-level metadata map, so callers cannot
// reach into the buffer through the map.
func (it Item) clone() Item {
	if it.Metadata != nil {
		it.Metadata = copyMetadata(it.Metadata)
	}
	return it
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Summary reports the occupancy of a buffer.
type Summary struct {
	SessionID          string     `json:"session_id"`
	TotalItems         int        `json:"total_items"`
	TotalTokens        int        `json:"total_tokens"`
	MaxItems           int        `json:"max_items"`
	MaxTokens          int        `json:"max_tokens"`
	MemoryUsagePercent float64    `json:"memory_usage_percent"`
	OldestItem         *time.Time `json:"oldest_item"`
	NewestItem         *time.Time `json:"newest_item"`
}

// Data is the export representation of a buffer.
type Data struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items"`
}

// Config holds buffer limits. Zero values fall back to the defaults.
type Config struct {
	MaxItems  int
	MaxTokens int
	SessionID string
}

const (
	DefaultMaxItems  = 10
	DefaultMaxTokens = 2000
)
