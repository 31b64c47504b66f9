package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ContextBuffer is the bounded short-term memory of one conversation
// session. After every mutation the buffer holds at most maxItems items
// whose token estimates sum to at most maxTokens; the oldest items are
// evicted first. It is safe for concurrent use.
type ContextBuffer struct {
	mu        sync.Mutex
	sessionID string
	createdAt time.Time
	items     []Item
	maxItems  int
	maxTokens int
	now       func() time.Time
}

// NewContextBuffer creates an empty buffer. A new session id is generated
// when the config does not carry one.
func NewContextBuffer(config Config) *ContextBuffer {
	maxItems := config.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &ContextBuffer{
		sessionID: sessionID,
		createdAt: time.Now(),
		items:     []Item{},
		maxItems:  maxItems,
		maxTokens: maxTokens,
		now:       time.Now,
	}
}

// EstimateTokens approximates the token cost of content as a quarter of its
// character count.
func EstimateTokens(content string) int {
	return utf8.RuneCountInString(content) / 4
}

// SessionID returns the session id. Import may replace it.
func (b *ContextBuffer) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// CreatedAt returns the buffer creation time.
func (b *ContextBuffer) CreatedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createdAt
}

// Len returns the number of items currently held.
func (b *ContextBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// AddConversation appends a conversational turn. The metadata map is copied.
func (b *ContextBuffer) AddConversation(role Role, content string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	} else {
		metadata = copyMetadata(metadata)
	}
	b.append(role, content, metadata)
}

// AddToolCall records a tool invocation as an assistant item.
func (b *ContextBuffer) AddToolCall(toolName string, input, output any, success bool) {
	content := fmt.Sprintf("Tool call: %s\nInput: %s\nOutput: %s", toolName, toJSON(input), toJSON(output))
	b.append(RoleAssistant, content, map[string]any{
		"type":      TypeToolCall,
		"tool_name": toolName,
		"input":     input,
		"output":    output,
		"success":   success,
	})
}

// AddSystemEvent records an internal event. The event label is the content.
func (b *ContextBuffer) AddSystemEvent(event string, data map[string]any) {
	if data != nil {
		data = copyMetadata(data)
	}
	b.append(RoleSystem, event, map[string]any{
		"type":  TypeSystemEvent,
		"event": event,
		"data":  data,
	})
}

// Clear removes every item. Session id and creation time are kept.
func (b *ContextBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = []Item{}
}

func (b *ContextBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("ContextBuffer(session_id=%s, items=%d)", b.sessionID, len(b.items))
}

func (b *ContextBuffer) append(role Role, content string, metadata map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, Item{
		Role:      role,
		Content:   content,
		Tokens:    EstimateTokens(content),
		Timestamp: b.now(),
		Metadata:  metadata,
	})
	b.evict()
}

// evict drops the oldest items until both limits hold. Callers hold mu.
func (b *ContextBuffer) evict() int {
	drop := 0
	if len(b.items) > b.maxItems {
		drop = len(b.items) - b.maxItems
	}
	total := 0
	for _, it := range b.items[drop:] {
		total += it.Tokens
	}
	for total > b.maxTokens && drop < len(b.items) {
		total -= b.items[drop].Tokens
		drop++
	}
	if drop > 0 {
		b.items = append([]Item(nil), b.items[drop:]...)
	}
	return drop
}

func (b *ContextBuffer) totalTokens() int {
	total := 0
	for _, it := range b.items {
		total += it.Tokens
	}
	return total
}

// toJSON renders a tool payload for the item content. Values that cannot be
// encoded fall back to their fmt representation.
func toJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
