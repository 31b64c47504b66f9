package memory

import (
	"fmt"
	"strings"
)

// History returns every item, oldest first. Without metadata only role,
// content and timestamp are populated.
func (b *ContextBuffer) History(includeMetadata bool) []Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Item, 0, len(b.items))
	for _, it := range b.items {
		if includeMetadata {
			out = append(out, it.clone())
			continue
		}
		out = append(out, Item{Role: it.Role, Content: it.Content, Timestamp: it.Timestamp})
	}
	return out
}

// Recent returns the last n items in their original order.
func (b *ContextBuffer) Recent(n int) []Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		return []Item{}
	}
	if n > len(b.items) {
		n = len(b.items)
	}
	out := make([]Item, 0, n)
	for _, it := range b.items[len(b.items)-n:] {
		out = append(out, it.clone())
	}
	return out
}

// ContextWindow renders the newest items that fit in maxTokens as
// "ROLE: content" lines in chronological order. The walk stops at the first
// item that would exceed the limit, even if an older one would still fit.
// A non-positive maxTokens uses the buffer limit.
func (b *ContextBuffer) ContextWindow(maxTokens int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	limit := maxTokens
	if limit <= 0 {
		limit = b.maxTokens
	}

	start := len(b.items)
	used := 0
	for i := len(b.items) - 1; i >= 0; i-- {
		if used+b.items[i].Tokens > limit {
			break
		}
		used += b.items[i].Tokens
		start = i
	}

	lines := make([]string, 0, len(b.items)-start)
	for _, it := range b.items[start:] {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(it.Role)), it.Content))
	}
	return strings.Join(lines, "\n")
}

// Summary reports occupancy statistics.
func (b *ContextBuffer) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Summary{
		SessionID:          b.sessionID,
		TotalItems:         len(b.items),
		TotalTokens:        b.totalTokens(),
		MaxItems:           b.maxItems,
		MaxTokens:          b.maxTokens,
		MemoryUsagePercent: float64(len(b.items)) / float64(b.maxItems) * 100,
	}
	if len(b.items) > 0 {
		oldest := b.items[0].Timestamp
		newest := b.items[len(b.items)-1].Timestamp
		s.OldestItem = &oldest
		s.NewestItem = &newest
	}
	return s
}

// Search returns items whose content contains query, ignoring case. An empty
// roleFilter matches every role.
func (b *ContextBuffer) Search(query string, roleFilter Role) []Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	needle := strings.ToLower(query)
	var out []Item
	for _, it := range b.items {
		if roleFilter != "" && it.Role != roleFilter {
			continue
		}
		if strings.Contains(strings.ToLower(it.Content), needle) {
			out = append(out, it.clone())
		}
	}
	return out
}
