package memory

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// withTokens returns content whose estimate is exactly n tokens.
func withTokens(n int) string {
	return strings.Repeat("a", n*4)
}

func TestNewContextBuffer_Defaults(t *testing.T) {
	b := NewContextBuffer(Config{})
	if b.maxItems != DefaultMaxItems {
		t.Errorf("expected maxItems %d, got %d", DefaultMaxItems, b.maxItems)
	}
	if b.maxTokens != DefaultMaxTokens {
		t.Errorf("expected maxTokens %d, got %d", DefaultMaxTokens, b.maxTokens)
	}
	if b.SessionID() == "" {
		t.Error("expected generated session id")
	}
	if b.Len() != 0 {
		t.Errorf("expected empty buffer, got %d items", b.Len())
	}
}

func TestNewContextBuffer_CustomConfig(t *testing.T) {
	b := NewContextBuffer(Config{MaxItems: 3, MaxTokens: 50, SessionID: "s-1"})
	if b.maxItems != 3 || b.maxTokens != 50 {
		t.Errorf("unexpected limits: items=%d tokens=%d", b.maxItems, b.maxTokens)
	}
	if b.SessionID() != "s-1" {
		t.Errorf("expected session id s-1, got %s", b.SessionID())
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{"Hello, how are you?", 4},
		{withTokens(25), 25},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.content); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestAddConversation(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, "Hello, how are you?", nil)

	items := b.History(true)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Role != RoleUser || it.Content != "Hello, how are you?" {
		t.Errorf("unexpected item: %+v", it)
	}
	if it.Tokens != 4 {
		t.Errorf("expected 4 tokens, got %d", it.Tokens)
	}
	if it.Metadata == nil {
		t.Error("expected empty metadata map, got nil")
	}
	if it.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestAddConversation_EmptyContent(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleAssistant, "", nil)
	items := b.History(true)
	if len(items) != 1 || items[0].Tokens != 0 {
		t.Errorf("expected a single zero-token item, got %+v", items)
	}
}

func TestEviction_ByCount(t *testing.T) {
	b := NewContextBuffer(Config{MaxItems: 3})
	for _, c := range []string{"one", "two", "three", "four", "five"} {
		b.AddConversation(RoleUser, c, nil)
	}

	items := b.History(false)
	if len(items) != 3 {
		t.Fatalf("expected 3 items after eviction, got %d", len(items))
	}
	want := []string{"three", "four", "five"}
	for i, w := range want {
		if items[i].Content != w {
			t.Errorf("item %d: expected %q, got %q", i, w, items[i].Content)
		}
	}
}

func TestEviction_ByTokens(t *testing.T) {
	b := NewContextBuffer(Config{MaxTokens: 100})
	b.AddConversation(RoleUser, withTokens(50), nil)
	b.AddConversation(RoleAssistant, withTokens(40), nil)
	b.AddConversation(RoleUser, withTokens(30), nil)

	s := b.Summary()
	if s.TotalItems != 2 {
		t.Fatalf("expected 2 items, got %d", s.TotalItems)
	}
	if s.TotalTokens != 70 {
		t.Errorf("expected 70 tokens, got %d", s.TotalTokens)
	}
}

func TestEviction_OversizedItemEmptiesBuffer(t *testing.T) {
	b := NewContextBuffer(Config{MaxTokens: 10})
	b.AddConversation(RoleUser, withTokens(5), nil)
	b.AddConversation(RoleUser, withTokens(11), nil)

	if b.Len() != 0 {
		t.Errorf("expected empty buffer, got %d items", b.Len())
	}
}

func TestAddToolCall(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddToolCall("weather", map[string]any{"city": "Paris"}, map[string]any{"temp": 20}, true)

	it := b.History(true)[0]
	if it.Role != RoleAssistant {
		t.Errorf("expected assistant role, got %s", it.Role)
	}
	want := "Tool call: weather\nInput: {\"city\":\"Paris\"}\nOutput: {\"temp\":20}"
	if it.Content != want {
		t.Errorf("expected content %q, got %q", want, it.Content)
	}
	if it.Metadata["type"] != TypeToolCall {
		t.Errorf("expected type %s, got %v", TypeToolCall, it.Metadata["type"])
	}
	if it.Metadata["tool_name"] != "weather" {
		t.Errorf("expected tool_name weather, got %v", it.Metadata["tool_name"])
	}
	if it.Metadata["success"] != true {
		t.Errorf("expected success true, got %v", it.Metadata["success"])
	}
}

func TestAddToolCall_Failure(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddToolCall("search", "paris", map[string]any{"error": "timeout"}, false)
	it := b.History(true)[0]
	if it.Metadata["success"] != false {
		t.Errorf("expected success false, got %v", it.Metadata["success"])
	}
	if !strings.Contains(it.Content, `Input: "paris"`) {
		t.Errorf("expected JSON-encoded string input, got %q", it.Content)
	}
}

func TestAddSystemEvent(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddSystemEvent("phase_change", map[string]any{"to": "PlanTools"})

	it := b.History(true)[0]
	if it.Role != RoleSystem || it.Content != "phase_change" {
		t.Errorf("unexpected item: %+v", it)
	}
	if it.Metadata["type"] != TypeSystemEvent || it.Metadata["event"] != "phase_change" {
		t.Errorf("unexpected metadata: %+v", it.Metadata)
	}
	data, ok := it.Metadata["data"].(map[string]any)
	if !ok || data["to"] != "PlanTools" {
		t.Errorf("unexpected data: %+v", it.Metadata["data"])
	}
}

func TestClear_KeepsSession(t *testing.T) {
	b := NewContextBuffer(Config{SessionID: "keep"})
	created := b.CreatedAt()
	b.AddConversation(RoleUser, "hello", nil)
	b.Clear()

	if b.Len() != 0 {
		t.Errorf("expected empty buffer after clear, got %d", b.Len())
	}
	if b.SessionID() != "keep" {
		t.Errorf("expected session id to survive clear, got %s", b.SessionID())
	}
	if !b.CreatedAt().Equal(created) {
		t.Error("expected created_at to survive clear")
	}
}

func TestString(t *testing.T) {
	b := NewContextBuffer(Config{SessionID: "abc"})
	b.AddConversation(RoleUser, "hi", nil)
	if got := b.String(); got != "ContextBuffer(session_id=abc, items=1)" {
		t.Errorf("unexpected String(): %s", got)
	}
}

func TestConcurrentAppendsRespectLimits(t *testing.T) {
	b := NewContextBuffer(Config{MaxItems: 5, MaxTokens: 40})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.AddConversation(RoleUser, withTokens(3), nil)
				b.AddToolCall("fx", j, j, true)
				_ = b.ContextWindow(0)
			}
		}()
	}
	wg.Wait()

	s := b.Summary()
	if s.TotalItems > 5 {
		t.Errorf("expected at most 5 items, got %d", s.TotalItems)
	}
	if s.TotalTokens > 40 {
		t.Errorf("expected at most 40 tokens, got %d", s.TotalTokens)
	}
}

func TestTimestampsAreMonotonic(t *testing.T) {
	b := NewContextBuffer(Config{})
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	b.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	b.AddConversation(RoleUser, "a", nil)
	b.AddConversation(RoleUser, "b", nil)

	s := b.Summary()
	if !s.OldestItem.Before(*s.NewestItem) {
		t.Errorf("expected oldest %v before newest %v", s.OldestItem, s.NewestItem)
	}
}
