package memory

import (
	"testing"
)

func TestContextWindow_Format(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, "hi there", nil)
	b.AddConversation(RoleAssistant, "hello!", nil)
	b.AddSystemEvent("tools_done", nil)

	want := "USER: hi there\nASSISTANT: hello!\nSYSTEM: tools_done"
	if got := b.ContextWindow(0); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestContextWindow_Empty(t *testing.T) {
	b := NewContextBuffer(Config{})
	if got := b.ContextWindow(100); got != "" {
		t.Errorf("expected empty window, got %q", got)
	}
}

func TestContextWindow_StopsAtFirstOverflow(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, withTokens(5), nil)
	b.AddConversation(RoleUser, withTokens(50), nil)
	b.AddConversation(RoleAssistant, withTokens(30), nil)

	// The 50-token item overflows a 70-token window; the older 5-token item
	// would fit but is never reached.
	got := b.ContextWindow(70)
	want := "ASSISTANT: " + withTokens(30)
	if got != want {
		t.Errorf("expected only the newest item, got %q", got)
	}
}

func TestContextWindow_ExactFit(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, withTokens(20), nil)
	b.AddConversation(RoleAssistant, withTokens(30), nil)

	got := b.ContextWindow(50)
	want := "USER: " + withTokens(20) + "\nASSISTANT: " + withTokens(30)
	if got != want {
		t.Errorf("expected both items, got %q", got)
	}
}

func TestContextWindow_DefaultsToBufferLimit(t *testing.T) {
	b := NewContextBuffer(Config{MaxTokens: 40})
	b.AddConversation(RoleUser, withTokens(20), nil)
	b.AddConversation(RoleUser, withTokens(20), nil)
	if got := b.ContextWindow(0); got != b.ContextWindow(40) {
		t.Errorf("expected default window to match explicit limit, got %q", got)
	}
}

func TestSummary(t *testing.T) {
	b := NewContextBuffer(Config{MaxItems: 4, SessionID: "sum"})
	b.AddConversation(RoleUser, withTokens(3), nil)

	s := b.Summary()
	if s.SessionID != "sum" {
		t.Errorf("expected session id sum, got %s", s.SessionID)
	}
	if s.TotalItems != 1 || s.TotalTokens != 3 {
		t.Errorf("unexpected totals: items=%d tokens=%d", s.TotalItems, s.TotalTokens)
	}
	if s.MaxItems != 4 || s.MaxTokens != DefaultMaxTokens {
		t.Errorf("unexpected limits: %d/%d", s.MaxItems, s.MaxTokens)
	}
	if s.MemoryUsagePercent != 25 {
		t.Errorf("expected 25%% usage, got %v", s.MemoryUsagePercent)
	}
	if s.OldestItem == nil || s.NewestItem == nil {
		t.Error("expected oldest and newest timestamps")
	}
}

func TestSummary_Empty(t *testing.T) {
	s := NewContextBuffer(Config{}).Summary()
	if s.TotalItems != 0 || s.TotalTokens != 0 || s.MemoryUsagePercent != 0 {
		t.Errorf("unexpected summary for empty buffer: %+v", s)
	}
	if s.OldestItem != nil || s.NewestItem != nil {
		t.Error("expected nil timestamps for empty buffer")
	}
}

func TestHistory_WithoutMetadata(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddToolCall("fx", 1, 2, true)

	it := b.History(false)[0]
	if it.Metadata != nil {
		t.Errorf("expected no metadata, got %+v", it.Metadata)
	}
	if it.Tokens != 0 {
		t.Errorf("expected tokens to be omitted, got %d", it.Tokens)
	}
	if it.Content == "" || it.Timestamp.IsZero() {
		t.Errorf("expected content and timestamp, got %+v", it)
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, "original", nil)
	h := b.History(true)
	h[0].Content = "changed"
	if b.History(false)[0].Content != "original" {
		t.Error("mutating history changed the buffer")
	}
}

func TestRecent(t *testing.T) {
	b := NewContextBuffer(Config{})
	for _, c := range []string{"a", "b", "c"} {
		b.AddConversation(RoleUser, c, nil)
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"zero", 0, nil},
		{"negative", -2, nil},
		{"two", 2, []string{"b", "c"}},
		{"exact", 3, []string{"a", "b", "c"}},
		{"more than held", 10, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Recent(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d items, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].Content != tt.want[i] {
					t.Errorf("item %d: expected %q, got %q", i, tt.want[i], got[i].Content)
				}
			}
		})
	}
}

func TestSearch(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, "What is the weather in Paris?", nil)
	b.AddConversation(RoleAssistant, "It is sunny in PARIS.", nil)
	b.AddConversation(RoleUser, "And in Rome?", nil)

	if got := b.Search("paris", ""); len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}
	got := b.Search("Paris", RoleAssistant)
	if len(got) != 1 || got[0].Role != RoleAssistant {
		t.Errorf("expected one assistant match, got %+v", got)
	}
	if got := b.Search("tokyo", ""); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestSearch_ToolCallContentWithRoleFilter(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, "Plan a week in Tokyo", nil)
	b.AddToolCall("get_weather", map[string]any{"lat": 35.68, "lon": 139.69}, map[string]any{"summary": "clear"}, true)
	b.AddSystemEvent("weather_requested", nil)

	got := b.Search("weather", RoleAssistant)
	if len(got) != 1 {
		t.Fatalf("expected 1 assistant match, got %d", len(got))
	}
	if got[0].Metadata["tool_name"] != "get_weather" {
		t.Errorf("expected the tool call item, got %+v", got[0])
	}
	if got := b.Search("weather", RoleSystem); len(got) != 1 || got[0].Content != "weather_requested" {
		t.Errorf("expected the system event only, got %+v", got)
	}
	if got := b.Search("weather", RoleUser); len(got) != 0 {
		t.Errorf("expected no user matches, got %d", len(got))
	}
}

func TestMetadata_IsolatedFromCallers(t *testing.T) {
	b := NewContextBuffer(Config{})
	meta := map[string]any{"channel": "cli"}
	b.AddConversation(RoleUser, "hello", meta)
	data := map[string]any{"destination": "Oslo"}
	b.AddSystemEvent("requirements_extracted", data)

	meta["channel"] = "mcp"
	data["destination"] = "Bergen"
	h := b.History(true)
	h[0].Metadata["channel"] = "tampered"
	b.Recent(1)[0].Metadata["event"] = "tampered"
	b.Search("hello", "")[0].Metadata["extra"] = true

	h = b.History(true)
	if h[0].Metadata["channel"] != "cli" {
		t.Errorf("channel = %v, want cli", h[0].Metadata["channel"])
	}
	if _, ok := h[0].Metadata["extra"]; ok {
		t.Error("search result mutation reached the buffer")
	}
	if h[1].Metadata["event"] != "requirements_extracted" {
		t.Errorf("event = %v, want requirements_extracted", h[1].Metadata["event"])
	}
	if got := h[1].Metadata["data"].(map[string]any)["destination"]; got != "Oslo" {
		t.Errorf("destination = %v, want Oslo", got)
	}
}

func TestSearch_IgnoresMetadata(t *testing.T) {
	b := NewContextBuffer(Config{})
	b.AddConversation(RoleUser, "hello", map[string]any{"secret": "needle"})
	if got := b.Search("needle", ""); len(got) != 0 {
		t.Errorf("expected metadata to be ignored, got %d matches", len(got))
	}
}
