package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/andywolf/concierge/internal/memory"
)

func lookupSession(sessions *memory.Sessions, req mcp.CallToolRequest) (*memory.ContextBuffer, *mcp.CallToolResult) {
	id := req.GetString("session_id", "")
	if id == "" {
		return nil, mcp.NewToolResultError("'session_id' is required")
	}
	buf, ok := sessions.Get(id)
	if !ok {
		return nil, mcp.NewToolResultError(fmt.Sprintf("unknown session %q", id))
	}
	return buf, nil
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by plan_trip"))
}

// SummaryTool reports buffer occupancy.
type SummaryTool struct {
	sessions *memory.Sessions
}

func (t *SummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_summary",
		mcp.WithDescription("Report how full a session's context buffer is."),
		sessionParam(),
	)
}

func (t *SummaryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buf, errResult := lookupSession(t.sessions, req)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(buf.Summary())
}

// SearchTool finds buffer items by substring.
type SearchTool struct {
	sessions *memory.Sessions
}

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription("Search a session's context buffer, ignoring case."),
		sessionParam(),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
		mcp.WithString("role", mcp.Description("Only match items from this role: user, assistant or system")),
	)
}

func (t *SearchTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buf, errResult := lookupSession(t.sessions, req)
	if errResult != nil {
		return errResult, nil
	}
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	items := buf.Search(query, memory.Role(req.GetString("role", "")))
	if len(items) == 0 {
		return mcp.NewToolResultText("No items found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d items:\n\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "[%d] %s (%s)\n    %s\n\n", i+1, it.Role, it.Timestamp.Format("15:04:05"), it.Content)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// WindowTool renders the newest items that fit a token budget.
type WindowTool struct {
	sessions *memory.Sessions
}

func (t *WindowTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_window",
		mcp.WithDescription("Render the most recent conversation that fits in a token budget."),
		sessionParam(),
		mcp.WithNumber("max_tokens", mcp.Description("Token budget (default: the buffer's limit)")),
	)
}

func (t *WindowTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buf, errResult := lookupSession(t.sessions, req)
	if errResult != nil {
		return errResult, nil
	}
	window := buf.ContextWindow(intArg(req, "max_tokens", 0))
	if window == "" {
		return mcp.NewToolResultText("The context window is empty."), nil
	}
	return mcp.NewToolResultText(window), nil
}

// ClearTool empties a session's buffer.
type ClearTool struct {
	sessions *memory.Sessions
}

func (t *ClearTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_clear",
		mcp.WithDescription("Remove every item from a session's context buffer."),
		sessionParam(),
	)
}

func (t *ClearTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	buf, errResult := lookupSession(t.sessions, req)
	if errResult != nil {
		return errResult, nil
	}
	buf.Clear()
	return mcp.NewToolResultText(fmt.Sprintf("Cleared session %s.", buf.SessionID())), nil
}
