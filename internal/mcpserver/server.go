// Package mcpserver exposes the planner, session memory and travel tools
// over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/andywolf/concierge/internal/agent"
	"github.com/andywolf/concierge/internal/longterm"
	"github.com/andywolf/concierge/internal/tools"
)

const instructions = `Concierge plans trips. Call plan_trip with the traveller's request to get a
structured plan with weather, attractions, a card recommendation and currency
figures. Pass the same session_id across calls to keep conversation context.
The memory_* tools inspect and manage a session's context buffer. The travel
tools can also be called directly.`

// MemoryRecaller reads persisted memories for a session.
type MemoryRecaller interface {
	GetMemory(ctx context.Context, sessionID string) ([]longterm.Memory, error)
}

// Handler is the shape every tool in this package follows.
type Handler interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New builds the MCP server. recaller may be nil when long-term memory is
// disabled.
func New(a *agent.Agent, recaller MemoryRecaller, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"concierge",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, h := range Handlers(a, recaller) {
		s.AddTool(h.Definition(), h.Handle)
	}
	return s
}

// Handlers returns every tool handler the server registers.
func Handlers(a *agent.Agent, recaller MemoryRecaller) []Handler {
	hs := []Handler{
		&PlanTripTool{agent: a},
		&SummaryTool{sessions: a.Sessions()},
		&SearchTool{sessions: a.Sessions()},
		&WindowTool{sessions: a.Sessions()},
		&ClearTool{sessions: a.Sessions()},
	}
	if recaller != nil {
		hs = append(hs, &RecallTool{store: recaller})
	}
	registry := a.Tools()
	for _, name := range registry.List() {
		t, err := registry.Get(name)
		if err != nil {
			continue
		}
		hs = append(hs, &TravelTool{tool: t})
	}
	return hs
}

// PlanTripTool runs the full planning workflow.
type PlanTripTool struct {
	agent *agent.Agent
}

func (t *PlanTripTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_trip",
		mcp.WithDescription("Plan a trip from a free-text request and return the plan as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The traveller's request, e.g. 'Paris in June with my BankGold card'"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to continue; omitted starts a new session"),
		),
	)
}

func (t *PlanTripTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	doc, err := t.agent.Run(ctx, req.GetString("session_id", ""), query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("planning failed: %v", err)), nil
	}
	return mcp.NewToolResultText(doc.JSON()), nil
}

// TravelTool exposes one registry tool as is.
type TravelTool struct {
	tool tools.Tool
}

func (t *TravelTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.tool.Description())}
	for _, p := range t.tool.Params() {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case tools.TypeNumber:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.tool.Name(), opts...)
}

func (t *TravelTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.tool.Call(ctx, req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", t.tool.Name(), err)), nil
	}
	return jsonResult(out)
}

// RecallTool lists long-term memories of a session.
type RecallTool struct {
	store MemoryRecaller
}

func (t *RecallTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_recall",
		mcp.WithDescription("List memories persisted for a session across restarts."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	)
}

func (t *RecallTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	memories, err := t.store.GetMemory(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall failed: %v", err)), nil
	}
	if len(memories) == 0 {
		return mcp.NewToolResultText("No memories stored for this session."), nil
	}
	return jsonResult(memories)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	if s, ok := v.(string); ok {
		return mcp.NewToolResultText(s), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
