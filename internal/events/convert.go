package events

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"
)

const (
	maxSummaryLen = 120
	maxContentLen = 4096
)

// Params carries the fields shared by every event of a request.
type Params struct {
	SessionID string
	RequestID string
	Iteration int
	Phase     string
}

// Recorder turns agent activity into AgentEvents and hands them to a Sink.
// Sink failures are logged and never interrupt a request.
type Recorder struct {
	sink   Sink
	scrub  func(string) string
	logger *log.Logger
	now    func() time.Time
}

// NewRecorder returns a Recorder writing to sink. A nil sink discards events
// and a nil scrub leaves text unchanged.
func NewRecorder(sink Sink, scrub func(string) string, logger *log.Logger) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	if scrub == nil {
		scrub = func(s string) string { return s }
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Recorder{sink: sink, scrub: scrub, logger: logger, now: time.Now}
}

// Turn records a conversation message.
func (r *Recorder) Turn(p Params, role, content string) {
	r.emit(p, AgentEvent{
		Type:    EventTurn,
		Summary: role + ": " + content,
		Content: content,
	})
}

// Phase records a transition between workflow phases.
func (r *Recorder) Phase(p Params, from, to string) {
	r.emit(p, AgentEvent{
		Type:      EventPhase,
		Phase:     to,
		FromPhase: from,
		Summary:   fmt.Sprintf("%s -> %s", from, to),
	})
}

// Extraction records the requirements pulled from the user's message.
func (r *Recorder) Extraction(p Params, requirements map[string]any) {
	keys := make([]string, 0, len(requirements))
	for k := range requirements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	summary := "no requirements extracted"
	if len(keys) > 0 {
		summary = "extracted: " + strings.Join(keys, ", ")
	}
	r.emit(p, AgentEvent{
		Type:    EventExtraction,
		Summary: summary,
		Content: compactJSON(requirements),
	})
}

// ToolCall records a tool invocation and its result.
func (r *Recorder) ToolCall(p Params, name string, input, output any, success bool) {
	status := "ok"
	if !success {
		status = "failed"
	}
	r.emit(p, AgentEvent{
		Type:      EventToolCall,
		ToolName:  name,
		ToolInput: compactJSON(input),
		Content:   compactJSON(output),
		Success:   &success,
		Summary:   fmt.Sprintf("Tool: %s (%s)", name, status),
	})
}

// Synthesis records the final plan document.
func (r *Recorder) Synthesis(p Params, document string) {
	r.emit(p, AgentEvent{
		Type:    EventSynthesis,
		Summary: "plan synthesized",
		Content: document,
	})
}

// Error records a failure.
func (r *Recorder) Error(p Params, err error) {
	if err == nil {
		return
	}
	r.emit(p, AgentEvent{
		Type:    EventError,
		Summary: err.Error(),
		Content: err.Error(),
	})
}

// Close closes the underlying sink.
func (r *Recorder) Close() error {
	return r.sink.Close()
}

func (r *Recorder) emit(p Params, evt AgentEvent) {
	evt.Timestamp = r.now().UTC()
	evt.SessionID = p.SessionID
	evt.RequestID = p.RequestID
	evt.Iteration = p.Iteration
	if evt.Phase == "" {
		evt.Phase = p.Phase
	}
	evt.Summary = truncate(r.scrub(firstLine(evt.Summary)), maxSummaryLen)
	evt.Content = truncate(r.scrub(evt.Content), maxContentLen)
	evt.ToolInput = truncate(r.scrub(evt.ToolInput), maxContentLen)

	if err := r.sink.Write([]AgentEvent{evt}); err != nil {
		r.logger.Printf("Warning: failed to record %s event: %v", evt.Type, err)
	}
}

func compactJSON(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate shortens s to at most maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
