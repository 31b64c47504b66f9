package observability

import "context"

// Tracer records the lifecycle of a planning request.
//
// Trace hierarchy:
//
//	Request (Trace)
//	  └── Phase (Span): ClarifyRequirements, ExecuteTools, Synthesize, ...
//	        ├── Extraction (Generation)
//	        └── Tool call (Event)
type Tracer interface {
	StartTrace(requestID string, opts TraceOptions) TraceContext
	StartPhase(trace TraceContext, phase string) SpanContext
	RecordGeneration(span SpanContext, gen GenerationInput)
	RecordToolCall(span SpanContext, call ToolCallInput)
	EndPhase(span SpanContext, status string, durationMs int64)
	CompleteTrace(trace TraceContext, opts CompleteOptions)
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TraceContext holds the context for an active trace.
type TraceContext struct {
	TraceID   string
	SessionID string
}

// SpanContext holds the context for an active phase span.
type SpanContext struct {
	SpanID    string
	PhaseName string
	TraceID   string
}

// TraceOptions configures a new trace.
type TraceOptions struct {
	SessionID string
	Input     string
}

// GenerationInput describes an LLM invocation to record.
type GenerationInput struct {
	Name       string
	Model      string
	Input      string
	Output     string
	Status     string // "completed" or "error"
	DurationMs int64
}

// ToolCallInput describes a tool invocation to record.
type ToolCallInput struct {
	Tool       string
	Input      any
	Output     any
	Success    bool
	DurationMs int64
}

// CompleteOptions configures trace completion.
type CompleteOptions struct {
	Status      string // "completed" or "failed"
	Output      string
	ToolsCalled int
}
