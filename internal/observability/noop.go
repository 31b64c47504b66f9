package observability

import "context"

// NoOpTracer is used when Langfuse is not configured.
type NoOpTracer struct{}

func (n *NoOpTracer) StartTrace(requestID string, opts TraceOptions) TraceContext {
	return TraceContext{TraceID: requestID, SessionID: opts.SessionID}
}

func (n *NoOpTracer) StartPhase(trace TraceContext, phase string) SpanContext {
	return SpanContext{PhaseName: phase, TraceID: trace.TraceID}
}

func (n *NoOpTracer) RecordGeneration(_ SpanContext, _ GenerationInput) {}

func (n *NoOpTracer) RecordToolCall(_ SpanContext, _ ToolCallInput) {}

func (n *NoOpTracer) EndPhase(_ SpanContext, _ string, _ int64) {}

func (n *NoOpTracer) CompleteTrace(_ TraceContext, _ CompleteOptions) {}

func (n *NoOpTracer) Flush(_ context.Context) error { return nil }

func (n *NoOpTracer) Stop(_ context.Context) error { return nil }
