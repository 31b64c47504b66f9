package observability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andywolf/concierge/internal/version"
)

const (
	// defaultBaseURL is the Langfuse Cloud ingestion endpoint.
	defaultBaseURL = "https://cloud.langfuse.com"

	// ingestionPath is the batched ingestion API path.
	ingestionPath = "/api/public/ingestion"

	// flushInterval is how often the background goroutine flushes events.
	flushInterval = 5 * time.Second

	// maxBatchSize is the maximum number of events to send in one request.
	maxBatchSize = 50

	// eventBufferSize is the channel buffer size for incoming events.
	eventBufferSize = 1024

	// retryDelay is the delay between send retries.
	retryDelay = 500 * time.Millisecond
)

// LangfuseConfig holds Langfuse connection parameters.
type LangfuseConfig struct {
	PublicKey string
	SecretKey string
	BaseURL   string // Defaults to https://cloud.langfuse.com
	// Scrub, when set, is applied to free text before it leaves the process.
	Scrub func(string) string
}

// Enabled reports whether both keys are present.
func (c LangfuseConfig) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// LangfuseTracer sends request, phase, generation and tool events to the
// Langfuse ingestion API in batches. Events are buffered in a channel and
// flushed periodically or on Flush.
type LangfuseTracer struct {
	config     LangfuseConfig
	authHeader string
	client     *http.Client
	events     chan ingestionEvent
	logger     *log.Logger

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	flushMu  sync.Mutex // protects concurrent drain operations
}

// NewLangfuseTracer starts a tracer and its background flush goroutine.
// Call Stop to send the remaining events.
func NewLangfuseTracer(cfg LangfuseConfig, logger *log.Logger) *LangfuseTracer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(cfg.PublicKey + ":" + cfg.SecretKey))

	t := &LangfuseTracer{
		config:     cfg,
		authHeader: "Basic " + auth,
		client:     &http.Client{Timeout: 10 * time.Second},
		events:     make(chan ingestionEvent, eventBufferSize),
		logger:     logger,
		stopCh:     make(chan struct{}),
	}

	t.wg.Add(1)
	go t.flushLoop()

	return t
}

// StartTrace creates a Langfuse trace for one planning request.
func (t *LangfuseTracer) StartTrace(requestID string, opts TraceOptions) TraceContext {
	t.enqueue(newEvent("trace-create", map[string]any{
		"id":        requestID,
		"name":      "plan_trip",
		"sessionId": opts.SessionID,
		"input":     t.scrub(opts.Input),
	}))
	return TraceContext{TraceID: requestID, SessionID: opts.SessionID}
}

// StartPhase opens a span for a workflow phase.
func (t *LangfuseTracer) StartPhase(trace TraceContext, phase string) SpanContext {
	spanID := uuid.NewString()
	t.enqueue(newEvent("span-create", map[string]any{
		"id":        spanID,
		"traceId":   trace.TraceID,
		"name":      phase,
		"startTime": now(),
	}))
	return SpanContext{SpanID: spanID, PhaseName: phase, TraceID: trace.TraceID}
}

// RecordGeneration records an LLM invocation under span.
func (t *LangfuseTracer) RecordGeneration(span SpanContext, gen GenerationInput) {
	t.enqueue(newEvent("generation-create", map[string]any{
		"id":                  uuid.NewString(),
		"traceId":             span.TraceID,
		"parentObservationId": span.SpanID,
		"name":                gen.Name,
		"model":               gen.Model,
		"input":               t.scrub(gen.Input),
		"output":              t.scrub(gen.Output),
		"metadata": map[string]any{
			"status":      gen.Status,
			"duration_ms": gen.DurationMs,
		},
		"startTime": now(),
	}))
}

// RecordToolCall records a tool invocation as an event under span.
func (t *LangfuseTracer) RecordToolCall(span SpanContext, call ToolCallInput) {
	level := "DEFAULT"
	if !call.Success {
		level = "ERROR"
	}
	t.enqueue(newEvent("event-create", map[string]any{
		"id":                  uuid.NewString(),
		"traceId":             span.TraceID,
		"parentObservationId": span.SpanID,
		"name":                call.Tool,
		"level":               level,
		"input":               t.scrubValue(call.Input),
		"output":              t.scrubValue(call.Output),
		"metadata": map[string]any{
			"success":     call.Success,
			"duration_ms": call.DurationMs,
		},
		"startTime": now(),
	}))
}

// EndPhase closes a span with a status and duration.
func (t *LangfuseTracer) EndPhase(span SpanContext, status string, durationMs int64) {
	t.enqueue(newEvent("span-update", map[string]any{
		"id":      span.SpanID,
		"traceId": span.TraceID,
		"metadata": map[string]any{
			"status":      status,
			"duration_ms": durationMs,
		},
		"endTime": now(),
	}))
}

// CompleteTrace updates the trace with its final status and output.
func (t *LangfuseTracer) CompleteTrace(trace TraceContext, opts CompleteOptions) {
	t.enqueue(newEvent("trace-create", map[string]any{
		"id":     trace.TraceID,
		"output": t.scrub(opts.Output),
		"metadata": map[string]any{
			"status":       opts.Status,
			"tools_called": opts.ToolsCalled,
		},
	}))
}

// Flush sends everything buffered so far and reports the first failure.
func (t *LangfuseTracer) Flush(ctx context.Context) error {
	if err := t.drain(ctx); err != nil {
		return fmt.Errorf("langfuse flush: %w", err)
	}
	return nil
}

// Stop ends the background loop and sends what is left. Later calls only
// flush.
func (t *LangfuseTracer) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
	return t.Flush(ctx)
}

// Ping posts a throwaway trace to check the endpoint and the key pair.
func (t *LangfuseTracer) Ping(ctx context.Context) error {
	ping := newEvent("trace-create", map[string]any{
		"id":   "concierge-ping-" + uuid.NewString(),
		"name": "concierge-connectivity-test",
	})
	result, err := t.post(ctx, []ingestionEvent{ping})
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("ping event rejected: %s", result.Errors[0].Message)
	}
	return nil
}

// BaseURL returns the configured Langfuse base URL.
func (t *LangfuseTracer) BaseURL() string {
	return t.config.BaseURL
}

func (t *LangfuseTracer) enqueue(evt ingestionEvent) {
	select {
	case t.events <- evt:
	default:
		t.logger.Printf("Warning: Langfuse event buffer full, dropping %s", evt.Type)
	}
}

func (t *LangfuseTracer) flushLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.drainInBackground()
			return
		case <-ticker.C:
			t.drainInBackground()
		}
	}
}

func (t *LangfuseTracer) drainInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.drain(ctx); err != nil {
		t.logger.Printf("Warning: Langfuse batch send failed: %v", err)
	}
}

// drain empties the buffer in batches of at most maxBatchSize. A failed
// batch is dropped; draining continues and the first error is returned.
func (t *LangfuseTracer) drain(ctx context.Context) error {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	var firstErr error
	send := func(batch []ingestionEvent) {
		if err := t.sendWithRetry(ctx, batch); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	var batch []ingestionEvent
	for {
		select {
		case evt := <-t.events:
			batch = append(batch, evt)
			if len(batch) == maxBatchSize {
				send(batch)
				batch = nil
			}
		default:
			if len(batch) > 0 {
				send(batch)
			}
			return firstErr
		}
	}
}

func (t *LangfuseTracer) sendWithRetry(ctx context.Context, batch []ingestionEvent) error {
	result, err := t.post(ctx, batch)
	if err != nil {
		t.logger.Printf("Warning: Langfuse batch send failed, retrying: %v", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
		if result, err = t.post(ctx, batch); err != nil {
			return err
		}
	}

	for _, e := range result.Errors {
		t.logger.Printf("Warning: Langfuse rejected event %s (status=%d): %s", e.ID, e.Status, e.Message)
	}
	t.logger.Printf("Langfuse: batch sent (events=%d, accepted=%d, rejected=%d)",
		len(batch), len(result.Successes), len(result.Errors))
	return nil
}

// post sends one ingestion request. An unparseable success body yields an
// empty response rather than an error.
func (t *LangfuseTracer) post(ctx context.Context, batch []ingestionEvent) (ingestionResponse, error) {
	var result ingestionResponse

	body, err := json.Marshal(ingestionPayload{Batch: batch})
	if err != nil {
		return result, fmt.Errorf("marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+ingestionPath, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", t.authHeader)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("langfuse API returned %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.logger.Printf("Warning: Langfuse: could not parse response body: %v", err)
	}
	return result, nil
}

func (t *LangfuseTracer) scrub(text string) string {
	if t.config.Scrub == nil {
		return text
	}
	return t.config.Scrub(text)
}

// scrubValue redacts string values one level deep. Tool arguments and
// error outputs are maps of strings in practice.
func (t *LangfuseTracer) scrubValue(v any) any {
	if t.config.Scrub == nil {
		return v
	}
	switch val := v.(type) {
	case string:
		return t.config.Scrub(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if s, ok := item.(string); ok {
				item = t.config.Scrub(s)
			}
			out[k] = item
		}
		return out
	default:
		return v
	}
}

func newEvent(typ string, body map[string]any) ingestionEvent {
	return ingestionEvent{ID: uuid.NewString(), Type: typ, Timestamp: now(), Body: body}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ingestionEvent is a single event in the Langfuse ingestion API batch.
type ingestionEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Body      map[string]any `json:"body"`
}

// ingestionPayload is the top-level payload for the Langfuse ingestion API.
type ingestionPayload struct {
	Batch []ingestionEvent `json:"batch"`
}

// ingestionResponse is the Langfuse ingestion API response body.
type ingestionResponse struct {
	Successes []ingestionSuccess `json:"successes"`
	Errors    []ingestionError   `json:"errors"`
}

type ingestionSuccess struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

type ingestionError struct {
	ID      string `json:"id"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Error   any    `json:"error,omitempty"`
}
