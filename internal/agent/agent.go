// Package agent runs a planning request end to end: it extracts the
// traveller's requirements, walks the phase tracker while invoking tools,
// records everything in the session's context buffer and synthesizes the
// final trip plan.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/andywolf/concierge/internal/cloud/gcp"
	"github.com/andywolf/concierge/internal/events"
	"github.com/andywolf/concierge/internal/llm"
	"github.com/andywolf/concierge/internal/memory"
	"github.com/andywolf/concierge/internal/observability"
	"github.com/andywolf/concierge/internal/security"
	"github.com/andywolf/concierge/internal/state"
	"github.com/andywolf/concierge/internal/synthesis"
	"github.com/andywolf/concierge/internal/tools"
)

// DefaultToolTimeout bounds a single tool call.
const DefaultToolTimeout = 10 * time.Second

// interactionImportance is the importance given to persisted exchanges.
const interactionImportance = 0.5

// ErrRateLimited is returned when a session exceeds its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// anonymousKey is the rate-limit bucket shared by requests without a
// session id, so omitting the id does not reset the budget.
const anonymousKey = "anonymous"

func limiterKey(sessionID string) string {
	if sessionID == "" {
		return anonymousKey
	}
	return "session:" + sessionID
}

// MemoryStore persists exchanges beyond the lifetime of a session.
type MemoryStore interface {
	AddMemory(ctx context.Context, sessionID, content, memType string, importance float64, tags []string) (string, error)
}

// Options configures an Agent. Sessions, Extractor and Tools are required.
type Options struct {
	Sessions  *memory.Sessions
	Extractor llm.Extractor
	Tools     *tools.Registry

	// Store receives one memory per completed request when
	// PersistInteractions is set.
	Store               MemoryStore
	PersistInteractions bool

	Tracer      observability.Tracer
	Recorder    *events.Recorder
	Logger      *log.Logger
	CloudLogger gcp.Logger
	Limiter     *security.RateLimiter

	MaxIterations int
	ModelName     string
	ToolTimeout   time.Duration
}

// Agent is safe for concurrent use; each Run owns its own AgentState.
type Agent struct {
	sessions    *memory.Sessions
	extractor   llm.Extractor
	tools       *tools.Registry
	store       MemoryStore
	persist     bool
	tracer      observability.Tracer
	recorder    *events.Recorder
	logger      *log.Logger
	cloudLogger gcp.Logger
	limiter     *security.RateLimiter

	maxIterations int
	modelName     string
	toolTimeout   time.Duration
	now           func() time.Time
}

// New validates opts and fills in no-op collaborators for the optional ones.
func New(opts Options) (*Agent, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("agent: sessions are required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("agent: extractor is required")
	}
	if opts.Tools == nil {
		return nil, fmt.Errorf("agent: tool registry is required")
	}

	a := &Agent{
		sessions:      opts.Sessions,
		extractor:     opts.Extractor,
		tools:         opts.Tools,
		store:         opts.Store,
		persist:       opts.PersistInteractions && opts.Store != nil,
		tracer:        opts.Tracer,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		cloudLogger:   opts.CloudLogger,
		limiter:       opts.Limiter,
		maxIterations: opts.MaxIterations,
		modelName:     opts.ModelName,
		toolTimeout:   opts.ToolTimeout,
		now:           time.Now,
	}
	if a.tracer == nil {
		a.tracer = &observability.NoOpTracer{}
	}
	if a.recorder == nil {
		a.recorder = events.NewRecorder(nil, nil, nil)
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard, "", 0)
	}
	if a.toolTimeout <= 0 {
		a.toolTimeout = DefaultToolTimeout
	}
	if a.maxIterations <= 0 {
		a.maxIterations = state.DefaultMaxIterations
	}
	return a, nil
}

// Sessions exposes the session registry for memory inspection commands.
func (a *Agent) Sessions() *memory.Sessions {
	return a.sessions
}

// Tools exposes the tool registry.
func (a *Agent) Tools() *tools.Registry {
	return a.tools
}

// runContext carries per-request bookkeeping through the phases.
type runContext struct {
	requestID string
	sessionID string
	buffer    *memory.ContextBuffer
	state     *state.AgentState

	traceCtx         observability.TraceContext
	traceStatus      string
	traceOutput      string
	activeSpanCtx    observability.SpanContext
	activePhaseStart time.Time
	hasActiveSpan    bool
}

func (rc *runContext) params() events.Params {
	p := events.Params{SessionID: rc.sessionID, RequestID: rc.requestID}
	if rc.state != nil {
		p.Phase = string(rc.state.Phase)
		p.Iteration = rc.state.Iteration
	}
	return p
}

// Run plans a trip for input within the given session. An empty sessionID
// starts a new session. Tool and extraction failures degrade the plan and
// are never returned. Run errors only when the request is rejected up front
// or ctx is cancelled.
func (a *Agent) Run(ctx context.Context, sessionID, input string) (synthesis.Document, error) {
	if err := ctx.Err(); err != nil {
		return synthesis.Document{}, err
	}
	if err := security.ValidateQuery(input); err != nil {
		return synthesis.Document{}, err
	}
	if sessionID != "" {
		if err := security.ValidateSessionID(sessionID); err != nil {
			return synthesis.Document{}, err
		}
	}

	key := limiterKey(sessionID)
	if !a.limiter.Allow(key) {
		return synthesis.Document{}, fmt.Errorf("%w for %s, retry in %s",
			ErrRateLimited, key, a.limiter.RetryAfter(key).Round(time.Second))
	}

	buf := a.sessions.GetOrCreate(sessionID)
	rc := &runContext{
		requestID: uuid.NewString(),
		sessionID: buf.SessionID(),
		buffer:    buf,
	}

	a.logInfo(rc, "Starting request %s for session %s", rc.requestID, rc.sessionID)
	a.initTrace(rc, input)
	defer a.completeTrace(rc)

	rc.state = state.New(
		state.WithLogger(a.stateLogger(rc)),
		state.WithMaxIterations(a.maxIterations),
		state.WithTransitionFunc(func(prev, next state.Phase) { a.onTransition(rc, prev, next) }),
	)
	rc.state.Iteration = 1

	buf.AddConversation(memory.RoleUser, input, map[string]any{"request_id": rc.requestID})
	a.recorder.Turn(rc.params(), string(memory.RoleUser), input)

	// Init -> ClarifyRequirements
	rc.state.Advance()
	requirements, err := a.extract(ctx, rc, input)
	if err != nil {
		return a.abort(rc, err)
	}
	rc.state.SetRequirements(requirements)

	// ClarifyRequirements -> PlanTools
	rc.state.Advance()
	plan := BuildPlan(requirements, a.tools)
	buf.AddSystemEvent("tool_plan", map[string]any{"tools": plan.Tools()})
	rc.state.AddHistory(fmt.Sprintf("planned %d tool calls", len(plan)))

	// PlanTools -> ExecuteTools
	rc.state.Advance()
	results, err := a.executePlan(ctx, rc, plan)
	if err != nil {
		return a.abort(rc, err)
	}

	// ExecuteTools -> AnalyzeResults
	rc.state.Advance()
	a.analyze(rc, plan)

	// AnalyzeResults -> Synthesize
	rc.state.Advance()
	doc := synthesis.Synthesize(results, requirements)
	if doc.Error != "" {
		a.logWarning(rc, "Synthesis failed: %s", doc.Error)
		a.recorder.Error(rc.params(), errors.New(doc.Error))
	}

	// Synthesize -> Done
	rc.state.Advance()
	rendered := doc.JSON()
	buf.AddConversation(memory.RoleAssistant, rendered, map[string]any{"request_id": rc.requestID})
	a.recorder.Turn(rc.params(), string(memory.RoleAssistant), rendered)
	a.recorder.Synthesis(rc.params(), rendered)

	if err := a.persistInteraction(ctx, rc, input, doc); err != nil {
		a.logWarning(rc, "Failed to persist interaction: %v", err)
	}

	rc.traceStatus = "completed"
	rc.traceOutput = rendered
	a.logInfo(rc, "Request %s completed: %d tool calls", rc.requestID, len(rc.state.ToolsCalled))
	return doc, nil
}

func (a *Agent) abort(rc *runContext, err error) (synthesis.Document, error) {
	a.logWarning(rc, "Request %s aborted in %s: %v", rc.requestID, rc.state.Phase, err)
	a.recorder.Error(rc.params(), err)
	rc.buffer.AddSystemEvent("request_aborted", map[string]any{"error": err.Error(), "phase": string(rc.state.Phase)})
	return synthesis.Document{}, err
}

// extract runs requirement extraction and degrades failures to an empty
// mapping. Only cancellation of ctx is returned as an error.
func (a *Agent) extract(ctx context.Context, rc *runContext, input string) (map[string]any, error) {
	start := a.now()
	requirements, err := llm.ExtractRequirements(ctx, a.extractor, input)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	status := "completed"
	if err != nil {
		status = "error"
		a.logWarning(rc, "Requirement extraction failed: %v", err)
		rc.buffer.AddSystemEvent("requirements_extraction_failed", map[string]any{"error": err.Error()})
		a.recorder.Error(rc.params(), fmt.Errorf("requirement extraction: %w", err))
	}

	a.tracer.RecordGeneration(rc.activeSpanCtx, observability.GenerationInput{
		Name:       "extract_requirements",
		Model:      a.modelName,
		Input:      input,
		Output:     compactJSON(requirements),
		Status:     status,
		DurationMs: a.now().Sub(start).Milliseconds(),
	})
	a.recorder.Extraction(rc.params(), requirements)
	return requirements, nil
}

// executePlan runs the steps in order. Each step's output, or an error
// object on failure, is recorded in the buffer, the state, the trace and the
// event log. Outputs of steps with a synthesis key are returned by key.
func (a *Agent) executePlan(ctx context.Context, rc *runContext, plan Plan) (map[string]any, error) {
	results := make(map[string]any)
	outputs := make(map[string]any)

	for _, step := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		args := step.Args
		var argsErr error
		if step.ArgsFrom != nil {
			args, argsErr = step.ArgsFrom(outputs)
		}

		start := a.now()
		var output any
		var callErr error
		if argsErr != nil {
			callErr = argsErr
		} else {
			callCtx, cancel := context.WithTimeout(ctx, a.toolTimeout)
			output, callErr = a.tools.Call(callCtx, step.Tool, args)
			cancel()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		success := callErr == nil
		recorded := output
		if !success {
			recorded = map[string]any{"error": callErr.Error()}
			a.logWarning(rc, "Tool %s failed: %v", step.Tool, callErr)
		} else {
			outputs[step.Tool] = output
			if step.Key != "" {
				results[step.Key] = output
			}
		}

		rc.buffer.AddToolCall(step.Tool, args, recorded, success)
		rc.state.AddToolCall(step.Tool, args, recorded)
		a.tracer.RecordToolCall(rc.activeSpanCtx, observability.ToolCallInput{
			Tool:       step.Tool,
			Input:      args,
			Output:     recorded,
			Success:    success,
			DurationMs: a.now().Sub(start).Milliseconds(),
		})
		a.recorder.ToolCall(rc.params(), step.Tool, args, recorded, success)
	}
	return results, nil
}

// analyze summarizes tool outcomes into a system event.
func (a *Agent) analyze(rc *runContext, plan Plan) {
	var failed []string
	for _, name := range plan.Tools() {
		if out, ok := rc.state.ToolOutputs[name].(map[string]any); ok {
			if _, isErr := out["error"]; isErr && len(out) == 1 {
				failed = append(failed, name)
			}
		}
	}
	rc.buffer.AddSystemEvent("results_analyzed", map[string]any{
		"tools_called": append([]string{}, rc.state.ToolsCalled...),
		"failed":       failed,
		"succeeded":    len(rc.state.ToolsCalled) - len(failed),
	})
	rc.state.AddHistory(fmt.Sprintf("%d of %d tool calls failed", len(failed), len(rc.state.ToolsCalled)))
}

func (a *Agent) persistInteraction(ctx context.Context, rc *runContext, input string, doc synthesis.Document) error {
	if !a.persist {
		return nil
	}
	content := "Request: " + input
	var tags []string
	if doc.Plan != nil {
		content += fmt.Sprintf("\nPlan: %s, %s, card %s", doc.Plan.Destination, doc.Plan.TravelDates, doc.Plan.CardRecommendation.Card)
		tags = []string{doc.Plan.Destination}
	}
	_, err := a.store.AddMemory(ctx, rc.sessionID, content, "interaction", interactionImportance, tags)
	return err
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
