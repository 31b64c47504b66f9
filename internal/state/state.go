package state

import (
	"io"
	"log"
)

// DefaultMaxIterations bounds a re-planning loop. The linear workflow never
// reaches it.
const DefaultMaxIterations = 15

// TransitionFunc observes a phase change. For Done the previous and next
// phases are equal.
type TransitionFunc func(prev, next Phase)

// AgentState is the mutable record of one planning request. It is owned by a
// single request and is not safe for concurrent use.
type AgentState struct {
	Phase         Phase          `json:"phase"`
	Requirements  map[string]any `json:"requirements"`
	History       []string       `json:"history"`
	ToolsCalled   []string       `json:"tools_called"`
	ToolOutputs   map[string]any `json:"tool_outputs"`
	Iteration     int            `json:"iteration"`
	MaxIterations int            `json:"max_iterations"`

	logger       *log.Logger
	onTransition TransitionFunc
}

// Option configures an AgentState.
type Option func(*AgentState)

// WithLogger logs every transition and guard evaluation to logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *AgentState) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTransitionFunc registers fn to be called after every Advance.
func WithTransitionFunc(fn TransitionFunc) Option {
	return func(s *AgentState) {
		s.onTransition = fn
	}
}

// WithMaxIterations overrides DefaultMaxIterations. Non-positive values are
// ignored.
func WithMaxIterations(n int) Option {
	return func(s *AgentState) {
		if n > 0 {
			s.MaxIterations = n
		}
	}
}

// New returns a state in the Init phase.
func New(opts ...Option) *AgentState {
	s := &AgentState{
		Phase:         PhaseInit,
		Requirements:  map[string]any{},
		History:       []string{},
		ToolsCalled:   []string{},
		ToolOutputs:   map[string]any{},
		MaxIterations: DefaultMaxIterations,
		logger:        log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Advance moves one step along the workflow and returns the new phase.
func (s *AgentState) Advance() Phase {
	prev := s.Phase
	hasBasic := false
	if prev == PhaseClarifyRequirements {
		hasBasic = s.HasBasicRequirements()
		s.logf("[state] has_basic_requirements=%t", hasBasic)
	}
	s.Phase = Next(prev, hasBasic)
	s.logf("[state] transition %s -> %s", prev, s.Phase)
	if s.onTransition != nil {
		s.onTransition(prev, s.Phase)
	}
	return s.Phase
}

// IsDone reports whether the workflow reached Done.
func (s *AgentState) IsDone() bool {
	return s.Phase == PhaseDone
}

// HasBasicRequirements reports whether both a destination and dates were
// extracted. Presence of the key is enough; the value is not inspected.
func (s *AgentState) HasBasicRequirements() bool {
	_, hasDestination := s.Requirements["destination"]
	_, hasDates := s.Requirements["dates"]
	return hasDestination && hasDates
}

// SetRequirements replaces the requirements with a copy of req.
func (s *AgentState) SetRequirements(req map[string]any) {
	s.Requirements = make(map[string]any, len(req))
	for k, v := range req {
		s.Requirements[k] = v
	}
}

// AddToolCall records that name was invoked. Repeated calls are all listed
// and the latest output wins. The input is accepted for symmetry with the
// context buffer but only the output is retained.
func (s *AgentState) AddToolCall(name string, input, output any) {
	s.ToolsCalled = append(s.ToolsCalled, name)
	s.ToolOutputs[name] = output
}

// AddHistory appends a free-form line to the request history.
func (s *AgentState) AddHistory(line string) {
	s.History = append(s.History, line)
}

// Reset returns the state to Init and clears everything it accumulated.
func (s *AgentState) Reset() {
	s.Phase = PhaseInit
	s.Requirements = map[string]any{}
	s.History = []string{}
	s.ToolsCalled = []string{}
	s.ToolOutputs = map[string]any{}
	s.Iteration = 0
	s.logf("[state] reset")
}

func (s *AgentState) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Snapshot returns a copy that shares no slices or maps with s.
func (s *AgentState) Snapshot() AgentState {
	cp := AgentState{
		Phase:         s.Phase,
		Requirements:  make(map[string]any, len(s.Requirements)),
		History:       append([]string{}, s.History...),
		ToolsCalled:   append([]string{}, s.ToolsCalled...),
		ToolOutputs:   make(map[string]any, len(s.ToolOutputs)),
		Iteration:     s.Iteration,
		MaxIterations: s.MaxIterations,
	}
	for k, v := range s.Requirements {
		cp.Requirements[k] = v
	}
	for k, v := range s.ToolOutputs {
		cp.ToolOutputs[k] = v
	}
	return cp
}
