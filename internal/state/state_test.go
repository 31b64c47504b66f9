package state

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestNext(t *testing.T) {
	tests := []struct {
		current  Phase
		hasBasic bool
		want     Phase
	}{
		{PhaseInit, false, PhaseClarifyRequirements},
		{PhaseClarifyRequirements, true, PhasePlanTools},
		{PhaseClarifyRequirements, false, PhasePlanTools},
		{PhasePlanTools, false, PhaseExecuteTools},
		{PhaseExecuteTools, false, PhaseAnalyzeResults},
		{PhaseAnalyzeResults, false, PhaseSynthesize},
		{PhaseSynthesize, false, PhaseDone},
		{PhaseDone, false, PhaseDone},
		{PhaseResolveIssues, false, PhasePlanTools},
		{Phase("Bogus"), false, Phase("Bogus")},
	}
	for _, tt := range tests {
		t.Run(string(tt.current), func(t *testing.T) {
			if got := Next(tt.current, tt.hasBasic); got != tt.want {
				t.Errorf("Next(%s, %t) = %s, want %s", tt.current, tt.hasBasic, got, tt.want)
			}
		})
	}
}

func TestResolveIssuesUnreachable(t *testing.T) {
	for _, p := range PhaseOrder {
		for _, basic := range []bool{true, false} {
			if Next(p, basic) == PhaseResolveIssues {
				t.Errorf("%s leads to ResolveIssues", p)
			}
		}
	}
}

func TestAdvance_FullWalk(t *testing.T) {
	s := New()
	s.SetRequirements(map[string]any{"destination": "Paris", "dates": "2026-06-01 to 2026-06-08"})

	for i := 1; i < len(PhaseOrder); i++ {
		if got := s.Advance(); got != PhaseOrder[i] {
			t.Fatalf("step %d: expected %s, got %s", i, PhaseOrder[i], got)
		}
	}
	if !s.IsDone() {
		t.Error("expected Done after full walk")
	}
}

func TestAdvance_DoneIsAbsorbing(t *testing.T) {
	var transitions [][2]Phase
	s := New(WithTransitionFunc(func(prev, next Phase) {
		transitions = append(transitions, [2]Phase{prev, next})
	}))
	for i := 0; i < 10; i++ {
		s.Advance()
	}
	if s.Phase != PhaseDone {
		t.Fatalf("expected Done, got %s", s.Phase)
	}
	if len(transitions) != 10 {
		t.Fatalf("expected 10 observed transitions, got %d", len(transitions))
	}
	last := transitions[len(transitions)-1]
	if last[0] != PhaseDone || last[1] != PhaseDone {
		t.Errorf("expected Done -> Done, got %s -> %s", last[0], last[1])
	}
}

func TestAdvance_WithoutRequirementsStillPlans(t *testing.T) {
	s := New()
	s.Advance()
	if got := s.Advance(); got != PhasePlanTools {
		t.Errorf("expected PlanTools with empty requirements, got %s", got)
	}
}

func TestAdvance_LogsTransitionsAndGuard(t *testing.T) {
	var buf bytes.Buffer
	s := New(WithLogger(log.New(&buf, "", 0)))
	s.SetRequirements(map[string]any{"destination": "Rome"})
	s.Advance()
	s.Advance()

	out := buf.String()
	if !strings.Contains(out, "transition Init -> ClarifyRequirements") {
		t.Errorf("missing first transition in log: %q", out)
	}
	if !strings.Contains(out, "has_basic_requirements=false") {
		t.Errorf("missing guard outcome in log: %q", out)
	}
	if !strings.Contains(out, "transition ClarifyRequirements -> PlanTools") {
		t.Errorf("missing second transition in log: %q", out)
	}
}

func TestHasBasicRequirements(t *testing.T) {
	tests := []struct {
		name string
		req  map[string]any
		want bool
	}{
		{"empty", map[string]any{}, false},
		{"destination only", map[string]any{"destination": "Paris"}, false},
		{"dates only", map[string]any{"dates": "June"}, false},
		{"both", map[string]any{"destination": "Paris", "dates": "June"}, true},
		{"both with nil values", map[string]any{"destination": nil, "dates": nil}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.SetRequirements(tt.req)
			if got := s.HasBasicRequirements(); got != tt.want {
				t.Errorf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestSetRequirements_Copies(t *testing.T) {
	req := map[string]any{"destination": "Paris"}
	s := New()
	s.SetRequirements(req)
	req["destination"] = "Rome"
	if s.Requirements["destination"] != "Paris" {
		t.Error("expected requirements to be copied")
	}
}

func TestAddToolCall(t *testing.T) {
	s := New()
	s.AddToolCall("weather", nil, "first")
	s.AddToolCall("fx", nil, 1.0)
	s.AddToolCall("weather", nil, "second")

	if len(s.ToolsCalled) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(s.ToolsCalled))
	}
	if s.ToolsCalled[2] != "weather" {
		t.Errorf("expected duplicate name to be appended, got %v", s.ToolsCalled)
	}
	if s.ToolOutputs["weather"] != "second" {
		t.Errorf("expected latest output to win, got %v", s.ToolOutputs["weather"])
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.SetRequirements(map[string]any{"destination": "Paris"})
	s.AddToolCall("weather", nil, "x")
	s.AddHistory("user asked")
	s.Iteration = 4
	s.Advance()
	s.Advance()

	s.Reset()
	if s.Phase != PhaseInit {
		t.Errorf("expected Init, got %s", s.Phase)
	}
	if len(s.Requirements) != 0 || len(s.History) != 0 || len(s.ToolsCalled) != 0 {
		t.Error("expected requirements, history and tools to be cleared")
	}
	if s.ToolOutputs == nil || len(s.ToolOutputs) != 0 {
		t.Errorf("expected empty tool output map, got %v", s.ToolOutputs)
	}
	if s.Iteration != 0 {
		t.Errorf("expected iteration 0, got %d", s.Iteration)
	}
}

func TestMaxIterations(t *testing.T) {
	if New().MaxIterations != DefaultMaxIterations {
		t.Errorf("expected default %d", DefaultMaxIterations)
	}
	if New(WithMaxIterations(3)).MaxIterations != 3 {
		t.Error("expected override to apply")
	}
	if New(WithMaxIterations(0)).MaxIterations != DefaultMaxIterations {
		t.Error("expected non-positive override to be ignored")
	}
}

func TestSnapshot_Independent(t *testing.T) {
	s := New()
	s.AddToolCall("fx", nil, 1)
	snap := s.Snapshot()
	s.AddToolCall("weather", nil, 2)
	if len(snap.ToolsCalled) != 1 || len(snap.ToolOutputs) != 1 {
		t.Errorf("snapshot changed with the original: %+v", snap)
	}
}

func TestPhase_IsValid(t *testing.T) {
	for _, p := range append(PhaseOrder, PhaseResolveIssues) {
		if !p.IsValid() {
			t.Errorf("expected %s to be valid", p)
		}
	}
	if Phase("Nope").IsValid() {
		t.Error("expected unknown phase to be invalid")
	}
}
