package agent

import (
	"github.com/andywolf/concierge/internal/observability"
	"github.com/andywolf/concierge/internal/state"
)

// initTrace starts the trace for a request.
func (a *Agent) initTrace(rc *runContext, input string) {
	rc.traceCtx = a.tracer.StartTrace(rc.requestID, observability.TraceOptions{
		SessionID: rc.sessionID,
		Input:     input,
	})
	rc.traceStatus = "failed" // default status if Run exits early
}

// completeTrace ends the request trace, closing any span still open.
func (a *Agent) completeTrace(rc *runContext) {
	a.endPhaseSpan(rc, "interrupted")
	toolsCalled := 0
	if rc.state != nil {
		toolsCalled = len(rc.state.ToolsCalled)
	}
	a.tracer.CompleteTrace(rc.traceCtx, observability.CompleteOptions{
		Status:      rc.traceStatus,
		Output:      rc.traceOutput,
		ToolsCalled: toolsCalled,
	})
}

// onTransition moves the active span and records the phase change.
func (a *Agent) onTransition(rc *runContext, prev, next state.Phase) {
	a.endPhaseSpan(rc, "completed")
	if next != state.PhaseDone {
		a.startPhaseSpan(rc, next)
	}
	a.recorder.Phase(rc.params(), string(prev), string(next))
}

func (a *Agent) startPhaseSpan(rc *runContext, phase state.Phase) {
	rc.activePhaseStart = a.now()
	rc.activeSpanCtx = a.tracer.StartPhase(rc.traceCtx, string(phase))
	rc.hasActiveSpan = true
}

func (a *Agent) endPhaseSpan(rc *runContext, status string) {
	if rc.hasActiveSpan {
		a.tracer.EndPhase(rc.activeSpanCtx, status, a.now().Sub(rc.activePhaseStart).Milliseconds())
		rc.hasActiveSpan = false
	}
}
