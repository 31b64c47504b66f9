// Package state tracks the phases of a single planning request.
package state

// Phase is a step of the planning workflow.
type Phase string

const (
	PhaseInit                Phase = "Init"
	PhaseClarifyRequirements Phase = "ClarifyRequirements"
	PhasePlanTools           Phase = "PlanTools"
	PhaseExecuteTools        Phase = "ExecuteTools"
	PhaseAnalyzeResults      Phase = "AnalyzeResults"
	// PhaseResolveIssues is reserved for a re-plan loop. No transition in the
	// default table leads to it.
	PhaseResolveIssues Phase = "ResolveIssues"
	PhaseSynthesize    Phase = "Synthesize"
	PhaseDone          Phase = "Done"
)

// PhaseOrder is the linear path a request takes from Init to Done.
var PhaseOrder = []Phase{
	PhaseInit,
	PhaseClarifyRequirements,
	PhasePlanTools,
	PhaseExecuteTools,
	PhaseAnalyzeResults,
	PhaseSynthesize,
	PhaseDone,
}

// Next returns the phase that follows current. hasBasicRequirements is only
// consulted at ClarifyRequirements and both outcomes currently lead to
// PlanTools. Done is absorbing and unknown phases do not move.
func Next(current Phase, hasBasicRequirements bool) Phase {
	switch current {
	case PhaseInit:
		return PhaseClarifyRequirements
	case PhaseClarifyRequirements:
		if hasBasicRequirements {
			return PhasePlanTools
		}
		// Missing requirements are planned around rather than asked for.
		return PhasePlanTools
	case PhasePlanTools:
		return PhaseExecuteTools
	case PhaseExecuteTools:
		return PhaseAnalyzeResults
	case PhaseAnalyzeResults:
		return PhaseSynthesize
	case PhaseResolveIssues:
		return PhasePlanTools
	case PhaseSynthesize:
		return PhaseDone
	case PhaseDone:
		return PhaseDone
	default:
		return current
	}
}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseInit, PhaseClarifyRequirements, PhasePlanTools, PhaseExecuteTools,
		PhaseAnalyzeResults, PhaseResolveIssues, PhaseSynthesize, PhaseDone:
		return true
	}
	return false
}
