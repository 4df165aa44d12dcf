package park

// Phase is a step of a parking run. Executor phases run strictly in order
// from PhaseApproach to PhaseDone.
type Phase int

const (
	PhaseSearch Phase = iota
	PhaseApproach
	PhaseTurn1
	PhaseTurn2
	PhaseStop
	PhaseRecheck
	PhaseForwardCorrect
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSearch:
		return "search"
	case PhaseApproach:
		return "approach"
	case PhaseTurn1:
		return "turn1"
	case PhaseTurn2:
		return "turn2"
	case PhaseStop:
		return "stop"
	case PhaseRecheck:
		return "recheck"
	case PhaseForwardCorrect:
		return "forward_correct"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Outcome is the result of a run.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeNoSpot
	OutcomeParked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoSpot:
		return "no_spot"
	case OutcomeParked:
		return "parked"
	}
	return "failed"
}
