package model

import "fmt"

// SimulationPhase tracks where an episode is in the predict/release/impact cycle.
type SimulationPhase int

const (
	PhaseLive         SimulationPhase = iota // vehicle flying, telemetry only
	PhasePredicted                           // a valid prediction is cached
	PhaseReleased                            // vehicle falling, outcome tracking active
	PhaseImpactResult                        // impact confirmed, record available
	PhaseResetting
)

func (p SimulationPhase) String() string {
	switch p {
	case PhaseLive:
		return "live"
	case PhasePredicted:
		return "predicted"
	case PhaseReleased:
		return "released"
	case PhaseImpactResult:
		return "impact_result"
	case PhaseResetting:
		return "resetting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CanRelease reports whether a release request is accepted in this phase.
func (p SimulationPhase) CanRelease() bool {
	return p == PhaseLive || p == PhasePredicted
}
