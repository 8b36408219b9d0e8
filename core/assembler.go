package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/impact-predictor/model"
)

// ErrNonPositiveMass is returned when a sample reports a mass that the
// predictor cannot use.
var ErrNonPositiveMass = errors.New("sample mass must be positive")

// SampleSource produces the raw kinematic reading for the current tick.
type SampleSource interface {
	Sample() model.Sample
}

// GroundCache holds the last ground height a probe returned.
type GroundCache struct {
	Height float64
	Valid  bool
}

// ProbeOutcome says how the ground height for a tick was obtained.
type ProbeOutcome int

const (
	ProbeHit    ProbeOutcome = iota // fresh probe result
	ProbeCached                     // probe missed, last known height reused
	ProbeFloor                      // probe missed with nothing cached
)

func (o ProbeOutcome) String() string {
	switch o {
	case ProbeHit:
		return "hit"
	case ProbeCached:
		return "cached"
	case ProbeFloor:
		return "floor"
	default:
		return fmt.Sprintf("probe(%d)", int(o))
	}
}

// ResolveGround probes below (x, z) and applies the cache policy. On a floor
// outcome the returned height is 0 and the cache is unchanged.
func ResolveGround(probe GroundProbe, cache GroundCache, x, z float64) (float64, GroundCache, ProbeOutcome) {
	if probe != nil {
		if h, ok := probe.Probe(x, z); ok && !math.IsNaN(h) {
			return h, GroundCache{Height: h, Valid: true}, ProbeHit
		}
	}
	if cache.Valid {
		return cache.Height, cache, ProbeCached
	}
	return 0, cache, ProbeFloor
}

// Assembly is the result of one StateAssembler.Build call.
type Assembly struct {
	State   model.KinematicState
	Cache   GroundCache
	Outcome ProbeOutcome

	// GroundHeight is the height resolved below the sample, 0 on a floor outcome.
	GroundHeight float64
}

// StateAssembler fuses a raw sample with a ground-height probe.
type StateAssembler struct {
	source       SampleSource
	ground       GroundProbe
	minAltitudeM float64
}

// NewStateAssembler builds an assembler. minAltitudeM is the floor used when
// no ground height has ever been seen.
func NewStateAssembler(source SampleSource, ground GroundProbe, minAltitudeM float64) *StateAssembler {
	if minAltitudeM <= 0 {
		minAltitudeM = 0.01
	}
	return &StateAssembler{source: source, ground: ground, minAltitudeM: minAltitudeM}
}

// Build pulls a sample and returns the assembled state with the updated cache.
// The caller owns the cache and must pass the returned one on the next call.
func (a *StateAssembler) Build(cache GroundCache) (Assembly, error) {
	if a.source == nil {
		return Assembly{Cache: cache}, errors.New("state assembler: no sample source")
	}
	s := a.source.Sample()
	if !(s.MassKg > 0) {
		return Assembly{Cache: cache}, fmt.Errorf("state assembler: %w (got %v kg)", ErrNonPositiveMass, s.MassKg)
	}

	height, next, outcome := ResolveGround(a.ground, cache, s.Position.X, s.Position.Z)

	var alt float64
	switch outcome {
	case ProbeFloor:
		alt = math.Max(a.minAltitudeM, s.Position.Y)
	default:
		alt = s.Position.Y - height
	}

	return Assembly{
		State: model.KinematicState{
			Position:      s.Position,
			Velocity:      s.Velocity,
			Forward:       s.Forward,
			MassKg:        s.MassKg,
			AltitudeAGL:   alt,
			Timestamp:     s.Timestamp,
			BottomOffsetM: s.BottomOffsetM,
		},
		Cache:        next,
		Outcome:      outcome,
		GroundHeight: height,
	}, nil
}
