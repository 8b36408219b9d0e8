package core

import (
	"errors"

	"github.com/signalsfoundry/impact-predictor/model"
)

var (
	// ErrNoValidPrediction is returned when a release is requested without a
	// usable prediction to compare against.
	ErrNoValidPrediction = errors.New("no valid prediction to latch")

	// ErrNotTracking is returned when an impact is reported but no fall is
	// being tracked.
	ErrNotTracking = errors.New("no fall is being tracked")
)

// Tracker is the recorder's per-fall state. It is a value: every recorder
// call takes a tracker and returns the next one.
type Tracker struct {
	EpisodeID string

	Active  bool // released and waiting for impact
	Latched bool // impact already recorded for this fall

	Prediction   model.PredictionResult
	ReleaseState model.KinematicState
	ReleasedAt   float64

	prevAltitude float64
	hasPrev      bool
}

// Observation is one simulation step of the falling vehicle.
type Observation struct {
	Position  model.Vec3
	Velocity  model.Vec3
	Timestamp float64
}

// ContactEvent is a collision reported by the physics collaborator.
type ContactEvent struct {
	Point    model.Vec3 // contact point, valid when HasPoint
	HasPoint bool

	Position  model.Vec3 // vehicle position at contact
	Velocity  model.Vec3 // vehicle velocity at contact
	Timestamp float64
}

// OutcomeRecorder detects the actual impact of a released vehicle and
// compares it with the prediction latched at release.
type OutcomeRecorder struct {
	ground GroundProbe
}

// NewOutcomeRecorder builds a recorder that uses ground for crossing detection.
func NewOutcomeRecorder(ground GroundProbe) *OutcomeRecorder {
	return &OutcomeRecorder{ground: ground}
}

// Release latches pred and the release state. Tracking becomes active.
func (r *OutcomeRecorder) Release(t Tracker, episodeID string, pred model.PredictionResult, state model.KinematicState, now float64) (Tracker, error) {
	if !pred.Valid {
		return t, ErrNoValidPrediction
	}
	return Tracker{
		EpisodeID:    episodeID,
		Active:       true,
		Prediction:   pred,
		ReleaseState: state,
		ReleasedAt:   now,
		prevAltitude: state.AltitudeAGL,
		hasPrev:      true,
	}, nil
}

// ObserveStep probes the ground below obs and runs crossing detection. It is
// ObserveStepAt for callers that have not resolved the ground themselves.
func (r *OutcomeRecorder) ObserveStep(t Tracker, cache GroundCache, obs Observation) (Tracker, GroundCache, *model.ImpactComparisonRecord) {
	if !t.Active || t.Latched {
		return t, cache, nil
	}
	height, next, _ := ResolveGround(r.ground, cache, obs.Position.X, obs.Position.Z)
	t, rec := r.ObserveStepAt(t, obs, height)
	return t, next, rec
}

// ObserveStepAt runs ground-crossing detection for one step with the ground
// height already resolved below obs. It returns a record when the altitude
// went from positive to non-positive since the last step.
func (r *OutcomeRecorder) ObserveStepAt(t Tracker, obs Observation, groundHeight float64) (Tracker, *model.ImpactComparisonRecord) {
	if !t.Active || t.Latched {
		return t, nil
	}

	alt := obs.Position.Y - groundHeight
	crossed := t.hasPrev && t.prevAltitude > 0 && alt <= 0
	t.prevAltitude = alt
	t.hasPrev = true
	if !crossed {
		return t, nil
	}

	impact := model.Vec3{X: obs.Position.X, Y: groundHeight, Z: obs.Position.Z}
	return r.latch(t, model.ImpactSourceGroundCrossing, impact, obs.Velocity, obs.Timestamp)
}

// ObserveContact runs collision-event detection. The first contact after
// release is the impact; later contacts are ignored.
func (r *OutcomeRecorder) ObserveContact(t Tracker, ev ContactEvent) (Tracker, *model.ImpactComparisonRecord) {
	if !t.Active || t.Latched {
		return t, nil
	}
	impact := ev.Position
	if ev.HasPoint {
		impact = ev.Point
	}
	return r.latch(t, model.ImpactSourceContact, impact, ev.Velocity, ev.Timestamp)
}

func (r *OutcomeRecorder) latch(t Tracker, src model.ImpactSource, impact, velocity model.Vec3, now float64) (Tracker, *model.ImpactComparisonRecord) {
	t.Active = false
	t.Latched = true

	// The latched point is the one shown at prediction time, even when the
	// vehicle moved between predict and release.
	predicted := t.Prediction.ImpactPoint.Horizontal()
	rec := &model.ImpactComparisonRecord{
		EpisodeID:        t.EpisodeID,
		Source:           src,
		PredictedTTI:     t.Prediction.TimeToImpact,
		ActualTTI:        now - t.ReleasedAt,
		PredictedEnergyJ: t.Prediction.ImpactEnergyJ,
		ActualEnergyJ:    KineticEnergy(t.ReleaseState.MassKg, velocity.SqrNorm()),
		PositionErrorM:   predicted.DistanceTo(impact.Horizontal()),
		ImpactPoint:      impact,
	}
	return t, rec
}
