package core

import "github.com/signalsfoundry/impact-predictor/model"

// FallContext is all mutable state of one engine: the ground cache, the
// latest state and prediction, the recorder tracker and the phase. It is
// plain data so tests can build one directly.
type FallContext struct {
	Phase model.SimulationPhase

	Ground GroundCache

	State    model.KinematicState
	HasState bool

	Prediction    model.PredictionResult
	HasPrediction bool

	Tracker Tracker
	Record  *model.ImpactComparisonRecord
}

// NewFallContext returns an empty context in the live phase.
func NewFallContext() FallContext {
	return FallContext{Phase: model.PhaseLive, Prediction: model.Invalid()}
}

// clearEpisode drops everything tied to the current fall but keeps the
// ground cache, which is still valid for the same terrain.
func (c *FallContext) clearEpisode() {
	c.Prediction = model.Invalid()
	c.HasPrediction = false
	c.Tracker = Tracker{}
	c.Record = nil
}
