package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/impact-predictor/internal/logging"
	"github.com/signalsfoundry/impact-predictor/internal/observability"
	"github.com/signalsfoundry/impact-predictor/model"
)

// ErrPhase is returned when an action is not allowed in the current phase.
var ErrPhase = errors.New("action not allowed in current phase")

// MetricsRecorder receives engine measurements. observability.PredictionCollector
// implements it.
type MetricsRecorder interface {
	ObservePrediction(model.PredictionResult)
	ObserveProbe(outcome string)
	ObserveImpact(model.ImpactComparisonRecord)
}

type noopMetrics struct{}

func (noopMetrics) ObservePrediction(model.PredictionResult)   {}
func (noopMetrics) ObserveProbe(string)                        {}
func (noopMetrics) ObserveImpact(model.ImpactComparisonRecord) {}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Source       SampleSource
	Ground       GroundProbe
	Wind         WindSource
	Predictor    PredictorConfig
	MinAltitudeM float64

	Logger  logging.Logger
	Metrics MetricsRecorder
}

// Engine runs the predict / release / impact cycle for one vehicle. All
// methods must be called from a single goroutine.
type Engine struct {
	assembler *StateAssembler
	predictor *BallisticPredictor
	recorder  *OutcomeRecorder
	wind      WindSource

	log     logging.Logger
	metrics MetricsRecorder

	fc     FallContext
	events EventQueue

	impactListeners []func(model.ImpactComparisonRecord)
}

// NewEngine builds an engine from cfg. A nil wind source means calm air.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("engine: sample source is required")
	}
	if cfg.Wind == nil {
		cfg.Wind = NewConstantWind(0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Predictor.EnergyHighJ == 0 && cfg.Predictor.EnergyLowJ == 0 {
		cfg.Predictor = DefaultPredictorConfig()
	}

	return &Engine{
		assembler: NewStateAssembler(cfg.Source, cfg.Ground, cfg.MinAltitudeM),
		predictor: NewBallisticPredictor(cfg.Predictor),
		recorder:  NewOutcomeRecorder(cfg.Ground),
		wind:      cfg.Wind,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		fc:        NewFallContext(),
	}, nil
}

// Wind returns the engine's wind source.
func (e *Engine) Wind() WindSource { return e.wind }

// Predictor returns the ballistic predictor in use.
func (e *Engine) Predictor() *BallisticPredictor { return e.predictor }

// Phase returns the current simulation phase.
func (e *Engine) Phase() model.SimulationPhase { return e.fc.Phase }

// Context returns a copy of the engine's mutable state.
func (e *Engine) Context() FallContext { return e.fc }

// Events drains the queued engine events.
func (e *Engine) Events() []Event { return e.events.Drain() }

// CurrentState returns the state assembled on the last tick.
func (e *Engine) CurrentState() (model.KinematicState, bool) {
	return e.fc.State, e.fc.HasState
}

// LatestPrediction returns the cached prediction from the last predict action.
func (e *Engine) LatestPrediction() (model.PredictionResult, bool) {
	return e.fc.Prediction, e.fc.HasPrediction
}

// OnImpactConfirmed registers fn to receive every comparison record.
func (e *Engine) OnImpactConfirmed(fn func(model.ImpactComparisonRecord)) {
	if fn != nil {
		e.impactListeners = append(e.impactListeners, fn)
	}
}

// OnTick assembles the state for this tick and, while a fall is tracked,
// runs ground-crossing detection.
func (e *Engine) OnTick(ctx context.Context) error {
	asm, err := e.assembler.Build(e.fc.Ground)
	if err != nil {
		e.log.Warn(ctx, "state assembly failed", logging.Err(err))
		return fmt.Errorf("tick: %w", err)
	}
	e.fc.Ground = asm.Cache
	e.fc.State = asm.State
	e.fc.HasState = true

	e.metrics.ObserveProbe(asm.Outcome.String())
	if asm.Outcome != ProbeHit {
		e.log.Debug(ctx, "ground probe missed",
			logging.String("outcome", asm.Outcome.String()),
			logging.Float64("altitude_agl", asm.State.AltitudeAGL),
		)
	}

	if e.fc.Phase != model.PhaseReleased {
		return nil
	}

	obs := Observation{
		Position:  asm.State.Position,
		Velocity:  asm.State.Velocity,
		Timestamp: asm.State.Timestamp,
	}
	tracker, rec := e.recorder.ObserveStepAt(e.fc.Tracker, obs, asm.GroundHeight)
	e.fc.Tracker = tracker
	if rec != nil {
		e.confirm(ctx, *rec)
	}
	return nil
}

// ComputePrediction predicts from the latest state, assembling one first if
// no tick has run. Before release the result is cached as the latest
// prediction; afterwards the locked prediction is left alone.
func (e *Engine) ComputePrediction(ctx context.Context) model.PredictionResult {
	ctx, span := observability.StartSpan(ctx, observability.SpanPredict)
	defer span.End()

	if !e.fc.HasState {
		if err := e.OnTick(ctx); err != nil {
			span.RecordError(err)
			return model.Invalid()
		}
	}

	wind := e.wind.Current()
	pred := e.predictor.Predict(e.fc.State, wind)
	e.metrics.ObservePrediction(pred)

	span.SetAttributes(observability.PredictionAttributes(pred)...)

	if !e.fc.Phase.CanRelease() {
		return pred
	}

	e.fc.Prediction = pred
	e.fc.HasPrediction = true
	if pred.Valid {
		e.fc.Phase = model.PhasePredicted
		e.log.Info(ctx, "prediction computed",
			logging.Float64("time_to_impact_s", pred.TimeToImpact),
			logging.Float64("impact_energy_j", pred.ImpactEnergyJ),
			logging.String("risk_level", pred.RiskLevel.String()),
			logging.Float64("recommended_delay_s", pred.RecommendedDelayS),
			logging.String("wind", fmt.Sprintf("%.1f m/s %s", wind.SpeedMps, wind.Cardinal())),
		)
	} else {
		e.log.Info(ctx, "no ground intersection",
			logging.Float64("altitude_agl", e.fc.State.AltitudeAGL),
			logging.Float64("vertical_velocity", e.fc.State.Velocity.Y),
		)
	}

	p := pred
	e.events.Push(Event{Type: EventPredicted, Time: e.fc.State.Timestamp, Prediction: &p})
	return pred
}

// OnReleaseRequested locks the latest valid prediction and starts tracking
// the fall. Without a cached valid prediction a fresh one is computed.
func (e *Engine) OnReleaseRequested(ctx context.Context) (model.PredictionResult, error) {
	if !e.fc.Phase.CanRelease() {
		return model.Invalid(), fmt.Errorf("release in phase %s: %w", e.fc.Phase, ErrPhase)
	}

	pred := e.fc.Prediction
	if !e.fc.HasPrediction || !pred.Valid {
		pred = e.ComputePrediction(ctx)
	}

	episodeID := logging.NewEpisodeID()
	tracker, err := e.recorder.Release(e.fc.Tracker, episodeID, pred, e.fc.State, e.fc.State.Timestamp)
	if err != nil {
		e.log.Warn(ctx, "release rejected", logging.Err(err))
		return pred, err
	}

	e.fc.Tracker = tracker
	e.fc.Phase = model.PhaseReleased

	log := logging.WithEpisodeLogger(logging.ContextWithEpisodeID(ctx, episodeID), e.log)
	log.Info(ctx, "released",
		logging.Float64("released_at", tracker.ReleasedAt),
		logging.Float64("altitude_agl", tracker.ReleaseState.AltitudeAGL),
		logging.Float64("predicted_tti_s", pred.TimeToImpact),
	)

	p, s := pred, tracker.ReleaseState
	e.events.Push(Event{
		Type:       EventReleased,
		EpisodeID:  episodeID,
		Time:       tracker.ReleasedAt,
		Prediction: &p,
		Release:    &s,
	})
	return pred, nil
}

// OnImpactDetected handles a collision reported by the physics collaborator.
// A second impact for the same fall is ignored.
func (e *Engine) OnImpactDetected(ctx context.Context, ev ContactEvent) error {
	switch e.fc.Phase {
	case model.PhaseImpactResult:
		return nil
	case model.PhaseReleased:
	default:
		return ErrNotTracking
	}

	tracker, rec := e.recorder.ObserveContact(e.fc.Tracker, ev)
	e.fc.Tracker = tracker
	if rec != nil {
		e.confirm(ctx, *rec)
	}
	return nil
}

func (e *Engine) confirm(ctx context.Context, rec model.ImpactComparisonRecord) {
	ctx = logging.ContextWithEpisodeID(ctx, rec.EpisodeID)
	ctx, span := observability.StartSpan(ctx, observability.SpanImpact, observability.ImpactAttributes(rec)...)
	defer span.End()

	e.fc.Record = &rec
	e.fc.Phase = model.PhaseImpactResult
	e.metrics.ObserveImpact(rec)

	logging.WithEpisodeLogger(ctx, e.log).Info(ctx, "impact confirmed",
		logging.String("source", string(rec.Source)),
		logging.Float64("time_error_s", rec.TimeErrorS()),
		logging.Float64("energy_error_j", rec.EnergyErrorJ()),
		logging.Float64("position_error_m", rec.PositionErrorM),
	)

	r := rec
	e.events.Push(Event{Type: EventImpactConfirmed, EpisodeID: rec.EpisodeID, Time: e.fc.State.Timestamp, Record: &r})
	for _, fn := range e.impactListeners {
		fn(rec)
	}
}

// Reset abandons the current fall and returns to the live phase.
func (e *Engine) Reset(ctx context.Context) {
	e.fc.Phase = model.PhaseResetting
	episodeID := e.fc.Tracker.EpisodeID
	e.fc.clearEpisode()
	e.events.Push(Event{Type: EventReset, EpisodeID: episodeID, Time: e.fc.State.Timestamp})
	e.fc.Phase = model.PhaseLive
	e.log.Debug(ctx, "engine reset")
}
