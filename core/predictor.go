package core

import (
	"math"

	"github.com/signalsfoundry/impact-predictor/internal/config"
	"github.com/signalsfoundry/impact-predictor/model"
)

// PredictorConfig carries the physics constants and risk ramp.
type PredictorConfig struct {
	GravityMps2 float64
	EnergyLowJ  float64
	EnergyHighJ float64
	Method      model.NeutralizationMethod

	Recommendation RecommendationConfig
}

// DefaultPredictorConfig mirrors configs/predictor.defaults.json.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		GravityMps2:    StandardGravity,
		EnergyLowJ:     100,
		EnergyHighJ:    800,
		Method:         model.MethodMotorCutoff,
		Recommendation: DefaultRecommendationConfig(),
	}
}

// PredictorConfigFromTuning builds a PredictorConfig from a loaded TuningConfig.
// A nil config yields the defaults.
func PredictorConfigFromTuning(cfg *config.TuningConfig) PredictorConfig {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return PredictorConfig{
		GravityMps2: cfg.GetGravityMps2(),
		EnergyLowJ:  cfg.GetEnergyLowJ(),
		EnergyHighJ: cfg.GetEnergyHighJ(),
		Method:      model.MethodMotorCutoff,
		Recommendation: RecommendationConfig{
			GravityMps2:      cfg.GetGravityMps2(),
			StepS:            cfg.GetDelayStepS(),
			MaxDelayS:        cfg.GetMaxDelayS(),
			MaxDelayFraction: cfg.GetMaxDelayFraction(),
			MaxRiskReduction: cfg.GetMaxRiskReduction(),
		},
	}
}

// BallisticPredictor is the closed-form impact solver.
type BallisticPredictor struct {
	cfg         PredictorConfig
	profile     model.MethodProfile
	recommender *RecommendationEngine
}

// NewBallisticPredictor builds a predictor and its recommendation engine.
func NewBallisticPredictor(cfg PredictorConfig) *BallisticPredictor {
	if !(cfg.GravityMps2 > 0) {
		cfg.GravityMps2 = StandardGravity
	}
	cfg.Recommendation.GravityMps2 = cfg.GravityMps2
	profile := cfg.Method.Profile()
	return &BallisticPredictor{
		cfg:         cfg,
		profile:     profile,
		recommender: NewRecommendationEngine(cfg.Recommendation, profile),
	}
}

// Config returns the predictor configuration.
func (p *BallisticPredictor) Config() PredictorConfig { return p.cfg }

// Risk01 maps impact energy onto the configured low→high ramp.
func Risk01(energyJ, lowJ, highJ float64) float64 {
	return Clamp01(InverseLerp(lowJ, highJ, energyJ))
}

// Predict computes the impact time, point, energy, risk and recommended
// delay for the state under a constant wind. The state's mass must be positive.
func (p *BallisticPredictor) Predict(state model.KinematicState, wind model.WindVector) model.PredictionResult {
	g := p.cfg.GravityMps2
	alt := state.AltitudeAGL
	vy := state.Velocity.Y

	tImpact, ok := FallTime(alt, vy, g)
	if !ok {
		return model.Invalid()
	}
	tImpact *= p.profile.TimeScale

	horizontal := p.horizontalVelocity(state, wind)

	offset := horizontal.Scale(tImpact)
	drift := horizontal.Norm()*tImpact + p.profile.ExtraUncertaintyM

	impactY := ImpactVerticalSpeed(alt, vy, g)
	impactVelocity := model.Vec3{X: horizontal.X, Y: -impactY, Z: horizontal.Z}
	energy := KineticEnergy(state.MassKg, impactVelocity.SqrNorm()) * p.profile.EnergyScale

	risk := Risk01(energy, p.cfg.EnergyLowJ, p.cfg.EnergyHighJ)

	delay, reduction := p.recommender.Evaluate(state, wind, tImpact, energy, p.cfg.EnergyLowJ, p.cfg.EnergyHighJ)

	groundY := state.Position.Y - alt
	return model.PredictionResult{
		Valid:             true,
		TimeToImpact:      tImpact,
		ImpactOffset:      offset,
		ImpactPoint:       state.Position.Horizontal().Add(offset).At(groundY),
		DriftRadiusM:      drift,
		ImpactEnergyJ:     energy,
		Risk01:            risk,
		RiskLevel:         model.RiskLevelFor(risk),
		RecommendedDelayS: delay,
		RiskReductionPct:  reduction * 100,
	}
}

// PredictFallPath samples the predicted trajectory every step seconds from
// release to impact, inclusive of both ends. The method profile is applied the
// same way as in Predict, so the last point is Predict's impact point. It
// returns nil when there is no valid solution.
func (p *BallisticPredictor) PredictFallPath(state model.KinematicState, wind model.WindVector, step float64) []model.Vec3 {
	g := p.cfg.GravityMps2
	tFall, ok := FallTime(state.AltitudeAGL, state.Velocity.Y, g)
	if !ok || !(step > 0) {
		return nil
	}
	timeScale := p.profile.TimeScale
	tImpact := tFall * timeScale
	horizontal := p.horizontalVelocity(state, wind)

	n := int(math.Floor(tImpact / step))
	path := make([]model.Vec3, 0, n+2)
	at := func(t float64) model.Vec3 {
		// Height follows the unscaled fall so the path still ends on the ground.
		u := t / timeScale
		return model.Vec3{
			X: state.Position.X + horizontal.X*t,
			Y: state.Position.Y + state.Velocity.Y*u - 0.5*g*u*u,
			Z: state.Position.Z + horizontal.Z*t,
		}
	}
	for i := 0; i <= n; i++ {
		path = append(path, at(float64(i)*step))
	}
	if last := float64(n) * step; tImpact-last > 1e-9 {
		path = append(path, at(tImpact))
	}
	return path
}

// horizontalVelocity is the wind-adjusted horizontal velocity scaled by the
// method profile.
func (p *BallisticPredictor) horizontalVelocity(state model.KinematicState, wind model.WindVector) model.Vec2 {
	w := wind.Velocity()
	return model.Vec2{
		X: state.Velocity.X + w.X,
		Z: state.Velocity.Z + w.Z,
	}.Scale(p.profile.HorizontalVelocityScale)
}
