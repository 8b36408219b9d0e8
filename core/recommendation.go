package core

import (
	"math"

	"github.com/signalsfoundry/impact-predictor/model"
)

// minMeaningfulReduction filters floating-point noise out of the delay scan:
// energy-conserving kinematics make the post-delay energy equal to the
// baseline up to rounding, and rounding must not masquerade as a recommendation.
const minMeaningfulReduction = 1e-9

// RecommendationConfig bounds the delay scan.
type RecommendationConfig struct {
	GravityMps2      float64
	StepS            float64 // first candidate and increment
	MaxDelayS        float64 // absolute ceiling
	MaxDelayFraction float64 // ceiling as a share of time-to-impact
	MaxRiskReduction float64 // reported reduction never exceeds this
}

// DefaultRecommendationConfig returns the production scan bounds.
func DefaultRecommendationConfig() RecommendationConfig {
	return RecommendationConfig{
		GravityMps2:      StandardGravity,
		StepS:            0.1,
		MaxDelayS:        3.0,
		MaxDelayFraction: 0.7,
		MaxRiskReduction: 0.95,
	}
}

// RecommendationEngine searches for the release delay that most reduces risk.
type RecommendationEngine struct {
	cfg     RecommendationConfig
	profile model.MethodProfile
}

// NewRecommendationEngine builds an engine; profile scales horizontal speed
// and energy the same way the predictor does.
func NewRecommendationEngine(cfg RecommendationConfig, profile model.MethodProfile) *RecommendationEngine {
	def := DefaultRecommendationConfig()
	if !(cfg.GravityMps2 > 0) {
		cfg.GravityMps2 = def.GravityMps2
	}
	if !(cfg.StepS > 0) {
		cfg.StepS = def.StepS
	}
	if profile.HorizontalVelocityScale == 0 && profile.EnergyScale == 0 {
		profile = model.MethodMotorCutoff.Profile()
	}
	return &RecommendationEngine{cfg: cfg, profile: profile}
}

// Evaluate scans candidate delays and returns the best one with its relative
// risk reduction in [0, MaxRiskReduction]. A zero baseline risk yields (0, 0).
func (e *RecommendationEngine) Evaluate(
	state model.KinematicState,
	wind model.WindVector,
	timeToImpact float64,
	baselineEnergyJ float64,
	energyLowJ float64,
	energyHighJ float64,
) (bestDelayS float64, reduction01 float64) {
	baselineRisk := Clamp01(InverseLerp(energyLowJ, energyHighJ, baselineEnergyJ))
	if baselineRisk <= 0 {
		return 0, 0
	}

	g := e.cfg.GravityMps2
	w := wind.Velocity()
	horizontal := model.Vec2{
		X: state.Velocity.X + w.X,
		Z: state.Velocity.Z + w.Z,
	}.Scale(e.profile.HorizontalVelocityScale)
	horizontalSq := horizontal.X*horizontal.X + horizontal.Z*horizontal.Z

	maxDelay := math.Min(e.cfg.MaxDelayFraction*timeToImpact, e.cfg.MaxDelayS)
	alt := state.AltitudeAGL
	vy := state.Velocity.Y

	// Index the scan so the step does not accumulate rounding error.
	for i := 1; ; i++ {
		delay := float64(i) * e.cfg.StepS
		if delay > maxDelay+1e-9 {
			break
		}

		remaining := HeightAfter(alt, vy, g, delay)
		if remaining <= 0 {
			break
		}

		vyAtDelay := VerticalVelocityAfter(vy, g, delay)
		impactY := ImpactVerticalSpeed(remaining, vyAtDelay, g)

		postEnergy := KineticEnergy(state.MassKg, horizontalSq+impactY*impactY) * e.profile.EnergyScale
		postRisk := Clamp01(InverseLerp(energyLowJ, energyHighJ, postEnergy))

		reduction := (baselineRisk - postRisk) / baselineRisk
		if reduction > reduction01+minMeaningfulReduction {
			reduction01 = reduction
			bestDelayS = delay
		}
	}

	return bestDelayS, capReduction(reduction01, e.cfg.MaxRiskReduction)
}

func capReduction(r, ceiling float64) float64 {
	if r < 0 {
		return 0
	}
	return math.Min(r, ceiling)
}
