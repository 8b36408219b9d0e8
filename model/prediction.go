package model

import (
	"fmt"
	"math"
)

// RiskLevel is the discrete band of the continuous risk score.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "Low"
	case RiskMedium:
		return "Medium"
	case RiskHigh:
		return "High"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
}

// RiskLevelFor maps a risk score in [0,1] to its band.
func RiskLevelFor(risk01 float64) RiskLevel {
	switch {
	case risk01 < 0.33:
		return RiskLow
	case risk01 < 0.66:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ImmediateReleaseThresholdS is the recommended delay at or below which
// releasing now is advised.
const ImmediateReleaseThresholdS = 0.5

// PredictionResult is the output of one predictor evaluation. When Valid is
// false every other field is undefined and must not be read.
type PredictionResult struct {
	Valid bool

	TimeToImpact float64 // seconds

	// ImpactOffset is the horizontal displacement from the state position.
	ImpactOffset Vec2
	ImpactPoint  Vec3

	DriftRadiusM  float64
	ImpactEnergyJ float64

	Risk01    float64
	RiskLevel RiskLevel

	RecommendedDelayS float64
	RiskReductionPct  float64
}

// Invalid returns the no-solution result.
func Invalid() PredictionResult {
	return PredictionResult{Valid: false, TimeToImpact: math.Inf(1)}
}

// Advice summarises the recommendation in operator terms.
func (p PredictionResult) Advice() string {
	if !p.Valid {
		return "Invalid prediction"
	}
	if p.RecommendedDelayS > ImmediateReleaseThresholdS {
		return fmt.Sprintf("Delay %.1fs, relative risk down %.0f%%", p.RecommendedDelayS, p.RiskReductionPct)
	}
	return "Immediate neutralization recommended"
}
