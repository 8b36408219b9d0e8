package core

import (
	"testing"

	"github.com/signalsfoundry/impact-predictor/model"
)

func TestRecommendationZeroBaselineRisk(t *testing.T) {
	e := NewRecommendationEngine(DefaultRecommendationConfig(), model.MethodMotorCutoff.Profile())
	delay, reduction := e.Evaluate(stateAt(19.62, 0), model.WindVector{}, 2.0, 192.47, 500, 800)
	if delay != 0 || reduction != 0 {
		t.Fatalf("Evaluate with zero baseline risk = (%v, %v), want (0, 0)", delay, reduction)
	}
}

func TestRecommendationReductionBounded(t *testing.T) {
	p := NewBallisticPredictor(DefaultPredictorConfig())
	winds := []model.WindVector{{}, {SpeedMps: 3, DirectionDeg: 45}, {SpeedMps: 15, DirectionDeg: 270}}
	for _, alt := range []float64{0.5, 5, 20, 60, 150} {
		for _, vy := range []float64{-20, -5, 0, 5, 12} {
			for _, w := range winds {
				s := stateAt(alt, vy)
				s.MassKg = 3.5
				s.Velocity.X = 4
				res := p.Predict(s, w)
				if !res.Valid {
					continue
				}
				if res.RiskReductionPct < 0 || res.RiskReductionPct > 95 {
					t.Fatalf("alt=%v vy=%v wind=%+v: reduction %v%% out of [0, 95]", alt, vy, w, res.RiskReductionPct)
				}
				if res.RecommendedDelayS < 0 || res.RecommendedDelayS > 3.0+1e-9 || res.RecommendedDelayS > 0.7*res.TimeToImpact+1e-9 {
					t.Fatalf("alt=%v vy=%v: delay %v outside scan bounds (tti %v)", alt, vy, res.RecommendedDelayS, res.TimeToImpact)
				}
				if res.Risk01 == 0 && res.RiskReductionPct != 0 {
					t.Fatalf("alt=%v vy=%v: reduction %v with zero baseline risk", alt, vy, res.RiskReductionPct)
				}
			}
		}
	}
}

// Delay only trades height for speed under energy conservation, so the
// delayed impact is never safer and immediate release is recommended.
func TestRecommendationImmediateUnderFreeFall(t *testing.T) {
	p := NewBallisticPredictor(DefaultPredictorConfig())
	s := stateAt(20, 0)
	res := p.Predict(s, model.WindVector{SpeedMps: 8, DirectionDeg: 180})
	if !res.Valid {
		t.Fatalf("expected valid prediction")
	}
	if res.RecommendedDelayS != 0 || res.RiskReductionPct != 0 {
		t.Fatalf("got delay %v reduction %v, want immediate", res.RecommendedDelayS, res.RiskReductionPct)
	}
	if res.Advice() != "Immediate neutralization recommended" {
		t.Fatalf("Advice = %q", res.Advice())
	}
}

func TestCapReduction(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.5, 0.5},
		{0.95, 0.95},
		{0.99, 0.95},
		{1, 0.95},
	}
	for _, tt := range tests {
		if got := capReduction(tt.in, 0.95); got != tt.want {
			t.Fatalf("capReduction(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecommendationFindsBestDelayWhenEnergyDrops(t *testing.T) {
	// Every candidate lands with the same energy, well below the supplied
	// baseline, so the first candidate wins.
	e := NewRecommendationEngine(DefaultRecommendationConfig(), model.MethodMotorCutoff.Profile())
	s := stateAt(20, 0)
	s.MassKg = 1
	delay, reduction := e.Evaluate(s, model.WindVector{}, 2.02, 700, 100, 800)
	if delay < 0.1-1e-12 || delay > 0.1+1e-12 {
		t.Fatalf("delay = %v, want 0.1", delay)
	}
	if reduction <= 0 || reduction > 0.95 {
		t.Fatalf("reduction = %v, want in (0, 0.95]", reduction)
	}
}
