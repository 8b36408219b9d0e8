package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/impact-predictor/model"
)

func stateAt(alt, vy float64) model.KinematicState {
	return model.KinematicState{
		Position:    model.Vec3{Y: alt},
		Velocity:    model.Vec3{Y: vy},
		Forward:     model.Vec3{Z: 1},
		MassKg:      1,
		AltitudeAGL: alt,
	}
}

func TestPredictTimeToImpactFromRest(t *testing.T) {
	p := NewBallisticPredictor(DefaultPredictorConfig())
	res := p.Predict(stateAt(19.62, 0), model.WindVector{})
	if !res.Valid {
		t.Fatalf("expected valid prediction")
	}
	if math.Abs(res.TimeToImpact-2.0) > 1e-12 {
		t.Fatalf("TimeToImpact = %.15f, want 2.0", res.TimeToImpact)
	}
}

func TestPredictInvalidCases(t *testing.T) {
	p := NewBallisticPredictor(DefaultPredictorConfig())
	tests := []struct {
		name string
		alt  float64
		vy   float64
	}{
		{name: "negative discriminant", alt: -10, vy: 1},
		{name: "on ground at rest", alt: 0, vy: 0},
		{name: "on ground descending", alt: 0, vy: -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Predict(stateAt(tt.alt, tt.vy), model.WindVector{SpeedMps: 4})
			if res.Valid {
				t.Fatalf("expected invalid prediction, got %+v", res)
			}
			if !math.IsInf(res.TimeToImpact, 1) {
				t.Fatalf("invalid TimeToImpact = %v, want +Inf", res.TimeToImpact)
			}
		})
	}
}

func TestPredictZeroWindZeroDrift(t *testing.T) {
	p := NewBallisticPredictor(DefaultPredictorConfig())
	s := stateAt(40, -2)
	s.Position = model.Vec3{X: 3, Y: 45, Z: -7}
	res := p.Predict(s, model.WindVector{SpeedMps: 0, DirectionDeg: 123})
	if !res.Valid {
		t.Fatalf("expected valid prediction")
	}
	if res.DriftRadiusM != 0 || res.ImpactOffset != (model.Vec2{}) {
		t.Fatalf("drift = %v offset = %+v, want zero", res.DriftRadiusM, res.ImpactOffset)
	}
	want := model.Vec3{X: 3, Y: 5, Z: -7}
	if res.ImpactPoint != want {
		t.Fatalf("ImpactPoint = %+v, want %+v", res.ImpactPoint, want)
	}
}

func TestPredictWindDriftAndEnergy(t *testing.T) {
	cfg := DefaultPredictorConfig()
	cfg.GravityMps2 = 8
	p := NewBallisticPredictor(cfg)

	s := stateAt(16, 0)
	s.Velocity.X = 1
	res := p.Predict(s, model.WindVector{SpeedMps: 5, DirectionDeg: 0})
	if !res.Valid || res.TimeToImpact != 2 {
		t.Fatalf("prediction = %+v, want valid with t=2", res)
	}
	if res.ImpactOffset != (model.Vec2{X: 2, Z: 10}) {
		t.Fatalf("ImpactOffset = %+v, want {2 10}", res.ImpactOffset)
	}
	if math.Abs(res.DriftRadiusM-math.Hypot(2, 10)) > 1e-12 {
		t.Fatalf("DriftRadiusM = %v", res.DriftRadiusM)
	}
	// horizontal 1²+5², vertical sqrt(2·8·16) = 16
	wantEnergy := 0.5 * (1 + 25 + 256)
	if math.Abs(res.ImpactEnergyJ-wantEnergy) > 1e-9 {
		t.Fatalf("ImpactEnergyJ = %v, want %v", res.ImpactEnergyJ, wantEnergy)
	}
	if res.RiskLevel != model.RiskLevelFor(res.Risk01) {
		t.Fatalf("risk level %s does not match risk %v", res.RiskLevel, res.Risk01)
	}
}

func TestPredictEnergyUsesInitialVerticalVelocity(t *testing.T) {
	p := NewBallisticPredictor(DefaultPredictorConfig())
	g := StandardGravity
	res := p.Predict(stateAt(30, -6), model.WindVector{})
	want := 0.5 * (36 + 2*g*30)
	if math.Abs(res.ImpactEnergyJ-want) > 1e-9 {
		t.Fatalf("ImpactEnergyJ = %v, want %v", res.ImpactEnergyJ, want)
	}
}

func TestRisk01Mapping(t *testing.T) {
	if got := Risk01(50, 100, 800); got != 0 {
		t.Fatalf("risk below low = %v, want 0", got)
	}
	if got := Risk01(100, 100, 800); got != 0 {
		t.Fatalf("risk at low = %v, want 0", got)
	}
	if got := Risk01(800, 100, 800); got != 1 {
		t.Fatalf("risk at high = %v, want 1", got)
	}
	if got := Risk01(5000, 100, 800); got != 1 {
		t.Fatalf("risk above high = %v, want 1", got)
	}
	prev := -1.0
	for e := 0.0; e <= 1000; e += 7.5 {
		r := Risk01(e, 100, 800)
		if r < prev {
			t.Fatalf("risk decreased at energy %v: %v < %v", e, r, prev)
		}
		prev = r
	}
}

func TestRiskLevelBands(t *testing.T) {
	tests := []struct {
		risk float64
		want model.RiskLevel
	}{
		{0, model.RiskLow},
		{0.3299, model.RiskLow},
		{0.33, model.RiskMedium},
		{0.6599, model.RiskMedium},
		{0.66, model.RiskHigh},
		{1, model.RiskHigh},
	}
	for _, tt := range tests {
		if got := model.RiskLevelFor(tt.risk); got != tt.want {
			t.Fatalf("RiskLevelFor(%v) = %s, want %s", tt.risk, got, tt.want)
		}
	}
}

func TestPredictMethodProfileScalesResult(t *testing.T) {
	base := NewBallisticPredictor(DefaultPredictorConfig())
	cfg := DefaultPredictorConfig()
	cfg.Method = model.MethodTetheredCapture
	tethered := NewBallisticPredictor(cfg)

	s := stateAt(50, 0)
	w := model.WindVector{SpeedMps: 6, DirectionDeg: 90}
	a := base.Predict(s, w)
	b := tethered.Predict(s, w)

	if math.Abs(b.ImpactEnergyJ-0.2*a.ImpactEnergyJ) > 0.2*a.ImpactEnergyJ*0.1 {
		t.Fatalf("tethered energy %v not about 20%% of %v", b.ImpactEnergyJ, a.ImpactEnergyJ)
	}
	if b.DriftRadiusM >= a.DriftRadiusM {
		t.Fatalf("tethered drift %v should be below motor cutoff drift %v", b.DriftRadiusM, a.DriftRadiusM)
	}
}

func TestPredictFallPath(t *testing.T) {
	cfg := DefaultPredictorConfig()
	cfg.GravityMps2 = 8
	p := NewBallisticPredictor(cfg)

	s := stateAt(16, 0)
	path := p.PredictFallPath(s, model.WindVector{SpeedMps: 5}, 0.5)
	if len(path) != 5 {
		t.Fatalf("len(path) = %d, want 5", len(path))
	}
	if path[0] != s.Position {
		t.Fatalf("path starts at %+v, want %+v", path[0], s.Position)
	}
	last := path[len(path)-1]
	if last.Y != 0 || last.Z != 10 {
		t.Fatalf("path ends at %+v, want y=0 z=10", last)
	}

	odd := p.PredictFallPath(s, model.WindVector{}, 0.3)
	if end := odd[len(odd)-1]; math.Abs(end.Y) > 1e-9 {
		t.Fatalf("path with uneven step ends at y=%v, want ground", end.Y)
	}

	if got := p.PredictFallPath(stateAt(0, 0), model.WindVector{}, 0.1); got != nil {
		t.Fatalf("expected nil path without a solution, got %d points", len(got))
	}
}

func TestPredictFallPathFollowsMethodProfile(t *testing.T) {
	cfg := DefaultPredictorConfig()
	cfg.GravityMps2 = 8
	cfg.Method = model.MethodPartialThrustLoss
	p := NewBallisticPredictor(cfg)

	s := stateAt(16, 0)
	w := model.WindVector{SpeedMps: 5}
	pred := p.Predict(s, w)
	path := p.PredictFallPath(s, w, 0.5)
	if len(path) == 0 {
		t.Fatalf("expected a path")
	}

	last := path[len(path)-1]
	if math.Abs(last.X-pred.ImpactPoint.X) > 1e-9 || math.Abs(last.Z-pred.ImpactPoint.Z) > 1e-9 {
		t.Fatalf("path ends at %+v, want predicted impact %+v", last, pred.ImpactPoint)
	}
	if math.Abs(last.Y) > 1e-9 {
		t.Fatalf("path ends at y=%v, want ground", last.Y)
	}
	if want := int(math.Round(pred.TimeToImpact/0.5)) + 1; len(path) != want {
		t.Fatalf("len(path) = %d, want %d for tti %v", len(path), want, pred.TimeToImpact)
	}
}

func TestPredictorConfigFromTuningDefaults(t *testing.T) {
	got := PredictorConfigFromTuning(nil)
	want := DefaultPredictorConfig()
	if got != want {
		t.Fatalf("PredictorConfigFromTuning(nil) = %+v, want %+v", got, want)
	}
}
