package core

import (
	"math"
	"testing"
)

func TestFallTimeFromRest(t *testing.T) {
	got, ok := FallTime(19.62, 0, 9.81)
	if !ok {
		t.Fatalf("expected a solution")
	}
	if math.Abs(got-2.0) > 1e-12 {
		t.Fatalf("FallTime = %.15f, want 2.0", got)
	}
}

func TestFallTimeEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		alt    float64
		vy     float64
		wantOK bool
	}{
		{name: "below ground with small speed", alt: -10, vy: 1, wantOK: false},
		{name: "on ground descending", alt: 0, vy: -2, wantOK: false},
		{name: "on ground at rest", alt: 0, vy: 0, wantOK: false},
		{name: "on ground ascending", alt: 0, vy: 4.905, wantOK: true},
		{name: "climbing from altitude", alt: 50, vy: 10, wantOK: true},
		{name: "descending from altitude", alt: 50, vy: -10, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FallTime(tt.alt, tt.vy, StandardGravity)
			if ok != tt.wantOK {
				t.Fatalf("FallTime(%v, %v) ok = %v, want %v", tt.alt, tt.vy, ok, tt.wantOK)
			}
			if ok && math.Abs(HeightAfter(tt.alt, tt.vy, StandardGravity, got)) > 1e-9 {
				t.Fatalf("root %v does not reach the ground", got)
			}
			if !ok && !math.IsInf(got, 1) {
				t.Fatalf("unsolved fall time = %v, want +Inf", got)
			}
		})
	}
}

func TestImpactVerticalSpeedMatchesKinematics(t *testing.T) {
	alt, vy := 30.0, 4.0
	tti, ok := FallTime(alt, vy, StandardGravity)
	if !ok {
		t.Fatalf("expected solution")
	}
	fromTime := -VerticalVelocityAfter(vy, StandardGravity, tti)
	if d := math.Abs(fromTime - ImpactVerticalSpeed(alt, vy, StandardGravity)); d > 1e-9 {
		t.Fatalf("impact speed mismatch: %v", d)
	}
}

func TestInverseLerpAndClamp(t *testing.T) {
	if got := InverseLerp(100, 800, 450); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("InverseLerp = %v, want 0.5", got)
	}
	if got := InverseLerp(5, 5, 10); got != 0 {
		t.Fatalf("degenerate InverseLerp = %v, want 0", got)
	}
	if Clamp01(-0.2) != 0 || Clamp01(1.7) != 1 || Clamp01(0.4) != 0.4 {
		t.Fatalf("Clamp01 out of range")
	}
}
