package core

import "math"

// StandardGravity is the default gravitational acceleration (m/s²).
const StandardGravity = 9.81

// Clamp01 limits x to [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// InverseLerp returns where v lies between a and b, unclamped. A degenerate
// range yields 0.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return (v - a) / (b - a)
}

// FallTime solves alt + vy·t − ½g·t² = 0 and returns the later root.
// ok is false when the discriminant is negative or the root is not positive.
func FallTime(alt, vy, g float64) (t float64, ok bool) {
	a := -0.5 * g
	b := vy
	c := alt

	disc := b*b - 4*a*c
	if disc < 0 {
		return math.Inf(1), false
	}

	sq := math.Sqrt(disc)
	t1 := (-b + sq) / (2 * a)
	t2 := (-b - sq) / (2 * a)
	t = math.Max(t1, t2)
	if t <= 0 {
		return math.Inf(1), false
	}
	return t, true
}

// HeightAfter returns the altitude after t seconds of free fall.
func HeightAfter(alt, vy, g, t float64) float64 {
	return alt + vy*t - 0.5*g*t*t
}

// VerticalVelocityAfter returns the vertical velocity after t seconds of free fall.
func VerticalVelocityAfter(vy, g, t float64) float64 {
	return vy - g*t
}

// ImpactVerticalSpeed is the downward speed on reaching the ground, from
// energy conservation. It stays correct for a non-zero initial vertical velocity.
func ImpactVerticalSpeed(alt, vy, g float64) float64 {
	return math.Sqrt(math.Max(0, vy*vy+2*g*alt))
}

// KineticEnergy returns ½·m·|v|².
func KineticEnergy(massKg, speedSq float64) float64 {
	return 0.5 * massKg * speedSq
}
