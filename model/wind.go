package model

import "math"

// WindVector is a constant wind described by speed and compass bearing.
// DirectionDeg follows the compass: 0 = north (+Z), 90 = east (+X).
type WindVector struct {
	SpeedMps     float64
	DirectionDeg float64
}

// Velocity converts the wind to a world-frame horizontal velocity.
func (w WindVector) Velocity() Vec3 {
	rad := w.DirectionDeg * math.Pi / 180
	return Vec3{
		X: w.SpeedMps * math.Sin(rad),
		Y: 0,
		Z: w.SpeedMps * math.Cos(rad),
	}
}

// Normalized clamps the speed to be non-negative and wraps the bearing into [0, 360).
func (w WindVector) Normalized() WindVector {
	speed := w.SpeedMps
	if !(speed > 0) || math.IsInf(speed, 0) {
		speed = 0
	}
	return WindVector{SpeedMps: speed, DirectionDeg: WrapDegrees(w.DirectionDeg)}
}

// Cardinal returns the eight-point compass label for the bearing.
func (w WindVector) Cardinal() string {
	d := WrapDegrees(w.DirectionDeg)
	switch {
	case d < 22.5 || d >= 337.5:
		return "N"
	case d < 67.5:
		return "NE"
	case d < 112.5:
		return "E"
	case d < 157.5:
		return "SE"
	case d < 202.5:
		return "S"
	case d < 247.5:
		return "SW"
	case d < 292.5:
		return "W"
	default:
		return "NW"
	}
}

// WrapDegrees maps any angle onto [0, 360).
func WrapDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}
