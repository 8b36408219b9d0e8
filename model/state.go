package model

// KinematicState is one assembled snapshot of the vehicle, produced once per
// evaluation tick. It is a value; nothing mutates it after construction.
type KinematicState struct {
	Position Vec3
	Velocity Vec3
	Forward  Vec3 // unit heading

	MassKg float64

	// AltitudeAGL is computed from the ground probe, never sensed directly.
	AltitudeAGL float64

	// Timestamp is simulation time in seconds.
	Timestamp float64

	// BottomOffsetM is the fixed distance from the reference point down to
	// the lowest surface of the airframe.
	BottomOffsetM float64
}

// HorizontalSpeed returns the planar speed of the vehicle.
func (s KinematicState) HorizontalSpeed() float64 {
	return s.Velocity.Horizontal().Norm()
}

// Sample is the raw reading a sample source produces before the ground
// height is known.
type Sample struct {
	Position      Vec3
	Velocity      Vec3
	Forward       Vec3
	MassKg        float64
	Timestamp     float64
	BottomOffsetM float64
}
