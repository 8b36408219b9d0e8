package model

import "math"

// Vec3 is a world-frame vector in metres (or m/s for velocities).
// X points east, Y points up and Z points north.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Scale multiplies every component by k.
func (v Vec3) Scale(k float64) Vec3 { return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k} }

// SqrNorm returns the squared Euclidean norm.
func (v Vec3) SqrNorm() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

// Norm returns the Euclidean norm.
func (v Vec3) Norm() float64 { return math.Sqrt(v.SqrNorm()) }

// Normalize returns a unit vector in the same direction, or the zero vector.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// Horizontal drops the vertical component.
func (v Vec3) Horizontal() Vec2 { return Vec2{X: v.X, Z: v.Z} }

// Vec2 is a horizontal-plane vector using the world X (east) and Z (north) axes.
type Vec2 struct {
	X float64
	Z float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Z: v.Z + o.Z} }

// Scale multiplies both components by k.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Z: v.Z * k} }

// Norm returns the planar magnitude.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Z) }

// DistanceTo returns the planar distance between two points.
func (v Vec2) DistanceTo(o Vec2) float64 { return math.Hypot(v.X-o.X, v.Z-o.Z) }

// At lifts the planar vector to 3D with the given vertical component.
func (v Vec2) At(y float64) Vec3 { return Vec3{X: v.X, Y: y, Z: v.Z} }
