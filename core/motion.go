package core

import (
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/impact-predictor/model"
)

// MotionModel moves a vehicle reference point forward in time.
type MotionModel interface {
	// Advance returns the position dt seconds after t, starting from p.
	Advance(p model.Vec3, t, dt float64) model.Vec3
}

// VelocityModel is implemented by motion models that know their exact
// velocity. Vehicles using other models fall back to a finite difference.
type VelocityModel interface {
	VelocityAt(t float64) model.Vec3
}

// HoverMotion holds the vehicle in place.
type HoverMotion struct{}

// Advance for hover does nothing.
func (HoverMotion) Advance(p model.Vec3, t, dt float64) model.Vec3 { return p }

// WanderMotion flies toward random waypoints inside a cylinder around Home.
type WanderMotion struct {
	Home         model.Vec3
	RadiusM      float64
	SpeedMps     float64
	MinAltitudeM float64

	rng       *rand.Rand
	target    model.Vec3
	hasTarget bool
}

// NewWanderMotion builds a seeded wander model so runs are reproducible.
func NewWanderMotion(home model.Vec3, radiusM, speedMps, minAltitudeM float64, seed uint64) *WanderMotion {
	return &WanderMotion{
		Home:         home,
		RadiusM:      radiusM,
		SpeedMps:     speedMps,
		MinAltitudeM: minAltitudeM,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Advance steps toward the current waypoint and picks a new one on arrival.
func (w *WanderMotion) Advance(p model.Vec3, t, dt float64) model.Vec3 {
	if !w.hasTarget || w.target.Sub(p).Norm() < 0.5 {
		w.target = w.pickTarget()
		w.hasTarget = true
	}

	delta := w.target.Sub(p)
	dist := delta.Norm()
	stepLen := w.SpeedMps * dt
	if dist <= stepLen || dist == 0 {
		return w.target
	}
	return p.Add(delta.Scale(stepLen / dist))
}

func (w *WanderMotion) pickTarget() model.Vec3 {
	angle := w.rng.Float64() * 2 * math.Pi
	r := w.RadiusM * math.Sqrt(w.rng.Float64())
	y := w.Home.Y + (w.rng.Float64()*2-1)*2
	return model.Vec3{
		X: w.Home.X + r*math.Sin(angle),
		Y: math.Max(w.MinAltitudeM, y),
		Z: w.Home.Z + r*math.Cos(angle),
	}
}

// BallisticMotion is unpowered free fall with a constant horizontal velocity.
// It is evaluated in closed form from the release instant, so step size does
// not accumulate error. The body stops on the first step below the ground.
type BallisticMotion struct {
	Origin      model.Vec3
	Initial     model.Vec3 // velocity at release, wind already applied
	GravityMps2 float64
	ReleasedAt  float64
	Ground      GroundProbe

	cache   GroundCache
	landed  bool
	landedT float64
}

// NewBallisticMotion starts a fall at origin. The horizontal part of the
// initial velocity is velocity plus the wind velocity.
func NewBallisticMotion(origin, velocity model.Vec3, wind model.WindVector, g float64, releasedAt float64, ground GroundProbe) *BallisticMotion {
	w := wind.Velocity()
	return &BallisticMotion{
		Origin:      origin,
		Initial:     model.Vec3{X: velocity.X + w.X, Y: velocity.Y, Z: velocity.Z + w.Z},
		GravityMps2: g,
		ReleasedAt:  releasedAt,
		Ground:      ground,
	}
}

// PositionAt evaluates the free-fall trajectory at absolute time t.
func (b *BallisticMotion) PositionAt(t float64) model.Vec3 {
	tau := t - b.ReleasedAt
	return model.Vec3{
		X: b.Origin.X + b.Initial.X*tau,
		Y: b.Origin.Y + b.Initial.Y*tau - 0.5*b.GravityMps2*tau*tau,
		Z: b.Origin.Z + b.Initial.Z*tau,
	}
}

// VelocityAt returns the free-fall velocity, or zero once landed.
func (b *BallisticMotion) VelocityAt(t float64) model.Vec3 {
	if b.landed && t > b.landedT {
		return model.Vec3{}
	}
	tau := t - b.ReleasedAt
	return model.Vec3{X: b.Initial.X, Y: b.Initial.Y - b.GravityMps2*tau, Z: b.Initial.Z}
}

// Advance moves along the trajectory and clamps to the ground on landing.
func (b *BallisticMotion) Advance(p model.Vec3, t, dt float64) model.Vec3 {
	if b.landed {
		return p
	}
	next := b.PositionAt(t + dt)
	height, cache, _ := ResolveGround(b.Ground, b.cache, next.X, next.Z)
	b.cache = cache
	if next.Y <= height {
		next.Y = height
		b.landed = true
		b.landedT = t + dt
	}
	return next
}

// Landed reports whether the body has reached the ground.
func (b *BallisticMotion) Landed() bool { return b.landed }

// FiniteDifferenceSampler estimates velocity from consecutive positions.
type FiniteDifferenceSampler struct {
	prev     model.Vec3
	prevT    float64
	hasPrev  bool
	velocity model.Vec3
}

// Update feeds a new position and returns the velocity estimate. The first
// update and non-increasing timestamps keep the previous estimate.
func (s *FiniteDifferenceSampler) Update(p model.Vec3, t float64) model.Vec3 {
	if s.hasPrev && t > s.prevT {
		s.velocity = p.Sub(s.prev).Scale(1 / (t - s.prevT))
	}
	s.prev, s.prevT, s.hasPrev = p, t, true
	return s.velocity
}

// Velocity returns the latest estimate.
func (s *FiniteDifferenceSampler) Velocity() model.Vec3 { return s.velocity }

// Reset forgets history.
func (s *FiniteDifferenceSampler) Reset() { *s = FiniteDifferenceSampler{} }

// Vehicle is the simulated airframe. It is the SampleSource the engine reads.
type Vehicle struct {
	def     model.VehicleDefinition
	home    model.Vec3
	powered MotionModel

	position model.Vec3
	forward  model.Vec3
	time     float64
	motion   MotionModel
	sampler  FiniteDifferenceSampler
	fall     *BallisticMotion
}

// NewVehicle places a vehicle at home under powered motion.
func NewVehicle(def model.VehicleDefinition, home model.Vec3, powered MotionModel) *Vehicle {
	if powered == nil {
		powered = HoverMotion{}
	}
	def.MassKg = model.ClampMass(def.MassKg)
	v := &Vehicle{def: def, home: home, powered: powered}
	v.Reset()
	return v
}

// Definition returns the vehicle definition.
func (v *Vehicle) Definition() model.VehicleDefinition { return v.def }

// SetMassKg changes the mass, floored at model.MinMassKg.
func (v *Vehicle) SetMassKg(kg float64) { v.def.MassKg = model.ClampMass(kg) }

// Time returns the vehicle clock in seconds.
func (v *Vehicle) Time() float64 { return v.time }

// Position returns the reference point.
func (v *Vehicle) Position() model.Vec3 { return v.position }

// Velocity returns the exact velocity when falling, else the sampled one.
func (v *Vehicle) Velocity() model.Vec3 {
	if vm, ok := v.motion.(VelocityModel); ok {
		return vm.VelocityAt(v.time)
	}
	return v.sampler.Velocity()
}

// Released reports whether the vehicle is in free fall or has landed.
func (v *Vehicle) Released() bool { return v.fall != nil }

// Landed reports whether a released vehicle has reached the ground.
func (v *Vehicle) Landed() bool { return v.fall != nil && v.fall.Landed() }

// Advance moves the vehicle dt seconds forward.
func (v *Vehicle) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	v.position = v.motion.Advance(v.position, v.time, dt)
	v.time += dt
	v.sampler.Update(v.position, v.time)

	if h := v.Velocity().Horizontal(); h.Norm() > 1e-6 {
		v.forward = model.Vec3{X: h.X, Z: h.Z}.Normalize()
	}
}

// Release cuts power and switches to free fall from the current state.
func (v *Vehicle) Release(wind model.WindVector, g float64, ground GroundProbe) {
	if v.fall != nil {
		return
	}
	v.fall = NewBallisticMotion(v.position, v.Velocity(), wind, g, v.time, ground)
	v.motion = v.fall
}

// Reset returns the vehicle to home under powered motion. The clock keeps running.
func (v *Vehicle) Reset() {
	v.position = v.home
	v.forward = model.Vec3{Z: 1}
	v.motion = v.powered
	v.fall = nil
	v.sampler.Reset()
	v.sampler.Update(v.position, v.time)
}

// Sample implements SampleSource.
func (v *Vehicle) Sample() model.Sample {
	return model.Sample{
		Position:      v.position,
		Velocity:      v.Velocity(),
		Forward:       v.forward,
		MassKg:        v.def.MassKg,
		Timestamp:     v.time,
		BottomOffsetM: v.def.BottomOffsetM,
	}
}

// Observation returns the step observation used for ground-crossing detection.
func (v *Vehicle) Observation() Observation {
	return Observation{Position: v.position, Velocity: v.Velocity(), Timestamp: v.time}
}
