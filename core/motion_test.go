package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/impact-predictor/model"
)

func TestHoverMotionNoChange(t *testing.T) {
	v := NewVehicle(model.VehicleDefinition{MassKg: 1}, model.Vec3{X: 1, Y: 2, Z: 3}, HoverMotion{})
	v.Advance(0.5)
	v.Advance(0.5)
	if v.Position() != (model.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("hover should not move the vehicle, got %+v", v.Position())
	}
	if v.Velocity() != (model.Vec3{}) {
		t.Fatalf("hover velocity = %+v, want zero", v.Velocity())
	}
	if v.Time() != 1 {
		t.Fatalf("Time = %v, want 1", v.Time())
	}
}

func TestWanderMotionStaysInBounds(t *testing.T) {
	home := model.Vec3{Y: 30}
	w := NewWanderMotion(home, 20, 6, 10, 42)
	v := NewVehicle(model.VehicleDefinition{MassKg: 1}, home, w)

	moved := false
	for i := 0; i < 2000; i++ {
		v.Advance(0.05)
		p := v.Position()
		if p != home {
			moved = true
		}
		if d := p.Horizontal().DistanceTo(home.Horizontal()); d > 20+1e-9 {
			t.Fatalf("step %d: wandered %v m from home, radius is 20", i, d)
		}
		if p.Y < 10-1e-9 {
			t.Fatalf("step %d: altitude %v below minimum", i, p.Y)
		}
		if s := v.Velocity().Norm(); s > 6+1e-6 {
			t.Fatalf("step %d: sampled speed %v exceeds wander speed", i, s)
		}
	}
	if !moved {
		t.Fatalf("expected wander motion to move the vehicle")
	}
}

func TestWanderMotionIsSeeded(t *testing.T) {
	a := NewVehicle(model.VehicleDefinition{MassKg: 1}, model.Vec3{Y: 30}, NewWanderMotion(model.Vec3{Y: 30}, 20, 6, 10, 7))
	b := NewVehicle(model.VehicleDefinition{MassKg: 1}, model.Vec3{Y: 30}, NewWanderMotion(model.Vec3{Y: 30}, 20, 6, 10, 7))
	for i := 0; i < 100; i++ {
		a.Advance(0.1)
		b.Advance(0.1)
	}
	if a.Position() != b.Position() {
		t.Fatalf("same seed diverged: %+v vs %+v", a.Position(), b.Position())
	}
}

func TestFiniteDifferenceSampler(t *testing.T) {
	var s FiniteDifferenceSampler
	if v := s.Update(model.Vec3{X: 1}, 0); v != (model.Vec3{}) {
		t.Fatalf("first update velocity = %+v, want zero", v)
	}
	if v := s.Update(model.Vec3{X: 3, Y: -1}, 0.5); v != (model.Vec3{X: 4, Y: -2}) {
		t.Fatalf("velocity = %+v, want {4 -2 0}", v)
	}
	if v := s.Update(model.Vec3{X: 100}, 0.5); v != (model.Vec3{X: 4, Y: -2}) {
		t.Fatalf("zero dt should keep previous estimate, got %+v", v)
	}
	s.Reset()
	if s.Velocity() != (model.Vec3{}) {
		t.Fatalf("Reset should clear velocity")
	}
}

func TestReleasedVehicleFollowsClosedForm(t *testing.T) {
	v := NewVehicle(model.VehicleDefinition{MassKg: 1}, model.Vec3{Y: 16}, HoverMotion{})
	v.Release(model.WindVector{SpeedMps: 5}, 8, FlatGround{})
	if !v.Released() || v.Landed() {
		t.Fatalf("released=%v landed=%v, want released and airborne", v.Released(), v.Landed())
	}

	for i := 0; i < 8; i++ {
		v.Advance(0.25)
	}
	if !v.Landed() {
		t.Fatalf("expected landing at t=2, position %+v", v.Position())
	}
	if v.Position() != (model.Vec3{Y: 0, Z: 10}) {
		t.Fatalf("landing position = %+v, want {0 0 10}", v.Position())
	}
	if v.Velocity() != (model.Vec3{Y: -16, Z: 5}) {
		t.Fatalf("velocity at landing step = %+v, want {0 -16 5}", v.Velocity())
	}

	v.Advance(0.25)
	if v.Position() != (model.Vec3{Y: 0, Z: 10}) || v.Velocity() != (model.Vec3{}) {
		t.Fatalf("landed vehicle moved: pos %+v vel %+v", v.Position(), v.Velocity())
	}
}

func TestBallisticMotionClampsToTerrain(t *testing.T) {
	b := NewBallisticMotion(model.Vec3{Y: 20}, model.Vec3{}, model.WindVector{}, StandardGravity, 0, FlatGround{Height: 3})
	p := b.Origin
	now := 0.0
	for !b.Landed() && now < 10 {
		p = b.Advance(p, now, 0.1)
		now += 0.1
	}
	if !b.Landed() {
		t.Fatalf("ballistic body never landed")
	}
	if p.Y != 3 {
		t.Fatalf("landed at y=%v, want terrain height 3", p.Y)
	}
	wantT := math.Sqrt(2 * 17 / StandardGravity)
	if now < wantT || now > wantT+0.1+1e-9 {
		t.Fatalf("landed at t=%v, want within one step after %v", now, wantT)
	}
}

func TestVehicleResetReturnsHome(t *testing.T) {
	home := model.Vec3{X: 4, Y: 25, Z: -2}
	v := NewVehicle(model.VehicleDefinition{MassKg: 2}, home, HoverMotion{})
	v.Release(model.WindVector{}, StandardGravity, FlatGround{})
	v.Advance(1)
	v.Reset()
	if v.Released() || v.Position() != home {
		t.Fatalf("after Reset released=%v pos=%+v", v.Released(), v.Position())
	}
	v.Advance(0.5)
	if v.Position() != home {
		t.Fatalf("reset vehicle should hover, got %+v", v.Position())
	}
}

func TestVehicleMassFloor(t *testing.T) {
	v := NewVehicle(model.VehicleDefinition{MassKg: 0}, model.Vec3{}, nil)
	if got := v.Sample().MassKg; got != model.MinMassKg {
		t.Fatalf("mass = %v, want floor %v", got, model.MinMassKg)
	}
	v.SetMassKg(3.5)
	if got := v.Sample().MassKg; got != 3.5 {
		t.Fatalf("mass = %v, want 3.5", got)
	}
}

func TestConstantWindSetters(t *testing.T) {
	w := NewConstantWind(-3, 370)
	if got := w.Current(); got.SpeedMps != 0 || got.DirectionDeg != 10 {
		t.Fatalf("NewConstantWind normalised to %+v, want {0 10}", got)
	}
	w.SetSpeed(7.5)
	w.SetDirection(-90)
	if got := w.Current(); got.SpeedMps != 7.5 || got.DirectionDeg != 270 {
		t.Fatalf("Current = %+v, want {7.5 270}", got)
	}
	w.SetSpeed(math.NaN())
	if got := w.Current().SpeedMps; got != 0 {
		t.Fatalf("NaN speed should clamp to 0, got %v", got)
	}
	if got := w.Current().Cardinal(); got != "W" {
		t.Fatalf("Cardinal = %q, want W", got)
	}
}
