package game

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"avatarsync/palette"
)

type customization struct {
	color  string
	head   int
	height float64
}

type recordingSink struct {
	inputs         []Input
	customizations []customization
}

func (r *recordingSink) EmitInput(x, y float64) {
	r.inputs = append(r.inputs, Input{X: x, Y: y})
}

func (r *recordingSink) EmitCustomization(colorHex string, head int, height float64) {
	r.customizations = append(r.customizations, customization{colorHex, head, height})
}

func newTestAvatar(t *testing.T, id string, local bool, pool *palette.Pool) *AvatarState {
	t.Helper()
	return NewAvatarState(AvatarConfig{
		ID:     id,
		Name:   id,
		Local:  local,
		Pool:   pool,
		Anchor: mgl64.Vec3{0, 1, 0},
	})
}

func addTestAvatar(t *testing.T, s *State, id string, local bool) *AvatarState {
	t.Helper()
	st := newTestAvatar(t, id, local, nil)
	av, err := NewAvatar(VariantDancer, st)
	if err != nil {
		t.Fatalf("NewAvatar: %v", err)
	}
	if err := s.AddAvatar(av); err != nil {
		t.Fatalf("AddAvatar: %v", err)
	}
	return st
}

func vecNear(a, b mgl64.Vec3, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func TestSetMovementBlockedWhenCannotMove(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.CanMove = false

	for _, in := range []Input{{1, 0}, {-0.3, 0.7}, {0, 0}, {1, 1}} {
		a.SetMovement(in.X, in.Y, true)
		if a.Movement != (mgl64.Vec3{}) {
			t.Fatalf("input %v: movement = %v, want zero", in, a.Movement)
		}
		if a.AnimSpeed != 0 {
			t.Fatalf("input %v: anim speed = %f, want 0", in, a.AnimSpeed)
		}
	}
}

func TestSetMovementScalesBySpeed(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.SetMovement(0.6, -0.8, true)

	want := mgl64.Vec3{0.6 * DefaultSpeed, 0, -0.8 * DefaultSpeed}
	if !vecNear(a.Movement, want, 1e-12) {
		t.Fatalf("movement = %v, want %v", a.Movement, want)
	}
	if math.Abs(a.AnimSpeed-1) > 1e-12 {
		t.Fatalf("anim speed = %f, want 1", a.AnimSpeed)
	}
}

func TestSetMovementFacesInputDirection(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)

	for _, in := range []Input{{1, 0}, {0, 1}, {-1, 0}, {0, -1}, {0.3, -0.9}, {-2, 5}} {
		a.SetMovement(in.X, in.Y, true)
		forward := a.OrientationTarget.Rotate(mgl64.Vec3{0, 0, 1})
		want := mgl64.Vec3{in.X, 0, in.Y}.Normalize()
		if !vecNear(forward, want, 1e-9) {
			t.Fatalf("input %v: forward = %v, want %v", in, forward, want)
		}
		up := a.OrientationTarget.Rotate(mgl64.Vec3{0, 1, 0})
		if !vecNear(up, mgl64.Vec3{0, 1, 0}, 1e-9) {
			t.Fatalf("input %v: up drifted to %v", in, up)
		}
	}
}

func TestSetMovementZeroInputKeepsTarget(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.SetMovement(1, 0, true)
	before := a.OrientationTarget

	a.SetMovement(0, 0, true)
	if a.OrientationTarget != before {
		t.Fatalf("zero input changed the target: %v -> %v", before, a.OrientationTarget)
	}
	if a.AnimSpeed != 0 {
		t.Fatalf("anim speed = %f, want 0", a.AnimSpeed)
	}
}

func TestSetMovementWithoutRotateKeepsTarget(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.SetMovement(0, 1, false)
	if a.OrientationTarget != mgl64.QuatIdent() {
		t.Fatalf("rotate=false must not touch the target")
	}
}

func TestUpdateLocalSuppressesIdleInput(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	sink := &recordingSink{}

	a.UpdateLocal(0.1, Input{}, sink)
	if len(sink.inputs) != 0 {
		t.Fatalf("idle avatar with idle stick must not emit, got %v", sink.inputs)
	}

	a.UpdateLocal(0.1, Input{X: 1}, sink)
	if len(sink.inputs) != 1 {
		t.Fatalf("moving stick must emit, got %d events", len(sink.inputs))
	}

	// the stop itself is sent once
	a.UpdateLocal(0.1, Input{}, sink)
	if len(sink.inputs) != 2 {
		t.Fatalf("stopping must emit once, got %d events", len(sink.inputs))
	}
	if sink.inputs[1] != (Input{}) {
		t.Fatalf("stop event = %v, want zero", sink.inputs[1])
	}

	a.UpdateLocal(0.1, Input{}, sink)
	if len(sink.inputs) != 2 {
		t.Fatalf("standing still must stay quiet, got %d events", len(sink.inputs))
	}
}

func TestUpdateLocalReconcilesTowardHost(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.Position = mgl64.Vec3{1, 0, 2}
	a.HostPosition = mgl64.Vec3{5, 0, -2}

	dt := 0.2
	a.UpdateLocal(dt, Input{X: 0.5, Y: 0.5}, nil)

	m := mgl64.Vec3{0.5 * DefaultSpeed, 0, 0.5 * DefaultSpeed}
	c := mgl64.Vec3{1, 0, 2}
	p := mgl64.Vec3{5, 0, -2}
	want := c.Add(m.Add(p.Sub(c).Mul(0.25)).Mul(dt))
	if !vecNear(a.Position, want, 1e-12) {
		t.Fatalf("position = %v, want %v", a.Position, want)
	}
}

func TestUpdateLocalConvergesGeometrically(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.HostPosition = mgl64.Vec3{10, 0, 0}

	dt := 0.1
	prev := a.HostPosition.Sub(a.Position).Len()
	for i := 0; i < 200; i++ {
		a.UpdateLocal(dt, Input{}, nil)
		d := a.HostPosition.Sub(a.Position).Len()
		ratio := d / prev
		if math.Abs(ratio-(1-0.25*dt)) > 1e-9 {
			t.Fatalf("tick %d: error ratio = %f, want %f", i, ratio, 1-0.25*dt)
		}
		prev = d
	}
	if prev > 0.1 {
		t.Fatalf("did not converge, remaining error %f", prev)
	}
}

func TestUpdateRemoteIgnoresHostPosition(t *testing.T) {
	a := newTestAvatar(t, "p2", false, nil)
	a.HostPosition = mgl64.Vec3{100, 0, 100}
	a.Movement = mgl64.Vec3{1, 0, 0}

	a.UpdateRemote(0.5)
	if a.Position != (mgl64.Vec3{0.5, 0, 0}) {
		t.Fatalf("position = %v, want (0.5,0,0)", a.Position)
	}
}

func TestFallRecoverySnapsToHost(t *testing.T) {
	for _, local := range []bool{true, false} {
		a := newTestAvatar(t, "p1", local, nil)
		a.Position = mgl64.Vec3{3, -25, 4}
		a.HostPosition = mgl64.Vec3{1, 2, 3}
		a.Velocity = mgl64.Vec3{0, -9, 0}

		if local {
			a.UpdateLocal(1.0/60, Input{}, nil)
		} else {
			a.UpdateRemote(1.0 / 60)
		}
		if a.Position != a.HostPosition {
			t.Fatalf("local=%v: position = %v, want exactly %v", local, a.Position, a.HostPosition)
		}
		if a.Velocity != (mgl64.Vec3{}) {
			t.Fatalf("local=%v: velocity = %v, want zero", local, a.Velocity)
		}
	}
}

func TestFallRecoveryNeedsHostDisagreement(t *testing.T) {
	a := newTestAvatar(t, "p1", false, nil)
	a.Position = mgl64.Vec3{3, -25, 4}
	a.HostPosition = mgl64.Vec3{0, -25, 0}

	if a.RecoverFall() {
		t.Fatalf("host agrees on the height, nothing to recover")
	}
	a.Position = mgl64.Vec3{0, -5, 0}
	a.HostPosition = mgl64.Vec3{0, 2, 0}
	if a.RecoverFall() {
		t.Fatalf("above the floor, nothing to recover")
	}
}

func TestTurnIsRateLimited(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.SetMovement(0, -1, true) // half a turn away from identity

	dt := 0.1
	a.Turn(dt)
	got := AngleBetween(mgl64.QuatIdent(), a.Orientation)
	want := DefaultTurnRate * dt
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("turned %f rad in one tick, want %f", got, want)
	}

	for i := 0; i < 10; i++ {
		a.Turn(dt)
	}
	if AngleBetween(a.Orientation, a.OrientationTarget) > 1e-6 {
		t.Fatalf("orientation should reach the target")
	}
}

func TestApplyHostUpdateLocalKeepsPrediction(t *testing.T) {
	a := newTestAvatar(t, "p1", true, nil)
	a.Position = mgl64.Vec3{1, 0, 1}
	a.Movement = mgl64.Vec3{2, 0, 0}

	a.ApplyHostUpdate(mgl64.Vec3{4, 0, 4}, mgl64.Vec3{0, 0, 9})
	if a.HostPosition != (mgl64.Vec3{4, 0, 4}) {
		t.Fatalf("host position not recorded: %v", a.HostPosition)
	}
	if a.Position != (mgl64.Vec3{1, 0, 1}) || a.Movement != (mgl64.Vec3{2, 0, 0}) {
		t.Fatalf("local prediction overwritten: pos=%v movement=%v", a.Position, a.Movement)
	}
}

func TestApplyHostUpdateRemoteTakesPush(t *testing.T) {
	a := newTestAvatar(t, "p2", false, nil)
	a.ApplyHostUpdate(mgl64.Vec3{4, 0, 4}, mgl64.Vec3{0, 0, 9})
	if a.Position != (mgl64.Vec3{4, 0, 4}) || a.Movement != (mgl64.Vec3{0, 0, 9}) {
		t.Fatalf("remote push not applied: pos=%v movement=%v", a.Position, a.Movement)
	}
	forward := a.OrientationTarget.Rotate(mgl64.Vec3{0, 0, 1})
	if !vecNear(forward, mgl64.Vec3{0, 0, 1}, 1e-9) {
		t.Fatalf("remote should face its movement, forward=%v", forward)
	}
}

func TestKnockbackDecays(t *testing.T) {
	a := newTestAvatar(t, "p1", false, nil)
	a.ApplyImpulse(mgl64.Vec3{6, 0, 0})

	a.UpdateRemote(0.1)
	if a.Position.X() <= 0 {
		t.Fatalf("impulse did not move the avatar: %v", a.Position)
	}
	for i := 0; i < 20; i++ {
		a.UpdateRemote(0.1)
	}
	if a.Velocity.Len() > 0.01 {
		t.Fatalf("velocity should have died out, still %v", a.Velocity)
	}
	if a.Position.X() > 6*0.1/(3*0.1)+0.5 {
		t.Fatalf("knockback carried too far: %v", a.Position)
	}
}
