package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var worldUp = mgl64.Vec3{0, 1, 0}

// SetMovement maps stick input to the per-second displacement, the
// animation speed signal and, when rotate is set, a new facing target.
func (a *AvatarState) SetMovement(x, y float64, rotate bool) {
	if !a.CanMove {
		a.Movement = mgl64.Vec3{}
		a.AnimSpeed = 0
		return
	}
	speed := a.tuning.Speed
	a.Movement = mgl64.Vec3{x * speed, 0, y * speed}
	a.AnimSpeed = math.Hypot(x, y)

	// zero input keeps the last facing
	if rotate && (x != 0 || y != 0) {
		a.OrientationTarget = LookRotation(mgl64.Vec3{x, 0, y}, worldUp)
	}
}

// UpdateLocal advances the avatar driven by this instance's own input.
// The input event is suppressed only when the avatar was already still and
// the stick is still centered.
func (a *AvatarState) UpdateLocal(dt float64, in Input, sink EventSink) {
	if !(in.IsZero() && a.Movement == (mgl64.Vec3{})) && sink != nil {
		sink.EmitInput(in.X, in.Y)
	}
	a.SetMovement(in.X, in.Y, true)

	diff := a.HostPosition.Sub(a.Position)
	step := a.Movement.Add(diff.Mul(a.tuning.CorrectionGain))
	a.Position = a.Position.Add(step.Mul(dt))

	a.finishTick(dt)
}

// UpdateRemote advances an avatar controlled elsewhere by its last known
// movement only.
func (a *AvatarState) UpdateRemote(dt float64) {
	a.Position = a.Position.Add(a.Movement.Mul(dt))
	a.finishTick(dt)
}

func (a *AvatarState) finishTick(dt float64) {
	a.Position = a.Position.Add(a.Velocity.Mul(dt))
	a.Velocity = a.Velocity.Mul(max(0, 1-VelocityDamping*dt))
	a.RecoverFall()
	a.Turn(dt)
}

// RecoverFall snaps the avatar back to the host position once it dropped
// under the world floor. It reports whether a snap happened.
func (a *AvatarState) RecoverFall() bool {
	if a.Position.Y() < a.tuning.FloorY && a.Position.Y() != a.HostPosition.Y() {
		a.Position = a.HostPosition
		a.Velocity = mgl64.Vec3{}
		return true
	}
	return false
}

// Turn rotates the orientation toward its target by at most TurnRate*dt.
func (a *AvatarState) Turn(dt float64) {
	a.Orientation = RotateTowards(a.Orientation, a.OrientationTarget, a.tuning.TurnRate*dt)
}

// ApplyHostUpdate records an authoritative push. Remote avatars take the
// pushed position and movement as-is; the local avatar only learns the
// host position and keeps predicting from its own input.
func (a *AvatarState) ApplyHostUpdate(pos, movement mgl64.Vec3) {
	a.HostPosition = pos
	if a.isLocal {
		return
	}
	a.Position = pos
	a.Movement = movement
	if movement.X() != 0 || movement.Z() != 0 {
		a.OrientationTarget = LookRotation(mgl64.Vec3{movement.X(), 0, movement.Z()}, worldUp)
	}
}

// ApplyImpulse adds to the physical velocity (knockback and the like).
func (a *AvatarState) ApplyImpulse(v mgl64.Vec3) {
	a.Velocity = a.Velocity.Add(v)
}

// LookRotation returns the rotation that turns +Z onto dir while keeping up
// as close to +Y as possible.
func LookRotation(dir, up mgl64.Vec3) mgl64.Quat {
	if dir.LenSqr() == 0 {
		return mgl64.QuatIdent()
	}
	f := dir.Normalize()
	r := up.Cross(f)
	if r.LenSqr() < 1e-12 {
		r = mgl64.Vec3{1, 0, 0}.Cross(f)
	}
	r = r.Normalize()
	u := f.Cross(r)
	return mgl64.Mat4ToQuat(mgl64.Mat3FromCols(r, u, f).Mat4()).Normalize()
}

// RotateTowards moves from toward to by at most maxRadians.
func RotateTowards(from, to mgl64.Quat, maxRadians float64) mgl64.Quat {
	d := math.Min(math.Abs(from.Dot(to)), 1)
	angle := 2 * math.Acos(d)
	if angle < 1e-9 || maxRadians >= angle {
		return to
	}
	if maxRadians <= 0 {
		return from
	}
	return mgl64.QuatSlerp(from, to, maxRadians/angle).Normalize()
}

// AngleBetween is the rotation angle in radians separating two orientations.
func AngleBetween(p, q mgl64.Quat) float64 {
	d := math.Min(math.Abs(p.Normalize().Dot(q.Normalize())), 1)
	return 2 * math.Acos(d)
}
