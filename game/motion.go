package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"rtc-game/protocol"
)

// Movement tuning, per second for velocities and per tick for rotation.
const (
	WalkVelocity = 1.8
	RunVelocity  = 5.0
	RotateStep   = 0.05
)

func velocity(state protocol.MovementState) float64 {
	switch state {
	case protocol.Walk:
		return WalkVelocity
	case protocol.Run:
		return RunVelocity
	}
	return 0
}

// DeriveMovement maps held keys to a movement state.
func DeriveMovement(axes Axes) protocol.MovementState {
	if axes.X == 0 && axes.Z == 0 {
		return protocol.Idle
	}
	if axes.Sprint {
		return protocol.Run
	}
	return protocol.Walk
}

func toVec(v protocol.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func fromVec(v mgl64.Vec3) protocol.Vec3 {
	return protocol.Vec3{v[0], v[1], v[2]}
}

func toQuat(q protocol.Quat) mgl64.Quat {
	return mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}
}

func fromQuat(q mgl64.Quat) protocol.Quat {
	return protocol.Quat{q.V[0], q.V[1], q.V[2], q.W}
}

// upAxis normalizes up, falling back to +Y for a degenerate vector.
func upAxis(up protocol.Vec3) mgl64.Vec3 {
	axis := toVec(up)
	if axis.Len() == 0 {
		return mgl64.Vec3{0, 1, 0}
	}
	return axis.Normalize()
}

func unwrapRad(r float64) float64 {
	return math.Atan2(math.Sin(r), math.Cos(r))
}

// heading is the camera-relative facing for a key direction.
func heading(axes Axes, azimuth float64, up mgl64.Vec3) mgl64.Quat {
	angle := unwrapRad(math.Atan2(axes.X, axes.Z) + azimuth)
	return mgl64.QuatRotate(angle, up)
}

// displacement is the key direction scaled by speed and dt, turned into
// camera space.
func displacement(axes Axes, speed, dt, azimuth float64, up mgl64.Vec3) mgl64.Vec3 {
	ease := mgl64.Vec3{axes.X, 0, axes.Z}.Mul(speed * dt)
	return mgl64.QuatRotate(azimuth, up).Rotate(ease)
}

// angleBetween is the rotation angle separating two unit quaternions.
func angleBetween(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Dot(b))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}

// rotateTowards turns from toward target by at most step radians.
func rotateTowards(from, target mgl64.Quat, step float64) mgl64.Quat {
	if from.Dot(target) < 0 {
		target = target.Scale(-1)
	}
	angle := angleBetween(from, target)
	if angle == 0 {
		return target
	}
	t := step / angle
	if t >= 1 {
		return target
	}
	return mgl64.QuatSlerp(from, target, t).Normalize()
}
