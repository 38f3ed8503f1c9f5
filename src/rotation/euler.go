package rotation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// gimbalCos is the cos(middle angle) under which the first and last Euler
// axes are treated as aligned.
const gimbalCos = 1e-9

// FromEuler converts Euler angles in radians to a quaternion. With world set
// the rotations are applied in the listed order about fixed axes
// (q2 ⊗ q1 ⊗ q0); otherwise they compose intrinsically (q0 ⊗ q1 ⊗ q2).
func FromEuler(e mgl64.Vec3, order Order, world bool) mgl64.Quat {
	q0 := FromAngleAxis(e[0], order[0].Unit())
	q1 := FromAngleAxis(e[1], order[1].Unit())
	q2 := FromAngleAxis(e[2], order[2].Unit())
	if world {
		return Mul(q2, Mul(q1, q0))
	}
	return Mul(q0, Mul(q1, q2))
}

// ToEuler extracts Euler angles in radians for the given order. It is the
// inverse of FromEuler with the same world flag, up to the usual angle
// wrapping. At gimbal lock the last angle is reported as zero.
func ToEuler(q mgl64.Quat, order Order, world bool) mgl64.Vec3 {
	m := ToMat3(Normalize(q))
	if world {
		e := eulerFromMatrix(m, order.Reverse())
		return mgl64.Vec3{e[2], e[1], e[0]}
	}
	return eulerFromMatrix(m, order)
}

// eulerFromMatrix solves R = R_i(a) R_j(b) R_k(c) for (a, b, c).
func eulerFromMatrix(m mgl64.Mat3, order Order) mgl64.Vec3 {
	i, j, k := int(order[0]), int(order[1]), int(order[2])
	s := 1.0
	if !order.even() {
		s = -1
	}

	b := math.Asin(math.Max(-1, math.Min(1, s*m.At(i, k))))
	if math.Cos(b) < gimbalCos {
		a := math.Atan2(s*m.At(k, j), m.At(j, j))
		return mgl64.Vec3{a, b, 0}
	}
	a := math.Atan2(-s*m.At(j, k), m.At(k, k))
	c := math.Atan2(-s*m.At(i, j), m.At(i, i))
	return mgl64.Vec3{a, b, c}
}

// FromEulerDegrees is FromEuler for angles in degrees.
func FromEulerDegrees(e mgl64.Vec3, order Order, world bool) mgl64.Quat {
	return FromEuler(Radians(e), order, world)
}

// ToEulerDegrees is ToEuler returning degrees.
func ToEulerDegrees(q mgl64.Quat, order Order, world bool) mgl64.Vec3 {
	return Degrees(ToEuler(q, order, world))
}

// Radians converts each component from degrees.
func Radians(e mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{mgl64.DegToRad(e[0]), mgl64.DegToRad(e[1]), mgl64.DegToRad(e[2])}
}

// Degrees converts each component from radians.
func Degrees(e mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{mgl64.RadToDeg(e[0]), mgl64.RadToDeg(e[1]), mgl64.RadToDeg(e[2])}
}
