package rotation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ToMat3 returns the rotation matrix of the unit quaternion q.
func ToMat3(q mgl64.Quat) mgl64.Mat3 {
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	// mgl64 matrices are column major.
	return mgl64.Mat3{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy),
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx),
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy),
	}
}

// FromMat3 recovers a unit quaternion from a rotation matrix. Of the four
// candidate components the largest is computed from the diagonal and the
// remaining signs are taken from the off-diagonal terms.
func FromMat3(m mgl64.Mat3) mgl64.Quat {
	d0, d1, d2 := m.At(0, 0), m.At(1, 1), m.At(2, 2)

	q0 := math.Sqrt(clip01((d0 + d1 + d2 + 1) / 4))
	q1 := math.Sqrt(clip01((d0 - d1 - d2 + 1) / 4))
	q2 := math.Sqrt(clip01((-d0 + d1 - d2 + 1) / 4))
	q3 := math.Sqrt(clip01((-d0 - d1 + d2 + 1) / 4))

	switch {
	case q0 >= q1 && q0 >= q2 && q0 >= q3:
		q1 *= sign(m.At(2, 1) - m.At(1, 2))
		q2 *= sign(m.At(0, 2) - m.At(2, 0))
		q3 *= sign(m.At(1, 0) - m.At(0, 1))
	case q1 >= q2 && q1 >= q3:
		q0 *= sign(m.At(2, 1) - m.At(1, 2))
		q2 *= sign(m.At(1, 0) + m.At(0, 1))
		q3 *= sign(m.At(0, 2) + m.At(2, 0))
	case q2 >= q3:
		q0 *= sign(m.At(0, 2) - m.At(2, 0))
		q1 *= sign(m.At(1, 0) + m.At(0, 1))
		q3 *= sign(m.At(2, 1) + m.At(1, 2))
	default:
		q0 *= sign(m.At(1, 0) - m.At(0, 1))
		q1 *= sign(m.At(2, 0) + m.At(0, 2))
		q2 *= sign(m.At(2, 1) + m.At(1, 2))
	}
	return mgl64.Quat{W: q0, V: mgl64.Vec3{q1, q2, q3}}
}

// AxisMatrix returns the rotation of angle radians about a coordinate axis.
func AxisMatrix(a Axis, angle float64) mgl64.Mat3 {
	switch a {
	case AxisX:
		return mgl64.Rotate3DX(angle)
	case AxisY:
		return mgl64.Rotate3DY(angle)
	default:
		return mgl64.Rotate3DZ(angle)
	}
}

// EulerMatrix composes R(order[0]) R(order[1]) R(order[2]) from radians.
func EulerMatrix(e mgl64.Vec3, order Order) mgl64.Mat3 {
	return AxisMatrix(order[0], e[0]).Mul3(AxisMatrix(order[1], e[1]).Mul3(AxisMatrix(order[2], e[2])))
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
