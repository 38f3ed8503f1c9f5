// Package rotation implements the quaternion and Euler angle algebra used
// by skeletons and clips.
//
// Quaternions are mgl64.Quat values (W scalar, V = x, y, z) and compose with
// the Hamilton product: in a.Mul(b) the right operand is applied first.
// Angles are radians throughout this package.
package rotation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/logger"
)

// Epsilon is the length below which a quaternion or axis is degenerate.
const Epsilon = 1e-8

// slerpLinearAngle is the angle under which Slerp falls back to a
// normalized linear blend.
const slerpLinearAngle = 0.01

// Identity returns the identity rotation.
func Identity() mgl64.Quat {
	return mgl64.QuatIdent()
}

// FromArray builds a quaternion from (w, x, y, z).
func FromArray(v []float64) mgl64.Quat {
	return mgl64.Quat{W: v[0], V: mgl64.Vec3{v[1], v[2], v[3]}}
}

// ToArray stores q as (w, x, y, z) into dst, which must hold four values.
func ToArray(q mgl64.Quat, dst []float64) {
	dst[0], dst[1], dst[2], dst[3] = q.W, q.V[0], q.V[1], q.V[2]
}

// Mul returns the Hamilton product a ⊗ b.
func Mul(a, b mgl64.Quat) mgl64.Quat {
	return a.Mul(b)
}

// Conjugate negates the vector part.
func Conjugate(q mgl64.Quat) mgl64.Quat {
	return mgl64.Quat{W: q.W, V: q.V.Mul(-1)}
}

// Inverse is the conjugate of q. It assumes q has unit length.
func Inverse(q mgl64.Quat) mgl64.Quat {
	return Conjugate(q)
}

// Negate returns -q, which encodes the same rotation.
func Negate(q mgl64.Quat) mgl64.Quat {
	return mgl64.Quat{W: -q.W, V: q.V.Mul(-1)}
}

// Normalize scales q to unit length. A quaternion shorter than Epsilon is
// replaced by the identity.
func Normalize(q mgl64.Quat) mgl64.Quat {
	l := q.Len()
	if l < Epsilon {
		logger.Logger().Debug("rotation: degenerate quaternion replaced by identity", "length", l)
		return Identity()
	}
	return q.Scale(1 / l)
}

// Canonical returns the representative of q with a non-negative W.
func Canonical(q mgl64.Quat) mgl64.Quat {
	if q.W < 0 {
		return Negate(q)
	}
	return q
}

// Equal reports whether a and b encode the same rotation within tol,
// treating q and -q as equal.
func Equal(a, b mgl64.Quat, tol float64) bool {
	return near(a, b, tol) || near(a, Negate(b), tol)
}

func near(a, b mgl64.Quat, tol float64) bool {
	if math.Abs(a.W-b.W) > tol {
		return false
	}
	for i := range 3 {
		if math.Abs(a.V[i]-b.V[i]) > tol {
			return false
		}
	}
	return true
}

// Rotate applies the unit quaternion q to v.
func Rotate(q mgl64.Quat, v mgl64.Vec3) mgl64.Vec3 {
	return Mul(Mul(q, mgl64.Quat{V: v}), Conjugate(q)).V
}

// safeAxis normalizes axis. An axis shorter than Epsilon has no usable
// direction and is replaced by the x axis.
func safeAxis(axis mgl64.Vec3) mgl64.Vec3 {
	l := axis.Len()
	if l < Epsilon {
		logger.Logger().Debug("rotation: degenerate axis replaced by x", "length", l)
		return AxisX.Unit()
	}
	return axis.Mul(1 / l)
}

// FromAngleAxis builds the rotation of angle radians about axis.
func FromAngleAxis(angle float64, axis mgl64.Vec3) mgl64.Quat {
	s, c := math.Sincos(angle / 2)
	return mgl64.Quat{W: c, V: safeAxis(axis).Mul(s)}
}

// ToAngleAxis returns the rotation angle in [0, π] and its unit axis. The
// identity yields angle 0 and the x axis.
func ToAngleAxis(q mgl64.Quat) (float64, mgl64.Vec3) {
	q = Canonical(Normalize(q))
	s := q.V.Len()
	if s < Epsilon {
		return 0, AxisX.Unit()
	}
	return 2 * math.Atan2(s, q.W), q.V.Mul(1 / s)
}

// Between returns the shortest rotation taking direction a onto b.
func Between(a, b mgl64.Vec3) mgl64.Quat {
	a, b = safeAxis(a), safeAxis(b)
	d := a.Dot(b)
	if d < -1+1e-12 {
		axis := AxisX.Unit().Cross(a)
		if axis.Len() < 1e-6 {
			axis = AxisY.Unit().Cross(a)
		}
		return FromAngleAxis(math.Pi, axis)
	}
	return Normalize(mgl64.Quat{W: 1 + d, V: a.Cross(b)})
}

// Slerp interpolates between a and b along the shorter arc. When the arc is
// shorter than 0.01 radians it returns the normalized linear blend.
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	d := a.Dot(b)
	if d < 0 {
		b = Negate(b)
		d = -d
	}
	if d > 1 {
		d = 1
	}
	omega := math.Acos(d)
	if omega < slerpLinearAngle {
		return Normalize(a.Scale(1 - t).Add(b.Scale(t)))
	}
	so := math.Sin(omega)
	wa := math.Sin((1-t)*omega) / so
	wb := math.Sin(t*omega) / so
	return a.Scale(wa).Add(b.Scale(wb))
}

// Pow scales the rotation angle of q by s, i.e. slerp from the identity.
func Pow(q mgl64.Quat, s float64) mgl64.Quat {
	return Slerp(Identity(), q, s)
}
