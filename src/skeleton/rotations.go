package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/rotation"
)

// Kind tags the rotation representation of a clip.
type Kind int

const (
	// Euler stores three angles in degrees per joint, value k being the
	// angle about Order[k].
	Euler Kind = iota
	// Quaternion stores unit quaternions as (w, x, y, z).
	Quaternion
)

// Representation is the tagged rotation encoding of a clip. Order is only
// meaningful for Euler.
type Representation struct {
	Kind  Kind
	Order rotation.Order
}

// EulerIn returns the Euler representation with the given order.
func EulerIn(order rotation.Order) Representation {
	return Representation{Kind: Euler, Order: order}
}

// Quaternions returns the quaternion representation.
func Quaternions() Representation {
	return Representation{Kind: Quaternion}
}

// Size is the number of values stored per joint and frame.
func (r Representation) Size() int {
	if r.Kind == Quaternion {
		return 4
	}
	return 3
}

func (r Representation) String() string {
	if r.Kind == Quaternion {
		return "quaternion"
	}
	return "euler(" + r.Order.String() + ")"
}

// Rotations is a frames × joints × Size() block of local joint rotations.
type Rotations struct {
	Repr   Representation
	Values [][][]float64
}

// NewRotations allocates identity rotations.
func NewRotations(repr Representation, frames, joints int) Rotations {
	size := repr.Size()
	backing := make([]float64, frames*joints*size)
	values := make([][][]float64, frames)
	for f := range values {
		values[f] = make([][]float64, joints)
		for j := range values[f] {
			off := (f*joints + j) * size
			values[f][j] = backing[off : off+size : off+size]
			if repr.Kind == Quaternion {
				values[f][j][0] = 1
			}
		}
	}
	return Rotations{Repr: repr, Values: values}
}

// Frames returns the number of frames.
func (r Rotations) Frames() int {
	return len(r.Values)
}

// Joints returns the joint count of the first frame, or 0.
func (r Rotations) Joints() int {
	if len(r.Values) == 0 {
		return 0
	}
	return len(r.Values[0])
}

// Check verifies the block is frames × joints × Size().
func (r Rotations) Check(frames, joints int) error {
	if r.Repr.Kind != Euler && r.Repr.Kind != Quaternion {
		return shapeErrorf("rotations", "unknown representation %d", r.Repr.Kind)
	}
	if r.Repr.Kind == Euler && !r.Repr.Order.Valid() {
		return shapeErrorf("rotations", "invalid Euler order %v", r.Repr.Order)
	}
	if len(r.Values) != frames {
		return shapeErrorf("rotations", "%d frames, want %d", len(r.Values), frames)
	}
	size := r.Repr.Size()
	for f, frame := range r.Values {
		if len(frame) != joints {
			return shapeErrorf("rotations", "frame %d has %d joints, want %d", f, len(frame), joints)
		}
		for j, v := range frame {
			if len(v) != size {
				return shapeErrorf("rotations", "frame %d joint %d has %d values, want %d for %s", f, j, len(v), size, r.Repr)
			}
		}
	}
	return nil
}

// Quat returns the rotation of joint j at frame f as a quaternion. Euler
// values compose intrinsically.
func (r Rotations) Quat(f, j int) mgl64.Quat {
	return r.quat(f, j, false)
}

func (r Rotations) quat(f, j int, world bool) mgl64.Quat {
	v := r.Values[f][j]
	if r.Repr.Kind == Quaternion {
		return rotation.FromArray(v)
	}
	return rotation.FromEulerDegrees(mgl64.Vec3{v[0], v[1], v[2]}, r.Repr.Order, world)
}

// SetQuat stores q for joint j at frame f in the block's representation.
func (r Rotations) SetQuat(f, j int, q mgl64.Quat) {
	r.setQuat(f, j, q, false)
}

func (r Rotations) setQuat(f, j int, q mgl64.Quat, world bool) {
	v := r.Values[f][j]
	if r.Repr.Kind == Quaternion {
		rotation.ToArray(q, v)
		return
	}
	e := rotation.ToEulerDegrees(q, r.Repr.Order, world)
	v[0], v[1], v[2] = e[0], e[1], e[2]
}

// Convert returns a copy in another representation. The world flag selects
// extrinsic Euler composition for both the source and the target.
func (r Rotations) Convert(to Representation, world bool) Rotations {
	if to == r.Repr {
		return r.Clone()
	}
	out := NewRotations(to, r.Frames(), r.Joints())
	for f := range r.Values {
		for j := range r.Values[f] {
			out.setQuat(f, j, r.quat(f, j, world), world)
		}
	}
	return out
}

// Clone returns a deep copy.
func (r Rotations) Clone() Rotations {
	out := NewRotations(r.Repr, r.Frames(), r.Joints())
	for f := range r.Values {
		for j := range r.Values[f] {
			copy(out.Values[f][j], r.Values[f][j])
		}
	}
	return out
}

// Permute reorders the joint axis so that joint k of the result is joint
// seq[k] of r.
func (r Rotations) Permute(seq []int) Rotations {
	out := NewRotations(r.Repr, r.Frames(), len(seq))
	for f := range r.Values {
		for k, j := range seq {
			copy(out.Values[f][k], r.Values[f][j])
		}
	}
	return out
}

func (r Rotations) slice(start, end int) Rotations {
	out := Rotations{Repr: r.Repr, Values: r.Values[start:end]}
	return out.Clone()
}

func formatShape(r Rotations) string {
	return fmt.Sprintf("%d×%d×%d", r.Frames(), r.Joints(), r.Repr.Size())
}
