package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/logger"
	"motionToolkit/src/rotation"
)

// Animation pairs a skeleton with a clip whose joint axis matches it.
// Operations that relabel or rescale the skeleton keep both in lockstep.
type Animation struct {
	Skeleton *Skeleton
	Clip     *Clip
}

// Validate checks the skeleton and the clip against it.
func (a *Animation) Validate() error {
	if err := a.Skeleton.Validate(); err != nil {
		return err
	}
	if a.Clip.FrameTime <= 0 {
		return shapeErrorf("frame time", "%v is not positive", a.Clip.FrameTime)
	}
	return a.Clip.Validate(a.Skeleton.Len())
}

// Names returns the joint names in index order.
func (a *Animation) Names() []string {
	return a.Skeleton.Names()
}

// FrameTime returns the seconds between frames.
func (a *Animation) FrameTime() float64 {
	return a.Clip.FrameTime
}

// Clone returns a deep copy.
func (a *Animation) Clone() *Animation {
	return &Animation{Skeleton: a.Skeleton.Clone(), Clip: a.Clip.Clone()}
}

// Rescale scales every rest offset by alpha and the root trajectory about
// its first frame.
func (a *Animation) Rescale(alpha float64) {
	for i := range a.Skeleton.Joints {
		a.Skeleton.Joints[i].Offset = a.Skeleton.Joints[i].Offset.Mul(alpha)
	}
	pos := a.Clip.Positions
	for f := 1; f < len(pos); f++ {
		pos[f] = pos[0].Add(pos[f].Sub(pos[0]).Mul(alpha))
	}
}

// Rotate turns the whole motion by theta radians about axis through the
// origin.
func (a *Animation) Rotate(theta float64, axis mgl64.Vec3) {
	q := rotation.FromAngleAxis(theta, axis)
	rots := a.Clip.Rotations
	for f := range rots.Values {
		rots.SetQuat(f, 0, rotation.Mul(q, rots.Quat(f, 0)))
		a.Clip.Positions[f] = rotation.Rotate(q, a.Clip.Positions[f])
	}
}

// NormalizeHeight rescales so the rest-pose extent along up equals target.
// A flat skeleton is left unchanged.
func (a *Animation) NormalizeHeight(target float64, up rotation.Axis) {
	h := a.Skeleton.Height(up)
	if h < rotation.Epsilon {
		logger.Logger().Warn("skeleton: zero height, normalization skipped", "axis", up)
		return
	}
	a.Rescale(target / h)
}

// Subset keeps only the named joints, in skeleton order. A kept joint
// hangs from its nearest kept ancestor with the offsets of the dropped
// joints in between summed into its own; rotations of dropped joints are
// discarded. The root must be kept.
func (a *Animation) Subset(names []string) (*Animation, error) {
	keep := make([]bool, a.Skeleton.Len())
	for _, name := range names {
		i := a.Skeleton.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
		}
		keep[i] = true
	}
	if !keep[0] {
		return nil, fmt.Errorf("%w: subset must keep the root %q", ErrTopology, a.Skeleton.Joints[0].Name)
	}

	newIndex := make([]int, len(keep))
	var seq []int
	var joints []Joint
	for i, src := range a.Skeleton.Joints {
		newIndex[i] = -1
		if !keep[i] {
			continue
		}
		j := Joint{Name: src.Name, Parent: -1, Offset: src.Offset}
		p := src.Parent
		for p >= 0 && !keep[p] {
			j.Offset = j.Offset.Add(a.Skeleton.Joints[p].Offset)
			p = a.Skeleton.Joints[p].Parent
		}
		if p >= 0 {
			j.Parent = newIndex[p]
		}
		newIndex[i] = len(joints)
		seq = append(seq, i)
		joints = append(joints, j)
	}

	clip := a.Clip.Clone()
	clip.Rotations = a.Clip.Rotations.Permute(seq)
	return &Animation{Skeleton: &Skeleton{Joints: joints}, Clip: clip}, nil
}
