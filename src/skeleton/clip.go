package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/rotation"
)

// Clip is a motion sampled at a fixed frame time: local rotations of every
// joint plus the root trajectory.
type Clip struct {
	Rotations Rotations
	Positions []mgl64.Vec3
	FrameTime float64
}

// Frames returns the frame count.
func (c *Clip) Frames() int {
	return c.Rotations.Frames()
}

// Validate checks every array against joints and the frame count.
func (c *Clip) Validate(joints int) error {
	frames := c.Frames()
	if err := c.Rotations.Check(frames, joints); err != nil {
		return err
	}
	if len(c.Positions) != frames {
		return shapeErrorf("positions", "%d root positions for %d frames", len(c.Positions), frames)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Clip) Clone() *Clip {
	return &Clip{
		Rotations: c.Rotations.Clone(),
		Positions: append([]mgl64.Vec3(nil), c.Positions...),
		FrameTime: c.FrameTime,
	}
}

// Slice returns the frames in [start, end) as a new clip.
func (c *Clip) Slice(start, end int) (*Clip, error) {
	if start < 0 || end > c.Frames() || start > end {
		return nil, shapeErrorf("frames", "range [%d, %d) outside %d frames", start, end, c.Frames())
	}
	return &Clip{
		Rotations: c.Rotations.slice(start, end),
		Positions: append([]mgl64.Vec3(nil), c.Positions[start:end]...),
		FrameTime: c.FrameTime,
	}, nil
}

// Convert returns a copy with rotations in another representation.
func (c *Clip) Convert(to Representation, world bool) *Clip {
	out := c.Clone()
	out.Rotations = c.Rotations.Convert(to, world)
	return out
}

// Combine composes two clips frame by frame: every rotation becomes a ⊗ b
// and root positions add. Both clips must share frame count, joint count
// and representation; nothing is broadcast. The frame time of a is kept.
func Combine(a, b *Clip) (*Clip, error) {
	if a.Rotations.Repr != b.Rotations.Repr {
		return nil, shapeErrorf("rotations", "cannot combine %s with %s", a.Rotations.Repr, b.Rotations.Repr)
	}
	if a.Frames() != b.Frames() || a.Rotations.Joints() != b.Rotations.Joints() {
		return nil, shapeErrorf("rotations", "cannot combine %s with %s", formatShape(a.Rotations), formatShape(b.Rotations))
	}
	if err := a.Validate(a.Rotations.Joints()); err != nil {
		return nil, fmt.Errorf("combine: first clip: %w", err)
	}
	if err := b.Validate(b.Rotations.Joints()); err != nil {
		return nil, fmt.Errorf("combine: second clip: %w", err)
	}

	out := a.Clone()
	for f := range out.Rotations.Values {
		for j := range out.Rotations.Values[f] {
			out.Rotations.SetQuat(f, j, rotation.Mul(a.Rotations.Quat(f, j), b.Rotations.Quat(f, j)))
		}
		out.Positions[f] = a.Positions[f].Add(b.Positions[f])
	}
	return out, nil
}

// Scale multiplies every rotation angle and every root position by s.
// Rotation angles are scaled along the shortest arc from the identity.
func Scale(c *Clip, s float64) *Clip {
	out := c.Clone()
	for f := range out.Rotations.Values {
		for j := range out.Rotations.Values[f] {
			out.Rotations.SetQuat(f, j, rotation.Pow(c.Rotations.Quat(f, j), s))
		}
		out.Positions[f] = c.Positions[f].Mul(s)
	}
	return out
}
