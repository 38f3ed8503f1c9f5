// Package skeleton holds the joint hierarchy and per-frame motion data:
// a Skeleton is an index arena of joints in topological order, a Clip the
// rotations and root trajectory sampled at a fixed frame time.
package skeleton

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/rotation"
)

// Joint is one node of the hierarchy. Parent is -1 for the root and
// otherwise the index of an earlier joint.
type Joint struct {
	Name   string
	Parent int
	Offset mgl64.Vec3
}

// Skeleton is a joint hierarchy. Joint 0 is the root and every parent index
// is smaller than the index of its child.
type Skeleton struct {
	Joints []Joint
}

// New validates joints and wraps them in a Skeleton.
func New(joints []Joint) (*Skeleton, error) {
	s := &Skeleton{Joints: joints}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the topological ordering of the parent array.
func (s *Skeleton) Validate() error {
	if len(s.Joints) == 0 {
		return fmt.Errorf("%w: no joints", ErrTopology)
	}
	for i, j := range s.Joints {
		switch {
		case i == 0 && j.Parent != -1:
			return fmt.Errorf("%w: root %q has parent %d", ErrTopology, j.Name, j.Parent)
		case i > 0 && (j.Parent < 0 || j.Parent >= i):
			return fmt.Errorf("%w: joint %d (%q) has parent %d", ErrTopology, i, j.Name, j.Parent)
		}
	}
	return nil
}

// Len returns the number of joints.
func (s *Skeleton) Len() int {
	return len(s.Joints)
}

// Parents returns the parent index of every joint.
func (s *Skeleton) Parents() []int {
	parents := make([]int, len(s.Joints))
	for i, j := range s.Joints {
		parents[i] = j.Parent
	}
	return parents
}

// Names returns the joint names in index order.
func (s *Skeleton) Names() []string {
	names := make([]string, len(s.Joints))
	for i, j := range s.Joints {
		names[i] = j.Name
	}
	return names
}

// Offsets returns the rest offsets in index order.
func (s *Skeleton) Offsets() []mgl64.Vec3 {
	offsets := make([]mgl64.Vec3, len(s.Joints))
	for i, j := range s.Joints {
		offsets[i] = j.Offset
	}
	return offsets
}

// Index returns the index of the first joint called name, or -1.
func (s *Skeleton) Index(name string) int {
	for i, j := range s.Joints {
		if j.Name == name {
			return i
		}
	}
	return -1
}

// Children returns the child lists of every joint, each ascending.
func (s *Skeleton) Children() [][]int {
	children := make([][]int, len(s.Joints))
	for i := 1; i < len(s.Joints); i++ {
		p := s.Joints[i].Parent
		children[p] = append(children[p], i)
	}
	return children
}

// Path returns the joints from the root down to i, inclusive.
func (s *Skeleton) Path(i int) []int {
	var path []int
	for ; i >= 0; i = s.Joints[i].Parent {
		path = append(path, i)
	}
	for a, b := 0, len(path)-1; a < b; a, b = a+1, b-1 {
		path[a], path[b] = path[b], path[a]
	}
	return path
}

// RestPositions accumulates offsets from the root with every rotation at
// identity and the root at the origin.
func (s *Skeleton) RestPositions() []mgl64.Vec3 {
	pos := make([]mgl64.Vec3, len(s.Joints))
	for i := 1; i < len(s.Joints); i++ {
		pos[i] = pos[s.Joints[i].Parent].Add(s.Joints[i].Offset)
	}
	return pos
}

// Height is the rest-pose extent of the skeleton along axis.
func (s *Skeleton) Height(axis rotation.Axis) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range s.RestPositions() {
		lo = math.Min(lo, p[axis])
		hi = math.Max(hi, p[axis])
	}
	return hi - lo
}

// Clone returns a deep copy.
func (s *Skeleton) Clone() *Skeleton {
	return &Skeleton{Joints: append([]Joint(nil), s.Joints...)}
}
