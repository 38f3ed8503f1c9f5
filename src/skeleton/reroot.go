package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/logger"
	"motionToolkit/src/rotation"
)

// Reroot makes the named joint the root of the hierarchy.
func (a *Animation) Reroot(name string) error {
	r := a.Skeleton.Index(name)
	if r < 0 {
		return fmt.Errorf("reroot: %w: %q", ErrUnknownJoint, name)
	}
	return a.RerootAt(r)
}

// RerootAt makes joint r the root. The edge between the root and its child
// on the way to r is flipped: the former root hangs from that child with
// the negated offset and the inverse of the child's rotation, while the
// child takes over the composed rotation and the root trajectory. Deeper
// joints are reached by flipping one edge at a time along their path.
// Joints are relabeled depth-first from the new root.
func (a *Animation) RerootAt(r int) error {
	if err := a.Skeleton.Validate(); err != nil {
		return fmt.Errorf("reroot: %w", err)
	}
	if err := a.Clip.Validate(a.Skeleton.Len()); err != nil {
		return fmt.Errorf("reroot: %w", err)
	}
	if r < 0 || r >= a.Skeleton.Len() {
		return fmt.Errorf("reroot: joint index %d out of range [0, %d)", r, a.Skeleton.Len())
	}

	path := a.Skeleton.Path(r)
	for len(path) > 1 {
		newIndex := a.flipRoot(path[1])
		next := path[:0]
		for _, j := range path[1:] {
			next = append(next, newIndex[j])
		}
		path = next
	}
	logger.Logger().Debug("skeleton: rerooted", "root", a.Skeleton.Joints[0].Name, "joints", a.Skeleton.Len())
	return nil
}

// flipRoot swaps the root with its child c and returns the old-to-new index
// map.
func (a *Animation) flipRoot(c int) []int {
	joints := a.Skeleton.Joints
	rots := a.Clip.Rotations
	offset := joints[c].Offset

	for f := range rots.Values {
		q0 := rotation.Normalize(rots.Quat(f, 0))
		qc := rotation.Normalize(rots.Quat(f, c))
		a.Clip.Positions[f] = a.Clip.Positions[f].Add(rotation.Rotate(q0, offset))
		rots.SetQuat(f, 0, rotation.Inverse(qc))
		rots.SetQuat(f, c, rotation.Mul(q0, qc))
	}

	offsets := a.Skeleton.Offsets()
	offsets[0] = offset.Mul(-1)
	offsets[c] = mgl64.Vec3{}

	seq, parents := relabel(a.Skeleton, c)
	next := make([]Joint, len(seq))
	newIndex := make([]int, len(seq))
	for k, old := range seq {
		next[k] = Joint{Name: joints[old].Name, Parent: parents[k], Offset: offsets[old]}
		newIndex[old] = k
	}
	a.Skeleton.Joints = next
	a.Clip.Rotations = rots.Permute(seq)
	return newIndex
}

// relabel walks the hierarchy as an undirected tree depth-first from start,
// visiting neighbors in ascending index order. seq[k] is the old index of
// new joint k and parents[k] the new index it was reached from.
func relabel(s *Skeleton, start int) (seq, parents []int) {
	n := s.Len()

	// Parents precede children, so every list comes out ascending.
	adj := make([][]int, n)
	for i := 1; i < n; i++ {
		p := s.Joints[i].Parent
		adj[i] = append(adj[i], p)
		adj[p] = append(adj[p], i)
	}

	type visit struct{ joint, from int }
	newIndex := make([]int, n)
	for i := range newIndex {
		newIndex[i] = -1
	}
	stack := []visit{{joint: start, from: -1}}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if newIndex[v.joint] >= 0 {
			continue
		}
		newIndex[v.joint] = len(seq)
		seq = append(seq, v.joint)
		parents = append(parents, v.from)

		nb := adj[v.joint]
		for k := len(nb) - 1; k >= 0; k-- {
			if newIndex[nb[k]] < 0 {
				stack = append(stack, visit{joint: nb[k], from: newIndex[v.joint]})
			}
		}
	}
	return seq, parents
}
