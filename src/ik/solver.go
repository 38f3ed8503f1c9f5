// Package ik fits joint rotations and the root trajectory to target global
// positions by gradient descent through forward kinematics.
//
// Rotations are optimized as unconstrained quaternions that are normalized
// inside the forward pass; gradients are computed analytically by a
// reverse sweep over the hierarchy and applied with Adam.
package ik

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"

	"motionToolkit/src/logger"
	"motionToolkit/src/rotation"
	"motionToolkit/src/skeleton"
)

type target struct {
	joint int
	pos   mgl64.Vec3
}

// Solver owns the optimization state of one IK problem: the parameters,
// the Adam moments and the step counter. Solvers share nothing and are not
// safe for concurrent use.
type Solver struct {
	skel    *skeleton.Skeleton
	frames  int
	offsets []mgl64.Vec3

	params []float64
	grad   []float64
	opt    *adam

	byFrame [][]target
	count   int
	steps   int

	// Results of the latest evaluation.
	positions [][]mgl64.Vec3
	frameSq   []float64
	evaluated bool

	// Per-frame scratch.
	norm   []mgl64.Quat
	length []float64
	local  []mgl64.Mat3
	global []mgl64.Mat3
	gP     []mgl64.Vec3
	gG     []mgl64.Mat3
}

// NewSolver sets up a problem over rots (frames × joints quaternions) and
// root (one position per frame). Constraints referencing the same frame and
// joint keep the last target. Every index is checked up front and reported
// as a *skeleton.ShapeError.
func NewSolver(s *skeleton.Skeleton, rots [][]mgl64.Quat, root []mgl64.Vec3, constraints []Constraint, cfg Config) (*Solver, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("ik: %w", err)
	}
	frames, joints := len(root), s.Len()
	if len(rots) != frames {
		return nil, &skeleton.ShapeError{Field: "rotations", Msg: fmt.Sprintf("%d frames for %d root positions", len(rots), frames)}
	}
	for f := range rots {
		if len(rots[f]) != joints {
			return nil, &skeleton.ShapeError{Field: "rotations", Msg: fmt.Sprintf("frame %d has %d joints, want %d", f, len(rots[f]), joints)}
		}
	}

	keyed := make(map[[2]int]int, len(constraints))
	var unique []Constraint
	for _, c := range constraints {
		if c.Frame < 0 || c.Frame >= frames || c.Joint < 0 || c.Joint >= joints {
			return nil, &skeleton.ShapeError{Field: "constraints", Msg: fmt.Sprintf("(frame %d, joint %d) outside %d×%d", c.Frame, c.Joint, frames, joints)}
		}
		key := [2]int{c.Frame, c.Joint}
		if i, ok := keyed[key]; ok {
			unique[i] = c
			continue
		}
		keyed[key] = len(unique)
		unique = append(unique, c)
	}

	cfg = cfg.withDefaults()
	n := frames*joints*4 + frames*3
	sv := &Solver{
		skel:      s,
		frames:    frames,
		offsets:   s.Offsets(),
		params:    make([]float64, n),
		grad:      make([]float64, n),
		opt:       newAdam(cfg, n),
		byFrame:   make([][]target, frames),
		count:     len(unique),
		positions: make([][]mgl64.Vec3, frames),
		frameSq:   make([]float64, frames),
		norm:      make([]mgl64.Quat, joints),
		length:    make([]float64, joints),
		local:     make([]mgl64.Mat3, joints),
		global:    make([]mgl64.Mat3, joints),
		gP:        make([]mgl64.Vec3, joints),
		gG:        make([]mgl64.Mat3, joints),
	}
	for _, c := range unique {
		sv.byFrame[c.Frame] = append(sv.byFrame[c.Frame], target{joint: c.Joint, pos: c.Target})
	}
	for f := range frames {
		sv.positions[f] = make([]mgl64.Vec3, joints)
		for j := range joints {
			rotation.ToArray(rots[f][j], sv.params[sv.rotIndex(f, j):])
		}
		o := sv.rootIndex(f)
		copy(sv.params[o:o+3], root[f][:])
	}
	return sv, nil
}

// NewSolverFromAnimation starts from the clip of a in whatever
// representation it is stored.
func NewSolverFromAnimation(a *skeleton.Animation, constraints []Constraint, cfg Config) (*Solver, error) {
	if err := a.Clip.Validate(a.Skeleton.Len()); err != nil {
		return nil, fmt.Errorf("ik: %w", err)
	}
	rots := make([][]mgl64.Quat, a.Clip.Frames())
	for f := range rots {
		rots[f] = make([]mgl64.Quat, a.Skeleton.Len())
		for j := range rots[f] {
			rots[f][j] = a.Clip.Rotations.Quat(f, j)
		}
	}
	return NewSolver(a.Skeleton, rots, a.Clip.Positions, constraints, cfg)
}

func (s *Solver) rotIndex(f, j int) int {
	return (f*s.skel.Len() + j) * 4
}

func (s *Solver) rootIndex(f int) int {
	return s.frames*s.skel.Len()*4 + f*3
}

// Step evaluates the loss and its gradient at the current parameters,
// applies one Adam update and returns the loss before the update.
func (s *Solver) Step() float64 {
	loss := s.evaluate(s.grad)
	s.opt.step(s.params, s.grad)
	s.steps++
	return loss
}

// Solve runs iterations steps, calling observe after each one when it is
// not nil, and returns the loss at the final parameters. Not reaching a
// small loss is not an error.
func (s *Solver) Solve(iterations int, observe func(iter int, loss float64)) float64 {
	start := time.Now()
	for i := range iterations {
		loss := s.Step()
		if observe != nil {
			observe(i, loss)
		}
	}
	loss := s.Evaluate()
	logger.Logger().Debug("ik: solved", "iterations", iterations, "loss", loss, "constraints", s.count, "elapsed", time.Since(start))
	return loss
}

// Evaluate recomputes the loss at the current parameters without touching
// the optimizer state.
func (s *Solver) Evaluate() float64 {
	return s.evaluate(nil)
}

// Steps returns the number of updates applied so far.
func (s *Solver) Steps() int {
	return s.steps
}

// FrameLoss returns the mean squared coordinate error of the constraints
// on frame f at the latest evaluation, or 0 when the frame has none.
func (s *Solver) FrameLoss(f int) float64 {
	if !s.evaluated {
		s.Evaluate()
	}
	if n := len(s.byFrame[f]); n > 0 {
		return s.frameSq[f] / float64(3*n)
	}
	return 0
}

// Losses returns FrameLoss for every frame.
func (s *Solver) Losses() []float64 {
	out := make([]float64, s.frames)
	for f := range out {
		out[f] = s.FrameLoss(f)
	}
	return out
}

// Positions returns the global joint positions of the latest evaluation.
func (s *Solver) Positions() [][]mgl64.Vec3 {
	if !s.evaluated {
		s.Evaluate()
	}
	out := make([][]mgl64.Vec3, s.frames)
	for f := range out {
		out[f] = append([]mgl64.Vec3(nil), s.positions[f]...)
	}
	return out
}

// Rotations returns the current rotations, normalized.
func (s *Solver) Rotations() [][]mgl64.Quat {
	out := make([][]mgl64.Quat, s.frames)
	for f := range out {
		out[f] = make([]mgl64.Quat, s.skel.Len())
		for j := range out[f] {
			out[f][j] = rotation.Normalize(s.quat(f, j))
		}
	}
	return out
}

// RootPositions returns the current root trajectory.
func (s *Solver) RootPositions() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, s.frames)
	for f := range out {
		out[f] = s.root(f)
	}
	return out
}

// Apply writes the current rotations and root trajectory into the clip of
// a, converting to its representation.
func (s *Solver) Apply(a *skeleton.Animation) error {
	if a.Skeleton.Len() != s.skel.Len() || a.Clip.Frames() != s.frames {
		return &skeleton.ShapeError{Field: "clip", Msg: fmt.Sprintf("%d×%d, solver has %d×%d", a.Clip.Frames(), a.Skeleton.Len(), s.frames, s.skel.Len())}
	}
	if err := a.Clip.Validate(a.Skeleton.Len()); err != nil {
		return fmt.Errorf("ik: %w", err)
	}
	for f, frame := range s.Rotations() {
		for j, q := range frame {
			a.Clip.Rotations.SetQuat(f, j, q)
		}
		a.Clip.Positions[f] = s.root(f)
	}
	return nil
}

func (s *Solver) quat(f, j int) mgl64.Quat {
	return rotation.FromArray(s.params[s.rotIndex(f, j):])
}

func (s *Solver) root(f int) mgl64.Vec3 {
	o := s.rootIndex(f)
	return mgl64.Vec3{s.params[o], s.params[o+1], s.params[o+2]}
}

// evaluate runs the forward pass over every frame and, when grad is not
// nil, overwrites it with the gradient of the loss. The loss is the mean
// of the squared coordinate errors over all constraints.
func (s *Solver) evaluate(grad []float64) float64 {
	if grad != nil {
		clear(grad)
	}
	for f := range s.frames {
		s.forwardFrame(f)
		var sq float64
		for _, c := range s.byFrame[f] {
			d := s.positions[f][c.joint].Sub(c.pos)
			sq += d.Dot(d)
		}
		s.frameSq[f] = sq
		if grad != nil && len(s.byFrame[f]) > 0 {
			s.backwardFrame(f, grad)
		}
	}
	s.evaluated = true
	if s.count == 0 {
		return 0
	}
	return floats.Sum(s.frameSq) / float64(3*s.count)
}

func (s *Solver) forwardFrame(f int) {
	pos := s.positions[f]
	for i, j := range s.skel.Joints {
		q := s.quat(f, i)
		l := q.Len()
		if l < rotation.Epsilon {
			s.norm[i], s.length[i] = rotation.Identity(), 0
		} else {
			s.norm[i], s.length[i] = q.Scale(1/l), l
		}
		s.local[i] = rotation.ToMat3(s.norm[i])
		if i == 0 {
			s.global[0] = s.local[0]
			pos[0] = s.root(f)
			continue
		}
		p := j.Parent
		s.global[i] = s.global[p].Mul3(s.local[i])
		pos[i] = pos[p].Add(s.global[p].Mul3x1(s.offsets[i]))
	}
}

// backwardFrame accumulates the gradient of frame f, which must have just
// been evaluated by forwardFrame. Children are visited before parents:
//
//	dR_i  = G_pᵀ dG_i
//	dG_p += dG_i R_iᵀ + dP_i o_iᵀ
//	dP_p += dP_i
func (s *Solver) backwardFrame(f int, grad []float64) {
	scale := 2 / float64(3*s.count)
	for i := range s.gP {
		s.gP[i] = mgl64.Vec3{}
		s.gG[i] = mgl64.Mat3{}
	}
	pos := s.positions[f]
	for _, c := range s.byFrame[f] {
		s.gP[c.joint] = s.gP[c.joint].Add(pos[c.joint].Sub(c.pos).Mul(scale))
	}

	for i := len(s.skel.Joints) - 1; i >= 0; i-- {
		var gR mgl64.Mat3
		if i == 0 {
			gR = s.gG[0]
		} else {
			p := s.skel.Joints[i].Parent
			gR = s.global[p].Transpose().Mul3(s.gG[i])
			s.gG[p] = s.gG[p].Add(s.gG[i].Mul3(s.local[i].Transpose())).Add(outer(s.gP[i], s.offsets[i]))
			s.gP[p] = s.gP[p].Add(s.gP[i])
		}
		if s.length[i] == 0 {
			continue
		}

		gn := matrixGradToQuat(s.norm[i], gR)
		n := [4]float64{s.norm[i].W, s.norm[i].V[0], s.norm[i].V[1], s.norm[i].V[2]}
		dot := n[0]*gn[0] + n[1]*gn[1] + n[2]*gn[2] + n[3]*gn[3]
		o := s.rotIndex(f, i)
		for k := range 4 {
			grad[o+k] += (gn[k] - n[k]*dot) / s.length[i]
		}
	}

	o := s.rootIndex(f)
	for k := range 3 {
		grad[o+k] += s.gP[0][k]
	}
}

// matrixGradToQuat maps a gradient on ToMat3(n) back to (w, x, y, z).
func matrixGradToQuat(n mgl64.Quat, g mgl64.Mat3) [4]float64 {
	w, x, y, z := n.W, n.V[0], n.V[1], n.V[2]
	g00, g01, g02 := g.At(0, 0), g.At(0, 1), g.At(0, 2)
	g10, g11, g12 := g.At(1, 0), g.At(1, 1), g.At(1, 2)
	g20, g21, g22 := g.At(2, 0), g.At(2, 1), g.At(2, 2)
	return [4]float64{
		2 * (-z*g01 + y*g02 + z*g10 - x*g12 - y*g20 + x*g21),
		2 * (y*g01 + z*g02 + y*g10 - 2*x*g11 - w*g12 + z*g20 + w*g21 - 2*x*g22),
		2 * (-2*y*g00 + x*g01 + w*g02 + x*g10 + z*g12 - w*g20 + z*g21 - 2*y*g22),
		2 * (-2*z*g00 - w*g01 + x*g02 + w*g10 - 2*z*g11 + y*g12 + x*g20 + y*g21),
	}
}

// outer returns a bᵀ.
func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	var m mgl64.Mat3
	for c := range 3 {
		for r := range 3 {
			m[c*3+r] = a[r] * b[c]
		}
	}
	return m
}
