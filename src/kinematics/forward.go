// Package kinematics evaluates world-space joint positions and orientations
// from local rotations, rest offsets and the root trajectory.
package kinematics

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/logger"
	"motionToolkit/src/rotation"
	"motionToolkit/src/skeleton"
)

// Pose is the result of forward kinematics, indexed [frame][joint].
type Pose struct {
	Positions [][]mgl64.Vec3
	// Transforms holds global rotation matrices when requested.
	Transforms [][]mgl64.Mat3
}

// Options tunes an evaluation.
type Options struct {
	// Transforms keeps the global rotation of every joint in the Pose.
	Transforms bool
}

// Forward evaluates every frame on the calling goroutine.
func Forward(s *skeleton.Skeleton, rots skeleton.Rotations, root []mgl64.Vec3, opts Options) (*Pose, error) {
	return (&Evaluator{}).Forward(s, rots, root, opts)
}

// ForwardAnimation evaluates the clip of a on its own skeleton.
func ForwardAnimation(a *skeleton.Animation, opts Options) (*Pose, error) {
	return Forward(a.Skeleton, a.Clip.Rotations, a.Clip.Positions, opts)
}

// LocalMatrix returns the local rotation matrix of joint j at frame f.
// Quaternions are normalized first; Euler angles compose intrinsically.
func LocalMatrix(rots skeleton.Rotations, f, j int) mgl64.Mat3 {
	v := rots.Values[f][j]
	if rots.Repr.Kind == skeleton.Quaternion {
		return rotation.ToMat3(rotation.Normalize(rotation.FromArray(v)))
	}
	return rotation.EulerMatrix(rotation.Radians(mgl64.Vec3{v[0], v[1], v[2]}), rots.Repr.Order)
}

func check(s *skeleton.Skeleton, rots skeleton.Rotations, root []mgl64.Vec3) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("kinematics: %w", err)
	}
	if rots.Frames() != len(root) {
		return &skeleton.ShapeError{Field: "root positions", Msg: fmt.Sprintf("%d positions for %d frames", len(root), rots.Frames())}
	}
	if err := rots.Check(len(root), s.Len()); err != nil {
		return err
	}
	return nil
}

// frame evaluates one frame into pos and glb:
//
//	G_0 = R_0, P_0 = root
//	G_i = G_p R_i, P_i = P_p + G_p o_i
func frame(s *skeleton.Skeleton, rots skeleton.Rotations, f int, root mgl64.Vec3, pos []mgl64.Vec3, glb []mgl64.Mat3) {
	glb[0] = LocalMatrix(rots, f, 0)
	pos[0] = root
	for i := 1; i < len(s.Joints); i++ {
		p := s.Joints[i].Parent
		glb[i] = glb[p].Mul3(LocalMatrix(rots, f, i))
		pos[i] = pos[p].Add(glb[p].Mul3x1(s.Joints[i].Offset))
	}
}

func newPose(frames, joints int, transforms bool) *Pose {
	pose := &Pose{Positions: make([][]mgl64.Vec3, frames)}
	for f := range pose.Positions {
		pose.Positions[f] = make([]mgl64.Vec3, joints)
	}
	if transforms {
		pose.Transforms = make([][]mgl64.Mat3, frames)
		for f := range pose.Transforms {
			pose.Transforms[f] = make([]mgl64.Mat3, joints)
		}
	}
	return pose
}

// evalRange fills frames [lo, hi) of pose.
func evalRange(s *skeleton.Skeleton, rots skeleton.Rotations, root []mgl64.Vec3, pose *Pose, lo, hi int) {
	scratch := make([]mgl64.Mat3, s.Len())
	for f := lo; f < hi; f++ {
		glb := scratch
		if pose.Transforms != nil {
			glb = pose.Transforms[f]
		}
		frame(s, rots, f, root[f], pose.Positions[f], glb)
	}
}

func logDone(start time.Time, frames, joints, workers int) {
	logger.Logger().Debug("kinematics: forward pass", "frames", frames, "joints", joints, "workers", workers, "elapsed", time.Since(start))
}
