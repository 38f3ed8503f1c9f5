package ik

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/stat"
)

// Constraint pins the global position of one joint at one frame.
type Constraint struct {
	Frame  int
	Joint  int
	Target mgl64.Vec3
}

// ConstraintsFromPositions pins the listed joints on every frame to the
// given global positions, e.g. the forward kinematics of another clip.
func ConstraintsFromPositions(positions [][]mgl64.Vec3, joints []int) []Constraint {
	out := make([]Constraint, 0, len(positions)*len(joints))
	for f, frame := range positions {
		for _, j := range joints {
			out = append(out, Constraint{Frame: f, Joint: j, Target: frame[j]})
		}
	}
	return out
}

// MovingAverage returns the means of every window of consecutive values.
func MovingAverage(xs []float64, window int) []float64 {
	if window <= 0 || window > len(xs) {
		return nil
	}
	out := make([]float64, 0, len(xs)-window+1)
	for i := window; i <= len(xs); i++ {
		out = append(out, stat.Mean(xs[i-window:i], nil))
	}
	return out
}
