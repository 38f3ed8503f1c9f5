package skeleton

import (
	"errors"
	"fmt"
)

// ErrTopology is wrapped by errors describing a parent array that is not a
// single tree in topological order.
var ErrTopology = errors.New("skeleton: invalid topology")

// ErrUnknownJoint is wrapped when a joint name is not part of a skeleton.
var ErrUnknownJoint = errors.New("skeleton: unknown joint")

// ShapeError reports arrays whose dimensions disagree with the skeleton,
// the frame count or the rotation representation.
type ShapeError struct {
	Field string
	Msg   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("skeleton: shape of %s: %s", e.Field, e.Msg)
}

func shapeErrorf(field, format string, args ...any) error {
	return &ShapeError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
