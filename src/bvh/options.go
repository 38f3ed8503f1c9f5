package bvh

import (
	"motionToolkit/src/rotation"
	"motionToolkit/src/skeleton"
)

// Mode selects the rotation representation produced by Parse.
type Mode int

const (
	// FileOrder keeps Euler angles in the order of the first CHANNELS
	// declaration.
	FileOrder Mode = iota
	// Reordered converts Euler angles to Options.Order.
	Reordered
	// Quaternions converts every rotation to a unit quaternion.
	Quaternions
)

// Options controls Parse and Load. The zero value keeps Euler angles in file
// order, every joint and every frame.
type Options struct {
	Mode  Mode
	Order rotation.Order
	// World interprets and produces Euler angles as rotations about fixed
	// axes instead of intrinsic ones.
	World bool
	// Joints restricts the result to the named joints. Names are matched
	// after namespace stripping.
	Joints []string
	// Start and End select frames [Start, End); End 0 means the last frame.
	Start, End int
	// KeepNamespaces disables stripping "ns:" prefixes from joint names.
	KeepNamespaces bool
}

func (o Options) representation(fileOrder rotation.Order) skeleton.Representation {
	switch o.Mode {
	case Reordered:
		return skeleton.EulerIn(o.Order)
	case Quaternions:
		return skeleton.Quaternions()
	}
	return skeleton.EulerIn(fileOrder)
}

// WriteOptions controls Serialize and Write.
type WriteOptions struct {
	// Order is the channel order written for quaternion clips. Euler clips
	// are written in their own order. Zero means xyz.
	Order rotation.Order
	// World treats Euler angles as extrinsic when converting quaternions.
	World bool
}
