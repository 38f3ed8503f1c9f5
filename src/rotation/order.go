package rotation

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Axis names one of the three coordinate axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Unit returns the unit vector along the axis.
func (a Axis) Unit() mgl64.Vec3 {
	var v mgl64.Vec3
	v[a] = 1
	return v
}

// String returns the lower-case axis letter.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis accepts x, y or z in either case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(s) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("rotation: unknown axis %q", s)
}

// Order is a Tait-Bryan axis sequence. Euler angle k is the rotation about
// Order[k].
type Order [3]Axis

var (
	XYZ = Order{AxisX, AxisY, AxisZ}
	XZY = Order{AxisX, AxisZ, AxisY}
	YXZ = Order{AxisY, AxisX, AxisZ}
	YZX = Order{AxisY, AxisZ, AxisX}
	ZXY = Order{AxisZ, AxisX, AxisY}
	ZYX = Order{AxisZ, AxisY, AxisX}
)

// ParseOrder parses a three letter order such as "zxy" or "ZXY".
func ParseOrder(s string) (Order, error) {
	if len(s) != 3 {
		return Order{}, fmt.Errorf("rotation: order %q must have three axes", s)
	}
	var o Order
	for i := range 3 {
		a, err := ParseAxis(s[i : i+1])
		if err != nil {
			return Order{}, fmt.Errorf("rotation: order %q: %w", s, err)
		}
		o[i] = a
	}
	if !o.Valid() {
		return Order{}, fmt.Errorf("rotation: order %q repeats an axis", s)
	}
	return o, nil
}

// Valid reports whether the order uses each axis exactly once.
func (o Order) Valid() bool {
	var seen [3]bool
	for _, a := range o {
		if a < AxisX || a > AxisZ || seen[a] {
			return false
		}
		seen[a] = true
	}
	return true
}

// Reverse returns the order read backwards.
func (o Order) Reverse() Order {
	return Order{o[2], o[1], o[0]}
}

// even reports whether the order is a cyclic permutation of xyz.
func (o Order) even() bool {
	return (o[1]-o[0]+3)%3 == 1
}

func (o Order) String() string {
	return o[0].String() + o[1].String() + o[2].String()
}
