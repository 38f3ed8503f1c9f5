package skeleton

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/rotation"
)

func vecNear(a, b mgl64.Vec3, eps float64) bool {
	for i := range 3 {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// branching returns Hips with a spine chain and a leg:
//
//	0 Hips
//	├── 1 Spine
//	│   └── 2 Head
//	└── 3 Leg
//	    └── 4 Foot
func branching() *Skeleton {
	return &Skeleton{Joints: []Joint{
		{Name: "Hips", Parent: -1, Offset: mgl64.Vec3{0, 0, 0}},
		{Name: "Spine", Parent: 0, Offset: mgl64.Vec3{0, 1, 0}},
		{Name: "Head", Parent: 1, Offset: mgl64.Vec3{0, 0.5, 0.1}},
		{Name: "Leg", Parent: 0, Offset: mgl64.Vec3{0.2, -1, 0}},
		{Name: "Foot", Parent: 3, Offset: mgl64.Vec3{0, -1, 0.3}},
	}}
}

// =============================================================================
// Topology
// =============================================================================

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name   string
		joints []Joint
		ok     bool
	}{
		{"chain", []Joint{{Name: "a", Parent: -1}, {Name: "b", Parent: 0}, {Name: "c", Parent: 1}}, true},
		{"single", []Joint{{Name: "a", Parent: -1}}, true},
		{"empty", nil, false},
		{"root with parent", []Joint{{Name: "a", Parent: 0}}, false},
		{"forward parent", []Joint{{Name: "a", Parent: -1}, {Name: "b", Parent: 2}, {Name: "c", Parent: 0}}, false},
		{"self parent", []Joint{{Name: "a", Parent: -1}, {Name: "b", Parent: 1}}, false},
		{"second root", []Joint{{Name: "a", Parent: -1}, {Name: "b", Parent: -1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.joints)
			if tt.ok && err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrTopology) {
				t.Fatalf("New() error = %v, want ErrTopology", err)
			}
		})
	}
}

func TestChildrenAndPath(t *testing.T) {
	s := branching()
	children := s.Children()
	if len(children[0]) != 2 || children[0][0] != 1 || children[0][1] != 3 {
		t.Errorf("Children()[0] = %v, want [1 3]", children[0])
	}
	if len(children[2]) != 0 {
		t.Errorf("Children()[2] = %v, want none", children[2])
	}
	path := s.Path(4)
	if len(path) != 3 || path[0] != 0 || path[1] != 3 || path[2] != 4 {
		t.Errorf("Path(4) = %v, want [0 3 4]", path)
	}
	if s.Index("Foot") != 4 || s.Index("Tail") != -1 {
		t.Errorf("Index lookups wrong")
	}
}

func TestHeight(t *testing.T) {
	s := branching()
	// Head at y=1.5, Foot at y=-2.
	if got := s.Height(rotation.AxisY); math.Abs(got-3.5) > 1e-12 {
		t.Errorf("Height(y) = %v, want 3.5", got)
	}
	if got := s.Height(rotation.AxisX); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("Height(x) = %v, want 0.2", got)
	}
}

// =============================================================================
// Rotations and clips
// =============================================================================

func TestRotationsCheck(t *testing.T) {
	good := NewRotations(Quaternions(), 2, 3)
	if err := good.Check(2, 3); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if q := good.Quat(1, 2); q != rotation.Identity() {
		t.Errorf("new quaternion rotations should be identity, got %v", q)
	}

	shortLast := NewRotations(Quaternions(), 2, 3)
	shortLast.Values[1][2] = shortLast.Values[1][2][:3]

	tests := []struct {
		name   string
		r      Rotations
		frames int
		joints int
	}{
		{"frames", good, 3, 3},
		{"joints", good, 2, 4},
		{"last dimension", shortLast, 2, 3},
		{"euler with four values", Rotations{Repr: EulerIn(rotation.ZXY), Values: good.Values}, 2, 3},
		{"bad order", Rotations{Repr: EulerIn(rotation.Order{0, 0, 1}), Values: NewRotations(EulerIn(rotation.XYZ), 2, 3).Values}, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var shapeErr *ShapeError
			if err := tt.r.Check(tt.frames, tt.joints); !errors.As(err, &shapeErr) {
				t.Errorf("Check() error = %v, want *ShapeError", err)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	r := NewRotations(EulerIn(rotation.ZXY), 1, 2)
	copy(r.Values[0][0], []float64{30, -20, 45})
	copy(r.Values[0][1], []float64{-90, 10, 5})

	for _, world := range []bool{false, true} {
		back := r.Convert(Quaternions(), world).Convert(EulerIn(rotation.ZXY), world)
		for j := range 2 {
			for k := range 3 {
				if math.Abs(back.Values[0][j][k]-r.Values[0][j][k]) > 1e-9 {
					t.Fatalf("world=%v: round trip %v, want %v", world, back.Values[0][j], r.Values[0][j])
				}
			}
		}
	}

	reordered := r.Convert(EulerIn(rotation.XYZ), false)
	for j := range 2 {
		if !rotation.Equal(reordered.Quat(0, j), r.Quat(0, j), 1e-9) {
			t.Errorf("reordering changed joint %d rotation", j)
		}
	}
}

func testClip(frames, joints int) *Clip {
	c := &Clip{Rotations: NewRotations(Quaternions(), frames, joints), Positions: make([]mgl64.Vec3, frames), FrameTime: 1.0 / 30}
	for f := range frames {
		for j := range joints {
			q := rotation.FromAngleAxis(0.1*float64(f+1)+0.05*float64(j), mgl64.Vec3{1, float64(j), 0.5})
			c.Rotations.SetQuat(f, j, q)
		}
		c.Positions[f] = mgl64.Vec3{float64(f), 1, -float64(f)}
	}
	return c
}

func TestCombine(t *testing.T) {
	a := testClip(3, 2)

	t.Run("identity", func(t *testing.T) {
		id := &Clip{Rotations: NewRotations(Quaternions(), 3, 2), Positions: make([]mgl64.Vec3, 3)}
		got, err := Combine(a, id)
		if err != nil {
			t.Fatalf("Combine() error = %v", err)
		}
		for f := range 3 {
			for j := range 2 {
				if !rotation.Equal(got.Rotations.Quat(f, j), a.Rotations.Quat(f, j), 1e-12) {
					t.Errorf("frame %d joint %d changed", f, j)
				}
			}
			if got.Positions[f] != a.Positions[f] {
				t.Errorf("position %d = %v, want %v", f, got.Positions[f], a.Positions[f])
			}
		}
	})

	t.Run("composition order", func(t *testing.T) {
		b := testClip(3, 2)
		got, err := Combine(a, b)
		if err != nil {
			t.Fatalf("Combine() error = %v", err)
		}
		want := rotation.Mul(a.Rotations.Quat(2, 1), b.Rotations.Quat(2, 1))
		if !rotation.Equal(got.Rotations.Quat(2, 1), want, 1e-12) {
			t.Errorf("Combine rotation = %v, want %v", got.Rotations.Quat(2, 1), want)
		}
		if got.Positions[2] != a.Positions[2].Mul(2) {
			t.Errorf("Combine position = %v", got.Positions[2])
		}
	})

	mismatches := []struct {
		name string
		b    *Clip
	}{
		{"frames", testClip(4, 2)},
		{"joints", testClip(3, 3)},
		{"representation", testClip(3, 2).Convert(EulerIn(rotation.XYZ), false)},
	}
	for _, tt := range mismatches {
		t.Run("mismatch "+tt.name, func(t *testing.T) {
			var shapeErr *ShapeError
			if _, err := Combine(a, tt.b); !errors.As(err, &shapeErr) {
				t.Errorf("Combine() error = %v, want *ShapeError", err)
			}
		})
	}
}

func TestScale(t *testing.T) {
	c := testClip(2, 2)

	zero := Scale(c, 0)
	one := Scale(c, 1)
	half := Scale(c, 0.5)
	for f := range 2 {
		for j := range 2 {
			q := c.Rotations.Quat(f, j)
			if !rotation.Equal(zero.Rotations.Quat(f, j), rotation.Identity(), 1e-12) {
				t.Errorf("Scale(0) rotation = %v", zero.Rotations.Quat(f, j))
			}
			if !rotation.Equal(one.Rotations.Quat(f, j), q, 1e-12) {
				t.Errorf("Scale(1) rotation = %v, want %v", one.Rotations.Quat(f, j), q)
			}
			h := half.Rotations.Quat(f, j)
			if !rotation.Equal(rotation.Mul(h, h), q, 1e-9) {
				t.Errorf("Scale(0.5) squared = %v, want %v", rotation.Mul(h, h), q)
			}
		}
		if zero.Positions[f] != (mgl64.Vec3{}) {
			t.Errorf("Scale(0) position = %v", zero.Positions[f])
		}
	}
}

func TestSlice(t *testing.T) {
	c := testClip(5, 2)
	got, err := c.Slice(1, 3)
	if err != nil {
		t.Fatalf("Slice() error = %v", err)
	}
	if got.Frames() != 2 || got.Positions[0] != c.Positions[1] {
		t.Errorf("Slice(1, 3) has %d frames starting at %v", got.Frames(), got.Positions[0])
	}
	got.Rotations.Values[0][0][0] = 42
	if c.Rotations.Values[1][0][0] == 42 {
		t.Error("Slice shares storage with the source clip")
	}
	if _, err := c.Slice(3, 6); err == nil {
		t.Error("Slice(3, 6) should fail on a 5 frame clip")
	}
}

// =============================================================================
// Animation operations
// =============================================================================

func testAnimation() *Animation {
	return &Animation{Skeleton: branching(), Clip: testClip(3, 5)}
}

func TestRescale(t *testing.T) {
	a := testAnimation()
	a.Rescale(2)

	if got := a.Skeleton.Joints[2].Offset; !vecNear(got, mgl64.Vec3{0, 1, 0.2}, 1e-12) {
		t.Errorf("scaled offset = %v", got)
	}
	if a.Clip.Positions[0] != (mgl64.Vec3{0, 1, 0}) {
		t.Errorf("first frame moved to %v", a.Clip.Positions[0])
	}
	if got := a.Clip.Positions[2]; !vecNear(got, mgl64.Vec3{4, 1, -4}, 1e-12) {
		t.Errorf("frame 2 position = %v, want (4, 1, -4)", got)
	}
}

func TestRotate(t *testing.T) {
	a := testAnimation()
	before := a.Clone()
	a.Rotate(math.Pi/2, mgl64.Vec3{0, 1, 0})

	q := rotation.FromAngleAxis(math.Pi/2, mgl64.Vec3{0, 1, 0})
	for f := range 3 {
		if want := rotation.Rotate(q, before.Clip.Positions[f]); !vecNear(a.Clip.Positions[f], want, 1e-12) {
			t.Errorf("position %d = %v, want %v", f, a.Clip.Positions[f], want)
		}
		want := rotation.Mul(q, before.Clip.Rotations.Quat(f, 0))
		if !rotation.Equal(a.Clip.Rotations.Quat(f, 0), want, 1e-12) {
			t.Errorf("root rotation %d = %v, want %v", f, a.Clip.Rotations.Quat(f, 0), want)
		}
		if a.Clip.Rotations.Quat(f, 1) != before.Clip.Rotations.Quat(f, 1) {
			t.Errorf("non-root rotation changed")
		}
	}
}

func TestRotateZeroAxisKeepsUnitRotations(t *testing.T) {
	a := testAnimation()
	a.Clip = a.Clip.Convert(Quaternions(), false)
	before := a.Clone()
	a.Rotate(2, mgl64.Vec3{})

	for f := range 3 {
		if got, want := a.Clip.Positions[f].Len(), before.Clip.Positions[f].Len(); math.Abs(got-want) > 1e-9 {
			t.Errorf("frame %d root distance %v, want %v", f, got, want)
		}
		if l := a.Clip.Rotations.Quat(f, 0).Len(); math.Abs(l-1) > 1e-9 {
			t.Errorf("frame %d root quaternion length %v, want 1", f, l)
		}
	}
}

func TestNormalizeHeight(t *testing.T) {
	a := testAnimation()
	a.NormalizeHeight(1, rotation.AxisY)
	if got := a.Skeleton.Height(rotation.AxisY); math.Abs(got-1) > 1e-12 {
		t.Errorf("Height after NormalizeHeight = %v, want 1", got)
	}
}

func TestSubset(t *testing.T) {
	a := testAnimation()

	got, err := a.Subset([]string{"Foot", "Hips", "Spine"})
	if err != nil {
		t.Fatalf("Subset() error = %v", err)
	}
	names := got.Names()
	if len(names) != 3 || names[0] != "Hips" || names[1] != "Spine" || names[2] != "Foot" {
		t.Fatalf("Subset names = %v", names)
	}
	if got.Skeleton.Joints[2].Parent != 0 {
		t.Errorf("Foot parent = %d, want 0", got.Skeleton.Joints[2].Parent)
	}
	if off := got.Skeleton.Joints[2].Offset; !vecNear(off, mgl64.Vec3{0.2, -2, 0.3}, 1e-12) {
		t.Errorf("Foot offset = %v, want (0.2, -2, 0.3)", off)
	}
	if got.Clip.Rotations.Quat(1, 2) != a.Clip.Rotations.Quat(1, 4) {
		t.Errorf("Foot rotation not carried over")
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	if _, err := a.Subset([]string{"Hips", "Tail"}); !errors.Is(err, ErrUnknownJoint) {
		t.Errorf("unknown joint error = %v", err)
	}
	if _, err := a.Subset([]string{"Spine"}); !errors.Is(err, ErrTopology) {
		t.Errorf("rootless subset error = %v", err)
	}
}
