package skeleton

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/rotation"
)

// globalPose evaluates one frame by accumulating quaternions from the root.
func globalPose(a *Animation, f int) (map[string]mgl64.Quat, map[string]mgl64.Vec3) {
	n := a.Skeleton.Len()
	rots := make([]mgl64.Quat, n)
	pos := make([]mgl64.Vec3, n)
	for i, j := range a.Skeleton.Joints {
		q := rotation.Normalize(a.Clip.Rotations.Quat(f, i))
		if i == 0 {
			rots[0], pos[0] = q, a.Clip.Positions[f]
			continue
		}
		rots[i] = rotation.Mul(rots[j.Parent], q)
		pos[i] = pos[j.Parent].Add(rotation.Rotate(rots[j.Parent], j.Offset))
	}
	gr := make(map[string]mgl64.Quat, n)
	gp := make(map[string]mgl64.Vec3, n)
	for i, j := range a.Skeleton.Joints {
		gr[j.Name], gp[j.Name] = rots[i], pos[i]
	}
	return gr, gp
}

func TestRelabel(t *testing.T) {
	seq, parents := relabel(branching(), 3)
	wantSeq := []int{3, 0, 1, 2, 4}
	wantParents := []int{-1, 0, 1, 2, 0}
	for k := range wantSeq {
		if seq[k] != wantSeq[k] || parents[k] != wantParents[k] {
			t.Fatalf("relabel = %v %v, want %v %v", seq, parents, wantSeq, wantParents)
		}
	}
}

func TestRerootChild(t *testing.T) {
	a := testAnimation()
	before := a.Clone()

	if err := a.Reroot("Leg"); err != nil {
		t.Fatalf("Reroot() error = %v", err)
	}

	wantNames := []string{"Leg", "Hips", "Spine", "Head", "Foot"}
	wantParents := []int{-1, 0, 1, 2, 0}
	for k, j := range a.Skeleton.Joints {
		if j.Name != wantNames[k] || j.Parent != wantParents[k] {
			t.Fatalf("joint %d = %s(parent %d), want %s(parent %d)", k, j.Name, j.Parent, wantNames[k], wantParents[k])
		}
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if a.Skeleton.Joints[0].Offset != (mgl64.Vec3{}) {
		t.Errorf("new root offset = %v, want zero", a.Skeleton.Joints[0].Offset)
	}
	if got := a.Skeleton.Joints[1].Offset; !vecNear(got, mgl64.Vec3{-0.2, 1, 0}, 1e-12) {
		t.Errorf("former root offset = %v, want (-0.2, 1, 0)", got)
	}

	for f := range a.Clip.Frames() {
		q0 := before.Clip.Rotations.Quat(f, 0)
		qr := before.Clip.Rotations.Quat(f, 3)
		if !rotation.Equal(a.Clip.Rotations.Quat(f, 0), rotation.Mul(q0, qr), 1e-12) {
			t.Errorf("frame %d: new root rotation is not rot0 ⊗ rotR", f)
		}
		if !rotation.Equal(a.Clip.Rotations.Quat(f, 1), rotation.Inverse(qr), 1e-12) {
			t.Errorf("frame %d: former root rotation is not inverse(rotR)", f)
		}
		if a.Clip.Rotations.Quat(f, 2) != before.Clip.Rotations.Quat(f, 1) {
			t.Errorf("frame %d: untouched joint rotation changed", f)
		}

		// Global orientation of every joint and the position of the
		// new root's subtree survive the flip.
		wantRot, wantPos := globalPose(before, f)
		gotRot, gotPos := globalPose(a, f)
		for name, q := range wantRot {
			if !rotation.Equal(gotRot[name], q, 1e-9) {
				t.Errorf("frame %d: global rotation of %s = %v, want %v", f, name, gotRot[name], q)
			}
		}
		for _, name := range []string{"Leg", "Foot"} {
			if !vecNear(gotPos[name], wantPos[name], 1e-9) {
				t.Errorf("frame %d: position of %s = %v, want %v", f, name, gotPos[name], wantPos[name])
			}
		}
	}
}

func TestRerootPreservesPoseWithRestingEdge(t *testing.T) {
	a := testAnimation()
	for f := range a.Clip.Frames() {
		a.Clip.Rotations.SetQuat(f, 1, rotation.Identity())
	}
	before := a.Clone()
	if err := a.Reroot("Spine"); err != nil {
		t.Fatalf("Reroot() error = %v", err)
	}
	for f := range a.Clip.Frames() {
		_, wantPos := globalPose(before, f)
		_, gotPos := globalPose(a, f)
		for name, p := range wantPos {
			if !vecNear(gotPos[name], p, 1e-9) {
				t.Errorf("frame %d: position of %s = %v, want %v", f, name, gotPos[name], p)
			}
		}
	}
}

func TestRerootInvolution(t *testing.T) {
	tests := []struct {
		name    string
		newRoot string
	}{
		{"first child", "Spine"},
		{"last child", "Leg"},
		{"grandchild", "Foot"},
		{"leaf", "Head"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testAnimation()
			before := a.Clone()
			if err := a.Reroot(tt.newRoot); err != nil {
				t.Fatalf("Reroot(%s) error = %v", tt.newRoot, err)
			}
			if a.Skeleton.Joints[0].Name != tt.newRoot {
				t.Fatalf("root = %s, want %s", a.Skeleton.Joints[0].Name, tt.newRoot)
			}
			if err := a.Reroot("Hips"); err != nil {
				t.Fatalf("Reroot(Hips) error = %v", err)
			}

			// Topology and offsets match by name; labels may differ.
			for _, want := range before.Skeleton.Joints {
				i := a.Skeleton.Index(want.Name)
				got := a.Skeleton.Joints[i]
				wantParent, gotParent := "", ""
				if want.Parent >= 0 {
					wantParent = before.Skeleton.Joints[want.Parent].Name
				}
				if got.Parent >= 0 {
					gotParent = a.Skeleton.Joints[got.Parent].Name
				}
				if gotParent != wantParent {
					t.Errorf("%s parent = %q, want %q", want.Name, gotParent, wantParent)
				}
				if !vecNear(got.Offset, want.Offset, 1e-5) {
					t.Errorf("%s offset = %v, want %v", want.Name, got.Offset, want.Offset)
				}
				for f := range a.Clip.Frames() {
					if !rotation.Equal(a.Clip.Rotations.Quat(f, i), before.Clip.Rotations.Quat(f, before.Skeleton.Index(want.Name)), 1e-5) {
						t.Errorf("%s rotation at frame %d not restored", want.Name, f)
					}
				}
			}
		})
	}
}

func TestRerootFirstChildKeepsLabels(t *testing.T) {
	a := testAnimation()
	if err := a.Reroot("Spine"); err != nil {
		t.Fatal(err)
	}
	if err := a.Reroot("Hips"); err != nil {
		t.Fatal(err)
	}
	for i, want := range branching().Joints {
		if a.Skeleton.Joints[i].Name != want.Name || a.Skeleton.Joints[i].Parent != want.Parent {
			t.Errorf("joint %d = %+v, want %+v", i, a.Skeleton.Joints[i], want)
		}
	}
}

func TestRerootErrors(t *testing.T) {
	a := testAnimation()
	if err := a.Reroot("Tail"); !errors.Is(err, ErrUnknownJoint) {
		t.Errorf("Reroot(Tail) error = %v, want ErrUnknownJoint", err)
	}
	if err := a.RerootAt(9); err == nil {
		t.Error("RerootAt(9) should fail")
	}
	if err := a.RerootAt(0); err != nil {
		t.Errorf("RerootAt(0) error = %v", err)
	}

	broken := testAnimation()
	broken.Clip.Positions = broken.Clip.Positions[:1]
	var shapeErr *ShapeError
	if err := broken.Reroot("Leg"); !errors.As(err, &shapeErr) {
		t.Errorf("Reroot on bad clip error = %v, want *ShapeError", err)
	}
}
