package bvh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"motionToolkit/src/logger"
	"motionToolkit/src/rotation"
	"motionToolkit/src/skeleton"
)

var rotationChannelNames = [3]string{"Xrotation", "Yrotation", "Zrotation"}

// Serialize writes a as a BVH document. Every joint uses one channel order:
// the clip's own for Euler clips, opts.Order for quaternion clips. The root
// carries position channels, every leaf gets a zero End Site. Joint names
// are written verbatim, so a namespaced name such as "ns:Hips" only comes
// back intact when the text is parsed with Options.KeepNamespaces.
func Serialize(w io.Writer, a *skeleton.Animation, opts WriteOptions) error {
	start := time.Now()
	if err := a.Validate(); err != nil {
		return fmt.Errorf("bvh: serialize: %w", err)
	}
	for j, joint := range a.Skeleton.Joints {
		if strings.TrimSpace(joint.Name) == "" || strings.ContainsAny(joint.Name, "\r\n") {
			return fmt.Errorf("bvh: serialize: joint %d has unwritable name %q", j, joint.Name)
		}
	}

	rots := a.Clip.Rotations
	order := opts.Order
	if rots.Repr.Kind == skeleton.Euler {
		order = rots.Repr.Order
	} else if !order.Valid() {
		order = rotation.XYZ
	}
	if rots.Repr != skeleton.EulerIn(order) {
		rots = rots.Convert(skeleton.EulerIn(order), opts.World)
	}

	bw := bufio.NewWriter(w)
	channels := fmt.Sprintf("%s %s %s", rotationChannelNames[order[0]], rotationChannelNames[order[1]], rotationChannelNames[order[2]])

	fmt.Fprintln(bw, "HIERARCHY")
	writeJoint(bw, a.Skeleton, a.Skeleton.Children(), channels, 0, 0)

	fmt.Fprintln(bw, "MOTION")
	fmt.Fprintf(bw, "Frames: %d\n", a.Clip.Frames())
	fmt.Fprintf(bw, "Frame Time: %s\n", formatFrameTime(a.Clip.FrameTime))

	values := make([]string, 0, 3+3*a.Skeleton.Len())
	for f, frame := range rots.Values {
		values = values[:0]
		p := a.Clip.Positions[f]
		values = append(values, formatFloat(p[0]), formatFloat(p[1]), formatFloat(p[2]))
		for _, v := range frame {
			values = append(values, formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
		}
		fmt.Fprintln(bw, strings.Join(values, " "))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("bvh: serialize: %w", err)
	}
	logger.Logger().Debug("bvh: serialized", "joints", a.Skeleton.Len(), "frames", a.Clip.Frames(), "order", order.String(), "elapsed", time.Since(start))
	return nil
}

// writeJoint emits joint j and its subtree at the given depth.
func writeJoint(bw *bufio.Writer, s *skeleton.Skeleton, children [][]int, channels string, j, depth int) {
	indent := strings.Repeat("\t", depth)
	inner := indent + "\t"
	joint := s.Joints[j]

	if j == 0 {
		fmt.Fprintf(bw, "%sROOT %s\n", indent, joint.Name)
	} else {
		fmt.Fprintf(bw, "%sJOINT %s\n", indent, joint.Name)
	}
	fmt.Fprintf(bw, "%s{\n", indent)
	fmt.Fprintf(bw, "%sOFFSET %s %s %s\n", inner, formatFloat(joint.Offset[0]), formatFloat(joint.Offset[1]), formatFloat(joint.Offset[2]))
	if j == 0 {
		fmt.Fprintf(bw, "%sCHANNELS 6 Xposition Yposition Zposition %s\n", inner, channels)
	} else {
		fmt.Fprintf(bw, "%sCHANNELS 3 %s\n", inner, channels)
	}

	if len(children[j]) == 0 {
		fmt.Fprintf(bw, "%sEnd Site\n", inner)
		fmt.Fprintf(bw, "%s{\n", inner)
		fmt.Fprintf(bw, "%s\tOFFSET %s %s %s\n", inner, formatFloat(0), formatFloat(0), formatFloat(0))
		fmt.Fprintf(bw, "%s}\n", inner)
	}
	for _, c := range children[j] {
		writeJoint(bw, s, children, channels, c, depth+1)
	}
	fmt.Fprintf(bw, "%s}\n", indent)
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

// formatFrameTime keeps eight decimals, falling back to the shortest exact
// form for frame times too small to survive them.
func formatFrameTime(t float64) string {
	s := strconv.FormatFloat(t, 'f', 8, 64)
	if t != 0 {
		if v, _ := strconv.ParseFloat(s, 64); v == 0 {
			return strconv.FormatFloat(t, 'g', -1, 64)
		}
	}
	return s
}
