// Package bvh reads and writes Biovision Hierarchy motion files.
//
// A file has a HIERARCHY section declaring nested ROOT/JOINT blocks with
// rest offsets and channel lists, followed by a MOTION section with one row
// of channel values per frame:
//
//	HIERARCHY
//	ROOT Hips
//	{
//		OFFSET 0 0 0
//		CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
//		JOINT Spine
//		{
//			OFFSET 0 10 0
//			CHANNELS 3 Zrotation Xrotation Yrotation
//			End Site
//			{
//				OFFSET 0 5 0
//			}
//		}
//	}
//	MOTION
//	Frames: 1
//	Frame Time: 0.033333
//	0 90 0 0 0 0 0 0 0
package bvh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/logger"
	"motionToolkit/src/rotation"
	"motionToolkit/src/skeleton"
)

const maxLine = 64 << 20

type channelKind int

const (
	positionChannel channelKind = iota
	rotationChannel
	scaleChannel
)

type channel struct {
	kind channelKind
	axis rotation.Axis
}

var channelNames = map[string]channel{
	"Xposition": {positionChannel, rotation.AxisX},
	"Yposition": {positionChannel, rotation.AxisY},
	"Zposition": {positionChannel, rotation.AxisZ},
	"Xrotation": {rotationChannel, rotation.AxisX},
	"Yrotation": {rotationChannel, rotation.AxisY},
	"Zrotation": {rotationChannel, rotation.AxisZ},
	"Xscale":    {scaleChannel, rotation.AxisX},
	"Yscale":    {scaleChannel, rotation.AxisY},
	"Zscale":    {scaleChannel, rotation.AxisZ},
}

// jointChannels is the channel layout of one joint within a motion row.
type jointChannels struct {
	channels []channel
	order    rotation.Order
	rotating bool
}

type section int

const (
	header section = iota
	hierarchy
	motion
)

// parser holds the state of a single Parse call. The open joints form an
// explicit stack, so nesting depth is bounded only by memory.
type parser struct {
	opts Options

	section  section
	line     int
	joints   []skeleton.Joint
	layouts  []jointChannels
	stack    []int
	pending  bool
	inSite   bool
	siteOpen bool

	order     rotation.Order
	haveOrder bool
	columns   int

	frames    int
	frameTime float64
	rows      [][]float64
}

// Parse reads a BVH document. Nothing is returned unless the whole input is
// valid; every grammar violation is a *FormatError.
func Parse(r io.Reader, opts Options) (*skeleton.Animation, error) {
	start := time.Now()
	if opts.Mode == Reordered && !opts.Order.Valid() {
		return nil, fmt.Errorf("bvh: invalid target order %v", opts.Order)
	}

	p := &parser{opts: opts, frames: -1}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		p.line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := p.consume(fields); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{Line: p.line, Msg: "read", Err: err}
	}

	anim, err := p.finish()
	if err != nil {
		return nil, err
	}
	logger.Logger().Debug("bvh: parsed",
		"joints", anim.Skeleton.Len(),
		"frames", anim.Clip.Frames(),
		"representation", anim.Clip.Rotations.Repr.String(),
		"elapsed", time.Since(start))
	return anim, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return formatErrorf(p.line, format, args...)
}

func (p *parser) consume(fields []string) error {
	switch p.section {
	case header:
		if fields[0] != "HIERARCHY" {
			return p.errorf("expected HIERARCHY, found %q", fields[0])
		}
		p.section = hierarchy
		return nil
	case hierarchy:
		// Braces may share a line with the declaration they open.
		if n := len(fields); n > 1 && fields[n-1] == "{" {
			if err := p.declaration(fields[:n-1]); err != nil {
				return err
			}
			return p.declaration(fields[n-1:])
		}
		return p.declaration(fields)
	default:
		return p.motionLine(fields)
	}
}

func (p *parser) declaration(fields []string) error {
	if p.pending && fields[0] != "{" {
		return p.errorf("expected { after joint declaration, found %q", fields[0])
	}

	switch fields[0] {
	case "ROOT", "JOINT":
		if len(fields) < 2 {
			return p.errorf("%s without a name", fields[0])
		}
		if p.inSite {
			return p.errorf("%s inside End Site", fields[0])
		}
		parent := -1
		if fields[0] == "ROOT" {
			if len(p.joints) > 0 {
				return p.errorf("second ROOT %q", fields[1])
			}
		} else {
			if len(p.stack) == 0 {
				return p.errorf("JOINT %q outside ROOT", fields[1])
			}
			parent = p.stack[len(p.stack)-1]
		}
		p.joints = append(p.joints, skeleton.Joint{Name: p.name(strings.Join(fields[1:], " ")), Parent: parent})
		p.layouts = append(p.layouts, jointChannels{})
		p.stack = append(p.stack, len(p.joints)-1)
		p.pending = true

	case "End":
		if len(fields) < 2 || fields[1] != "Site" {
			return p.errorf("malformed End Site")
		}
		if len(p.stack) == 0 || p.inSite {
			return p.errorf("End Site outside a joint")
		}
		p.inSite = true
		p.pending = true

	case "{":
		if !p.pending {
			return p.errorf("unexpected {")
		}
		p.pending = false
		if p.inSite {
			p.siteOpen = true
		}

	case "}":
		switch {
		case p.siteOpen:
			p.inSite, p.siteOpen = false, false
		case len(p.stack) > 0:
			p.stack = p.stack[:len(p.stack)-1]
		default:
			return p.errorf("unbalanced }")
		}

	case "OFFSET":
		if len(fields) != 4 {
			return p.errorf("OFFSET needs 3 values, found %d", len(fields)-1)
		}
		v, err := p.vec(fields[1:])
		if err != nil {
			return err
		}
		if p.inSite {
			return nil
		}
		if len(p.stack) == 0 {
			return p.errorf("OFFSET outside a joint")
		}
		p.joints[p.stack[len(p.stack)-1]].Offset = v

	case "CHANNELS":
		if len(p.stack) == 0 || p.inSite {
			return p.errorf("CHANNELS outside a joint")
		}
		return p.channels(fields[1:])

	case "MOTION":
		switch {
		case len(p.joints) == 0:
			return p.errorf("MOTION before any ROOT")
		case len(p.stack) > 0 || p.inSite:
			return p.errorf("MOTION inside an open block")
		}
		p.section = motion

	default:
		return p.errorf("unknown keyword %q", fields[0])
	}
	return nil
}

func (p *parser) channels(fields []string) error {
	if len(fields) == 0 {
		return p.errorf("CHANNELS without a count")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return &FormatError{Line: p.line, Msg: "channel count", Err: err}
	}
	if n != 3 && n != 6 && n != 9 {
		return p.errorf("unsupported channel count %d", n)
	}
	if len(fields)-1 != n {
		return p.errorf("CHANNELS %d lists %d names", n, len(fields)-1)
	}

	j := p.stack[len(p.stack)-1]
	if p.layouts[j].channels != nil {
		return p.errorf("joint %q declares CHANNELS twice", p.joints[j].Name)
	}
	layout := jointChannels{channels: make([]channel, n)}
	var seen [3][3]bool
	var rot []rotation.Axis
	for i, name := range fields[1:] {
		ch, ok := channelNames[name]
		if !ok {
			return p.errorf("unknown channel %q", name)
		}
		if seen[ch.kind][ch.axis] {
			return p.errorf("channel %q repeated", name)
		}
		seen[ch.kind][ch.axis] = true
		layout.channels[i] = ch
		if ch.kind == rotationChannel {
			rot = append(rot, ch.axis)
		}
	}
	switch len(rot) {
	case 0:
	case 3:
		layout.order = rotation.Order{rot[0], rot[1], rot[2]}
		layout.rotating = true
		if !p.haveOrder {
			p.order, p.haveOrder = layout.order, true
		}
	default:
		return p.errorf("joint %q has %d rotation channels, want 0 or 3", p.joints[j].Name, len(rot))
	}
	p.layouts[j] = layout
	p.columns += n
	return nil
}

func (p *parser) motionLine(fields []string) error {
	switch {
	case fields[0] == "Frames:":
		if len(fields) != 2 {
			return p.errorf("malformed Frames line")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return p.errorf("invalid frame count %q", fields[1])
		}
		p.frames = n
		return nil
	case fields[0] == "Frame" && len(fields) > 1 && fields[1] == "Time:":
		if len(fields) != 3 {
			return p.errorf("malformed Frame Time line")
		}
		t, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return &FormatError{Line: p.line, Msg: "frame time", Err: err}
		}
		if t <= 0 {
			return p.errorf("frame time %v is not positive", t)
		}
		p.frameTime = t
		return nil
	}

	if p.frames < 0 || p.frameTime == 0 {
		return p.errorf("motion data before Frames and Frame Time")
	}
	if len(p.rows) == p.frames {
		return p.errorf("more than %d frames of motion data", p.frames)
	}
	if len(fields) != p.columns {
		return p.errorf("frame %d has %d values, want %d", len(p.rows), len(fields), p.columns)
	}
	row := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return &FormatError{Line: p.line, Msg: fmt.Sprintf("frame %d value %d", len(p.rows), i), Err: err}
		}
		row[i] = v
	}
	p.rows = append(p.rows, row)
	return nil
}

func (p *parser) vec(fields []string) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	for i, s := range fields {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return v, &FormatError{Line: p.line, Msg: "number", Err: err}
		}
		v[i] = f
	}
	return v, nil
}

func (p *parser) name(raw string) string {
	if p.opts.KeepNamespaces {
		return raw
	}
	return stripNamespace(raw)
}

func stripNamespace(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// finish checks the document is complete and builds the animation.
func (p *parser) finish() (*skeleton.Animation, error) {
	switch {
	case p.section != motion:
		return nil, formatErrorf(0, "missing MOTION section")
	case p.frames < 0:
		return nil, formatErrorf(0, "missing Frames line")
	case p.frameTime == 0:
		return nil, formatErrorf(0, "missing Frame Time line")
	case len(p.rows) != p.frames:
		return nil, formatErrorf(0, "found %d frames of motion data, header declares %d", len(p.rows), p.frames)
	}
	if !p.haveOrder {
		p.order = rotation.XYZ
	}

	anim := &skeleton.Animation{
		Skeleton: &skeleton.Skeleton{Joints: p.joints},
		Clip:     p.clip(),
	}
	if err := anim.Validate(); err != nil {
		return nil, &FormatError{Msg: "inconsistent hierarchy", Err: err}
	}

	if len(p.opts.Joints) > 0 {
		sub, err := subset(anim, p.opts.Joints)
		if err != nil {
			return nil, err
		}
		anim = sub
	}

	end := p.opts.End
	if end == 0 {
		end = p.frames
	}
	if p.opts.Start < 0 || end > p.frames || p.opts.Start > end {
		return nil, formatErrorf(0, "frame range [%d, %d) outside %d frames", p.opts.Start, end, p.frames)
	}
	if p.opts.Start != 0 || end != p.frames {
		clip, err := anim.Clip.Slice(p.opts.Start, end)
		if err != nil {
			return nil, &FormatError{Msg: "frame range", Err: err}
		}
		anim.Clip = clip
	}
	return anim, nil
}

// clip splits the motion rows into root positions and per-joint Euler
// angles in the clip order, then converts to the requested representation.
func (p *parser) clip() *skeleton.Clip {
	raw := skeleton.NewRotations(skeleton.EulerIn(p.order), p.frames, len(p.joints))
	positions := make([]mgl64.Vec3, p.frames)

	for j, layout := range p.layouts {
		if layout.rotating && layout.order != p.order {
			logger.Logger().Warn("bvh: joint channel order differs from clip order, converting",
				"joint", p.joints[j].Name, "joint_order", layout.order.String(), "clip_order", p.order.String())
		}
	}

	for f, row := range p.rows {
		col := 0
		for j, layout := range p.layouts {
			var pos, angles mgl64.Vec3
			k := 0
			for _, ch := range layout.channels {
				switch ch.kind {
				case positionChannel:
					pos[ch.axis] = row[col]
				case rotationChannel:
					angles[k] = row[col]
					k++
				}
				col++
			}
			if j == 0 {
				if hasPosition(layout) {
					positions[f] = pos
				} else {
					positions[f] = p.joints[0].Offset
				}
			}
			if !layout.rotating {
				continue
			}
			if layout.order != p.order {
				q := rotation.FromEulerDegrees(angles, layout.order, p.opts.World)
				angles = rotation.ToEulerDegrees(q, p.order, p.opts.World)
			}
			copy(raw.Values[f][j], angles[:])
		}
	}

	return &skeleton.Clip{
		Rotations: raw.Convert(p.opts.representation(p.order), p.opts.World),
		Positions: positions,
		FrameTime: p.frameTime,
	}
}

func hasPosition(layout jointChannels) bool {
	for _, ch := range layout.channels {
		if ch.kind == positionChannel {
			return true
		}
	}
	return false
}

// subset resolves requested names against the hierarchy, ignoring
// namespaces on both sides.
func subset(anim *skeleton.Animation, names []string) (*skeleton.Animation, error) {
	actual := make([]string, 0, len(names))
	for _, want := range names {
		found := ""
		for _, j := range anim.Skeleton.Joints {
			if stripNamespace(j.Name) == stripNamespace(want) {
				found = j.Name
				break
			}
		}
		if found == "" {
			return nil, &FormatError{Msg: fmt.Sprintf("joint subset names %q", want), Err: skeleton.ErrUnknownJoint}
		}
		actual = append(actual, found)
	}
	sub, err := anim.Subset(actual)
	if err != nil {
		return nil, &FormatError{Msg: "joint subset", Err: err}
	}
	return sub, nil
}
