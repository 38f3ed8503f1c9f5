// Package export writes animations as CSV tables and renders them as plots.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"motionToolkit/src/bvh"
	"motionToolkit/src/kinematics"
	"motionToolkit/src/logger"
	"motionToolkit/src/skeleton"
)

// Options selects the tables written by Bvh2Csv.
type Options struct {
	Parse     bvh.Options
	Scale     float64
	Rotation  bool
	Position  bool
	Hierarchy bool
	// Workers shards forward kinematics for the position table.
	Workers int
}

// Paths are the files written by Bvh2Csv. Tables that were not requested
// are left empty.
type Paths struct {
	Rotation  string
	Position  string
	Hierarchy string
}

// WriteJointRotations writes one row per frame: the time followed by every
// joint's rotation values in the clip representation.
func WriteJointRotations(a *skeleton.Animation, filePath string) error {
	startTime := time.Now()
	rots := a.Clip.Rotations

	header := []string{"time"}
	for _, name := range a.Names() {
		for _, c := range components(rots.Repr) {
			header = append(header, name+"."+c)
		}
	}

	data := make([][]float64, rots.Frames())
	for f, frame := range rots.Values {
		row := make([]float64, 0, len(header))
		row = append(row, float64(f)*a.FrameTime())
		for _, v := range frame {
			row = append(row, v...)
		}
		data[f] = row
	}

	if err := writeTable(filePath, header, data); err != nil {
		return err
	}
	logger.Logger().Debug("export: rotations", "path", filePath, "elapsed", time.Since(startTime))
	return nil
}

// WriteJointPositions writes one row per frame with the world position of
// every joint, scaled by scale. A nil evaluator runs on the calling
// goroutine.
func WriteJointPositions(a *skeleton.Animation, filePath string, scale float64, ev *kinematics.Evaluator) error {
	startTime := time.Now()

	var pose *kinematics.Pose
	var err error
	if ev != nil {
		pose, err = ev.Forward(a.Skeleton, a.Clip.Rotations, a.Clip.Positions, kinematics.Options{})
	} else {
		pose, err = kinematics.ForwardAnimation(a, kinematics.Options{})
	}
	if err != nil {
		return fmt.Errorf("export: positions: %w", err)
	}

	header := []string{"time"}
	for _, name := range a.Names() {
		header = append(header, name+".x", name+".y", name+".z")
	}

	data := make([][]float64, len(pose.Positions))
	for f, frame := range pose.Positions {
		row := make([]float64, 0, len(header))
		row = append(row, float64(f)*a.FrameTime())
		for _, p := range frame {
			row = append(row, scale*p[0], scale*p[1], scale*p[2])
		}
		data[f] = row
	}

	if err := writeTable(filePath, header, data); err != nil {
		return err
	}
	logger.Logger().Debug("export: positions", "path", filePath, "elapsed", time.Since(startTime))
	return nil
}

// WriteJointHierarchy writes joint, parent and scaled rest offset per joint.
// The root has an empty parent.
func WriteJointHierarchy(s *skeleton.Skeleton, filePath string, scale float64) error {
	startTime := time.Now()

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", filePath, err)
	}
	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "joint,parent,offset.x,offset.y,offset.z\n")
	for _, joint := range s.Joints {
		parentName := ""
		if joint.Parent >= 0 {
			parentName = s.Joints[joint.Parent].Name
		}
		fmt.Fprintf(writer, "%s,%s,%f,%f,%f\n", joint.Name, parentName,
			scale*joint.Offset[0], scale*joint.Offset[1], scale*joint.Offset[2])
	}

	if err := closeTable(file, writer, filePath); err != nil {
		return err
	}
	logger.Logger().Debug("export: hierarchy", "path", filePath, "elapsed", time.Since(startTime))
	return nil
}

// Bvh2Csv loads bvhPath and writes the requested tables into dstDirpath as
// <name>_rot.csv, <name>_pos.csv and <name>_hierarchy.csv.
func Bvh2Csv(bvhPath, dstDirpath string, opts Options) (Paths, error) {
	startTime := time.Now()

	anim, err := bvh.Load(bvhPath, opts.Parse)
	if err != nil {
		return Paths{}, err
	}
	logger.Logger().Debug("export: file read", "path", bvhPath, "elapsed", time.Since(startTime))

	base := strings.TrimSuffix(filepath.Base(bvhPath), filepath.Ext(bvhPath))
	return WriteTables(anim, dstDirpath, base, opts)
}

// WriteTables writes the tables requested by opts for a into dstDirpath,
// naming them after base. opts.Parse is ignored.
func WriteTables(a *skeleton.Animation, dstDirpath, base string, opts Options) (Paths, error) {
	if err := os.MkdirAll(dstDirpath, 0o755); err != nil {
		return Paths{}, fmt.Errorf("export: %w", err)
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	var paths Paths
	if opts.Position {
		paths.Position = filepath.Join(dstDirpath, base+"_pos.csv")
		var ev *kinematics.Evaluator
		if opts.Workers > 1 {
			ev = kinematics.NewEvaluator(opts.Workers)
		}
		if err := WriteJointPositions(a, paths.Position, scale, ev); err != nil {
			return paths, err
		}
	}
	if opts.Rotation {
		paths.Rotation = filepath.Join(dstDirpath, base+"_rot.csv")
		if err := WriteJointRotations(a, paths.Rotation); err != nil {
			return paths, err
		}
	}
	if opts.Hierarchy {
		paths.Hierarchy = filepath.Join(dstDirpath, base+"_hierarchy.csv")
		if err := WriteJointHierarchy(a.Skeleton, paths.Hierarchy, scale); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

func components(repr skeleton.Representation) []string {
	if repr.Kind == skeleton.Quaternion {
		return []string{"w", "x", "y", "z"}
	}
	out := make([]string, 3)
	for k, axis := range repr.Order {
		out[k] = axis.String()
	}
	return out
}

func writeTable(filePath string, header []string, data [][]float64) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", filePath, err)
	}
	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "%s\n", strings.Join(header, ","))
	for _, row := range data {
		for j, v := range row {
			if j > 0 {
				fmt.Fprintf(writer, ",")
			}
			fmt.Fprintf(writer, "%10.5f", v)
		}
		fmt.Fprintf(writer, "\n")
	}
	return closeTable(file, writer, filePath)
}

func closeTable(file *os.File, writer *bufio.Writer, filePath string) error {
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("export: write %s: %w", filePath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", filePath, err)
	}
	return nil
}
