package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/go-gl/mathgl/mgl64"

	"motionToolkit/src/bvh"
	"motionToolkit/src/config"
	"motionToolkit/src/export"
	"motionToolkit/src/ik"
	"motionToolkit/src/kinematics"
	"motionToolkit/src/logger"
	"motionToolkit/src/rotation"
	"motionToolkit/src/skeleton"
)

// lossWindow is the moving-average window drawn over IK loss plots.
const lossWindow = 25

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	in := flag.String("in", "", "Input BVH file")
	out := flag.String("out", "", "Output BVH file")
	rot := flag.String("rotation", "", "Rotation representation: euler, euler-file or quaternion")
	order := flag.String("order", "", "Euler order for -rotation euler (e.g. zyx)")
	world := flag.Bool("world", false, "Treat Euler angles as extrinsic")
	joints := flag.String("joints", "", "Comma separated joints to keep")
	start := flag.Int("start", 0, "First frame to keep")
	end := flag.Int("end", 0, "Frame after the last one to keep (default: all)")
	reroot := flag.String("reroot", "", "Joint to make the new root")
	scale := flag.Float64("scale", 0, "Rescale offsets and root trajectory")
	rotate := flag.Float64("rotate", 0, "Rotate the motion by this many degrees")
	axis := flag.String("axis", "y", "Axis for -rotate and -height")
	height := flag.Float64("height", 0, "Normalize the rest pose height")
	csv := flag.Bool("csv", false, "Write rotation, position and hierarchy tables")
	outDir := flag.String("outdir", "", "Directory for -csv tables (default: out)")
	ikTarget := flag.String("ik-target", "", "BVH file whose joint positions the motion is solved towards")
	ikJoints := flag.String("ik-joints", "", "Comma separated joints pinned to -ik-target (default: all shared)")
	iters := flag.Int("iters", 0, "IK iterations (default: 500)")
	plotPath := flag.String("plot", "", "Write a plot (.png, .svg, .pdf or .webp)")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *in == "" {
		fmt.Fprintln(os.Stderr, "Error: -in is required.")
		flag.Usage()
		os.Exit(1)
	}

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	if err := cfg.Resolve(config.Flags{
		Rotation:  *rot,
		Order:     *order,
		World:     *world,
		OutputDir: *outDir,
		Workers:   *workers,
		Iters:     *iters,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := cfg.ParseOptions()
	opts.Joints = splitNames(*joints)
	opts.Start, opts.End = *start, *end

	begin := time.Now()
	anim, err := bvh.Load(*in, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s: %d joints, %d frames, %s\n", *in, anim.Skeleton.Len(), anim.Clip.Frames(), anim.Clip.Rotations.Repr)

	up, err := rotation.ParseAxis(*axis)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := transform(anim, *reroot, *scale, *rotate, *height, up); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.FrameTime > 0 {
		anim.Clip.FrameTime = cfg.FrameTime
	}

	var history []float64
	if *ikTarget != "" {
		history, err = solve(anim, *ikTarget, splitNames(*ikJoints), &cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *out != "" {
		if err := bvh.Write(*out, anim, cfg.WriteOptions()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *out)
	}

	var paths export.Paths
	if *csv {
		base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
		paths, err = export.WriteTables(anim, cfg.OutputDir, base, export.Options{
			Scale:     1,
			Rotation:  true,
			Position:  true,
			Hierarchy: true,
			Workers:   cfg.Workers,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("BVH data converted to CSV successfully.")
		fmt.Printf("Output: %s\n", cfg.OutputDir)
	}

	if *plotPath != "" {
		switch {
		case len(history) > 0:
			err = export.PlotLoss(history, lossWindow, *plotPath)
		case paths.Position != "":
			// Root x over time.
			err = export.PlotCsv(paths.Position, 0, 1, *plotPath)
		default:
			err = fmt.Errorf("-plot needs -ik-target or -csv")
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Plot: %s\n", *plotPath)
	}

	fmt.Printf("Done in %.1fs\n", time.Since(begin).Seconds())
}

// transform applies the edits requested on the command line, in the order
// reroot, rescale, rotate, height.
func transform(anim *skeleton.Animation, reroot string, scale, degrees, height float64, up rotation.Axis) error {
	if reroot != "" {
		if err := anim.Reroot(reroot); err != nil {
			return err
		}
		fmt.Printf("Rerooted at %s\n", reroot)
	}
	if scale != 0 {
		anim.Rescale(scale)
	}
	if degrees != 0 {
		anim.Rotate(mgl64.DegToRad(degrees), up.Unit())
	}
	if height > 0 {
		anim.NormalizeHeight(height, up)
	}
	return nil
}

// solve pins joints of anim to the forward kinematics of the target clip and
// runs the IK solver, returning the loss after every iteration. The target is
// read with the motion's parse settings so both share one Euler convention.
func solve(anim *skeleton.Animation, targetPath string, names []string, cfg *config.Config) ([]float64, error) {
	target, err := bvh.Load(targetPath, cfg.ParseOptions())
	if err != nil {
		return nil, err
	}
	if target.Clip.Frames() != anim.Clip.Frames() {
		return nil, fmt.Errorf("ik target has %d frames, motion has %d", target.Clip.Frames(), anim.Clip.Frames())
	}

	if len(names) == 0 {
		for _, name := range anim.Names() {
			if target.Skeleton.Index(name) >= 0 {
				names = append(names, name)
			}
		}
	}
	src := make([]int, len(names))
	dst := make([]int, len(names))
	for i, name := range names {
		src[i], dst[i] = anim.Skeleton.Index(name), target.Skeleton.Index(name)
		if src[i] < 0 || dst[i] < 0 {
			return nil, fmt.Errorf("ik joint %q: %w", name, skeleton.ErrUnknownJoint)
		}
	}

	pose, err := kinematics.NewEvaluator(cfg.Workers).Forward(target.Skeleton, target.Clip.Rotations, target.Clip.Positions, kinematics.Options{})
	if err != nil {
		return nil, err
	}
	// Move target positions into the motion's joint numbering.
	positions := make([][]mgl64.Vec3, len(pose.Positions))
	for f, frame := range pose.Positions {
		positions[f] = make([]mgl64.Vec3, anim.Skeleton.Len())
		for i := range src {
			positions[f][src[i]] = frame[dst[i]]
		}
	}

	solver, err := ik.NewSolverFromAnimation(anim, ik.ConstraintsFromPositions(positions, src), cfg.SolverConfig())
	if err != nil {
		return nil, err
	}

	fmt.Printf("IK: %d joints, %d iterations, initial loss %.6f\n", len(names), cfg.IKIterations, solver.Evaluate())
	history := make([]float64, 0, cfg.IKIterations)
	bar := pb.StartNew(cfg.IKIterations)
	loss := solver.Solve(cfg.IKIterations, func(_ int, loss float64) {
		history = append(history, loss)
		bar.Increment()
	})
	bar.Finish()
	fmt.Printf("IK: final loss %.6f\n", loss)

	return history, solver.Apply(anim)
}

func splitNames(s string) []string {
	var names []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
