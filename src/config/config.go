package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"motionToolkit/src/bvh"
	"motionToolkit/src/ik"
	"motionToolkit/src/rotation"
)

// Rotation representations accepted by the "rotation" field.
const (
	RotationEuler      = "euler"
	RotationEulerFile  = "euler-file"
	RotationQuaternion = "quaternion"
)

// Config holds the settings shared by the toolkit commands.
type Config struct {
	// Parsing
	Rotation string `json:"rotation"`
	Order    string `json:"order"`
	World    bool   `json:"world"`

	// Writing
	WriteOrder string  `json:"write_order"`
	FrameTime  float64 `json:"frame_time"`
	OutputDir  string  `json:"output_dir"`

	// Solving
	Workers        int     `json:"workers"`
	IKIterations   int     `json:"ik_iterations"`
	IKLearningRate float64 `json:"ik_learning_rate"`
	IKBeta1        float64 `json:"ik_beta1"`
	IKBeta2        float64 `json:"ik_beta2"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Rotation  string
	Order     string
	World     bool
	OutputDir string
	Workers   int
	Iters     int
}

// Resolve applies flags over the file values and fills in defaults, then
// checks the result.
func (c *Config) Resolve(flags Flags) error {
	// CLI flags override config file
	if flags.Rotation != "" {
		c.Rotation = flags.Rotation
	}
	if flags.Order != "" {
		c.Order = flags.Order
	}
	if flags.World {
		c.World = true
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Iters > 0 {
		c.IKIterations = flags.Iters
	}

	if c.Rotation == "" {
		c.Rotation = RotationEulerFile
	}
	if c.Rotation == RotationEuler && c.Order == "" {
		c.Order = "xyz"
	}
	if c.WriteOrder == "" {
		c.WriteOrder = "xyz"
	}
	if c.OutputDir == "" {
		c.OutputDir = "out"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.IKIterations <= 0 {
		c.IKIterations = 500
	}
	def := ik.DefaultConfig()
	if c.IKLearningRate <= 0 {
		c.IKLearningRate = def.LearningRate
	}
	if c.IKBeta1 <= 0 {
		c.IKBeta1 = def.Beta1
	}
	if c.IKBeta2 <= 0 {
		c.IKBeta2 = def.Beta2
	}

	return c.validate()
}

func (c *Config) validate() error {
	switch c.Rotation {
	case RotationEuler, RotationEulerFile, RotationQuaternion:
	default:
		return fmt.Errorf("config: rotation %q is not one of %s", c.Rotation,
			strings.Join([]string{RotationEuler, RotationEulerFile, RotationQuaternion}, ", "))
	}
	if c.Order != "" {
		if _, err := rotation.ParseOrder(c.Order); err != nil {
			return fmt.Errorf("config: order: %w", err)
		}
	}
	if _, err := rotation.ParseOrder(c.WriteOrder); err != nil {
		return fmt.Errorf("config: write_order: %w", err)
	}
	if c.FrameTime < 0 {
		return fmt.Errorf("config: frame_time %v is negative", c.FrameTime)
	}
	if c.IKBeta1 >= 1 || c.IKBeta2 >= 1 {
		return fmt.Errorf("config: ik betas must be below 1, got %v and %v", c.IKBeta1, c.IKBeta2)
	}
	return nil
}

// ParseOptions converts the resolved config into parser options.
func (c *Config) ParseOptions() bvh.Options {
	opts := bvh.Options{World: c.World}
	switch c.Rotation {
	case RotationQuaternion:
		opts.Mode = bvh.Quaternions
	case RotationEuler:
		opts.Mode = bvh.Reordered
		opts.Order, _ = rotation.ParseOrder(c.Order)
	}
	return opts
}

// WriteOptions converts the resolved config into writer options.
func (c *Config) WriteOptions() bvh.WriteOptions {
	order, _ := rotation.ParseOrder(c.WriteOrder)
	return bvh.WriteOptions{Order: order, World: c.World}
}

// SolverConfig converts the resolved config into Adam settings.
func (c *Config) SolverConfig() ik.Config {
	cfg := ik.DefaultConfig()
	cfg.LearningRate = c.IKLearningRate
	cfg.Beta1 = c.IKBeta1
	cfg.Beta2 = c.IKBeta2
	return cfg
}
