package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"motionToolkit/src/bvh"
	"motionToolkit/src/rotation"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{"rotation": "quaternion", "write_order": "zyx", "workers": 3, "ik_iterations": 20, "ik_learning_rate": 0.01}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rotation != RotationQuaternion || cfg.WriteOrder != "zyx" || cfg.Workers != 3 || cfg.IKIterations != 20 || cfg.IKLearningRate != 0.01 {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.OutputDir != "" {
		t.Errorf("unset field OutputDir = %q, want empty", cfg.OutputDir)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil || !strings.HasPrefix(err.Error(), "config: read") {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := Load(writeConfig(t, `{"workers": "many"}`)); err == nil || !strings.HasPrefix(err.Error(), "config: parse") {
		t.Errorf("bad json error = %v", err)
	}
}

func TestResolveDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Resolve(Flags{}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Rotation != RotationEulerFile || cfg.WriteOrder != "xyz" || cfg.OutputDir != "out" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Workers != runtime.NumCPU() || cfg.IKIterations != 500 {
		t.Errorf("workers %d iterations %d", cfg.Workers, cfg.IKIterations)
	}
	if cfg.IKLearningRate != 1e-3 || cfg.IKBeta1 != 0.9 || cfg.IKBeta2 != 0.999 {
		t.Errorf("adam defaults = %v %v %v", cfg.IKLearningRate, cfg.IKBeta1, cfg.IKBeta2)
	}
}

func TestResolveFlagsOverride(t *testing.T) {
	cfg := Config{Rotation: RotationQuaternion, OutputDir: "file", Workers: 2, IKIterations: 10}
	err := cfg.Resolve(Flags{Rotation: RotationEuler, Order: "zxy", World: true, OutputDir: "flag", Workers: 7, Iters: 30})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Rotation != RotationEuler || cfg.Order != "zxy" || !cfg.World || cfg.OutputDir != "flag" || cfg.Workers != 7 || cfg.IKIterations != 30 {
		t.Errorf("Resolve() = %+v", cfg)
	}
}

func TestResolveRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"rotation", Config{Rotation: "matrix"}},
		{"order", Config{Order: "xxy"}},
		{"write order", Config{WriteOrder: "ab"}},
		{"frame time", Config{FrameTime: -1}},
		{"beta", Config{IKBeta1: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Resolve(Flags{}); err == nil {
				t.Errorf("Resolve(%+v) should fail", tt.cfg)
			}
		})
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		mode  bvh.Mode
		order rotation.Order
	}{
		{"file order", Config{}, bvh.FileOrder, rotation.Order{}},
		{"reordered", Config{Rotation: RotationEuler, Order: "yzx"}, bvh.Reordered, rotation.YZX},
		{"default reorder", Config{Rotation: RotationEuler}, bvh.Reordered, rotation.XYZ},
		{"quaternion", Config{Rotation: RotationQuaternion}, bvh.Quaternions, rotation.Order{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Resolve(Flags{}); err != nil {
				t.Fatal(err)
			}
			opts := tt.cfg.ParseOptions()
			if opts.Mode != tt.mode || opts.Order != tt.order {
				t.Errorf("ParseOptions() = %+v", opts)
			}
		})
	}

	cfg := Config{WriteOrder: "zyx", World: true, IKLearningRate: 0.05}
	if err := cfg.Resolve(Flags{}); err != nil {
		t.Fatal(err)
	}
	if w := cfg.WriteOptions(); w.Order != rotation.ZYX || !w.World {
		t.Errorf("WriteOptions() = %+v", w)
	}
	if s := cfg.SolverConfig(); s.LearningRate != 0.05 || s.Beta1 != 0.9 || s.Epsilon != 1e-8 {
		t.Errorf("SolverConfig() = %+v", s)
	}
}
