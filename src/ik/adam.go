package ik

import "math"

// Config holds the Adam hyper-parameters.
type Config struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultConfig returns lr 1e-3, betas (0.9, 0.999), epsilon 1e-8.
func DefaultConfig() Config {
	return Config{LearningRate: 1e-3, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// withDefaults replaces non-positive fields by their defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Beta1 <= 0 || c.Beta1 >= 1 {
		c.Beta1 = d.Beta1
	}
	if c.Beta2 <= 0 || c.Beta2 >= 1 {
		c.Beta2 = d.Beta2
	}
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	return c
}

// adam keeps the first and second moment estimates of every parameter.
type adam struct {
	cfg  Config
	m, v []float64
	t    int
}

func newAdam(cfg Config, n int) *adam {
	return &adam{cfg: cfg, m: make([]float64, n), v: make([]float64, n)}
}

// step applies one bias-corrected update to params in place.
func (a *adam) step(params, grad []float64) {
	a.t++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	c1 := 1 - math.Pow(b1, float64(a.t))
	c2 := 1 - math.Pow(b2, float64(a.t))
	for i, g := range grad {
		a.m[i] = b1*a.m[i] + (1-b1)*g
		a.v[i] = b2*a.v[i] + (1-b2)*g*g
		mh := a.m[i] / c1
		vh := a.v[i] / c2
		params[i] -= a.cfg.LearningRate * mh / (math.Sqrt(vh) + a.cfg.Epsilon)
	}
}
