package autograd

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// GradCheckConfig tunes the finite-difference comparison. Zero fields fall
// back to a step of 1e-6 and a tolerance of 1e-4.
type GradCheckConfig struct {
	Step      float64
	Tolerance float64
}

// GradCheckResult holds both gradients of f at the checked point.
type GradCheckResult struct {
	Analytic   []float64
	Numeric    []float64
	MaxAbsDiff float64
	OK         bool
}

// GradCheck compares the gradient from one backward pass through f with a
// centered finite-difference estimate at the point at. f must build its
// result from the leaves it is given; it is called once per perturbation.
func GradCheck(f func(xs []*Value) (*Value, error), at []float64, cfg GradCheckConfig) (GradCheckResult, error) {
	if cfg.Step == 0 {
		cfg.Step = 1e-6
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = 1e-4
	}

	leaves := Vector(at)
	out, err := f(leaves)
	if err != nil {
		return GradCheckResult{}, err
	}
	out.Backward()
	analytic := make([]float64, len(leaves))
	for i, l := range leaves {
		analytic[i] = l.Grad
	}

	var evalErr error
	scalar := func(x []float64) float64 {
		v, err := f(Vector(x))
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.NaN()
		}
		return v.Data
	}
	numeric := fd.Gradient(nil, scalar, at, &fd.Settings{
		Formula: fd.Central,
		Step:    cfg.Step,
	})
	if evalErr != nil {
		return GradCheckResult{}, evalErr
	}

	diff := 0.0
	if len(at) > 0 {
		diff = floats.Distance(analytic, numeric, math.Inf(1))
	}
	return GradCheckResult{
		Analytic:   analytic,
		Numeric:    numeric,
		MaxAbsDiff: diff,
		OK:         diff <= cfg.Tolerance,
	}, nil
}
