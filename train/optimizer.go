package train

import (
	"fmt"
	"math"
	"strings"

	"scalar-grad-explorer/autograd"
)

// Optimizer applies one update to params from their current gradients.
// Gradients are left untouched.
type Optimizer interface {
	Step(params []*autograd.Value)
}

// SGD is plain gradient descent: p -= lr * grad.
type SGD struct {
	LR float64
}

func (o *SGD) Step(params []*autograd.Value) {
	for _, p := range params {
		p.Data -= o.LR * p.Grad
	}
}

// Adam keeps bias-corrected moving averages of each parameter's gradient
// and squared gradient. The moment slices are sized on the first Step, so
// one Adam must always be stepped with the same parameter list.
type Adam struct {
	LR           float64
	Beta1, Beta2 float64
	Eps          float64

	m, v  []float64
	steps int
}

// NewAdam returns Adam with beta1 0.85, beta2 0.99 and eps 1e-8.
func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.85, Beta2: 0.99, Eps: 1e-8}
}

func (o *Adam) Step(params []*autograd.Value) {
	if o.m == nil {
		o.m = make([]float64, len(params))
		o.v = make([]float64, len(params))
	}
	o.steps++
	c1 := 1 - math.Pow(o.Beta1, float64(o.steps))
	c2 := 1 - math.Pow(o.Beta2, float64(o.steps))

	for i, p := range params {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*p.Grad
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*p.Grad*p.Grad

		mHat := o.m[i] / c1
		vHat := o.v[i] / c2
		p.Data -= o.LR * mHat / (math.Sqrt(vHat) + o.Eps)
	}
}

// newOptimizer resolves Config.Optimizer. The empty name is SGD.
func newOptimizer(name string, lr float64) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "", "sgd":
		return &SGD{LR: lr}, nil
	case "adam":
		return NewAdam(lr), nil
	}
	return nil, fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, name)
}
