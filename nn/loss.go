package nn

import (
	"errors"
	"fmt"

	"scalar-grad-explorer/autograd"
)

// Epsilon keeps BinaryCrossEntropy away from log(0).
const Epsilon = 1e-7

// ErrInvalidTarget is returned for a binary label outside [0, 1].
var ErrInvalidTarget = errors.New("nn: target must be in [0, 1]")

// BinaryCrossEntropy builds -y·log(p+ε) - (1-y)·log(1-p+ε) for a prediction
// p in [0, 1] and a label y.
func BinaryCrossEntropy(y float64, p *autograd.Value) (*autograd.Value, error) {
	if y < 0 || y > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidTarget, y)
	}
	logP, err := p.AddScalar(Epsilon).Log()
	if err != nil {
		return nil, err
	}
	logQ, err := p.RSubScalar(1 + Epsilon).Log()
	if err != nil {
		return nil, err
	}
	return logP.MulScalar(-y).Sub(logQ.MulScalar(1 - y)), nil
}

// MeanBinaryCrossEntropy averages BinaryCrossEntropy over paired outputs and
// labels.
func MeanBinaryCrossEntropy(ys []float64, ps []*autograd.Value) (*autograd.Value, error) {
	if len(ys) != len(ps) {
		return nil, fmt.Errorf("%w: %d labels for %d outputs", ErrDimensionMismatch, len(ys), len(ps))
	}
	terms := make([]*autograd.Value, len(ps))
	for i, p := range ps {
		l, err := BinaryCrossEntropy(ys[i], p)
		if err != nil {
			return nil, err
		}
		terms[i] = l
	}
	return autograd.Mean(terms...)
}
