// Package metrics scores binary classifiers.
package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Confusion counts binary outcomes.
type Confusion struct {
	TP, FP, TN, FN int
}

// Threshold maps probabilities to classes: 1 when p >= t, else 0.
func Threshold(ps []float64, t float64) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		if p >= t {
			out[i] = 1
		}
	}
	return out
}

// NewConfusion compares predicted classes against labels; any non-zero
// value counts as the positive class.
func NewConfusion(labels, predicted []float64) (Confusion, error) {
	var c Confusion
	if len(labels) != len(predicted) {
		return c, fmt.Errorf("metrics: %d labels, %d predictions", len(labels), len(predicted))
	}
	for i, y := range labels {
		pos, hit := predicted[i] != 0, y != 0
		switch {
		case pos && hit:
			c.TP++
		case pos:
			c.FP++
		case hit:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

func (c Confusion) Total() int { return c.TP + c.FP + c.TN + c.FN }

// Accuracy is the share of correct predictions, 0 for an empty matrix.
func (c Confusion) Accuracy() float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(c.Total())
}

// Precision and Recall are 0 when their denominator is.
func (c Confusion) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

func (c Confusion) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func (c Confusion) String() string {
	return fmt.Sprintf("True Positive(TP)  = %d\nFalse Positive(FP) = %d\nTrue Negative(TN)  = %d\nFalse Negative(FN) = %d",
		c.TP, c.FP, c.TN, c.FN)
}

// MeanAbsError is the average |label - p| over paired slices.
func MeanAbsError(labels, ps []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	return floats.Distance(labels, ps, 1) / float64(len(labels))
}
