package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"scalar-grad-explorer/dataset"
	"scalar-grad-explorer/metrics"
	"scalar-grad-explorer/nn"
	"scalar-grad-explorer/train"
)

// experiment ties a binary classifier to the data it is trained and
// scored on. Features are stored already scaled.
type experiment struct {
	model  *nn.MLP
	scaler dataset.MinMaxScaler
	train  *dataset.Dataset
	test   *dataset.Dataset
}

// newExperiment scales every feature column onto [0, 1], splits off
// testSplit of the rows, and builds a network of the given widths on top.
// The last width must be 1 and at least one row must be left to train on.
func newExperiment(d *dataset.Dataset, widths []int, cfg nn.Config, testSplit float64, splitSeed int64) (*experiment, error) {
	if len(widths) == 0 || widths[len(widths)-1] != 1 {
		return nil, fmt.Errorf("%w: a binary classifier needs a single output, got widths %v", nn.ErrInvalidArchitecture, widths)
	}
	_, cols := d.Features.Dims()
	model, err := nn.NewMLP(cols, widths, cfg)
	if err != nil {
		return nil, err
	}

	e := &experiment{model: model}
	scaled := *d
	scaled.Features = e.scaler.FitTransform(d.Features)
	if e.train, e.test, err = dataset.Split(&scaled, testSplit, splitSeed); err != nil {
		return nil, err
	}
	if e.train.Len() == 0 {
		return nil, fmt.Errorf("%w: test split %g of %d rows leaves nothing to train on", train.ErrShape, testSplit, d.Len())
	}
	return e, nil
}

// fit trains on the training rows.
func (e *experiment) fit(cfg train.Config, callbacks ...train.Callback) (*train.Result, error) {
	return train.Fit(e.model, e.train.Rows(), train.Scalars(e.train.Labels), cfg, callbacks...)
}

// evaluate scores the test rows, or the training rows when nothing was
// held out, at a 0.5 threshold.
func (e *experiment) evaluate() (metrics.Confusion, error) {
	d := e.test
	if d.Len() == 0 {
		d = e.train
	}
	probs := make([]float64, d.Len())
	for i, x := range d.Rows() {
		out, err := e.model.Output(x)
		if err != nil {
			return metrics.Confusion{}, err
		}
		probs[i] = out.Data
	}
	return metrics.NewConfusion(d.Labels, metrics.Threshold(probs, 0.5))
}

// scale maps raw feature rows into the range the model was trained on.
func (e *experiment) scale(rows [][]float64) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	want := len(e.scaler.Min)
	raw := mat.NewDense(len(rows), want, nil)
	for i, x := range rows {
		if len(x) != want {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", nn.ErrDimensionMismatch, i, len(x), want)
		}
		raw.SetRow(i, x)
	}
	scaled := e.scaler.Transform(raw)
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = mat.Row(nil, i, scaled)
	}
	return out, nil
}
