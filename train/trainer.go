// Package train runs mini-batch gradient descent on an nn.MLP with a binary
// cross-entropy objective.
package train

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"scalar-grad-explorer/autograd"
	"scalar-grad-explorer/nn"
)

// Trainer runs the training loop: forward, loss, zero grads, backward, step.
type Trainer struct {
	model     *nn.MLP
	cfg       Config
	opt       Optimizer
	rng       *rand.Rand
	params    []*autograd.Value
	callbacks []Callback
}

// Result summarises a Fit call.
type Result struct {
	EpochLoss []float64 // mean per-example loss of each completed epoch
	FinalLoss float64
	Epochs    int
	Stopped   bool // a callback ended training early
}

// New creates a trainer for model. The shuffle order is drawn from a
// generator seeded with cfg.Seed.
func New(model *nn.MLP, cfg Config, callbacks ...Callback) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt, err := newOptimizer(cfg.Optimizer, cfg.LearningRate)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		model:     model,
		cfg:       cfg,
		opt:       opt,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		params:    model.Parameters(),
		callbacks: callbacks,
	}, nil
}

// Fit is shorthand for New followed by Trainer.Fit.
func Fit(model *nn.MLP, inputs, labels [][]float64, cfg Config, callbacks ...Callback) (*Result, error) {
	t, err := New(model, cfg, callbacks...)
	if err != nil {
		return nil, err
	}
	return t.Fit(inputs, labels)
}

// Fit trains for cfg.Epochs epochs. Each epoch visits every example once,
// in a fresh random order unless cfg.NoShuffle is set, in batches of
// cfg.BatchSize; the last batch of an epoch may be smaller.
func (t *Trainer) Fit(inputs, labels [][]float64) (*Result, error) {
	if err := t.checkShapes(inputs, labels); err != nil {
		return nil, err
	}

	for _, cb := range t.callbacks {
		cb.OnTrainBegin(t.model, t.cfg)
	}

	res := &Result{}
	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}
	numBatches := (len(order) + t.cfg.BatchSize - 1) / t.cfg.BatchSize
	losses := make([]float64, 0, numBatches)
	weights := make([]float64, 0, numBatches)

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		t.shuffle(order)

		losses, weights = losses[:0], weights[:0]
		for start := 0; start < len(order); start += t.cfg.BatchSize {
			end := min(start+t.cfg.BatchSize, len(order))
			batchX := make([][]float64, 0, end-start)
			batchY := make([][]float64, 0, end-start)
			for _, idx := range order[start:end] {
				batchX = append(batchX, inputs[idx])
				batchY = append(batchY, labels[idx])
			}

			loss, err := t.step(batchX, batchY)
			if err != nil {
				return nil, fmt.Errorf("epoch %d, batch %d: %w", epoch+1, start/t.cfg.BatchSize, err)
			}
			losses = append(losses, loss)
			weights = append(weights, float64(end-start))
		}

		epochLoss := stat.Mean(losses, weights)
		res.EpochLoss = append(res.EpochLoss, epochLoss)
		res.FinalLoss = epochLoss
		res.Epochs = epoch + 1

		stop := false
		for _, cb := range t.callbacks {
			if cb.OnEpochEnd(epoch, epochLoss) {
				stop = true
			}
		}
		if stop {
			res.Stopped = true
			break
		}
	}

	for _, cb := range t.callbacks {
		cb.OnTrainEnd(res)
	}
	return res, nil
}

// shuffle reorders the example indices for the next epoch.
func (t *Trainer) shuffle(order []int) {
	if t.cfg.NoShuffle {
		return
	}
	t.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
}

// Step performs a single update on one batch and returns its loss.
func (t *Trainer) Step(inputs, labels [][]float64) (float64, error) {
	if err := t.checkShapes(inputs, labels); err != nil {
		return 0, err
	}
	return t.step(inputs, labels)
}

func (t *Trainer) step(inputs, labels [][]float64) (float64, error) {
	loss, err := t.BatchLoss(inputs, labels)
	if err != nil {
		return 0, err
	}

	nn.ZeroGrad(t.params)
	loss.Backward()
	t.opt.Step(t.params)
	return loss.Data, nil
}

// BatchLoss builds the graph of the mean binary cross-entropy over a batch.
// It does not touch gradients or parameters.
func (t *Trainer) BatchLoss(inputs, labels [][]float64) (*autograd.Value, error) {
	perExample := make([]*autograd.Value, len(inputs))
	for i, x := range inputs {
		out, err := t.model.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		l, err := nn.MeanBinaryCrossEntropy(labels[i], out)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		perExample[i] = l
	}
	return autograd.Mean(perExample...)
}

func (t *Trainer) checkShapes(inputs, labels [][]float64) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no examples", ErrShape)
	}
	if len(inputs) != len(labels) {
		return fmt.Errorf("%w: %d inputs, %d labels", ErrShape, len(inputs), len(labels))
	}
	want := t.model.OutputDim()
	for i, y := range labels {
		if len(y) != want {
			return fmt.Errorf("%w: label %d has %d values, network has %d outputs", ErrShape, i, len(y), want)
		}
	}
	return nil
}

// Scalars wraps each label in a one-element target row.
func Scalars(ys []float64) [][]float64 {
	out := make([][]float64, len(ys))
	for i, y := range ys {
		out[i] = []float64{y}
	}
	return out
}
