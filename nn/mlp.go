// Package nn composes autograd values into neurons, layers and a
// multi-layer perceptron.
package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"scalar-grad-explorer/autograd"
)

var (
	// ErrDimensionMismatch is returned when an input vector does not match
	// the fan-in of the neuron, layer or network it is fed to.
	ErrDimensionMismatch = autograd.ErrDimensionMismatch

	// ErrInvalidArchitecture is returned for non-positive dimensions.
	ErrInvalidArchitecture = errors.New("nn: invalid architecture")
)

// Neuron holds one weight per input and a bias.
type Neuron struct {
	Weights []*autograd.Value
	Bias    *autograd.Value
	act     Activation
}

// NewNeuron draws every weight and the bias uniformly from [-1, 1].
func NewNeuron(fanIn int, act Activation, rng *rand.Rand) *Neuron {
	w := make([]*autograd.Value, fanIn)
	for i := range w {
		w[i] = autograd.New(rng.Float64()*2 - 1)
	}
	return &Neuron{
		Weights: w,
		Bias:    autograd.New(rng.Float64()*2 - 1),
		act:     act,
	}
}

// Forward computes act(b + Σ wᵢxᵢ).
func (n *Neuron) Forward(x []*autograd.Value) (*autograd.Value, error) {
	if len(x) != len(n.Weights) {
		return nil, fmt.Errorf("%w: neuron expects %d inputs, got %d", ErrDimensionMismatch, len(n.Weights), len(x))
	}
	sum := n.Bias
	for i, w := range n.Weights {
		sum = sum.Add(w.Mul(x[i]))
	}
	return n.act.Apply(sum), nil
}

// Parameters returns the weights followed by the bias.
func (n *Neuron) Parameters() []*autograd.Value {
	params := make([]*autograd.Value, 0, len(n.Weights)+1)
	params = append(params, n.Weights...)
	return append(params, n.Bias)
}

// Layer is a row of neurons sharing the same inputs.
type Layer struct {
	Neurons []*Neuron
	fanIn   int
}

// NewLayer builds width neurons that each take fanIn inputs.
func NewLayer(fanIn, width int, act Activation, rng *rand.Rand) *Layer {
	neurons := make([]*Neuron, width)
	for i := range neurons {
		neurons[i] = NewNeuron(fanIn, act, rng)
	}
	return &Layer{Neurons: neurons, fanIn: fanIn}
}

// Forward returns one output per neuron.
func (l *Layer) Forward(x []*autograd.Value) ([]*autograd.Value, error) {
	if len(x) != l.fanIn {
		return nil, fmt.Errorf("%w: layer expects %d inputs, got %d", ErrDimensionMismatch, l.fanIn, len(x))
	}
	out := make([]*autograd.Value, len(l.Neurons))
	for i, n := range l.Neurons {
		v, err := n.Forward(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// FanIn is the number of inputs every neuron takes.
func (l *Layer) FanIn() int { return l.fanIn }

// Width is the number of neurons, and so of outputs.
func (l *Layer) Width() int { return len(l.Neurons) }

// Parameters returns each neuron's parameters in neuron order.
func (l *Layer) Parameters() []*autograd.Value {
	var params []*autograd.Value
	for _, n := range l.Neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}

// Config controls MLP construction.
//
// Notes:
//   - Seed feeds a private generator unless Rand is set, so two networks
//     built from the same config start from the same weights.
//   - Hidden applies to every layer but the last, Output to the last one.
//     Both default to Sigmoid.
type Config struct {
	Seed   int64
	Rand   *rand.Rand
	Hidden Activation
	Output Activation
}

// MLP is a stack of fully connected layers.
type MLP struct {
	Layers   []*Layer
	inputDim int
}

// NewMLP builds layers of the given widths, each taking the previous
// layer's width (inputDim for the first) as its fan-in.
func NewMLP(inputDim int, widths []int, cfg Config) (*MLP, error) {
	if inputDim <= 0 {
		return nil, fmt.Errorf("%w: input dimension %d", ErrInvalidArchitecture, inputDim)
	}
	if len(widths) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidArchitecture)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	m := &MLP{inputDim: inputDim}
	fanIn := inputDim
	for i, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("%w: layer %d has width %d", ErrInvalidArchitecture, i, w)
		}
		act := cfg.Hidden
		if i == len(widths)-1 {
			act = cfg.Output
		}
		m.Layers = append(m.Layers, NewLayer(fanIn, w, act, rng))
		fanIn = w
	}
	return m, nil
}

// Forward lifts x into leaves and runs it through every layer.
func (m *MLP) Forward(x []float64) ([]*autograd.Value, error) {
	return m.ForwardValues(autograd.Vector(x))
}

// ForwardValues runs already-lifted inputs through every layer.
func (m *MLP) ForwardValues(x []*autograd.Value) ([]*autograd.Value, error) {
	if len(x) != m.inputDim {
		return nil, fmt.Errorf("%w: network expects %d inputs, got %d", ErrDimensionMismatch, m.inputDim, len(x))
	}
	out := x
	for i, l := range m.Layers {
		var err error
		if out, err = l.Forward(out); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return out, nil
}

// Output evaluates a network whose last layer has a single neuron and
// returns that neuron's value.
func (m *MLP) Output(x []float64) (*autograd.Value, error) {
	if w := m.OutputDim(); w != 1 {
		return nil, fmt.Errorf("%w: network has %d outputs, not 1", ErrDimensionMismatch, w)
	}
	out, err := m.Forward(x)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Predict returns the raw output numbers for x.
func (m *MLP) Predict(x []float64) ([]float64, error) {
	out, err := m.Forward(x)
	if err != nil {
		return nil, err
	}
	preds := make([]float64, len(out))
	for i, v := range out {
		preds[i] = v.Data
	}
	return preds, nil
}

// Parameters returns every weight and bias, layer by layer and neuron by
// neuron, weights before bias. The order never changes.
func (m *MLP) Parameters() []*autograd.Value {
	var params []*autograd.Value
	for _, l := range m.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// NumParams counts weights and biases without building the parameter list.
func (m *MLP) NumParams() int {
	n := 0
	for _, l := range m.Layers {
		n += l.Width() * (l.FanIn() + 1)
	}
	return n
}

// InputDim is the length of the vectors Forward accepts.
func (m *MLP) InputDim() int { return m.inputDim }

// OutputDim is the width of the last layer.
func (m *MLP) OutputDim() int { return m.Layers[len(m.Layers)-1].Width() }

// Widths lists the neuron count of each layer.
func (m *MLP) Widths() []int {
	w := make([]int, len(m.Layers))
	for i, l := range m.Layers {
		w[i] = l.Width()
	}
	return w
}

// Snapshot copies the parameter values out, one slice per layer.
func (m *MLP) Snapshot() [][]float64 {
	snap := make([][]float64, len(m.Layers))
	for i, l := range m.Layers {
		params := l.Parameters()
		snap[i] = make([]float64, len(params))
		for j, p := range params {
			snap[i][j] = p.Data
		}
	}
	return snap
}

// Restore writes values taken by Snapshot back into the parameters.
func (m *MLP) Restore(snap [][]float64) error {
	if len(snap) != len(m.Layers) {
		return fmt.Errorf("%w: snapshot has %d layers, network has %d", ErrDimensionMismatch, len(snap), len(m.Layers))
	}
	for i, l := range m.Layers {
		params := l.Parameters()
		if len(snap[i]) != len(params) {
			return fmt.Errorf("%w: layer %d snapshot has %d values, want %d", ErrDimensionMismatch, i, len(snap[i]), len(params))
		}
		for j, p := range params {
			p.Data = snap[i][j]
		}
	}
	return nil
}

// ZeroGrad resets the gradient of every value in params.
func ZeroGrad(params []*autograd.Value) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
