package nn

import (
	"fmt"
	"strings"

	"scalar-grad-explorer/autograd"
)

// Activation is the nonlinearity a neuron applies to its weighted sum.
// The zero value is Sigmoid, the activation of the reference network.
type Activation uint8

const (
	Sigmoid Activation = iota
	Tanh
	ReLU
	Linear
)

// Apply builds the activation node on top of v.
func (a Activation) Apply(v *autograd.Value) *autograd.Value {
	switch a {
	case Tanh:
		return v.Tanh()
	case ReLU:
		return v.ReLU()
	case Linear:
		return v
	default:
		return v.Sigmoid()
	}
}

func (a Activation) String() string {
	switch a {
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case ReLU:
		return "relu"
	case Linear:
		return "linear"
	}
	return fmt.Sprintf("Activation(%d)", uint8(a))
}

// ParseActivation maps a name such as "tanh" to its Activation.
// The empty string is Sigmoid.
func ParseActivation(s string) (Activation, error) {
	switch strings.ToLower(s) {
	case "", "sigmoid":
		return Sigmoid, nil
	case "tanh":
		return Tanh, nil
	case "relu":
		return ReLU, nil
	case "linear", "identity":
		return Linear, nil
	}
	return 0, fmt.Errorf("nn: unknown activation %q", s)
}
