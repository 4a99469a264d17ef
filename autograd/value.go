// Package autograd is a tiny reverse-mode automatic differentiation engine
// over scalar values.
//
// Every operator returns a new *Value that remembers the operands it was
// built from. Calling Backward on a result walks that graph in reverse
// topological order and accumulates d(result)/d(node) into each node's Grad.
package autograd

import (
	"fmt"
	"math"
)

// Op identifies the local derivative rule attached to a Value.
type Op uint8

const (
	OpLeaf Op = iota
	OpAdd
	OpMul
	OpPow
	OpLog
	OpExp
	OpTanh
	OpSigmoid
	OpReLU
)

var opNames = [...]string{
	OpLeaf:    "leaf",
	OpAdd:     "+",
	OpMul:     "*",
	OpPow:     "pow",
	OpLog:     "log",
	OpExp:     "exp",
	OpTanh:    "tanh",
	OpSigmoid: "sigmoid",
	OpReLU:    "relu",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Value is one scalar in the computation graph.
//
// Think of it as a "number with memory":
//   - Data is the forward-computed number.
//   - Grad is how much the root of the last backward pass changes when Data
//     changes a little. It only ever accumulates; callers reset it.
//   - args are the operands in call order, used by the derivative rule.
//   - parents is the same set with duplicates removed, used for traversal.
type Value struct {
	Data float64
	Grad float64

	op      Op
	args    []*Value
	parents []*Value

	// exponent for OpPow, cached forward result for OpExp/OpTanh/OpSigmoid.
	aux float64
}

// New creates a leaf node (a plain number with no parents).
func New(data float64) *Value {
	return &Value{Data: data}
}

// Vector lifts every element of xs into a leaf.
func Vector(xs []float64) []*Value {
	out := make([]*Value, len(xs))
	for i, x := range xs {
		out[i] = New(x)
	}
	return out
}

func newNode(data float64, op Op, aux float64, args ...*Value) *Value {
	v := &Value{Data: data, op: op, aux: aux, args: args}
	switch len(args) {
	case 1:
		v.parents = args
	case 2:
		if args[0] == args[1] {
			v.parents = args[:1]
		} else {
			v.parents = args
		}
	}
	return v
}

// Op reports which operator produced v.
func (v *Value) Op() Op { return v.op }

// IsLeaf is true for inputs, constants and parameters.
func (v *Value) IsLeaf() bool { return len(v.parents) == 0 }

// Parents returns the distinct nodes v was derived from. The slice is shared
// with the graph and must not be modified.
func (v *Value) Parents() []*Value { return v.parents }

// ZeroGrad resets the accumulated gradient.
func (v *Value) ZeroGrad() { v.Grad = 0 }

func (v *Value) String() string {
	return fmt.Sprintf("Value(data=%g, grad=%g, op=%s)", v.Data, v.Grad, v.op)
}

// propagate adds v's contribution to the gradient of each operand, using the
// already-complete v.Grad. It must run once per backward pass, after every
// node that uses v as an operand has run its own propagate.
func (v *Value) propagate() {
	g := v.Grad
	switch v.op {
	case OpAdd:
		v.args[0].Grad += g
		v.args[1].Grad += g
	case OpMul:
		a, b := v.args[0], v.args[1]
		a.Grad += b.Data * g
		b.Grad += a.Data * g
	case OpPow:
		// x^0 is constant.
		if v.aux != 0 {
			a := v.args[0]
			a.Grad += v.aux * math.Pow(a.Data, v.aux-1) * g
		}
	case OpLog:
		a := v.args[0]
		a.Grad += g / a.Data
	case OpExp:
		v.args[0].Grad += v.aux * g
	case OpTanh:
		v.args[0].Grad += (1 - v.aux*v.aux) * g
	case OpSigmoid:
		v.args[0].Grad += v.aux * (1 - v.aux) * g
	case OpReLU:
		if v.args[0].Data > 0 {
			v.args[0].Grad += g
		}
	}
}
