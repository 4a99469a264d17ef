package autograd

import (
	"fmt"
	"math"
)

// Add creates node z = x + y.
// Local derivatives:
// dz/dx = 1
// dz/dy = 1
func (v *Value) Add(other *Value) *Value {
	return newNode(v.Data+other.Data, OpAdd, 0, v, other)
}

// AddScalar creates node z = x + c, lifting c into a leaf.
func (v *Value) AddScalar(c float64) *Value {
	return v.Add(New(c))
}

// Mul creates node z = x * y.
// Local derivatives:
// dz/dx = y
// dz/dy = x
//
// x.Mul(x) has a single parent but both operand slots still contribute,
// so the gradient comes out as 2x.
func (v *Value) Mul(other *Value) *Value {
	return newNode(v.Data*other.Data, OpMul, 0, v, other)
}

// MulScalar creates node z = x * c, lifting c into a leaf.
func (v *Value) MulScalar(c float64) *Value {
	return v.Mul(New(c))
}

// Pow creates node z = x^k for a constant k.
// Local derivative:
// dz/dx = k * x^(k-1)
//
// A non-finite exponent is ErrInvalidExponent. A negative base with a
// fractional exponent, or a zero base with an exponent below 1 other than
// 0, is ErrDomain: the value or its derivative is not a real number.
// x^0 is 1 with a zero derivative everywhere.
func (v *Value) Pow(k float64) (*Value, error) {
	x := v.Data
	switch {
	case math.IsNaN(k) || math.IsInf(k, 0):
		return nil, &OpError{Op: OpPow, Operand: x, Exponent: k, Err: ErrInvalidExponent}
	case x < 0 && k != math.Trunc(k):
		return nil, &OpError{Op: OpPow, Operand: x, Exponent: k, Err: ErrDomain}
	case x == 0 && k < 1 && k != 0:
		return nil, &OpError{Op: OpPow, Operand: x, Exponent: k, Err: ErrDomain}
	}
	return newNode(math.Pow(x, k), OpPow, k, v), nil
}

// Neg creates node z = -x, expressed as x * -1.
func (v *Value) Neg() *Value {
	return v.MulScalar(-1)
}

// Sub creates node z = x - y, expressed as x + (-y).
func (v *Value) Sub(other *Value) *Value {
	return v.Add(other.Neg())
}

// SubScalar creates node z = x - c.
func (v *Value) SubScalar(c float64) *Value {
	return v.Add(New(-c))
}

// RSubScalar creates node z = c - x.
func (v *Value) RSubScalar(c float64) *Value {
	return v.Neg().AddScalar(c)
}

// Div creates node z = x / y, expressed as x * y^-1.
func (v *Value) Div(other *Value) (*Value, error) {
	inv, err := other.Pow(-1)
	if err != nil {
		return nil, err
	}
	return v.Mul(inv), nil
}

// DivScalar creates node z = x / c.
func (v *Value) DivScalar(c float64) (*Value, error) {
	return v.Div(New(c))
}

// Log creates node z = ln(x).
// Local derivative:
// dz/dx = 1/x
func (v *Value) Log() (*Value, error) {
	if v.Data <= 0 || math.IsNaN(v.Data) {
		return nil, &OpError{Op: OpLog, Operand: v.Data, Err: ErrDomain}
	}
	return newNode(math.Log(v.Data), OpLog, 0, v), nil
}

// Log10 creates node z = log10(x) = ln(x) / ln(10).
func (v *Value) Log10() (*Value, error) {
	ln, err := v.Log()
	if err != nil {
		return nil, err
	}
	return ln.MulScalar(1 / math.Ln10), nil
}

// Exp creates node z = e^x.
// Local derivative:
// dz/dx = e^x
func (v *Value) Exp() *Value {
	e := math.Exp(v.Data)
	return newNode(e, OpExp, e, v)
}

// Tanh creates node z = tanh(x).
// Local derivative:
// dz/dx = 1 - tanh(x)^2
func (v *Value) Tanh() *Value {
	t := math.Tanh(v.Data)
	return newNode(t, OpTanh, t, v)
}

// Sigmoid creates node z = 1 / (1 + e^-x), the increasing logistic curve.
// Local derivative:
// dz/dx = z * (1 - z)
func (v *Value) Sigmoid() *Value {
	s := sigmoid(v.Data)
	return newNode(s, OpSigmoid, s, v)
}

func sigmoid(x float64) float64 {
	// Split on sign so exp never overflows.
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// ReLU creates node z = max(0, x).
// Local derivative:
// 1 when x > 0, otherwise 0.
func (v *Value) ReLU() *Value {
	return newNode(math.Max(0, v.Data), OpReLU, 0, v)
}

// Sum adds vs left to right. An empty sum is a zero leaf.
func Sum(vs ...*Value) *Value {
	if len(vs) == 0 {
		return New(0)
	}
	acc := vs[0]
	for _, v := range vs[1:] {
		acc = acc.Add(v)
	}
	return acc
}

// Mean averages vs as Sum(vs) * 1/n.
func Mean(vs ...*Value) (*Value, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: mean of no values", ErrDomain)
	}
	return Sum(vs...).MulScalar(1 / float64(len(vs))), nil
}

// Dot computes Σ a[i]*b[i]. The slices must have equal length.
func Dot(a, b []*Value) (*Value, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: dot of lengths %d and %d", ErrDimensionMismatch, len(a), len(b))
	}
	terms := make([]*Value, len(a))
	for i := range a {
		terms[i] = a[i].Mul(b[i])
	}
	return Sum(terms...), nil
}
