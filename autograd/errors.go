package autograd

import (
	"errors"
	"fmt"
)

var (
	// ErrDomain means the operator has no real result for its operand,
	// e.g. log of a non-positive number or division by zero.
	ErrDomain = errors.New("autograd: domain error")

	// ErrInvalidExponent means Pow received an exponent it cannot apply.
	ErrInvalidExponent = errors.New("autograd: invalid exponent")

	// ErrDimensionMismatch means two vectors that must line up do not.
	ErrDimensionMismatch = errors.New("autograd: dimension mismatch")
)

// OpError reports a failed operator with the operand that caused it.
type OpError struct {
	Op       Op
	Operand  float64
	Exponent float64 // only meaningful for OpPow
	Err      error
}

func (e *OpError) Error() string {
	if e.Op == OpPow {
		return fmt.Sprintf("%v: pow(%g, %g)", e.Err, e.Operand, e.Exponent)
	}
	return fmt.Sprintf("%v: %s(%g)", e.Err, e.Op, e.Operand)
}

func (e *OpError) Unwrap() error { return e.Err }
