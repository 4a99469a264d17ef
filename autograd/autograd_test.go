package autograd

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func mustOp(t *testing.T, v *Value, err error) *Value {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

// TestOperatorGradients checks every operator against a centered finite
// difference at random points.
func TestOperatorGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	cases := []struct {
		name string
		dim  int
		lo   float64 // sample range for the inputs
		hi   float64
		f    func(xs []*Value) (*Value, error)
	}{
		{"add", 2, -2, 2, func(xs []*Value) (*Value, error) { return xs[0].Add(xs[1]), nil }},
		{"mul", 2, -2, 2, func(xs []*Value) (*Value, error) { return xs[0].Mul(xs[1]), nil }},
		{"square", 1, -2, 2, func(xs []*Value) (*Value, error) { return xs[0].Mul(xs[0]), nil }},
		{"pow", 1, 0.5, 3, func(xs []*Value) (*Value, error) { return xs[0].Pow(2.5) }},
		{"neg", 1, -2, 2, func(xs []*Value) (*Value, error) { return xs[0].Neg(), nil }},
		{"sub", 2, -2, 2, func(xs []*Value) (*Value, error) { return xs[0].Sub(xs[1]), nil }},
		{"div", 2, 0.5, 3, func(xs []*Value) (*Value, error) { return xs[0].Div(xs[1]) }},
		{"log", 1, 0.2, 4, func(xs []*Value) (*Value, error) { return xs[0].Log() }},
		{"log10", 1, 0.2, 4, func(xs []*Value) (*Value, error) { return xs[0].Log10() }},
		{"exp", 1, -2, 2, func(xs []*Value) (*Value, error) { return xs[0].Exp(), nil }},
		{"tanh", 1, -2, 2, func(xs []*Value) (*Value, error) { return xs[0].Tanh(), nil }},
		{"sigmoid", 1, -4, 4, func(xs []*Value) (*Value, error) { return xs[0].Sigmoid(), nil }},
		{"relu", 1, 0.5, 2, func(xs []*Value) (*Value, error) { return xs[0].ReLU(), nil }},
		{"composed", 3, 0.5, 2, func(xs []*Value) (*Value, error) {
			// log(x*y + 1) * tanh(z) - sigmoid(x / z)
			l, err := xs[0].Mul(xs[1]).AddScalar(1).Log()
			if err != nil {
				return nil, err
			}
			q, err := xs[0].Div(xs[2])
			if err != nil {
				return nil, err
			}
			return l.Mul(xs[2].Tanh()).Sub(q.Sigmoid()), nil
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for trial := 0; trial < 5; trial++ {
				at := make([]float64, tc.dim)
				for i := range at {
					at[i] = tc.lo + rng.Float64()*(tc.hi-tc.lo)
				}
				res, err := GradCheck(tc.f, at, GradCheckConfig{})
				if err != nil {
					t.Fatalf("GradCheck(%v): %v", at, err)
				}
				if !res.OK {
					t.Errorf("at %v: analytic %v, numeric %v (diff %g)", at, res.Analytic, res.Numeric, res.MaxAbsDiff)
				}
			}
		})
	}
}

func TestFanOutAccumulates(t *testing.T) {
	x := New(3)
	a := x.Mul(x)
	b := x.AddScalar(1)
	c := a.Add(b)
	c.Backward()

	if want := 2*x.Data + 1; x.Grad != want {
		t.Errorf("expected x.Grad = %f, got %f", want, x.Grad)
	}
}

func TestSquareHasOneParent(t *testing.T) {
	x := New(4)
	y := x.Mul(x)
	if len(y.Parents()) != 1 || y.Parents()[0] != x {
		t.Fatalf("expected a single parent x, got %v", y.Parents())
	}
	y.Backward()
	if x.Grad != 8 {
		t.Errorf("expected grad 8, got %f", x.Grad)
	}
}

func TestConstructionDoesNoGradientWork(t *testing.T) {
	x, y := New(2), New(5)
	z := x.Mul(y).Tanh()
	if x.Grad != 0 || y.Grad != 0 || z.Grad != 0 {
		t.Errorf("expected zero gradients before Backward, got %f %f %f", x.Grad, y.Grad, z.Grad)
	}
}

func buildExpr(x, y *Value) *Value {
	// (x*y + x).sigmoid() + y*y
	return x.Mul(y).Add(x).Sigmoid().Add(y.Mul(y))
}

func TestBackwardWithoutResetDoubles(t *testing.T) {
	x, y := New(0.3), New(-1.2)
	out := buildExpr(x, y)

	out.Backward()
	gx, gy := x.Grad, y.Grad

	out.Backward()
	if !scalar.EqualWithinAbs(x.Grad, 2*gx, 1e-12) || !scalar.EqualWithinAbs(y.Grad, 2*gy, 1e-12) {
		t.Errorf("expected doubled grads (%f, %f), got (%f, %f)", 2*gx, 2*gy, x.Grad, y.Grad)
	}
}

func TestBackwardAfterResetIsDeterministic(t *testing.T) {
	x, y := New(0.3), New(-1.2)
	out := buildExpr(x, y)

	out.Backward()
	first := []float64{x.Grad, y.Grad}

	x.ZeroGrad()
	y.ZeroGrad()
	out.Backward()
	second := []float64{x.Grad, y.Grad}

	if !floats.Equal(first, second) {
		t.Errorf("expected identical grads after reset, got %v then %v", first, second)
	}
}

func TestTopoSortDiamond(t *testing.T) {
	x := New(1)
	a := x.AddScalar(1)
	b := x.MulScalar(2)
	d := a.Mul(b)

	topo := TopoSort(d)
	pos := make(map[*Value]int)
	for i, n := range topo {
		if _, dup := pos[n]; dup {
			t.Fatalf("node %v emitted twice", n)
		}
		pos[n] = i
	}
	for _, n := range topo {
		for _, p := range n.Parents() {
			if pos[p] >= pos[n] {
				t.Errorf("parent %v emitted after child %v", p, n)
			}
		}
	}
	if topo[len(topo)-1] != d {
		t.Errorf("expected root last, got %v", topo[len(topo)-1])
	}
}

func TestTopoSortTerminatesOnCycle(t *testing.T) {
	a := New(1)
	b := a.AddScalar(1)
	a.parents = []*Value{b} // never happens through the operators

	if n := len(TopoSort(b)); n != 3 {
		t.Errorf("expected 3 nodes, got %d", n)
	}
}

func TestDeepChain(t *testing.T) {
	const n = 200000
	leaves := make([]*Value, n)
	for i := range leaves {
		leaves[i] = New(float64(i))
	}
	s := Sum(leaves...)
	s.Backward()
	for _, l := range []*Value{leaves[0], leaves[n/2], leaves[n-1]} {
		if l.Grad != 1 {
			t.Fatalf("expected grad 1, got %f", l.Grad)
		}
	}
}

func TestSigmoidConvention(t *testing.T) {
	if s := New(0).Sigmoid().Data; s != 0.5 {
		t.Errorf("expected sigmoid(0) = 0.5, got %f", s)
	}
	if New(2).Sigmoid().Data <= New(-2).Sigmoid().Data {
		t.Error("expected sigmoid to be increasing")
	}
	for _, x := range []float64{-1000, 1000} {
		s := New(x).Sigmoid().Data
		if math.IsNaN(s) || s < 0 || s > 1 {
			t.Errorf("sigmoid(%f) = %f", x, s)
		}
	}
}

func TestOperatorErrors(t *testing.T) {
	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"log zero", func() error { _, err := New(0).Log(); return err }, ErrDomain},
		{"log negative", func() error { _, err := New(-1).Log10(); return err }, ErrDomain},
		{"div zero", func() error { _, err := New(1).DivScalar(0); return err }, ErrDomain},
		{"fractional pow of negative", func() error { _, err := New(-2).Pow(0.5); return err }, ErrDomain},
		{"sqrt of zero", func() error { _, err := New(0).Pow(0.5); return err }, ErrDomain},
		{"nan exponent", func() error { _, err := New(2).Pow(math.NaN()); return err }, ErrInvalidExponent},
		{"mean of nothing", func() error { _, err := Mean(); return err }, ErrDomain},
		{"dot lengths", func() error { _, err := Dot(Vector([]float64{1}), nil); return err }, ErrDimensionMismatch},
	}
	for _, tc := range cases {
		err := tc.run()
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	_, err := New(-3).Log()
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != OpLog || opErr.Operand != -3 {
		t.Errorf("expected *OpError for log(-3), got %#v", err)
	}
}

func TestPowNegativeIntegerExponent(t *testing.T) {
	x := New(-2)
	y, err := x.Pow(3)
	y = mustOp(t, y, err)
	if y.Data != -8 {
		t.Errorf("expected -8, got %f", y.Data)
	}
	y.Backward()
	if x.Grad != 12 {
		t.Errorf("expected grad 12, got %f", x.Grad)
	}
}

func TestMarshalDOT(t *testing.T) {
	x := New(2)
	y := x.Mul(x).AddScalar(1)
	y.Backward()

	out, err := MarshalDOT(y, DOTOptions{})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{"digraph", "rankdir=LR", "shape=record", "data 2.0000 | grad 4.0000", "{ + | data 5.0000"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected DOT to contain %q:\n%s", want, s)
		}
	}
	_, edges := Trace(y)
	if got := strings.Count(s, "->"); got != len(edges) {
		t.Errorf("expected %d edges, got %d", len(edges), got)
	}

	if _, err := MarshalDOT(y, DOTOptions{RankDir: "RL"}); !errors.Is(err, ErrInvalidRankDir) {
		t.Errorf("expected ErrInvalidRankDir, got %v", err)
	}
}

func TestPowZeroBase(t *testing.T) {
	x := New(0)
	y, err := x.Pow(0)
	y = mustOp(t, y, err)
	y.Backward()
	if y.Data != 1 || x.Grad != 0 {
		t.Errorf("pow(0, 0): expected data 1 grad 0, got data %f grad %f", y.Data, x.Grad)
	}

	x = New(0)
	y, err = x.Pow(2)
	y = mustOp(t, y, err)
	y.Backward()
	if y.Data != 0 || x.Grad != 0 {
		t.Errorf("pow(0, 2): expected data 0 grad 0, got data %f grad %f", y.Data, x.Grad)
	}

	for _, k := range []float64{0.5, 0.999, -1} {
		if _, err := New(0).Pow(k); !errors.Is(err, ErrDomain) {
			t.Errorf("pow(0, %g): expected ErrDomain, got %v", k, err)
		}
	}
}
