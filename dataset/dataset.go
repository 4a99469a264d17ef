// Package dataset loads labelled tabular data from CSV and prepares it for
// training: min-max scaling and a seeded train/test split.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrColumn is returned when the target column is missing or a cell is not
// a number.
var ErrColumn = errors.New("dataset: bad column")

// Dataset is a feature matrix with one label per row.
type Dataset struct {
	Columns  []string // feature column names, in matrix order
	Target   string
	Features *mat.Dense
	Labels   []float64
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Labels) }

// Rows copies the feature matrix out row by row.
func (d *Dataset) Rows() [][]float64 {
	r, _ := d.Features.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, d.Features)
	}
	return rows
}

// New builds a dataset from in-memory rows. Columns are named x0, x1, ...
func New(rows [][]float64, labels []float64) (*Dataset, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrColumn)
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("dataset: %d rows, %d labels", len(rows), len(labels))
	}
	c := len(rows[0])
	features := mat.NewDense(len(rows), c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrColumn, i, len(row), c)
		}
		features.SetRow(i, row)
	}
	columns := make([]string, c)
	for j := range columns {
		columns[j] = "x" + strconv.Itoa(j)
	}
	return &Dataset{
		Columns:  columns,
		Features: features,
		Labels:   append([]float64(nil), labels...),
	}, nil
}

// LoadFile opens path and reads it with Load.
func LoadFile(path, target string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, target)
}

// Load reads a CSV with a header row. The column named target becomes the
// labels, every other column a feature.
func Load(r io.Reader, target string) (*Dataset, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset: need a header and at least one row, got %d lines", len(records))
	}

	header := records[0]
	targetIdx := -1
	var columns []string
	for i, name := range header {
		if name == target {
			targetIdx = i
			continue
		}
		columns = append(columns, name)
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: no target column %q", ErrColumn, target)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no feature columns besides %q", ErrColumn, target)
	}

	rows := records[1:]
	features := mat.NewDense(len(rows), len(columns), nil)
	labels := make([]float64, len(rows))
	for i, rec := range rows {
		col := 0
		for j, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", ErrColumn, i+1, header[j], err)
			}
			if j == targetIdx {
				labels[i] = v
				continue
			}
			features.Set(i, col, v)
			col++
		}
	}
	return &Dataset{Columns: columns, Target: target, Features: features, Labels: labels}, nil
}

// MinMaxScaler maps every feature column onto [0, 1] using the range seen
// by Fit.
type MinMaxScaler struct {
	Min []float64
	Max []float64
}

// Fit records the per-column minimum and maximum of m.
func (s *MinMaxScaler) Fit(m mat.Matrix) {
	_, c := m.Dims()
	s.Min = make([]float64, c)
	s.Max = make([]float64, c)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, m)
		s.Min[j] = floats.Min(col)
		s.Max[j] = floats.Max(col)
	}
}

// Transform returns a scaled copy of m. A constant column scales to 0.
// Values outside the fitted range land outside [0, 1].
func (s *MinMaxScaler) Transform(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 {
		span := s.Max[j] - s.Min[j]
		if span == 0 {
			return 0
		}
		return (v - s.Min[j]) / span
	}, m)
	return &out
}

// FitTransform fits on m and returns it scaled.
func (s *MinMaxScaler) FitTransform(m mat.Matrix) *mat.Dense {
	s.Fit(m)
	return s.Transform(m)
}

// Split shuffles the rows with a generator seeded by seed and cuts off
// testFrac of them (rounded up) as the test set.
func Split(d *Dataset, testFrac float64, seed int64) (train, test *Dataset, err error) {
	if testFrac < 0 || testFrac >= 1 {
		return nil, nil, fmt.Errorf("dataset: test fraction must be in [0, 1), got %g", testFrac)
	}
	n := d.Len()
	nTest := int(math.Ceil(float64(n) * testFrac))

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return d.subset(perm[nTest:]), d.subset(perm[:nTest]), nil
}

func (d *Dataset) subset(idx []int) *Dataset {
	_, c := d.Features.Dims()
	out := &Dataset{
		Columns: d.Columns,
		Target:  d.Target,
		Labels:  make([]float64, len(idx)),
	}
	if len(idx) == 0 {
		out.Features = &mat.Dense{}
		return out
	}
	out.Features = mat.NewDense(len(idx), c, nil)
	for i, src := range idx {
		out.Features.SetRow(i, d.Features.RawRowView(src))
		out.Labels[i] = d.Labels[src]
	}
	return out
}
