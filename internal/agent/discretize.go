package agent

import (
	"fmt"
	"math"
	"strconv"
)

// StateKey identifies one discretized state, e.g. "3_4_1_2".
type StateKey string

// Dim bins one element of a feature vector.
type Dim struct {
	Name  string
	Index int // position in the feature vector
	Min   float64
	Max   float64
	Bins  int
}

// Discretizer maps continuous feature vectors onto StateKeys.
// Values outside [Min, Max] fall into the edge bins.
type Discretizer struct {
	dims []Dim
}

// NewDiscretizer validates dims and builds a Discretizer.
func NewDiscretizer(dims ...Dim) (*Discretizer, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("agent: discretizer needs at least one dimension")
	}
	for _, d := range dims {
		if d.Bins < 1 {
			return nil, fmt.Errorf("agent: dimension %q needs at least one bin, got %d", d.Name, d.Bins)
		}
		if !(d.Max > d.Min) {
			return nil, fmt.Errorf("agent: dimension %q has empty range [%g, %g]", d.Name, d.Min, d.Max)
		}
		if d.Index < 0 {
			return nil, fmt.Errorf("agent: dimension %q has negative index %d", d.Name, d.Index)
		}
	}
	return &Discretizer{dims: append([]Dim(nil), dims...)}, nil
}

// Dims returns the configured dimensions.
func (d *Discretizer) Dims() []Dim {
	return append([]Dim(nil), d.dims...)
}

// Width is the minimum feature vector length the discretizer reads.
func (d *Discretizer) Width() int {
	w := 0
	for _, dim := range d.dims {
		if dim.Index+1 > w {
			w = dim.Index + 1
		}
	}
	return w
}

// Cells is the number of distinct keys the discretizer can produce.
func (d *Discretizer) Cells() int {
	n := 1
	for _, dim := range d.dims {
		n *= dim.Bins
	}
	return n
}

// Bin returns the bucket of v in dim, clamped to [0, Bins-1]. NaN maps to 0.
func (dim Dim) Bin(v float64) int {
	if math.IsNaN(v) || v <= dim.Min {
		return 0
	}
	if v >= dim.Max {
		return dim.Bins - 1
	}
	b := int((v - dim.Min) / (dim.Max - dim.Min) * float64(dim.Bins))
	if b >= dim.Bins {
		b = dim.Bins - 1
	}
	return b
}

// Bins returns the bucket of every dimension.
func (d *Discretizer) Bins(features []float64) []int {
	out := make([]int, len(d.dims))
	for i, dim := range d.dims {
		out[i] = dim.Bin(features[dim.Index])
	}
	return out
}

// Key returns the StateKey of a feature vector.
func (d *Discretizer) Key(features []float64) StateKey {
	buf := make([]byte, 0, 4*len(d.dims))
	for i, dim := range d.dims {
		if i > 0 {
			buf = append(buf, '_')
		}
		buf = strconv.AppendInt(buf, int64(dim.Bin(features[dim.Index])), 10)
	}
	return StateKey(buf)
}
