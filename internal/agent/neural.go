package agent

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/vovakirdan/flappy-rl/internal/core"
)

// Layer is one fully connected layer: out = sigmoid(W·in + B).
type Layer struct {
	W *mat.Dense    // rows = outputs, cols = inputs
	B *mat.VecDense // one bias per output
}

// NeuralAgent is a feed-forward network with a topology fixed at construction.
// It does not learn from reward; a trainer assigns fitness and mutates copies.
type NeuralAgent struct {
	sizes  []int
	layers []Layer
}

// NewNeural creates a network with the given layer sizes (input, hidden..., output).
// Weights and biases are drawn uniformly from [-1, 1).
func NewNeural(rng *rand.Rand, sizes ...int) (*NeuralAgent, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("agent: network needs at least input and output layers, got %v", sizes)
	}
	for _, s := range sizes {
		if s < 1 {
			return nil, fmt.Errorf("agent: layer sizes must be positive, got %v", sizes)
		}
	}

	n := &NeuralAgent{
		sizes:  append([]int(nil), sizes...),
		layers: make([]Layer, 0, len(sizes)-1),
	}
	for i := 1; i < len(sizes); i++ {
		in, out := sizes[i-1], sizes[i]
		w := make([]float64, out*in)
		for j := range w {
			w[j] = rng.Float64()*2 - 1
		}
		b := make([]float64, out)
		for j := range b {
			b[j] = rng.Float64()*2 - 1
		}
		n.layers = append(n.layers, Layer{
			W: mat.NewDense(out, in, w),
			B: mat.NewVecDense(out, b),
		})
	}
	return n, nil
}

// Sizes returns the layer sizes.
func (n *NeuralAgent) Sizes() []int {
	return append([]int(nil), n.sizes...)
}

// Forward runs the network. It panics if len(inputs) does not match the input layer.
func (n *NeuralAgent) Forward(inputs []float64) []float64 {
	if len(inputs) != n.sizes[0] {
		panic(fmt.Sprintf("agent: network expects %d inputs, got %d", n.sizes[0], len(inputs)))
	}
	x := mat.NewVecDense(len(inputs), append([]float64(nil), inputs...))
	for _, l := range n.layers {
		rows, _ := l.W.Dims()
		y := mat.NewVecDense(rows, nil)
		y.MulVec(l.W, x)
		y.AddVec(y, l.B)
		for i := 0; i < rows; i++ {
			y.SetVec(i, sigmoid(y.AtVec(i)))
		}
		x = y
	}
	return append([]float64(nil), x.RawVector().Data...)
}

// Decide flaps iff the first output exceeds 0.5.
func (n *NeuralAgent) Decide(features []float64) core.Action {
	return core.ActionFromBool(n.Forward(features)[0] > 0.5)
}

// Mutate gives each weight and bias, independently with probability rate, an
// additive perturbation drawn from U(-scale, scale) excluding zero.
// Returns the number of parameters changed.
func (n *NeuralAgent) Mutate(rng *rand.Rand, rate, scale float64) int {
	changed := 0
	for _, l := range n.layers {
		changed += mutateSlice(rng, l.W.RawMatrix().Data, rate, scale)
		changed += mutateSlice(rng, l.B.RawVector().Data, rate, scale)
	}
	return changed
}

func mutateSlice(rng *rand.Rand, data []float64, rate, scale float64) int {
	if scale <= 0 {
		return 0
	}
	changed := 0
	for i := range data {
		if rng.Float64() >= rate {
			continue
		}
		delta := 0.0
		for delta == 0 {
			delta = (rng.Float64()*2 - 1) * scale
		}
		data[i] += delta
		changed++
	}
	return changed
}

// Clone creates a deep copy of the network.
func (n *NeuralAgent) Clone() *NeuralAgent {
	clone := &NeuralAgent{
		sizes:  append([]int(nil), n.sizes...),
		layers: make([]Layer, len(n.layers)),
	}
	for i, l := range n.layers {
		clone.layers[i] = Layer{
			W: mat.DenseCopyOf(l.W),
			B: mat.VecDenseCopyOf(l.B),
		}
	}
	return clone
}

// Params returns a flat copy of all weights followed by biases, layer by layer.
func (n *NeuralAgent) Params() []float64 {
	var out []float64
	for _, l := range n.layers {
		out = append(out, l.W.RawMatrix().Data...)
		out = append(out, l.B.RawVector().Data...)
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// LayerWeights holds one layer in row-major form for serialization.
type LayerWeights struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	W    []float64 `json:"w"`
	B    []float64 `json:"b"`
}

// NetworkWeights holds a whole network for serialization.
type NetworkWeights struct {
	Sizes  []int          `json:"sizes"`
	Layers []LayerWeights `json:"layers"`
}

// MarshalWeights flattens the network for JSON serialization.
func (n *NeuralAgent) MarshalWeights() NetworkWeights {
	nw := NetworkWeights{Sizes: n.Sizes()}
	for _, l := range n.layers {
		rows, cols := l.W.Dims()
		nw.Layers = append(nw.Layers, LayerWeights{
			Rows: rows,
			Cols: cols,
			W:    append([]float64(nil), l.W.RawMatrix().Data...),
			B:    append([]float64(nil), l.B.RawVector().Data...),
		})
	}
	return nw
}

// NeuralFromWeights restores a network, validating that shapes agree with sizes.
func NeuralFromWeights(nw NetworkWeights) (*NeuralAgent, error) {
	if len(nw.Sizes) < 2 || len(nw.Layers) != len(nw.Sizes)-1 {
		return nil, fmt.Errorf("%w: %d layers for sizes %v", ErrCorruptModel, len(nw.Layers), nw.Sizes)
	}
	n := &NeuralAgent{
		sizes:  append([]int(nil), nw.Sizes...),
		layers: make([]Layer, len(nw.Layers)),
	}
	for i, lw := range nw.Layers {
		in, out := nw.Sizes[i], nw.Sizes[i+1]
		if lw.Rows != out || lw.Cols != in || len(lw.W) != out*in || len(lw.B) != out {
			return nil, fmt.Errorf("%w: layer %d shape mismatch", ErrCorruptModel, i)
		}
		n.layers[i] = Layer{
			W: mat.NewDense(out, in, append([]float64(nil), lw.W...)),
			B: mat.NewVecDense(out, append([]float64(nil), lw.B...)),
		}
	}
	return n, nil
}
