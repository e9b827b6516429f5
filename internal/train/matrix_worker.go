package train

import (
	"time"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/loss"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MatrixWorker computes the gradients of its whole shard at once with dense
// matrix products. It stands in for an accelerator device: the shard is loaded
// once and every pass is a fixed sequence of batched kernels.
type MatrixWorker struct {
	network *flat.Network
	owner   Reporter
	low     int
	high    int

	ideal     *mat.Dense
	acts      []*mat.Dense // per layer, output first; the last one holds the inputs
	deltas    []*mat.Dense // per non-input layer
	diff      *mat.Dense
	column    []float64
	gradients []float64
	errorCalc loss.ErrorCalculation
	elapsed   time.Duration
}

// NewMatrixWorker loads records [low, high) of training into batch matrices.
// The worker takes ownership of network.
func NewMatrixWorker(network *flat.Network, owner Reporter, training data.Indexable, low, high int) (*MatrixWorker, error) {
	if err := checkShard(network, training, low, high); err != nil {
		return nil, err
	}

	rows := high - low
	counts := network.LayerCounts()
	layers := len(counts)

	w := &MatrixWorker{
		network:   network,
		owner:     owner,
		low:       low,
		high:      high,
		ideal:     mat.NewDense(rows, network.OutputCount(), nil),
		acts:      make([]*mat.Dense, layers),
		deltas:    make([]*mat.Dense, layers-1),
		diff:      mat.NewDense(rows, network.OutputCount(), nil),
		column:    make([]float64, rows),
		gradients: make([]float64, network.WeightCount()),
	}
	for i, c := range counts {
		w.acts[i] = mat.NewDense(rows, c, nil)
		if i < layers-1 {
			w.deltas[i] = mat.NewDense(rows, c, nil)
		}
	}

	input := w.acts[layers-1]
	pair := data.NewPair(training.InputSize(), training.IdealSize())
	for r := 0; r < rows; r++ {
		if err := training.Record(low+r, pair); err != nil {
			return nil, errors.Wrapf(err, "worker [%d,%d)", low, high)
		}
		input.SetRow(r, pair.Input)
		w.ideal.SetRow(r, pair.Ideal)
	}
	return w, nil
}

// Run computes the gradients of the shard and reports them with the shard's RMS error.
func (w *MatrixWorker) Run() error {
	start := time.Now()
	n := w.network
	layers := n.LayerCount()

	// forward: Z = A·Wᵀ + b
	for level := layers - 2; level >= 0; level-- {
		b := n.Block(level)
		weights := mat.NewDense(b.To, b.From, b.Matrix)
		z := w.acts[level]
		z.Mul(w.acts[level+1], weights.T())
		act := n.Activation(level)
		bias := b.Bias
		z.Apply(func(_, j int, v float64) float64 {
			return act.Activate(v + bias[j])
		}, z)
	}

	// output error and delta
	out := w.acts[0]
	w.diff.Sub(w.ideal, out)
	raw := w.diff.RawMatrix().Data
	w.errorCalc.Reset()
	w.errorCalc.UpdateSquared(floats.Dot(raw, raw), len(raw))
	act := n.Activation(0)
	w.deltas[0].Apply(func(i, j int, v float64) float64 {
		return act.Derivative(out.At(i, j)) * v
	}, w.diff)

	// backward: ∇W = Δᵀ·A, Δsrc = (Δ·W) ⊙ f'(A)
	for level := 0; level < layers-1; level++ {
		b := n.Block(level)
		delta := w.deltas[level]
		source := w.acts[level+1]

		for j := 0; j < b.To; j++ {
			w.gradients[b.Offset+j] = floats.Sum(mat.Col(w.column, j, delta))
		}
		off := b.Offset + b.To
		grad := mat.NewDense(b.To, b.From, w.gradients[off:off+b.To*b.From])
		grad.Mul(delta.T(), source)

		if level+1 == layers-1 {
			break
		}
		weights := mat.NewDense(b.To, b.From, b.Matrix)
		next := w.deltas[level+1]
		next.Mul(delta, weights)
		deriv := n.Activation(level + 1)
		next.Apply(func(i, j int, v float64) float64 {
			return v * deriv.Derivative(source.At(i, j))
		}, next)
	}

	w.owner.Report(w.gradients, w.errorCalc.Calculate())
	w.elapsed = time.Since(start)
	return nil
}

// Weights returns the private network's live weight vector.
func (w *MatrixWorker) Weights() []float64 { return w.network.Weights() }

// Elapsed returns the duration of the last Run.
func (w *MatrixWorker) Elapsed() time.Duration { return w.elapsed }

// Kind returns Accelerator.
func (w *MatrixWorker) Kind() WorkerKind { return Accelerator }

// Range returns the shard bounds.
func (w *MatrixWorker) Range() (int, int) { return w.low, w.high }
