// Package train implements gradient-based training of flat networks: the
// gradient workers, the multithreaded trainer that drives them, the ADALINE
// online trainer and a training loop with callbacks.
package train

import (
	"time"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/loss"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// WorkerKind identifies the implementation behind a GradientWorker.
type WorkerKind int

const (
	CPU WorkerKind = iota
	Accelerator
)

func (k WorkerKind) String() string {
	if k == Accelerator {
		return "accelerator"
	}
	return "cpu"
}

// Reporter receives the result of one worker's pass. Report must be safe for
// concurrent use.
type Reporter interface {
	Report(gradients []float64, err float64)
}

// GradientWorker computes error gradients over a shard [low, high) of a
// training set using its own copy of the network.
type GradientWorker interface {
	// Run processes the whole shard and reports to the owner.
	Run() error

	// Weights returns the worker's weight vector. The trainer copies the
	// updated weights into it after every iteration.
	Weights() []float64

	// Elapsed returns the wall-clock time of the last Run.
	Elapsed() time.Duration

	Kind() WorkerKind

	Range() (low, high int)
}

func checkShard(network *flat.Network, training data.Indexable, low, high int) error {
	if training.InputSize() != network.InputCount() || training.IdealSize() != network.OutputCount() {
		return errors.Wrapf(data.ErrShape, "training set is %d/%d, network is %d/%d",
			training.InputSize(), training.IdealSize(), network.InputCount(), network.OutputCount())
	}
	if low < 0 || high > training.Count() || low >= high {
		return errors.Wrapf(data.ErrIndex, "shard [%d,%d) of %d records", low, high, training.Count())
	}
	return nil
}

// CPUWorker backpropagates one example at a time through its private network.
type CPUWorker struct {
	network  *flat.Network
	owner    Reporter
	training data.Indexable
	low      int
	high     int

	pair       *data.Pair
	actual     []float64
	layerDelta []float64
	gradients  []float64
	errorCalc  loss.ErrorCalculation
	elapsed    time.Duration
}

// NewCPUWorker creates a worker over [low, high). The worker takes ownership
// of network, which must not be shared with other goroutines.
func NewCPUWorker(network *flat.Network, owner Reporter, training data.Indexable, low, high int) (*CPUWorker, error) {
	if err := checkShard(network, training, low, high); err != nil {
		return nil, err
	}
	return &CPUWorker{
		network:    network,
		owner:      owner,
		training:   training,
		low:        low,
		high:       high,
		pair:       data.NewPair(training.InputSize(), training.IdealSize()),
		actual:     make([]float64, network.OutputCount()),
		layerDelta: make([]float64, network.NeuronCount()),
		gradients:  make([]float64, network.WeightCount()),
	}, nil
}

// Run computes the gradients of the shard and reports them with the shard's RMS error.
func (w *CPUWorker) Run() error {
	start := time.Now()
	w.errorCalc.Reset()
	clear(w.gradients)

	for i := w.low; i < w.high; i++ {
		if err := w.training.Record(i, w.pair); err != nil {
			return errors.Wrapf(err, "worker [%d,%d)", w.low, w.high)
		}
		if err := w.process(w.pair.Input, w.pair.Ideal); err != nil {
			return errors.Wrapf(err, "worker [%d,%d) record %d", w.low, w.high, i)
		}
	}

	w.owner.Report(w.gradients, w.errorCalc.Calculate())
	w.elapsed = time.Since(start)
	return nil
}

// process runs one example forward and backpropagates its error.
func (w *CPUWorker) process(input, ideal []float64) error {
	if err := w.network.Compute(input, w.actual); err != nil {
		return err
	}
	w.errorCalc.UpdateError(w.actual, ideal)

	act := w.network.Activation(0)
	for i, y := range w.actual {
		w.layerDelta[i] = act.Derivative(y) * (ideal[i] - y)
	}

	for level := 0; level < w.network.LayerCount()-1; level++ {
		w.processLevel(level)
	}
	return nil
}

// processLevel accumulates the gradients of block level and, unless the
// source is the input layer, propagates the deltas to layer level+1.
func (w *CPUWorker) processLevel(level int) {
	n := w.network
	b := n.Block(level)
	out := n.LayerOutput()
	fromIndex := n.LayerIndex()[level+1]
	toIndex := n.LayerIndex()[level]

	source := out[fromIndex : fromIndex+b.From]
	delta := w.layerDelta[toIndex : toIndex+b.To]

	// bias
	biasGrad := w.gradients[b.Offset : b.Offset+b.To]
	for x, d := range delta {
		biasGrad[x] += d
	}

	// weights
	index := b.Offset + b.To
	for _, d := range delta {
		row := w.gradients[index : index+b.From]
		for y, s := range source {
			row[y] += d * s
		}
		index += b.From
	}

	if level+1 == n.LayerCount()-1 {
		return
	}

	act := n.Activation(level + 1)
	next := w.layerDelta[fromIndex : fromIndex+b.From]
	clear(next)
	for x, d := range delta {
		floats.AddScaled(next, d, b.Row(x))
	}
	for y, s := range source {
		next[y] *= act.Derivative(s)
	}
}

// Weights returns the private network's live weight vector.
func (w *CPUWorker) Weights() []float64 { return w.network.Weights() }

// Elapsed returns the duration of the last Run.
func (w *CPUWorker) Elapsed() time.Duration { return w.elapsed }

// Kind returns CPU.
func (w *CPUWorker) Kind() WorkerKind { return CPU }

// Range returns the shard bounds.
func (w *CPUWorker) Range() (int, int) { return w.low, w.high }
