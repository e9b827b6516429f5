// Package flat implements a feedforward neural network stored as flat arrays.
//
// Layers are indexed output-first: layer 0 is the output layer and the last
// layer is the input layer. Every transition between two adjacent layers owns
// one contiguous block in the weight vector, holding the destination biases
// followed by the row-major weight matrix (one row per destination neuron).
// Block i feeds layer i from layer i+1.
package flat

import (
	"github.com/FlavioCFOliveira/FlatNeuron/internal/activations"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/loss"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Configuration errors, returned by New.
var (
	ErrEmptyTopology     = errors.New("flat network needs an input and an output layer")
	ErrMixedActivation   = errors.New("flat network layers must share one activation function")
	ErrRecurrent         = errors.New("flat network must be feedforward")
	ErrMissingBias       = errors.New("flat network layers must have bias values")
	ErrUnknownActivation = activations.ErrUnknown
	ErrWeightCount       = errors.New("weight vector length does not match topology")
)

// ErrShape is returned when an input or output vector has the wrong length.
var ErrShape = data.ErrShape

// LayerDef describes one layer of the network.
type LayerDef struct {
	Neurons    int
	Activation activations.Type
	// Bias must be set on every layer after the input layer.
	Bias bool
	// Recurrent marks a layer with self or context connections. Such
	// layers cannot be flattened.
	Recurrent bool
}

// Description is the structured form a flat network is built from.
type Description struct {
	// Layers are ordered input layer first. The input layer's activation
	// is ignored.
	Layers []LayerDef

	// Weights optionally holds the initial weight vector in flat order.
	// A nil slice starts every weight at zero.
	Weights []float64
}

// Network is a feedforward network packed into flat arrays.
// It is not safe for concurrent use; use Clone to give each goroutine its own copy.
type Network struct {
	inputCount  int
	outputCount int

	layerCounts    []int
	layerIndex     []int
	weightIndex    []int
	activationType []activations.Type

	weights     []float64
	layerOutput []float64

	hasInputBias bool
}

// New validates a description and builds the flat network.
func New(desc Description) (*Network, error) {
	if err := validate(desc.Layers); err != nil {
		return nil, err
	}

	count := len(desc.Layers)
	n := &Network{
		inputCount:     desc.Layers[0].Neurons,
		outputCount:    desc.Layers[count-1].Neurons,
		layerCounts:    make([]int, count),
		layerIndex:     make([]int, count),
		weightIndex:    make([]int, count),
		activationType: make([]activations.Type, count),
		hasInputBias:   desc.Layers[0].Bias,
	}

	neuronCount := 0
	for i := 0; i < count; i++ {
		def := desc.Layers[count-1-i]
		n.layerCounts[i] = def.Neurons
		n.activationType[i] = def.Activation
		neuronCount += def.Neurons

		if i > 0 {
			n.weightIndex[i] = n.weightIndex[i-1] + n.layerCounts[i-1] + n.layerCounts[i]*n.layerCounts[i-1]
			n.layerIndex[i] = n.layerIndex[i-1] + n.layerCounts[i-1]
		}
	}
	// the input layer has no activation of its own
	n.activationType[count-1] = n.activationType[count-2]

	n.weights = make([]float64, n.weightIndex[count-1])
	n.layerOutput = make([]float64, neuronCount)

	if desc.Weights != nil {
		if err := n.SetArray(desc.Weights); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// NewFeedforward builds a network with the given layer sizes, input first,
// all layers using act.
func NewFeedforward(act activations.Type, counts ...int) (*Network, error) {
	layers := make([]LayerDef, len(counts))
	for i, c := range counts {
		layers[i] = LayerDef{Neurons: c, Activation: act, Bias: i > 0}
	}
	return New(Description{Layers: layers})
}

func validate(layers []LayerDef) error {
	if len(layers) < 2 {
		return errors.Wrapf(ErrEmptyTopology, "%d layers", len(layers))
	}

	act := layers[1].Activation
	for i, l := range layers {
		if l.Neurons <= 0 {
			return errors.Wrapf(ErrEmptyTopology, "layer %d has %d neurons", i, l.Neurons)
		}
		if l.Recurrent {
			return errors.Wrapf(ErrRecurrent, "layer %d", i)
		}
		if i == 0 {
			continue
		}
		if !l.Activation.Valid() {
			return errors.Wrapf(ErrUnknownActivation, "layer %d type %d", i, int(l.Activation))
		}
		if l.Activation != act {
			return errors.Wrapf(ErrMixedActivation, "layer %d is %s, layer 1 is %s", i, l.Activation, act)
		}
		if !l.Bias {
			return errors.Wrapf(ErrMissingBias, "layer %d", i)
		}
	}
	return nil
}

// Compute runs input through the network and writes the result into output.
// It allocates nothing; the per-neuron outputs of the pass remain available
// through LayerOutput until the next call.
func (n *Network) Compute(input, output []float64) error {
	if len(input) != n.inputCount {
		return errors.Wrapf(ErrShape, "input has %d values, network takes %d", len(input), n.inputCount)
	}
	if len(output) != n.outputCount {
		return errors.Wrapf(ErrShape, "output has %d values, network gives %d", len(output), n.outputCount)
	}

	sourceIndex := len(n.layerOutput) - n.inputCount
	copy(n.layerOutput[sourceIndex:], input)

	for i := len(n.layerIndex) - 1; i > 0; i-- {
		n.computeLayer(i)
	}

	copy(output, n.layerOutput[:n.outputCount])
	return nil
}

// computeLayer feeds layer currentLayer-1 from currentLayer.
func (n *Network) computeLayer(currentLayer int) {
	inputIndex := n.layerIndex[currentLayer]
	outputIndex := n.layerIndex[currentLayer-1]
	inputSize := n.layerCounts[currentLayer]
	outputSize := n.layerCounts[currentLayer-1]
	act := n.activationType[currentLayer-1]

	index := n.weightIndex[currentLayer-1]
	source := n.layerOutput[inputIndex : inputIndex+inputSize]
	dest := n.layerOutput[outputIndex : outputIndex+outputSize]

	// bias values
	copy(dest, n.weights[index:index+outputSize])
	index += outputSize

	// weight values
	for x := 0; x < outputSize; x++ {
		row := n.weights[index : index+inputSize]
		var sum float64
		for y, w := range row {
			sum += w * source[y]
		}
		index += inputSize
		dest[x] = act.Activate(dest[x] + sum)
	}
}

// CalculateError returns the root-mean-square error of the network over d.
func (n *Network) CalculateError(d data.Indexable) (float64, error) {
	if d.InputSize() != n.inputCount || d.IdealSize() != n.outputCount {
		return 0, errors.Wrapf(ErrShape, "dataset is %d/%d, network is %d/%d",
			d.InputSize(), d.IdealSize(), n.inputCount, n.outputCount)
	}

	var calc loss.ErrorCalculation
	pair := data.NewPair(d.InputSize(), d.IdealSize())
	actual := make([]float64, n.outputCount)

	for i := 0; i < d.Count(); i++ {
		if err := d.Record(i, pair); err != nil {
			return 0, err
		}
		if err := n.Compute(pair.Input, actual); err != nil {
			return 0, err
		}
		calc.UpdateError(actual, pair.Ideal)
	}
	return calc.Calculate(), nil
}

// Clone returns an independent copy of the network.
func (n *Network) Clone() *Network {
	return &Network{
		inputCount:     n.inputCount,
		outputCount:    n.outputCount,
		layerCounts:    append([]int(nil), n.layerCounts...),
		layerIndex:     append([]int(nil), n.layerIndex...),
		weightIndex:    append([]int(nil), n.weightIndex...),
		activationType: append([]activations.Type(nil), n.activationType...),
		weights:        append([]float64(nil), n.weights...),
		layerOutput:    make([]float64, len(n.layerOutput)),
		hasInputBias:   n.hasInputBias,
	}
}

// Randomize sets every weight and bias to a uniform value in [lo, hi).
// A nil src uses the global source.
func (n *Network) Randomize(lo, hi float64, src rand.Source) {
	dist := distuv.Uniform{Min: lo, Max: hi, Src: src}
	for i := range n.weights {
		n.weights[i] = dist.Rand()
	}
}

// Description reconstructs the structured form of the network, including a
// copy of the current weights.
func (n *Network) Description() Description {
	count := len(n.layerCounts)
	layers := make([]LayerDef, count)
	for i := 0; i < count; i++ {
		src := count - 1 - i
		layers[i] = LayerDef{
			Neurons:    n.layerCounts[src],
			Activation: n.activationType[src],
			Bias:       i > 0 || n.hasInputBias,
		}
	}
	return Description{Layers: layers, Weights: n.Array()}
}
