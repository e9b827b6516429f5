package flat

import (
	"github.com/FlavioCFOliveira/FlatNeuron/internal/activations"
	"github.com/pkg/errors"
)

// Block is a view of the weights connecting layer From (Level+1) to layer
// To (Level). Bias and Matrix alias the network's weight vector.
type Block struct {
	Level  int
	From   int // source neuron count
	To     int // destination neuron count
	Offset int // start of the block in the weight vector
	Bias   []float64
	Matrix []float64 // To rows of From columns
}

// Weight returns the weight from source neuron from to destination neuron to.
func (b Block) Weight(from, to int) float64 {
	return b.Matrix[to*b.From+from]
}

// Row returns the incoming weights of destination neuron to.
func (b Block) Row(to int) []float64 {
	return b.Matrix[to*b.From : (to+1)*b.From]
}

// Block returns the weight block feeding layer level from layer level+1.
func (n *Network) Block(level int) Block {
	if level < 0 || level >= len(n.layerCounts)-1 {
		panic("flat: block level out of range")
	}
	from, to := n.layerCounts[level+1], n.layerCounts[level]
	off := n.weightIndex[level]
	return Block{
		Level:  level,
		From:   from,
		To:     to,
		Offset: off,
		Bias:   n.weights[off : off+to],
		Matrix: n.weights[off+to : off+to+to*from],
	}
}

// Weight returns the weight from neuron from in layer level+1 to neuron to in layer level.
func (n *Network) Weight(level, from, to int) float64 {
	return n.Block(level).Weight(from, to)
}

// SetWeight sets the weight from neuron from in layer level+1 to neuron to in layer level.
func (n *Network) SetWeight(level, from, to int, v float64) {
	b := n.Block(level)
	b.Matrix[to*b.From+from] = v
}

// AddWeight adds delta to a weight. See SetWeight.
func (n *Network) AddWeight(level, from, to int, delta float64) {
	b := n.Block(level)
	b.Matrix[to*b.From+from] += delta
}

// AddBias adds delta to the bias of neuron to in layer level.
func (n *Network) AddBias(level, to int, delta float64) {
	n.Block(level).Bias[to] += delta
}

// Array returns a copy of the weight vector.
func (n *Network) Array() []float64 {
	return append([]float64(nil), n.weights...)
}

// SetArray copies weights into the network.
func (n *Network) SetArray(weights []float64) error {
	if len(weights) != len(n.weights) {
		return errors.Wrapf(ErrWeightCount, "got %d, want %d", len(weights), len(n.weights))
	}
	copy(n.weights, weights)
	return nil
}

// Weights returns the live weight vector. Writes change the network.
func (n *Network) Weights() []float64 { return n.weights }

// LayerOutput returns the live per-neuron output buffer of the last Compute.
func (n *Network) LayerOutput() []float64 { return n.layerOutput }

// InputCount returns the number of input neurons.
func (n *Network) InputCount() int { return n.inputCount }

// OutputCount returns the number of output neurons.
func (n *Network) OutputCount() int { return n.outputCount }

// LayerCount returns the number of layers, including input and output.
func (n *Network) LayerCount() int { return len(n.layerCounts) }

// LayerCounts returns the neuron count of each layer, output first.
func (n *Network) LayerCounts() []int { return n.layerCounts }

// LayerIndex returns where each layer begins in LayerOutput.
func (n *Network) LayerIndex() []int { return n.layerIndex }

// WeightIndex returns where each layer's block begins in Weights.
func (n *Network) WeightIndex() []int { return n.weightIndex }

// Activation returns the activation of layer i (output first).
func (n *Network) Activation(i int) activations.Type { return n.activationType[i] }

// WeightCount returns the length of the weight vector.
func (n *Network) WeightCount() int { return len(n.weights) }

// NeuronCount returns the total number of neurons.
func (n *Network) NeuronCount() int { return len(n.layerOutput) }
