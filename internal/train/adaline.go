package train

import (
	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/loss"
	"github.com/pkg/errors"
)

// ErrAdalineLayers is returned for networks that are not a single input to
// output layer.
var ErrAdalineLayers = errors.New("ADALINE needs a network of exactly two layers")

// Adaline trains a two-layer network online with the Widrow-Hoff (LMS) rule:
// after every pair each weight moves by lr*(ideal-actual)*input.
type Adaline struct {
	LearningRate float64

	network   *flat.Network
	training  data.Indexable
	pair      *data.Pair
	output    []float64
	errorCalc loss.ErrorCalculation
	err       float64
	iteration int
}

// NewAdaline creates an ADALINE trainer.
func NewAdaline(network *flat.Network, training data.Indexable, learningRate float64) (*Adaline, error) {
	if network.LayerCount() > 2 {
		return nil, errors.Wrapf(ErrAdalineLayers, "got %d layers", network.LayerCount())
	}
	if training.InputSize() != network.InputCount() || training.IdealSize() != network.OutputCount() {
		return nil, errors.Wrapf(data.ErrShape, "training set is %d/%d, network is %d/%d",
			training.InputSize(), training.IdealSize(), network.InputCount(), network.OutputCount())
	}
	return &Adaline{
		LearningRate: learningRate,
		network:      network,
		training:     training,
		pair:         data.NewPair(training.InputSize(), training.IdealSize()),
		output:       make([]float64, network.OutputCount()),
	}, nil
}

// Iteration makes one pass over the training set, updating after every pair.
func (a *Adaline) Iteration() error {
	a.errorCalc.Reset()
	for i := 0; i < a.training.Count(); i++ {
		if err := a.training.Record(i, a.pair); err != nil {
			return errors.Wrapf(err, "ADALINE iteration %d", a.iteration+1)
		}
		if err := a.network.Compute(a.pair.Input, a.output); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		a.errorCalc.UpdateError(a.output, a.pair.Ideal)

		for j, actual := range a.output {
			diff := a.pair.Ideal[j] - actual
			for k, in := range a.pair.Input {
				a.network.AddWeight(0, k, j, a.LearningRate*diff*in)
			}
			a.network.AddBias(0, j, a.LearningRate*diff)
		}
	}
	a.err = a.errorCalc.Calculate()
	a.iteration++
	return nil
}

// Error returns the RMS error of the last pass, measured before each update.
func (a *Adaline) Error() float64 { return a.err }

// IterationNumber returns the number of completed passes.
func (a *Adaline) IterationNumber() int { return a.iteration }

// Network returns the trained network.
func (a *Adaline) Network() *flat.Network { return a.network }
