// Package flatneuron is the public entry point of the library. It re-exports
// the flat network, datasets, strategies and trainers.
package flatneuron

import (
	"github.com/FlavioCFOliveira/FlatNeuron/internal/activations"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/opt"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/train"
)

// Re-export common types for easier access
type (
	Network      = flat.Network
	Description  = flat.Description
	LayerDef     = flat.LayerDef
	Activation   = activations.Type
	Dataset      = data.Indexable
	Pair         = data.Pair
	Strategy     = opt.Strategy
	Trainer      = train.Trainer
	Config       = train.Config
	Continuation = train.Continuation
	Callback     = train.Callback
	Variant      = opt.Variant
)

// Activations
const (
	Linear  = activations.Linear
	Tanh    = activations.Tanh
	Sigmoid = activations.Sigmoid
)

// RPROP variants
const (
	RPROPPlus   = opt.RPROPPlus
	RPROPMinus  = opt.RPROPMinus
	IRPROPPlus  = opt.IRPROPPlus
	IRPROPMinus = opt.IRPROPMinus
)

// Errors
var (
	ErrEmptyTopology     = flat.ErrEmptyTopology
	ErrMixedActivation   = flat.ErrMixedActivation
	ErrRecurrent         = flat.ErrRecurrent
	ErrMissingBias       = flat.ErrMissingBias
	ErrUnknownActivation = flat.ErrUnknownActivation
	ErrWeightCount       = flat.ErrWeightCount
	ErrShape             = data.ErrShape
	ErrAdalineLayers     = train.ErrAdalineLayers
	ErrUnknownStrategy   = opt.ErrUnknownStrategy
	ErrDisposed          = train.ErrDisposed
	ErrInvalidResume     = train.ErrInvalidResume
)

// Networks
func NewNetwork(desc Description) (*Network, error) {
	return flat.New(desc)
}

func NewFeedforward(act Activation, counts ...int) (*Network, error) {
	return flat.NewFeedforward(act, counts...)
}

func Load(filename string) (*Network, error) {
	return flat.Load(filename)
}

// Datasets
func NewDataset(input, ideal [][]float64) (*data.Basic, error) {
	return data.NewBasic(input, ideal)
}

func LoadCSV(filename string, labelCols []int, hasHeader bool) (*data.Basic, error) {
	return data.LoadCSV(filename, labelCols, hasHeader)
}

// Strategies
func Backprop(learningRate, momentum float64) *opt.Backprop {
	return opt.NewBackprop(learningRate, momentum)
}

func Resilient(variant Variant) *opt.Resilient {
	return opt.NewResilient(variant)
}

func Manhattan(learningRate float64) *opt.Manhattan {
	return opt.NewManhattan(learningRate)
}

func ParseStrategy(name, args string) (Strategy, error) {
	return opt.Parse(name, args)
}

// Trainers
func NewTrainer(network *Network, training Dataset, strategy Strategy, config Config) (*Trainer, error) {
	return train.New(network, training, strategy, config)
}

func NewAdaline(network *Network, training Dataset, learningRate float64) (*train.Adaline, error) {
	return train.NewAdaline(network, training, learningRate)
}

// Fit runs t until one of the stop strategies among callbacks fires.
var Fit = train.Fit

// Callbacks
func EndIterations(n int) *train.EndIterations {
	return train.NewEndIterations(n)
}

func EndMinError(e float64) *train.EndMinError {
	return train.NewEndMinError(e)
}

func Logger(interval int) train.Logger {
	return train.Logger{Interval: interval}
}

func CSVLogger(filename string, append bool) *train.CSVLogger {
	return train.NewCSVLogger(filename, append)
}

func Checkpoint(filename string) *train.Checkpoint {
	return train.NewCheckpoint(filename)
}

func EarlyStopping(patience int, threshold float64) *train.EarlyStopping {
	return train.NewEarlyStopping(patience, threshold)
}

func SchedulerCallback(scheduler opt.Scheduler) *train.SchedulerCallback {
	return train.NewSchedulerCallback(scheduler)
}

func ReduceLROnPlateau(strategy opt.Stateful, factor float64, patience int, threshold, minLR float64) *opt.ReduceLROnPlateau {
	return opt.NewReduceLROnPlateau(strategy, factor, patience, threshold, minLR)
}
