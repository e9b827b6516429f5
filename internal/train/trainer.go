package train

import (
	"sync"
	"time"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/opt"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// ErrDisposed is returned by every operation on a disposed trainer.
var ErrDisposed = errors.New("trainer has been disposed")

// State is the lifecycle state of a Trainer.
type State int

const (
	Uninitialized State = iota
	Ready
	Iterating
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Iterating:
		return "iterating"
	case Disposed:
		return "disposed"
	}
	return "unknown"
}

// Config controls how a Trainer shards its training set.
type Config struct {
	// NumThreads is the number of CPU workers. Zero picks one per CPU.
	NumThreads int

	// Accelerators is the number of batched matrix workers.
	Accelerators int

	// AcceleratorRatio is how many records an accelerator shard gets per
	// record of a CPU shard. Zero means 1.
	AcceleratorRatio float64
}

// Trainer trains a flat network with a gradient strategy, computing the
// gradients of each iteration in parallel over disjoint shards of the
// training set.
//
// A Trainer is driven by one goroutine: Iteration, Pause, Resume, Rebalance
// and Dispose must not be called concurrently.
type Trainer struct {
	network  *flat.Network
	training data.Indexable
	strategy opt.Strategy
	config   Config

	mu         sync.Mutex
	gradients  []float64
	totalError float64

	lastGradient []float64
	workers      []GradientWorker
	state        State
	iteration    int
	currentError float64

	cpuTime   time.Duration
	accelTime time.Duration
	calcRatio float64
}

// New creates a trainer. Workers are created on the first iteration.
func New(network *flat.Network, training data.Indexable, strategy opt.Strategy, config Config) (*Trainer, error) {
	if network == nil || training == nil || strategy == nil {
		return nil, errors.New("train: network, training set and strategy are required")
	}
	if training.InputSize() != network.InputCount() || training.IdealSize() != network.OutputCount() {
		return nil, errors.Wrapf(data.ErrShape, "training set is %d/%d, network is %d/%d",
			training.InputSize(), training.IdealSize(), network.InputCount(), network.OutputCount())
	}
	if training.Count() == 0 {
		return nil, data.ErrEmpty
	}
	if config.NumThreads < 0 || config.Accelerators < 0 || config.AcceleratorRatio < 0 {
		return nil, errors.Errorf("train: invalid config %+v", config)
	}
	return &Trainer{
		network:  network,
		training: training,
		strategy: strategy,
		config:   config,
	}, nil
}

// init sizes the gradient buffers, initializes the strategy and creates the workers.
func (t *Trainer) init() error {
	n := t.network.WeightCount()
	t.gradients = make([]float64, n)
	t.lastGradient = make([]float64, n)
	t.strategy.Init(n)

	if err := t.createWorkers(t.config.AcceleratorRatio); err != nil {
		return err
	}
	t.state = Ready
	return nil
}

func (t *Trainer) createWorkers(ratio float64) error {
	load := DetermineWorkload(t.config.NumThreads, t.config.Accelerators, t.training.Count(), ratio)

	workers := make([]GradientWorker, 0, len(load.Accelerator)+len(load.CPU))
	for _, r := range load.Accelerator {
		w, err := NewMatrixWorker(t.network.Clone(), t, t.training, r.Low, r.High)
		if err != nil {
			return err
		}
		workers = append(workers, w)
	}
	for _, r := range load.CPU {
		w, err := NewCPUWorker(t.network.Clone(), t, t.training, r.Low, r.High)
		if err != nil {
			return err
		}
		workers = append(workers, w)
	}
	t.workers = workers
	return nil
}

func (t *Trainer) ensureReady() error {
	switch t.state {
	case Disposed:
		return ErrDisposed
	case Uninitialized:
		return t.init()
	}
	return nil
}

// Iteration runs one training iteration: every worker computes the gradients
// of its shard, the gradients are summed, the strategy updates the master
// weights, and the new weights are copied to every worker.
func (t *Trainer) Iteration() error {
	if err := t.ensureReady(); err != nil {
		return err
	}
	t.state = Iterating
	defer func() { t.state = Ready }()

	t.totalError = 0
	var g errgroup.Group
	for _, w := range t.workers {
		g.Go(w.Run)
	}
	if err := g.Wait(); err != nil {
		clear(t.gradients)
		return errors.Wrapf(err, "iteration %d", t.iteration+1)
	}

	t.currentError = t.totalError / float64(len(t.workers))
	if o, ok := t.strategy.(opt.ErrorObserver); ok {
		o.ObserveError(t.currentError)
	}
	t.learn()

	weights := t.network.Weights()
	for _, w := range t.workers {
		copy(w.Weights(), weights)
	}

	t.iteration++
	t.calculatePerformance()
	return nil
}

// learn applies the strategy to every weight and clears the gradients.
func (t *Trainer) learn() {
	weights := t.network.Weights()
	for i := range t.gradients {
		weights[i] += t.strategy.UpdateWeight(t.gradients, t.lastGradient, i)
		t.gradients[i] = 0
	}
}

// Report adds a worker's gradients and error into the iteration totals.
func (t *Trainer) Report(gradients []float64, err float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	floats.Add(t.gradients, gradients)
	t.totalError += err
}

// calculatePerformance averages the last pass time per worker kind and
// measures the accelerator to CPU throughput ratio.
func (t *Trainer) calculatePerformance() {
	t.cpuTime, t.accelTime, t.calcRatio = measureWorkers(t.workers)
}

// measureWorkers returns the mean pass time of each worker kind and the ratio
// of accelerator to CPU records processed per unit of time. The ratio is 0
// when one of the kinds is absent or did not register any time.
func measureWorkers(workers []GradientWorker) (cpuTime, accelTime time.Duration, ratio float64) {
	var cpu, accel time.Duration
	var nc, na, cpuRecords, accelRecords int
	for _, w := range workers {
		low, high := w.Range()
		if w.Kind() == Accelerator {
			accel += w.Elapsed()
			accelRecords += high - low
			na++
		} else {
			cpu += w.Elapsed()
			cpuRecords += high - low
			nc++
		}
	}
	if nc > 0 {
		cpuTime = cpu / time.Duration(nc)
	}
	if na > 0 {
		accelTime = accel / time.Duration(na)
	}
	if cpu > 0 && accel > 0 && cpuRecords > 0 {
		cpuRate := float64(cpuRecords) / float64(cpu)
		accelRate := float64(accelRecords) / float64(accel)
		ratio = accelRate / cpuRate
	}
	return cpuTime, accelTime, ratio
}

// Rebalance recreates the workers so that accelerator shards are sized by the
// measured accelerator to CPU throughput ratio. It does nothing before the first
// iteration or when there are no accelerator workers.
func (t *Trainer) Rebalance() error {
	if t.state == Disposed {
		return ErrDisposed
	}
	if t.state != Ready || t.calcRatio <= 0 {
		return nil
	}
	return t.createWorkers(t.calcRatio)
}

// Dispose releases the workers. Every later operation returns ErrDisposed.
func (t *Trainer) Dispose() {
	t.workers = nil
	t.gradients = nil
	t.state = Disposed
}

// Error returns the training error of the last iteration: the mean of the
// workers' shard errors.
func (t *Trainer) Error() float64 { return t.currentError }

// IterationNumber returns the number of completed iterations.
func (t *Trainer) IterationNumber() int { return t.iteration }

// Network returns the trained network.
func (t *Trainer) Network() *flat.Network { return t.network }

// Training returns the training set.
func (t *Trainer) Training() data.Indexable { return t.training }

// Strategy returns the weight-update strategy.
func (t *Trainer) Strategy() opt.Strategy { return t.strategy }

// State returns the lifecycle state.
func (t *Trainer) State() State { return t.state }

// Workers returns the current workers, or nil before the first iteration.
func (t *Trainer) Workers() []GradientWorker { return t.workers }

// LastGradient returns the gradient history used by the strategy.
func (t *Trainer) LastGradient() []float64 { return t.lastGradient }

// CPUTimePerIteration returns the mean pass time of the CPU workers.
func (t *Trainer) CPUTimePerIteration() time.Duration { return t.cpuTime }

// AcceleratorTimePerIteration returns the mean pass time of the accelerator workers.
func (t *Trainer) AcceleratorTimePerIteration() time.Duration { return t.accelTime }

// CalculatedRatio returns how many records an accelerator worker processed per
// record of a CPU worker in the same time, or 0 when one of the kinds is absent.
func (t *Trainer) CalculatedRatio() float64 { return t.calcRatio }
