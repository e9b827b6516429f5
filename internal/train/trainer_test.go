package train

import (
	"math"
	"testing"
	"time"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/activations"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/opt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func xorData(t *testing.T) *data.Basic {
	t.Helper()
	d, err := data.NewBasic(
		[][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		[][]float64{{0}, {1}, {1}, {0}},
	)
	require.NoError(t, err)
	return d
}

func newTrainer(t *testing.T, n *flat.Network, d data.Indexable, s opt.Strategy, cfg Config) *Trainer {
	t.Helper()
	tr, err := New(n, d, s, cfg)
	require.NoError(t, err)
	return tr
}

// TestSingleThreadMatchesReferencePass tests one backprop iteration against
// w + lr * (-dE/dw) computed by central differences.
func TestSingleThreadMatchesReferencePass(t *testing.T) {
	n := randomNetwork(t, 21, activations.Sigmoid, 3, 5, 2)
	d := randomData(22, 30, 3, 2)

	const lr = 0.3
	before := n.Array()
	grad := numericGradient(t, n, d)
	rms, err := n.CalculateError(d)
	require.NoError(t, err)

	tr := newTrainer(t, n, d, opt.NewBackprop(lr, 0.9), Config{NumThreads: 1})
	assert.Equal(t, Uninitialized, tr.State())
	require.NoError(t, tr.Iteration())
	assert.Equal(t, Ready, tr.State())
	require.Len(t, tr.Workers(), 1)

	want := make([]float64, len(before))
	for i := range want {
		want[i] = before[i] + lr*grad[i]
	}
	assert.InDeltaSlice(t, want, n.Weights(), 1e-5)
	assert.InDelta(t, rms, tr.Error(), 1e-12)
	assert.Equal(t, 1, tr.IterationNumber())

	// workers see the new weights
	assert.Equal(t, n.Weights(), tr.Workers()[0].Weights())
}

// TestShardingDoesNotChangeWeights tests that any partition sums to the same gradients.
func TestShardingDoesNotChangeWeights(t *testing.T) {
	base := randomNetwork(t, 31, activations.Tanh, 4, 6, 3)
	d := randomData(32, 250, 4, 3)

	configs := []Config{
		{NumThreads: 1},
		{NumThreads: 3},
		{NumThreads: 7},
		{NumThreads: 2, Accelerators: 1},
		{NumThreads: 1, Accelerators: 2, AcceleratorRatio: 3},
	}

	var reference []float64
	for _, cfg := range configs {
		n := base.Clone()
		tr := newTrainer(t, n, d, opt.NewBackprop(0.05, 0.5), cfg)
		for i := 0; i < 5; i++ {
			require.NoError(t, tr.Iteration())
		}
		assertCovers(t, workloadOf(tr), d.Count())
		if reference == nil {
			reference = n.Array()
			continue
		}
		assert.InDeltaSlice(t, reference, n.Weights(), 1e-9, "config %+v", cfg)
	}
}

func workloadOf(tr *Trainer) Workload {
	var w Workload
	for _, worker := range tr.Workers() {
		low, high := worker.Range()
		if worker.Kind() == Accelerator {
			w.Accelerator = append(w.Accelerator, Range{low, high})
		} else {
			w.CPU = append(w.CPU, Range{low, high})
		}
	}
	return w
}

// TestXORResilient trains a 2-2-1 sigmoid network on XOR. A 2-2-1 network can
// stall in a local minimum for some starting weights, so several seeds are tried.
func TestXORResilient(t *testing.T) {
	d := xorData(t)
	for _, cfg := range []Config{{}, {NumThreads: 4}} {
		solved := false
		for seed := uint64(1); seed <= 20 && !solved; seed++ {
			n := randomNetwork(t, seed, activations.Sigmoid, 2, 2, 1)
			tr := newTrainer(t, n, d, opt.NewResilient(opt.RPROPPlus), cfg)
			for i := 0; i < 500; i++ {
				require.NoError(t, tr.Iteration())
			}
			rms, err := n.CalculateError(d)
			require.NoError(t, err)
			if rms >= 0.05 {
				continue
			}
			solved = true

			out := make([]float64, 1)
			require.NoError(t, n.Compute([]float64{1, 0}, out))
			assert.Greater(t, out[0], 0.5)
			require.NoError(t, n.Compute([]float64{1, 1}, out))
			assert.Less(t, out[0], 0.5)
		}
		assert.True(t, solved, "no seed solved XOR with config %+v", cfg)
	}
}

// smoothData samples y = 0.5 + 0.3 sin(2 x0) + 0.2 x1 x2 on [-1, 1]^3.
func smoothData(seed uint64, count int) *data.Slices {
	r := rand.New(rand.NewSource(seed))
	samples := make([][]float64, count)
	labels := make([][]float64, count)
	for i := range samples {
		x := []float64{r.Float64()*2 - 1, r.Float64()*2 - 1, r.Float64()*2 - 1}
		samples[i] = x
		labels[i] = []float64{0.5 + 0.3*math.Sin(2*x[0]) + 0.2*x[1]*x[2]}
	}
	return mustSlices(samples, labels, 3, 1)
}

func TestTrainerAllVariantsReduceError(t *testing.T) {
	d := smoothData(41, 120)
	for _, v := range []opt.Variant{opt.RPROPPlus, opt.RPROPMinus, opt.IRPROPPlus, opt.IRPROPMinus} {
		t.Run(v.String(), func(t *testing.T) {
			n := randomNetwork(t, 42, activations.Sigmoid, 3, 4, 1)
			start, err := n.CalculateError(d)
			require.NoError(t, err)

			tr := newTrainer(t, n, d, opt.NewResilient(v), Config{NumThreads: 2})
			for i := 0; i < 50; i++ {
				require.NoError(t, tr.Iteration())
			}
			end, err := n.CalculateError(d)
			require.NoError(t, err)
			assert.Less(t, end, start)
		})
	}
}

func TestTrainerDispose(t *testing.T) {
	n := randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1)
	tr := newTrainer(t, n, xorData(t), opt.NewResilient(opt.RPROPPlus), Config{})
	require.NoError(t, tr.Iteration())

	tr.Dispose()
	assert.Equal(t, Disposed, tr.State())
	assert.Equal(t, ErrDisposed, tr.Iteration())
	_, err := tr.Pause()
	assert.Equal(t, ErrDisposed, err)
	assert.Equal(t, ErrDisposed, tr.Rebalance())

	// dispose before first use
	tr = newTrainer(t, n, xorData(t), opt.NewBackprop(0.7, 0.3), Config{})
	tr.Dispose()
	assert.Equal(t, ErrDisposed, tr.Iteration())
}

func TestTrainerMalformedExample(t *testing.T) {
	n := randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1)
	d := randomData(2, 10, 2, 1)
	d.Labels[7] = []float64{1, 1}

	tr := newTrainer(t, n, d, opt.NewBackprop(0.7, 0.3), Config{NumThreads: 2})
	before := n.Array()
	err := tr.Iteration()
	require.Error(t, err)
	assert.Equal(t, data.ErrShape, errors.Cause(err))
	assert.Equal(t, before, n.Array(), "a failed iteration must not move the weights")
	assert.Equal(t, 0, tr.IterationNumber())
}

func TestTrainerMissingLabels(t *testing.T) {
	n := randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1)
	d := randomData(3, 4, 2, 1)
	d.Labels = d.Labels[:2]

	tr := newTrainer(t, n, d, opt.NewBackprop(0.7, 0.3), Config{NumThreads: 1})
	err := tr.Iteration()
	require.Error(t, err)
	assert.Equal(t, data.ErrShape, errors.Cause(err))
	low, high := tr.Workers()[0].Range()
	assert.Equal(t, 4, high-low, "every sample is assigned to a shard")
}

func TestNewTrainerValidation(t *testing.T) {
	n := randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1)
	s := opt.NewBackprop(0.7, 0.3)

	_, err := New(n, randomData(1, 4, 3, 1), s, Config{})
	assert.Equal(t, data.ErrShape, errors.Cause(err))

	_, err = New(n, randomData(1, 0, 2, 1), s, Config{})
	assert.Equal(t, data.ErrEmpty, errors.Cause(err))

	_, err = New(n, randomData(1, 4, 2, 1), s, Config{NumThreads: -1})
	assert.Error(t, err)

	_, err = New(nil, randomData(1, 4, 2, 1), s, Config{})
	assert.Error(t, err)
}

func TestTrainerRebalance(t *testing.T) {
	n := randomNetwork(t, 51, activations.Sigmoid, 4, 8, 2)
	d := randomData(52, 600, 4, 2)
	tr := newTrainer(t, n, d, opt.NewResilient(opt.IRPROPPlus), Config{NumThreads: 2, Accelerators: 1})

	require.NoError(t, tr.Rebalance(), "rebalance before the first iteration is a no-op")
	assert.Nil(t, tr.Workers())

	require.NoError(t, tr.Iteration())
	assert.Greater(t, int64(tr.CPUTimePerIteration()), int64(0))
	assert.Greater(t, int64(tr.AcceleratorTimePerIteration()), int64(0))
	assert.Greater(t, tr.CalculatedRatio(), 0.0)

	require.NoError(t, tr.Rebalance())
	assertCovers(t, workloadOf(tr), d.Count())
	require.NoError(t, tr.Iteration())
	assert.Equal(t, n.Weights(), tr.Workers()[0].Weights())
}

// timedWorker is a GradientWorker whose pass time is proportional to its shard.
type timedWorker struct {
	kind      WorkerKind
	low, high int
	perRecord time.Duration
}

func (w timedWorker) Run() error             { return nil }
func (w timedWorker) Weights() []float64     { return nil }
func (w timedWorker) Elapsed() time.Duration { return time.Duration(w.high-w.low) * w.perRecord }
func (w timedWorker) Kind() WorkerKind       { return w.kind }
func (w timedWorker) Range() (int, int)      { return w.low, w.high }

// TestRebalanceSettles runs the rebalance loop against workers where an
// accelerator processes a record three times faster than a CPU.
func TestRebalanceSettles(t *testing.T) {
	const count = 4000
	ratio := 0.0
	var sizes []int
	for round := 0; round < 6; round++ {
		load := DetermineWorkload(1, 1, count, ratio)
		var workers []GradientWorker
		for _, r := range load.Accelerator {
			workers = append(workers, timedWorker{Accelerator, r.Low, r.High, time.Microsecond})
		}
		for _, r := range load.CPU {
			workers = append(workers, timedWorker{CPU, r.Low, r.High, 3 * time.Microsecond})
		}
		sizes = append(sizes, load.Accelerator[0].Len())

		_, _, ratio = measureWorkers(workers)
		assert.InDelta(t, 3.0, ratio, 1e-9, "round %d", round)
	}
	assert.Equal(t, []int{2000, 3000, 3000, 3000, 3000, 3000}, sizes)
}

func TestMeasureWorkersMeanTimes(t *testing.T) {
	cpu, accel, ratio := measureWorkers([]GradientWorker{
		timedWorker{Accelerator, 0, 300, time.Microsecond},
		timedWorker{CPU, 300, 400, 2 * time.Microsecond},
		timedWorker{CPU, 400, 500, 4 * time.Microsecond},
	})
	assert.Equal(t, 300*time.Microsecond, cpu)
	assert.Equal(t, 300*time.Microsecond, accel)
	// 200 records in 600us against 300 records in 300us
	assert.InDelta(t, 3.0, ratio, 1e-9)

	_, _, ratio = measureWorkers([]GradientWorker{timedWorker{CPU, 0, 10, time.Microsecond}})
	assert.Equal(t, 0.0, ratio)
}

func TestTrainerCPUOnlyRatio(t *testing.T) {
	n := randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1)
	tr := newTrainer(t, n, xorData(t), opt.NewBackprop(0.7, 0.3), Config{NumThreads: 2})
	require.NoError(t, tr.Iteration())
	assert.Equal(t, 0.0, tr.CalculatedRatio())
	assert.Equal(t, time.Duration(0), tr.AcceleratorTimePerIteration())
}

func TestPauseResume(t *testing.T) {
	d := randomData(61, 80, 3, 2)
	n := randomNetwork(t, 62, activations.Sigmoid, 3, 4, 2)

	a := newTrainer(t, n, d, opt.NewResilient(opt.IRPROPPlus), Config{NumThreads: 1})
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Iteration())
	}
	c, err := a.Pause()
	require.NoError(t, err)
	assert.Equal(t, "*opt.Resilient", c.TrainingType)
	assert.Equal(t, 10, c.Iteration)

	// a fresh trainer on a copy of the network carries on identically
	m := n.Clone()
	b := newTrainer(t, m, d, opt.NewResilient(opt.IRPROPPlus), Config{NumThreads: 1})
	require.NoError(t, b.Resume(c))
	assert.Equal(t, 10, b.IterationNumber())

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Iteration())
		require.NoError(t, b.Iteration())
	}
	assert.InDeltaSlice(t, n.Weights(), m.Weights(), 1e-12)
	assert.Equal(t, a.Error(), b.Error())

	// the continuation is a copy
	c.LastGradient[0] = 1e9
	assert.NotEqual(t, 1e9, a.LastGradient()[0])
}

func TestResumeRejectsMismatch(t *testing.T) {
	d := randomData(1, 10, 2, 1)
	rprop := newTrainer(t, randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1), d, opt.NewResilient(opt.RPROPPlus), Config{})
	c, err := rprop.Pause()
	require.NoError(t, err)

	backprop := newTrainer(t, randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1), d, opt.NewBackprop(0.7, 0.3), Config{})
	assert.False(t, backprop.IsValidResume(c))
	assert.Equal(t, ErrInvalidResume, errors.Cause(backprop.Resume(c)))

	bigger := newTrainer(t, randomNetwork(t, 1, activations.Sigmoid, 2, 5, 1), d, opt.NewResilient(opt.RPROPPlus), Config{})
	assert.Equal(t, ErrInvalidResume, errors.Cause(bigger.Resume(c)))
	assert.Equal(t, ErrInvalidResume, errors.Cause(bigger.Resume(nil)))
}

func TestResumeRejectsBadStrategyState(t *testing.T) {
	d := randomData(1, 10, 2, 1)
	n := randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1)
	bp := opt.NewBackprop(0.7, 0.3)
	tr := newTrainer(t, n, d, bp, Config{})
	require.NoError(t, tr.Iteration())
	history := append([]float64(nil), bp.LastDelta()...)

	c := &Continuation{
		TrainingType: "*opt.Backprop",
		Iteration:    40,
		LastGradient: make([]float64, n.WeightCount()),
		Strategy: map[string]interface{}{
			"LearningRate": 0.1,
			"LastDelta":    []float64{1, 2},
		},
	}
	err := tr.Resume(c)
	require.Error(t, err)
	assert.Equal(t, opt.ErrInvalidState, errors.Cause(err))
	assert.Contains(t, err.Error(), ErrInvalidResume.Error())

	assert.Equal(t, 0.7, bp.LearningRate)
	assert.Equal(t, history, bp.LastDelta())
	assert.Equal(t, 1, tr.IterationNumber())
}

// TestBackpropPauseResume checks that momentum history survives a pause.
func TestBackpropPauseResume(t *testing.T) {
	d := randomData(71, 20, 2, 1)
	n := randomNetwork(t, 72, activations.Tanh, 2, 3, 1)
	a := newTrainer(t, n, d, opt.NewBackprop(0.1, 0.8), Config{NumThreads: 1})
	for i := 0; i < 4; i++ {
		require.NoError(t, a.Iteration())
	}
	c, err := a.Pause()
	require.NoError(t, err)

	m := n.Clone()
	b := newTrainer(t, m, d, opt.NewBackprop(0.5, 0), Config{NumThreads: 1})
	require.NoError(t, b.Resume(c))
	assert.Equal(t, 0.8, b.Strategy().(*opt.Backprop).Momentum)

	require.NoError(t, a.Iteration())
	require.NoError(t, b.Iteration())
	assert.InDeltaSlice(t, n.Weights(), m.Weights(), 1e-12)
}

func TestTrainerReportConcurrent(t *testing.T) {
	n := randomNetwork(t, 1, activations.Sigmoid, 2, 2, 1)
	tr := newTrainer(t, n, xorData(t), opt.NewBackprop(0.7, 0.3), Config{})
	tr.gradients = make([]float64, n.WeightCount())

	grad := make([]float64, n.WeightCount())
	for i := range grad {
		grad[i] = 1
	}
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				tr.Report(grad, 0.5)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	for _, g := range tr.gradients {
		assert.Equal(t, 800.0, g)
	}
	assert.Equal(t, 400.0, tr.totalError)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "disposed", Disposed.String())
	assert.Equal(t, "unknown", State(9).String())
	assert.Equal(t, "accelerator", Accelerator.String())
}
