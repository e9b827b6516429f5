package train

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/opt"
	"github.com/pkg/errors"
)

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(t Iterative)                               {}
func (c BaseCallback) OnTrainEnd(t Iterative)                                 {}
func (c BaseCallback) OnIterationBegin(iteration int, t Iterative)            {}
func (c BaseCallback) OnIterationEnd(iteration int, err float64, t Iterative) {}

// EndIterations stops training once the trainer has completed Max iterations.
type EndIterations struct {
	BaseCallback
	Max int

	current int
}

func NewEndIterations(n int) *EndIterations {
	return &EndIterations{Max: n}
}

func (c *EndIterations) OnTrainBegin(t Iterative) {
	c.current = t.IterationNumber()
}

func (c *EndIterations) OnIterationEnd(iteration int, err float64, t Iterative) {
	c.current = iteration
}

func (c *EndIterations) ShouldStop() bool {
	return c.current >= c.Max
}

// EndMinError stops training once the error falls below MinError.
type EndMinError struct {
	BaseCallback
	MinError float64

	started bool
	last    float64
}

func NewEndMinError(minError float64) *EndMinError {
	return &EndMinError{MinError: minError}
}

func (c *EndMinError) OnIterationEnd(iteration int, err float64, t Iterative) {
	c.started = true
	c.last = err
}

func (c *EndMinError) ShouldStop() bool {
	return c.started && c.last < c.MinError
}

// EarlyStopping stops training when the error has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64
	Writer    io.Writer // nil means silent

	bestError   float64
	numBadIters int
	Stopped     bool
	StoppedAt   int
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestError: math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnIterationEnd(iteration int, err float64, t Iterative) {
	if err < c.bestError-c.Threshold {
		c.bestError = err
		c.numBadIters = 0
	} else {
		c.numBadIters++
	}

	if c.numBadIters >= c.Patience && !c.Stopped {
		c.Stopped = true
		c.StoppedAt = iteration
		if c.Writer != nil {
			fmt.Fprintf(c.Writer, "Early stopping at iteration %d: error %.6f did not improve for %d iterations\n",
				iteration, err, c.Patience)
		}
	}
}

func (c *EarlyStopping) ShouldStop() bool { return c.Stopped }

// Checkpoint saves the network whenever the error reaches a new best.
type Checkpoint struct {
	BaseCallback
	Filename string

	bestError float64
	saved     int
	err       error
}

func NewCheckpoint(filename string) *Checkpoint {
	return &Checkpoint{
		Filename:  filename,
		bestError: math.MaxFloat64,
	}
}

func (c *Checkpoint) OnIterationEnd(iteration int, err float64, t Iterative) {
	if err >= c.bestError || c.err != nil {
		return
	}
	c.bestError = err
	if e := t.Network().Save(c.Filename); e != nil {
		c.err = errors.Wrapf(e, "checkpoint at iteration %d", iteration)
		return
	}
	c.saved++
}

// Saved returns how many checkpoints were written.
func (c *Checkpoint) Saved() int { return c.saved }

// BestError returns the error of the last saved network.
func (c *Checkpoint) BestError() float64 { return c.bestError }

// Err returns the first save failure.
func (c *Checkpoint) Err() error { return c.err }

// Logger prints training progress every Interval iterations.
type Logger struct {
	BaseCallback
	Interval int
	Writer   io.Writer // nil means os.Stdout
}

func (c Logger) OnIterationEnd(iteration int, err float64, t Iterative) {
	if c.Interval <= 0 || iteration%c.Interval != 0 {
		return
	}
	w := c.Writer
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "Iteration %d: error = %.6f\n", iteration, err)
}

// SchedulerCallback steps a learning rate scheduler after every iteration.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnIterationEnd(iteration int, err float64, t Iterative) {
	c.scheduler.Step()
	c.scheduler.StepWithError(err)
}
