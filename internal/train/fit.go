package train

import (
	"context"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/pkg/errors"
)

// ErrUnbounded is returned by Fit when nothing could ever end the loop.
var ErrUnbounded = errors.New("fit: no stop strategy and no cancellable context")

// Iterative is a trainer that Fit can drive: Trainer and Adaline.
type Iterative interface {
	Iteration() error
	Error() float64
	IterationNumber() int
	Network() *flat.Network
}

// Callback observes a training loop.
type Callback interface {
	OnTrainBegin(t Iterative)
	OnTrainEnd(t Iterative)
	OnIterationBegin(iteration int, t Iterative)
	OnIterationEnd(iteration int, err float64, t Iterative)
}

// StopStrategy is a callback that can end the loop. ShouldStop is checked
// after every iteration.
type StopStrategy interface {
	Callback
	ShouldStop() bool
}

// failer is implemented by callbacks that can fail, such as file writers.
type failer interface {
	Err() error
}

// Fit iterates t until a stop strategy says so or ctx is done. Cancellation is
// checked between iterations only. Fit returns the first error of an
// iteration or of a callback.
func Fit(ctx context.Context, t Iterative, callbacks ...Callback) (err error) {
	var stops []StopStrategy
	for _, cb := range callbacks {
		if s, ok := cb.(StopStrategy); ok {
			stops = append(stops, s)
		}
	}
	if len(stops) == 0 && ctx.Done() == nil {
		return ErrUnbounded
	}

	for _, cb := range callbacks {
		cb.OnTrainBegin(t)
	}
	defer func() {
		for _, cb := range callbacks {
			cb.OnTrainEnd(t)
		}
		if err == nil {
			err = callbackErr(callbacks)
		}
	}()
	if err := callbackErr(callbacks); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next := t.IterationNumber() + 1
		for _, cb := range callbacks {
			cb.OnIterationBegin(next, t)
		}
		if err := t.Iteration(); err != nil {
			return err
		}
		for _, cb := range callbacks {
			cb.OnIterationEnd(next, t.Error(), t)
		}
		if err := callbackErr(callbacks); err != nil {
			return err
		}

		for _, s := range stops {
			if s.ShouldStop() {
				return nil
			}
		}
	}
}

func callbackErr(callbacks []Callback) error {
	for _, cb := range callbacks {
		if f, ok := cb.(failer); ok {
			if err := f.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
