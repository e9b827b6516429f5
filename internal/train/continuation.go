package train

import (
	"fmt"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/opt"
	"github.com/pkg/errors"
)

// ErrInvalidResume is returned when a continuation does not fit the trainer.
var ErrInvalidResume = errors.New("continuation does not match trainer")

// Continuation holds what a trainer needs to carry on from where it paused:
// the gradient history and the strategy's own state.
type Continuation struct {
	// TrainingType is the strategy's type, e.g. "*opt.Resilient".
	TrainingType string
	Iteration    int
	LastGradient []float64
	Strategy     map[string]interface{}
}

// Pause exports the trainer's training state. The network weights are not
// part of it; save them separately with the network.
func (t *Trainer) Pause() (*Continuation, error) {
	if err := t.ensureReady(); err != nil {
		return nil, err
	}
	c := &Continuation{
		TrainingType: fmt.Sprintf("%T", t.strategy),
		Iteration:    t.iteration,
		LastGradient: append([]float64(nil), t.lastGradient...),
	}
	if s, ok := t.strategy.(opt.Stateful); ok {
		c.Strategy = s.State()
	}
	return c, nil
}

// IsValidResume reports whether c was produced by a trainer like t.
func (t *Trainer) IsValidResume(c *Continuation) bool {
	return c != nil &&
		c.TrainingType == fmt.Sprintf("%T", t.strategy) &&
		len(c.LastGradient) == t.network.WeightCount()
}

// Resume restores state produced by Pause on a trainer with the same strategy
// type and weight count. A strategy state that does not fit is reported with
// opt.ErrInvalidState as its cause, and the trainer is left unchanged.
func (t *Trainer) Resume(c *Continuation) error {
	if err := t.ensureReady(); err != nil {
		return err
	}
	if !t.IsValidResume(c) {
		if c == nil {
			return errors.Wrap(ErrInvalidResume, "nil continuation")
		}
		return errors.Wrapf(ErrInvalidResume, "%s with %d gradients, trainer uses %T with %d weights",
			c.TrainingType, len(c.LastGradient), t.strategy, t.network.WeightCount())
	}
	if s, ok := t.strategy.(opt.Stateful); ok && c.Strategy != nil {
		if err := s.SetState(c.Strategy); err != nil {
			return errors.Wrap(err, ErrInvalidResume.Error())
		}
	}
	copy(t.lastGradient, c.LastGradient)
	t.iteration = c.Iteration
	return nil
}
