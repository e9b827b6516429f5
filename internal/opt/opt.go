// Package opt provides the weight-update strategies used by the flat trainers.
//
// Gradients follow the flat convention: they are accumulated from
// (ideal - actual), so they already point downhill and a strategy's delta is
// added to the weight.
package opt

import (
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidState is returned by SetState for state that does not fit the strategy.
var ErrInvalidState = errors.New("invalid strategy state")

// Strategy computes the change to apply to each weight after a gradient pass.
type Strategy interface {
	// Init sizes per-weight history for a weight vector of the given length.
	Init(weightCount int)

	// UpdateWeight returns the delta for weight index. It may update
	// lastGradient[index] and the strategy's own history for index.
	UpdateWeight(gradients, lastGradient []float64, index int) float64
}

// ErrorObserver is implemented by strategies that depend on the training error.
// The trainer calls ObserveError once per iteration, before any UpdateWeight.
type ErrorObserver interface {
	ObserveError(current float64)
}

// Stateful is implemented by strategies whose history can be exported and
// restored, for pausing and resuming training or for schedulers.
type Stateful interface {
	State() map[string]interface{}
	SetState(state map[string]interface{}) error
}

// Backprop is gradient descent with momentum.
type Backprop struct {
	LearningRate float64
	Momentum     float64

	lastDelta []float64
}

// NewBackprop creates a backpropagation strategy.
func NewBackprop(learningRate, momentum float64) *Backprop {
	return &Backprop{LearningRate: learningRate, Momentum: momentum}
}

// Init allocates the momentum history.
func (b *Backprop) Init(weightCount int) {
	b.lastDelta = make([]float64, weightCount)
}

// UpdateWeight returns gradient*lr + lastDelta*momentum.
func (b *Backprop) UpdateWeight(gradients, lastGradient []float64, index int) float64 {
	delta := gradients[index]*b.LearningRate + b.lastDelta[index]*b.Momentum
	b.lastDelta[index] = delta
	return delta
}

// LastDelta returns the deltas applied in the previous iteration.
func (b *Backprop) LastDelta() []float64 { return b.lastDelta }

// State returns the learning rate, momentum and a copy of the momentum history.
func (b *Backprop) State() map[string]interface{} {
	return map[string]interface{}{
		"LearningRate": b.LearningRate,
		"Momentum":     b.Momentum,
		"LastDelta":    append([]float64(nil), b.lastDelta...),
	}
}

// SetState restores values produced by State. Missing keys are left
// unchanged, and nothing is changed when any key is invalid.
func (b *Backprop) SetState(state map[string]interface{}) error {
	lr, err := getFloat(state, "LearningRate", b.LearningRate)
	if err != nil {
		return err
	}
	momentum, err := getFloat(state, "Momentum", b.Momentum)
	if err != nil {
		return err
	}
	lastDelta, err := getSlice(state, "LastDelta", b.lastDelta)
	if err != nil {
		return err
	}
	b.LearningRate, b.Momentum = lr, momentum
	copy(b.lastDelta, lastDelta)
	return nil
}

// Manhattan moves every weight by a fixed amount in the gradient's direction.
type Manhattan struct {
	LearningRate  float64
	ZeroTolerance float64
}

// NewManhattan creates a Manhattan update strategy.
func NewManhattan(learningRate float64) *Manhattan {
	return &Manhattan{LearningRate: learningRate, ZeroTolerance: DefaultZeroTolerance}
}

// Init is a no-op; Manhattan keeps no history.
func (m *Manhattan) Init(weightCount int) {}

// UpdateWeight returns sign(gradient) * lr.
func (m *Manhattan) UpdateWeight(gradients, lastGradient []float64, index int) float64 {
	return float64(sign(gradients[index], m.ZeroTolerance)) * m.LearningRate
}

// State returns the learning rate.
func (m *Manhattan) State() map[string]interface{} {
	return map[string]interface{}{"LearningRate": m.LearningRate}
}

// SetState restores the learning rate.
func (m *Manhattan) SetState(state map[string]interface{}) error {
	lr, err := getFloat(state, "LearningRate", m.LearningRate)
	if err != nil {
		return err
	}
	m.LearningRate = lr
	return nil
}

// sign returns -1, 0 or 1, treating |v| < tolerance as zero.
func sign(v, tolerance float64) int {
	if math.Abs(v) < tolerance {
		return 0
	}
	if v > 0 {
		return 1
	}
	return -1
}

// getFloat returns state[key], or current when the key is missing.
func getFloat(state map[string]interface{}, key string, current float64) (float64, error) {
	v, ok := state[key]
	if !ok {
		return current, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidState, "%s is %T", key, v)
	}
	return f, nil
}

// getSlice returns state[key], or current when the key is missing. The
// value must have the length of current.
func getSlice(state map[string]interface{}, key string, current []float64) ([]float64, error) {
	v, ok := state[key]
	if !ok {
		return current, nil
	}
	s, ok := v.([]float64)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidState, "%s is %T", key, v)
	}
	if len(s) != len(current) {
		return nil, errors.Wrapf(ErrInvalidState, "%s has %d values, want %d", key, len(s), len(current))
	}
	return s, nil
}
