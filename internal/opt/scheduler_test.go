package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepLR(t *testing.T) {
	b := NewBackprop(0.8, 0)
	s := NewStepLR(b, 2, 0.5)

	s.Step()
	assert.Equal(t, 0.8, s.GetLR())
	s.Step()
	assert.Equal(t, 0.4, s.GetLR())
	assert.Equal(t, 0.4, b.LearningRate)
}

func TestExponentialLR(t *testing.T) {
	m := NewManhattan(1)
	s := NewExponentialLR(m, 0.5)
	s.Step()
	s.Step()
	assert.Equal(t, 0.25, m.LearningRate)
}

func TestReduceLROnPlateau(t *testing.T) {
	b := NewBackprop(1, 0)
	s := NewReduceLROnPlateau(b, 0.5, 2, 0, 0.3)

	s.StepWithError(0.5)
	s.StepWithError(0.5)
	assert.Equal(t, 1.0, s.GetLR())
	s.StepWithError(0.6)
	assert.Equal(t, 0.5, s.GetLR())

	s.StepWithError(0.7)
	s.StepWithError(0.7)
	assert.Equal(t, 0.3, s.GetLR(), "floored at minLR")
}

func TestReduceLROnPlateauCooldown(t *testing.T) {
	b := NewBackprop(1, 0)
	s := NewReduceLROnPlateau(b, 0.5, 1, 0, 0)
	s.Cooldown = 2

	s.StepWithError(0.5)
	s.StepWithError(0.5)
	assert.Equal(t, 0.5, s.GetLR())

	// two iterations are skipped before the next reduction
	s.StepWithError(0.6)
	s.StepWithError(0.6)
	assert.Equal(t, 0.5, s.GetLR())
	s.StepWithError(0.6)
	assert.Equal(t, 0.25, s.GetLR())
}

// TestSchedulerIgnoresRPROP tests that strategies without a learning rate are untouched.
func TestSchedulerIgnoresRPROP(t *testing.T) {
	r := NewResilient(RPROPPlus)
	r.Init(1)
	s := NewExponentialLR(r, 0.5)
	s.Step()
	assert.Equal(t, 0.0, s.GetLR())
	assert.Equal(t, []float64{0.1}, r.UpdateValues())
}
