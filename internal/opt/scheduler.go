package opt

import "math"

// Scheduler adjusts the learning rate of a strategy between iterations.
type Scheduler interface {
	Step()
	StepWithError(err float64)
	GetLR() float64
}

// BaseScheduler provides default implementations for Scheduler.
type BaseScheduler struct{}

func (s BaseScheduler) Step()                     {}
func (s BaseScheduler) StepWithError(err float64) {}

func learningRate(strategy Stateful) (float64, bool) {
	lr, ok := strategy.State()["LearningRate"].(float64)
	return lr, ok
}

func setLearningRate(strategy Stateful, lr float64) {
	// only the learning rate key is set, so SetState cannot fail on shape
	_ = strategy.SetState(map[string]interface{}{"LearningRate": lr})
}

// StepLR decays the learning rate by gamma every stepSize iterations.
type StepLR struct {
	BaseScheduler
	strategy  Stateful
	stepSize  int
	gamma     float64
	lastEpoch int
}

func NewStepLR(strategy Stateful, stepSize int, gamma float64) *StepLR {
	return &StepLR{
		strategy: strategy,
		stepSize: stepSize,
		gamma:    gamma,
	}
}

func (s *StepLR) Step() {
	s.lastEpoch++
	if s.stepSize > 0 && s.lastEpoch%s.stepSize == 0 {
		if lr, ok := learningRate(s.strategy); ok {
			setLearningRate(s.strategy, lr*s.gamma)
		}
	}
}

func (s *StepLR) GetLR() float64 {
	lr, _ := learningRate(s.strategy)
	return lr
}

// ExponentialLR decays the learning rate by gamma every iteration.
type ExponentialLR struct {
	BaseScheduler
	strategy Stateful
	gamma    float64
}

func NewExponentialLR(strategy Stateful, gamma float64) *ExponentialLR {
	return &ExponentialLR{
		strategy: strategy,
		gamma:    gamma,
	}
}

func (s *ExponentialLR) Step() {
	if lr, ok := learningRate(s.strategy); ok {
		setLearningRate(s.strategy, lr*s.gamma)
	}
}

func (s *ExponentialLR) GetLR() float64 {
	lr, _ := learningRate(s.strategy)
	return lr
}

// ReduceLROnPlateau reduces the learning rate when the error has stopped improving.
type ReduceLROnPlateau struct {
	BaseScheduler
	strategy  Stateful
	factor    float64
	patience  int
	threshold float64
	minLR     float64

	// Cooldown is the number of iterations to skip after a reduction.
	Cooldown int

	bestError       float64
	numBadEpochs    int
	cooldownCounter int
}

func NewReduceLROnPlateau(strategy Stateful, factor float64, patience int, threshold, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		strategy:  strategy,
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		bestError: math.MaxFloat64,
	}
}

func (s *ReduceLROnPlateau) StepWithError(current float64) {
	if s.cooldownCounter > 0 {
		s.cooldownCounter--
		return
	}

	if current < s.bestError-s.threshold {
		s.bestError = current
		s.numBadEpochs = 0
	} else {
		s.numBadEpochs++
	}

	if s.numBadEpochs >= s.patience {
		if lr, ok := learningRate(s.strategy); ok {
			setLearningRate(s.strategy, math.Max(lr*s.factor, s.minLR))
			s.numBadEpochs = 0
			s.cooldownCounter = s.Cooldown
		}
	}
}

func (s *ReduceLROnPlateau) GetLR() float64 {
	lr, _ := learningRate(s.strategy)
	return lr
}
