// Package loss provides error measures used to score a network against labelled data.
package loss

import "math"

// ErrorCalculation accumulates squared errors over a pass through a dataset
// and reports the root-mean-square error.
//
// The zero value is ready to use. It is not safe for concurrent use.
type ErrorCalculation struct {
	sum   float64
	count int
}

// UpdateError adds the squared differences between actual and ideal.
func (e *ErrorCalculation) UpdateError(actual, ideal []float64) {
	n := len(actual)
	if n != len(ideal) {
		panic("ErrorCalculation: actual and ideal must have same length")
	}

	for i := 0; i < n; i++ {
		diff := actual[i] - ideal[i]
		e.sum += diff * diff
	}
	e.count += n
}

// UpdateSquared adds an already computed sum of squared errors over count values.
func (e *ErrorCalculation) UpdateSquared(sum float64, count int) {
	e.sum += sum
	e.count += count
}

// Calculate returns sqrt(sum / count), or 0 if nothing was accumulated.
func (e *ErrorCalculation) Calculate() float64 {
	if e.count == 0 {
		return 0
	}
	return math.Sqrt(e.sum / float64(e.count))
}

// MSE returns the mean squared error accumulated so far.
func (e *ErrorCalculation) MSE() float64 {
	if e.count == 0 {
		return 0
	}
	return e.sum / float64(e.count)
}

// Count returns the number of values accumulated.
func (e *ErrorCalculation) Count() int {
	return e.count
}

// Reset clears the accumulator for a new scoring run.
func (e *ErrorCalculation) Reset() {
	e.sum = 0
	e.count = 0
}
