// Package activations provides the activation functions supported by flat networks.
package activations

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknown is returned when an activation type is outside the supported set.
var ErrUnknown = errors.New("unknown activation type")

// Type enumerates the activation functions a flat network can use.
type Type int

const (
	Linear Type = iota
	Tanh
	Sigmoid
)

var names = [...]string{
	Linear:  "linear",
	Tanh:    "tanh",
	Sigmoid: "sigmoid",
}

// Valid reports whether t is one of the supported activation types.
func (t Type) Valid() bool {
	return t >= Linear && t <= Sigmoid
}

func (t Type) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return names[t]
}

// Parse returns the activation type with the given name (case insensitive).
func Parse(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t, s := range names {
		if s == n {
			return Type(t), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknown, "%q", name)
}

// Activate computes f(x).
// Tanh is evaluated as -1 + 2/(1+e^(-2x)) to match the flat kernel.
func (t Type) Activate(x float64) float64 {
	switch t {
	case Linear:
		return x
	case Tanh:
		return -1.0 + 2.0/(1.0+math.Exp(-2.0*x))
	case Sigmoid:
		return 1.0 / (1.0 + math.Exp(-x))
	}
	panic("activations: Activate on " + t.String() + " type")
}

// Derivative computes f'(x) expressed through the output y = f(x).
func (t Type) Derivative(y float64) float64 {
	switch t {
	case Linear:
		return 1
	case Tanh:
		return 1.0 - y*y
	case Sigmoid:
		return y * (1.0 - y)
	}
	panic("activations: Derivative on " + t.String() + " type")
}

// ActivateInPlace applies f to every element of x.
func (t Type) ActivateInPlace(x []float64) {
	if t == Linear {
		return
	}
	for i := range x {
		x[i] = t.Activate(x[i])
	}
}
