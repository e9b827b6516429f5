package opt

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Resilient propagation defaults.
const (
	DefaultPositiveEta   = 1.2
	DefaultNegativeEta   = 0.5
	DefaultMaxStep       = 50.0
	DefaultDeltaMin      = 1e-6
	DefaultZeroTolerance = 1e-17
	DefaultInitialUpdate = 0.1
)

// Variant selects one of the four RPROP flavours.
type Variant int

const (
	// RPROPPlus undoes the previous step when the gradient changes sign.
	RPROPPlus Variant = iota
	// RPROPMinus never undoes a step.
	RPROPMinus
	// IRPROPPlus undoes the previous step only if the error went up.
	IRPROPPlus
	// IRPROPMinus never undoes a step and forgets the gradient after a sign change.
	IRPROPMinus
)

var variantNames = [...]string{
	RPROPPlus:   "RPROP+",
	RPROPMinus:  "RPROP-",
	IRPROPPlus:  "iRPROP+",
	IRPROPMinus: "iRPROP-",
}

func (v Variant) String() string {
	if v < RPROPPlus || v > IRPROPMinus {
		return "unknown"
	}
	return variantNames[v]
}

// ParseVariant parses a variant name such as "iRPROP+" (case insensitive).
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Variant(v), nil
		}
	}
	return 0, errors.Errorf("unknown RPROP variant %q", s)
}

// undo reports whether a sign change reverts the previous weight change.
func (v Variant) undo() bool { return v == RPROPPlus || v == IRPROPPlus }

// conditional reports whether the variant consults the training error.
func (v Variant) conditional() bool { return v == IRPROPPlus || v == IRPROPMinus }

// Resilient is resilient propagation: every weight has its own step size,
// grown while its gradient keeps its sign and shrunk when the sign flips.
// Gradient magnitude is ignored.
type Resilient struct {
	Variant       Variant
	PositiveEta   float64
	NegativeEta   float64
	MaxStep       float64
	DeltaMin      float64
	ZeroTolerance float64
	InitialUpdate float64

	updateValues     []float64
	lastWeightChange []float64

	currentError float64
	lastError    float64
}

// NewResilient creates an RPROP strategy with the default constants.
func NewResilient(variant Variant) *Resilient {
	return &Resilient{
		Variant:       variant,
		PositiveEta:   DefaultPositiveEta,
		NegativeEta:   DefaultNegativeEta,
		MaxStep:       DefaultMaxStep,
		DeltaMin:      DefaultDeltaMin,
		ZeroTolerance: DefaultZeroTolerance,
		InitialUpdate: DefaultInitialUpdate,
	}
}

// Init sets every step size to InitialUpdate.
func (r *Resilient) Init(weightCount int) {
	r.updateValues = make([]float64, weightCount)
	r.lastWeightChange = make([]float64, weightCount)
	for i := range r.updateValues {
		r.updateValues[i] = r.InitialUpdate
	}
	r.currentError, r.lastError = 0, 0
}

// ObserveError records the error of the iteration about to be applied.
func (r *Resilient) ObserveError(current float64) {
	r.lastError = r.currentError
	r.currentError = current
}

// UpdateWeight implements all four variants.
func (r *Resilient) UpdateWeight(gradients, lastGradient []float64, index int) float64 {
	g := gradients[index]
	change := sign(g*lastGradient[index], r.ZeroTolerance)
	step := r.updateValues[index]
	var delta float64

	switch {
	case change > 0:
		step = math.Min(step*r.PositiveEta, r.MaxStep)
		delta = float64(sign(g, r.ZeroTolerance)) * step
		lastGradient[index] = g

	case change < 0:
		step = math.Max(step*r.NegativeEta, r.DeltaMin)
		if r.Variant.undo() {
			if !r.Variant.conditional() || r.currentError > r.lastError {
				delta = -r.lastWeightChange[index]
			}
			lastGradient[index] = 0
		} else {
			delta = float64(sign(g, r.ZeroTolerance)) * step
			if r.Variant.conditional() {
				lastGradient[index] = 0
			} else {
				lastGradient[index] = g
			}
		}

	default:
		delta = float64(sign(g, r.ZeroTolerance)) * step
		lastGradient[index] = g
	}

	r.updateValues[index] = step
	r.lastWeightChange[index] = delta
	return delta
}

// UpdateValues returns the live per-weight step sizes.
func (r *Resilient) UpdateValues() []float64 { return r.updateValues }

// State returns copies of the step sizes, the last changes and the error history.
func (r *Resilient) State() map[string]interface{} {
	return map[string]interface{}{
		"UpdateValues":     append([]float64(nil), r.updateValues...),
		"LastWeightChange": append([]float64(nil), r.lastWeightChange...),
		"CurrentError":     r.currentError,
		"LastError":        r.lastError,
	}
}

// SetState restores values produced by State. Missing keys are left
// unchanged, and nothing is changed when any key is invalid.
func (r *Resilient) SetState(state map[string]interface{}) error {
	updates, err := getSlice(state, "UpdateValues", r.updateValues)
	if err != nil {
		return err
	}
	changes, err := getSlice(state, "LastWeightChange", r.lastWeightChange)
	if err != nil {
		return err
	}
	current, err := getFloat(state, "CurrentError", r.currentError)
	if err != nil {
		return err
	}
	last, err := getFloat(state, "LastError", r.lastError)
	if err != nil {
		return err
	}
	copy(r.updateValues, updates)
	copy(r.lastWeightChange, changes)
	r.currentError, r.lastError = current, last
	return nil
}
