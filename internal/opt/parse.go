package opt

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownStrategy is returned by Parse for an unsupported strategy name.
var ErrUnknownStrategy = errors.New("unknown training strategy")

// Backpropagation defaults used by Parse.
const (
	DefaultLearningRate = 0.7
	DefaultMomentum     = 0.3
)

// Parse builds a strategy from a name and a comma separated KEY=value list,
// e.g. Parse("backprop", "LR=0.5,MOM=0.1") or Parse("rprop", "TYPE=iRPROP+").
//
// backprop:  LR, MOM
// manhattan: LR
// rprop:     TYPE, INITIAL, MAX_STEP, POS_ETA, NEG_ETA, DELTA_MIN, ZERO
func Parse(name, args string) (Strategy, error) {
	params, err := parseParams(args)
	if err != nil {
		return nil, err
	}

	var s Strategy
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "backprop", "bprop":
		b := NewBackprop(DefaultLearningRate, DefaultMomentum)
		if err := params.float("LR", &b.LearningRate); err != nil {
			return nil, err
		}
		if err := params.float("MOM", &b.Momentum); err != nil {
			return nil, err
		}
		s = b

	case "manhattan":
		m := NewManhattan(0.01)
		if err := params.float("LR", &m.LearningRate); err != nil {
			return nil, err
		}
		s = m

	case "rprop", "resilient":
		r := NewResilient(RPROPPlus)
		if t, ok := params.take("TYPE"); ok {
			if r.Variant, err = ParseVariant(t); err != nil {
				return nil, err
			}
		}
		for key, dst := range map[string]*float64{
			"INITIAL":   &r.InitialUpdate,
			"MAX_STEP":  &r.MaxStep,
			"POS_ETA":   &r.PositiveEta,
			"NEG_ETA":   &r.NegativeEta,
			"DELTA_MIN": &r.DeltaMin,
			"ZERO":      &r.ZeroTolerance,
		} {
			if err := params.float(key, dst); err != nil {
				return nil, err
			}
		}
		s = r

	default:
		return nil, errors.Wrapf(ErrUnknownStrategy, "%q", name)
	}

	if err := params.unused(); err != nil {
		return nil, err
	}
	return s, nil
}

type paramSet map[string]string

func parseParams(args string) (paramSet, error) {
	params := paramSet{}
	for _, field := range strings.Split(args, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, errors.Errorf("malformed parameter %q, want KEY=value", field)
		}
		params[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return params, nil
}

func (p paramSet) take(key string) (string, bool) {
	v, ok := p[key]
	delete(p, key)
	return v, ok
}

func (p paramSet) float(key string, dst *float64) error {
	v, ok := p.take(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return errors.Wrapf(err, "parameter %s", key)
	}
	*dst = f
	return nil
}

func (p paramSet) unused() error {
	for key := range p {
		return errors.Errorf("unknown parameter %s", key)
	}
	return nil
}
