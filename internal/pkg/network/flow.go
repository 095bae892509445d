package network

import (
	"errors"
	"fmt"
)

// ErrInvestmentNonConvex is returned for a flow that is both investment
// optimised and non-convex.
var ErrInvestmentNonConvex = errors.New("flow cannot be both investment optimised and nonconvex")

// Flow parameterises one edge between a node and a bus.
type Flow struct {
	NominalValue          *float64
	Investment            *Investment
	Min                   *Sequence
	Max                   *Sequence
	Fix                   *Sequence
	PositiveGradientLimit *Sequence
	NegativeGradientLimit *Sequence
	FullLoadTimeMax       *float64
	FullLoadTimeMin       *float64
	VariableCosts         *Sequence
	Lifetime              *int
	Age                   *int
	CustomAttributes      map[string]interface{}
	NonConvex             *NonConvex
}

// NewFlow builds a Flow from keyword arguments. nominal_value is either a
// number or an *Investment; nonconvex is either a bool or a *NonConvex.
func NewFlow(kw Kwargs) (*Flow, error) {
	r := ReadKwargs("Flow", kw)
	f := &Flow{}

	if v, ok := r.Value("nominal_value"); ok {
		switch nv := v.(type) {
		case *Investment:
			f.Investment = nv
		default:
			n, ok := toFloat(v)
			if !ok {
				r.Fail("nominal_value", v, "number or *Investment")
				break
			}
			f.NominalValue = &n
		}
	}
	f.Min = r.Sequence("min")
	f.Max = r.Sequence("max")
	f.Fix = r.Sequence("fix")
	f.PositiveGradientLimit = r.Sequence("positive_gradient_limit")
	f.NegativeGradientLimit = r.Sequence("negative_gradient_limit")
	f.FullLoadTimeMax = r.Float("full_load_time_max")
	f.FullLoadTimeMin = r.Float("full_load_time_min")
	f.VariableCosts = r.Sequence("variable_costs")
	f.Lifetime = r.Int("lifetime")
	f.Age = r.Int("age")
	f.CustomAttributes = r.Attributes("custom_attributes")

	if v, ok := r.Value("nonconvex"); ok {
		switch nc := v.(type) {
		case *NonConvex:
			f.NonConvex = nc
		case bool:
			if nc {
				f.NonConvex = &NonConvex{}
			}
		default:
			r.Fail("nonconvex", v, "bool or *NonConvex")
		}
	}
	if err := r.Done(); err != nil {
		return nil, err
	}

	if f.Investment != nil && f.NonConvex != nil {
		return nil, ErrInvestmentNonConvex
	}
	if f.Fix != nil && f.NominalValue == nil && f.Investment == nil {
		return nil, errors.New("Flow: fix needs a nominal_value")
	}
	if (f.FullLoadTimeMax != nil || f.FullLoadTimeMin != nil) && f.NominalValue == nil && f.Investment == nil {
		return nil, errors.New("Flow: full load time limits need a nominal_value")
	}
	return f, nil
}

// Bounded reports whether the flow has a capacity, fixed or invested.
func (f *Flow) Bounded() bool {
	return f.NominalValue != nil || f.Investment != nil
}

// MinAt returns the relative lower bound at t, default 0.
func (f *Flow) MinAt(t int) float64 {
	if f.Min == nil {
		return 0
	}
	return f.Min.At(t)
}

// MaxAt returns the relative upper bound at t, default 1.
func (f *Flow) MaxAt(t int) float64 {
	if f.Max == nil {
		return 1
	}
	return f.Max.At(t)
}

// checkLength validates every series against the time index length.
func (f *Flow) checkLength(n int) error {
	named := map[string]*Sequence{
		"min":                     f.Min,
		"max":                     f.Max,
		"fix":                     f.Fix,
		"positive_gradient_limit": f.PositiveGradientLimit,
		"negative_gradient_limit": f.NegativeGradientLimit,
		"variable_costs":          f.VariableCosts,
	}
	for name, s := range named {
		if s == nil {
			continue
		}
		if err := s.CheckLength(n); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// portFlow interprets a resolved port value: a *Flow is used as is, a
// plain number becomes a Flow with that nominal value.
func portFlow(owner string, bus *Bus, v interface{}) (*Flow, error) {
	switch p := v.(type) {
	case *Flow:
		return p, nil
	case Sequence:
		if p.IsSeries() {
			return nil, fmt.Errorf("%s: %w: port %q: a series is not a flow", owner, ErrBadArgument, bus.Label())
		}
		n := p.At(0)
		return &Flow{NominalValue: &n}, nil
	}
	if n, ok := toFloat(v); ok {
		return &Flow{NominalValue: &n}, nil
	}
	return nil, fmt.Errorf("%s: %w: port %q: want *Flow, got %T", owner, ErrBadArgument, bus.Label(), v)
}
