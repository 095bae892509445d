package esys

import (
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
	"github.com/ohowland/cgc_planner/internal/pkg/optimize"
)

// Kind selects the global constraint a Constraint adds.
type Kind string

const (
	SharedLimit                   Kind = "shared_limit"
	InvestmentLimit               Kind = "investment_limit"
	AdditionalInvestmentFlowLimit Kind = "additional_investment_flow_limit"
	GenericIntegralLimit          Kind = "generic_integral_limit"
	EmissionLimit                 Kind = "emission_limit"
	LimitActiveFlowCount          Kind = "limit_active_flow_count"
	LimitActiveFlowCountByKeyword Kind = "limit_active_flow_count_by_keyword"
	EquateVariables               Kind = "equate_variables"
)

var dispatch = map[Kind]optimize.GlobalConstraint{
	SharedLimit:                   optimize.SharedLimit,
	InvestmentLimit:               optimize.InvestmentLimit,
	AdditionalInvestmentFlowLimit: optimize.AdditionalInvestmentFlowLimit,
	GenericIntegralLimit:          optimize.GenericIntegralLimit,
	EmissionLimit:                 optimize.EmissionLimit,
	LimitActiveFlowCount:          optimize.LimitActiveFlowCount,
	LimitActiveFlowCountByKeyword: optimize.LimitActiveFlowCountByKeyword,
	EquateVariables:               optimize.EquateVariables,
}

// Kinds lists every supported constraint kind.
func Kinds() []Kind {
	return []Kind{
		SharedLimit, InvestmentLimit, AdditionalInvestmentFlowLimit, GenericIntegralLimit,
		EmissionLimit, LimitActiveFlowCount, LimitActiveFlowCountByKeyword, EquateVariables,
	}
}

// Constraint is a system-wide restriction. Which parameters apply depends
// on Kind; unset ones are not passed on.
type Constraint struct {
	Kind       Kind             `json:"kind" validate:"required"`
	Limit      *float64         `json:"limit,omitempty"`
	LowerLimit *float64         `json:"lower_limit,omitempty"`
	UpperLimit *float64         `json:"upper_limit,omitempty"`
	Keyword    string           `json:"keyword,omitempty"`
	LimitName  string           `json:"limit_name,omitempty"`
	Weights    []float64        `json:"weights,omitempty"`
	Components []string         `json:"components,omitempty"`
	Flows      [][2]string      `json:"flows,omitempty"`
	Var1       *optimize.VarRef `json:"var1,omitempty"`
	Var2       *optimize.VarRef `json:"var2,omitempty"`
	Factor1    *float64         `json:"factor1,omitempty"`
}

func (c *Constraint) element() {}

// Validate checks that the kind has a handler.
func (c *Constraint) Validate() error {
	if err := validateStruct("Constraint", c); err != nil {
		return err
	}
	if _, ok := dispatch[c.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

func (c *Constraint) fields() []field {
	fs := []field{
		floatField("limit", c.Limit),
		floatField("lower_limit", c.LowerLimit),
		floatField("upper_limit", c.UpperLimit),
		stringField("keyword", c.Keyword),
		stringField("limit_name", c.LimitName),
		{name: "weights", set: c.Weights != nil, value: c.Weights},
		{name: "components", set: c.Components != nil, value: c.Components},
		{name: "flows", set: c.Flows != nil, value: c.Flows},
		floatField("factor1", c.Factor1),
	}
	if c.Var1 != nil {
		fs = append(fs, field{name: "var1", set: true, value: *c.Var1})
	}
	if c.Var2 != nil {
		fs = append(fs, field{name: "var2", set: true, value: *c.Var2})
	}
	return fs
}

// Kwargs returns the arguments passed to the global constraint function.
// kind itself is not among them.
func (c *Constraint) Kwargs() network.Kwargs {
	kw, _ := build("Constraint", c.fields(), nil)
	return kw
}

// Apply adds the constraint to m and returns the model to continue with.
func (c *Constraint) Apply(m *optimize.Model) (*optimize.Model, error) {
	fn, ok := dispatch[c.Kind]
	if !ok {
		return m, fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	next, err := fn(m, c.Kwargs())
	if err != nil {
		return m, fmt.Errorf("constraint %s: %w", c.Kind, err)
	}
	return next, nil
}
