package esys

import (
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

// Flow parameterises one port between a node and a bus.
type Flow struct {
	NominalValue          *Capacity              `json:"nominal_value,omitempty"`
	Min                   *network.Sequence      `json:"min,omitempty"`
	Max                   *network.Sequence      `json:"max,omitempty"`
	Fix                   *network.Sequence      `json:"fix,omitempty"`
	PositiveGradientLimit *network.Sequence      `json:"positive_gradient_limit,omitempty"`
	NegativeGradientLimit *network.Sequence      `json:"negative_gradient_limit,omitempty"`
	FullLoadTimeMax       *float64               `json:"full_load_time_max,omitempty" validate:"omitempty,gte=0"`
	FullLoadTimeMin       *float64               `json:"full_load_time_min,omitempty" validate:"omitempty,gte=0"`
	VariableCosts         *network.Sequence      `json:"variable_costs,omitempty"`
	Lifetime              *int                   `json:"lifetime,omitempty" validate:"omitempty,gt=0"`
	Age                   *int                   `json:"age,omitempty" validate:"omitempty,gte=0"`
	CustomAttributes      map[string]interface{} `json:"custom_attributes,omitempty"`
	NonConvex             *NonConvexOption       `json:"nonconvex,omitempty"`
}

// Validate checks field ranges and rejects a flow that is both investment
// optimised and nonconvex.
func (f *Flow) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: Flow: nil flow", ErrValidation)
	}
	if err := validateStruct("Flow", f); err != nil {
		return err
	}
	if f.NominalValue != nil && f.NominalValue.Investment != nil && f.NonConvex.Enabled() {
		return fmt.Errorf("%w: %w", ErrValidation, network.ErrInvestmentNonConvex)
	}
	return nil
}

func (f *Flow) fields() []field {
	return []field{
		capField("nominal_value", f.NominalValue),
		seqField("min", f.Min),
		seqField("max", f.Max),
		seqField("fix", f.Fix),
		seqField("positive_gradient_limit", f.PositiveGradientLimit),
		seqField("negative_gradient_limit", f.NegativeGradientLimit),
		floatField("full_load_time_max", f.FullLoadTimeMax),
		floatField("full_load_time_min", f.FullLoadTimeMin),
		seqField("variable_costs", f.VariableCosts),
		intField("lifetime", f.Lifetime),
		intField("age", f.Age),
		attrField("custom_attributes", f.CustomAttributes),
		nonconvexOptField("nonconvex", f.NonConvex),
	}
}

// Kwargs returns the constructor arguments of the flow.
func (f *Flow) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("Flow", f.fields(), reg)
}

// Lower builds the target flow.
func (f *Flow) Lower(reg Registry) (*network.Flow, error) {
	kw, err := f.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewFlow(kw)
}

func validatePorts(owner, name string, ports map[string]Port) error {
	for label, p := range ports {
		switch {
		case p.Flow != nil:
			if err := p.Flow.Validate(); err != nil {
				return fmt.Errorf("%s: %s[%s]: %w", owner, name, label, err)
			}
		case p.Plain == nil:
			return fmt.Errorf("%w: %s: %s[%s]: empty port", ErrValidation, owner, name, label)
		}
	}
	return nil
}
