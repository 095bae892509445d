package esys

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

// Investment makes a capacity a decision variable.
type Investment struct {
	Minimum          *float64               `json:"minimum,omitempty" validate:"omitempty,gte=0"`
	Maximum          *float64               `json:"maximum,omitempty" validate:"omitempty,gte=0"`
	OverallMinimum   *float64               `json:"overall_minimum,omitempty" validate:"omitempty,gte=0"`
	OverallMaximum   *float64               `json:"overall_maximum,omitempty" validate:"omitempty,gte=0"`
	EPCosts          *float64               `json:"ep_costs,omitempty"`
	Existing         *float64               `json:"existing,omitempty" validate:"omitempty,gte=0"`
	NonConvex        *bool                  `json:"nonconvex,omitempty"`
	Offset           *float64               `json:"offset,omitempty"`
	Lifetime         *int                   `json:"lifetime,omitempty" validate:"omitempty,gt=0"`
	Age              *int                   `json:"age,omitempty" validate:"omitempty,gte=0"`
	InterestRate     *float64               `json:"interest_rate,omitempty" validate:"omitempty,gte=0"`
	FixedCosts       *float64               `json:"fixed_costs,omitempty"`
	CustomAttributes map[string]interface{} `json:"custom_attributes,omitempty"`
}

func (i *Investment) fields() []field {
	return []field{
		floatField("minimum", i.Minimum),
		floatField("maximum", i.Maximum),
		floatField("overall_minimum", i.OverallMinimum),
		floatField("overall_maximum", i.OverallMaximum),
		floatField("ep_costs", i.EPCosts),
		floatField("existing", i.Existing),
		boolField("nonconvex", i.NonConvex),
		floatField("offset", i.Offset),
		intField("lifetime", i.Lifetime),
		intField("age", i.Age),
		floatField("interest_rate", i.InterestRate),
		floatField("fixed_costs", i.FixedCosts),
		attrField("custom_attributes", i.CustomAttributes),
	}
}

// Kwargs returns the constructor arguments of the investment.
func (i *Investment) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("Investment", i.fields(), reg)
}

// Lower builds the target investment.
func (i *Investment) Lower(reg Registry) (*network.Investment, error) {
	kw, err := i.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewInvestment(kw)
}

// NonConvex switches a flow to on/off operation.
type NonConvex struct {
	StartupCosts          *network.Sequence `json:"startup_costs,omitempty"`
	ShutdownCosts         *network.Sequence `json:"shutdown_costs,omitempty"`
	ActivityCosts         *network.Sequence `json:"activity_costs,omitempty"`
	InactivityCosts       *network.Sequence `json:"inactivity_costs,omitempty"`
	MinimumUptime         *int              `json:"minimum_uptime,omitempty" validate:"omitempty,gte=0"`
	MinimumDowntime       *int              `json:"minimum_downtime,omitempty" validate:"omitempty,gte=0"`
	MaximumStartups       *int              `json:"maximum_startups,omitempty" validate:"omitempty,gte=0"`
	MaximumShutdowns      *int              `json:"maximum_shutdowns,omitempty" validate:"omitempty,gte=0"`
	InitialStatus         *int              `json:"initial_status,omitempty" validate:"omitempty,oneof=0 1"`
	PositiveGradientLimit *network.Sequence `json:"positive_gradient_limit,omitempty"`
	NegativeGradientLimit *network.Sequence `json:"negative_gradient_limit,omitempty"`
}

func (n *NonConvex) fields() []field {
	return []field{
		seqField("startup_costs", n.StartupCosts),
		seqField("shutdown_costs", n.ShutdownCosts),
		seqField("activity_costs", n.ActivityCosts),
		seqField("inactivity_costs", n.InactivityCosts),
		intField("minimum_uptime", n.MinimumUptime),
		intField("minimum_downtime", n.MinimumDowntime),
		intField("maximum_startups", n.MaximumStartups),
		intField("maximum_shutdowns", n.MaximumShutdowns),
		intField("initial_status", n.InitialStatus),
		seqField("positive_gradient_limit", n.PositiveGradientLimit),
		seqField("negative_gradient_limit", n.NegativeGradientLimit),
	}
}

// Kwargs returns the constructor arguments of the operating mode.
func (n *NonConvex) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("NonConvex", n.fields(), reg)
}

// Lower builds the target operating mode.
func (n *NonConvex) Lower(reg Registry) (*network.NonConvex, error) {
	kw, err := n.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewNonConvex(kw)
}

// Capacity is a fixed number or an Investment. On the wire it is a JSON
// number or object.
type Capacity struct {
	Value      *float64
	Investment *Investment
}

// Fixed returns a fixed capacity.
func Fixed(v float64) *Capacity { return &Capacity{Value: &v} }

// Invested returns an investment optimised capacity.
func Invested(inv *Investment) *Capacity { return &Capacity{Investment: inv} }

func (c *Capacity) empty() bool { return c.Value == nil && c.Investment == nil }

func (c *Capacity) lower(reg Registry) (interface{}, error) {
	if c.Investment != nil {
		return c.Investment.Lower(reg)
	}
	return *c.Value, nil
}

func (c Capacity) MarshalJSON() ([]byte, error) {
	if c.Investment != nil {
		return json.Marshal(c.Investment)
	}
	return json.Marshal(c.Value)
}

func (c *Capacity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Capacity{}
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '{':
		c.Investment = &Investment{}
		return strictUnmarshal(data, c.Investment)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("capacity: want number or investment object, got %s", data)
	}
	c.Value = &v
	return nil
}

// NonConvexOption is a plain flag or a NonConvex descriptor. On the wire it
// is a JSON bool or object.
type NonConvexOption struct {
	Flag *bool
	Spec *NonConvex
}

// Enabled reports whether the option turns on binary operation.
func (n *NonConvexOption) Enabled() bool {
	return n != nil && (n.Spec != nil || (n.Flag != nil && *n.Flag))
}

func (n *NonConvexOption) empty() bool { return n.Flag == nil && n.Spec == nil }

func (n *NonConvexOption) lower(reg Registry) (interface{}, error) {
	if n.Spec != nil {
		return n.Spec.Lower(reg)
	}
	return *n.Flag, nil
}

func (n NonConvexOption) MarshalJSON() ([]byte, error) {
	if n.Spec != nil {
		return json.Marshal(n.Spec)
	}
	return json.Marshal(n.Flag)
}

func (n *NonConvexOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = NonConvexOption{}
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '{':
		n.Spec = &NonConvex{}
		return strictUnmarshal(data, n.Spec)
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("nonconvex: want bool or object, got %s", data)
	}
	n.Flag = &b
	return nil
}

// Port is the value of one inputs/outputs/conversion_factors entry: a
// plain number or series, or a Flow descriptor.
type Port struct {
	Plain *network.Sequence
	Flow  *Flow
}

// PlainPort wraps a plain value.
func PlainPort(s network.Sequence) Port { return Port{Plain: &s} }

// FlowPort wraps a flow descriptor.
func FlowPort(f *Flow) Port { return Port{Flow: f} }

func (p Port) lower(reg Registry) (interface{}, error) {
	switch {
	case p.Flow != nil:
		return p.Flow.Lower(reg)
	case p.Plain != nil:
		return *p.Plain, nil
	}
	return nil, fmt.Errorf("empty port")
}

func (p Port) MarshalJSON() ([]byte, error) {
	if p.Flow != nil {
		return json.Marshal(p.Flow)
	}
	return json.Marshal(p.Plain)
}

func (p *Port) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = Port{}
	if len(data) > 0 && data[0] == '{' {
		p.Flow = &Flow{}
		return strictUnmarshal(data, p.Flow)
	}
	var s network.Sequence
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("port: want number, series or flow object: %w", err)
	}
	p.Plain = &s
	return nil
}

func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
