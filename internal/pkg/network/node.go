package network

import (
	"errors"
	"fmt"
	"sort"
)

// Node is a named vertex of the network.
type Node interface {
	Label() string
}

// Port connects a node to a bus through a flow.
type Port struct {
	Bus  *Bus
	Flow *Flow
}

func newPorts(owner string, m map[*Bus]interface{}) ([]Port, error) {
	ports := make([]Port, 0, len(m))
	for bus, v := range m {
		if bus == nil {
			return nil, fmt.Errorf("%s: %w: nil bus", owner, ErrBadArgument)
		}
		f, err := portFlow(owner, bus, v)
		if err != nil {
			return nil, err
		}
		ports = append(ports, Port{bus, f})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Bus.Label() < ports[j].Bus.Label() })
	return ports, nil
}

func readLabel(r *KwargReader, owner string) (string, error) {
	label := r.String("label")
	if label == nil || *label == "" {
		return "", fmt.Errorf("%s: label is required", owner)
	}
	return *label, nil
}

// Bus is a balance point between flows.
type Bus struct {
	label    string
	balanced bool
}

// NewBus builds a Bus; balanced defaults to true.
func NewBus(kw Kwargs) (*Bus, error) {
	r := ReadKwargs("Bus", kw)
	label, err := readLabel(r, "Bus")
	if err != nil {
		return nil, err
	}
	b := &Bus{label: label, balanced: true}
	if v := r.Bool("balanced"); v != nil {
		b.balanced = *v
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return b, nil
}

// Label is an accessor for the bus label.
func (b *Bus) Label() string { return b.label }

// Balanced reports whether inflow must equal outflow every timestep.
func (b *Bus) Balanced() bool { return b.balanced }

// Source feeds one or more buses.
type Source struct {
	label   string
	outputs []Port
}

// NewSource builds a Source with label and outputs.
func NewSource(kw Kwargs) (*Source, error) {
	r := ReadKwargs("Source", kw)
	label, err := readLabel(r, "Source")
	if err != nil {
		return nil, err
	}
	outputs, err := newPorts("Source", r.Ports("outputs"))
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, errors.New("Source: outputs are required")
	}
	return &Source{label, outputs}, nil
}

// Label is an accessor for the source label.
func (s *Source) Label() string { return s.label }

// Outputs returns the ports sorted by bus label.
func (s *Source) Outputs() []Port { return s.outputs }

// Sink draws from one or more buses.
type Sink struct {
	label  string
	inputs []Port
}

// NewSink builds a Sink with label and inputs.
func NewSink(kw Kwargs) (*Sink, error) {
	r := ReadKwargs("Sink", kw)
	label, err := readLabel(r, "Sink")
	if err != nil {
		return nil, err
	}
	inputs, err := newPorts("Sink", r.Ports("inputs"))
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, errors.New("Sink: inputs are required")
	}
	return &Sink{label, inputs}, nil
}

// Label is an accessor for the sink label.
func (s *Sink) Label() string { return s.label }

// Inputs returns the ports sorted by bus label.
func (s *Sink) Inputs() []Port { return s.inputs }

// Converter links inputs to outputs through fixed conversion factors.
type Converter struct {
	label             string
	inputs            []Port
	outputs           []Port
	conversionFactors map[*Bus]Sequence
}

// NewConverter builds a Converter. Conversion factors default to 1 for every
// port without an explicit factor.
func NewConverter(kw Kwargs) (*Converter, error) {
	r := ReadKwargs("Converter", kw)
	label, err := readLabel(r, "Converter")
	if err != nil {
		return nil, err
	}
	inputs, err := newPorts("Converter", r.Ports("inputs"))
	if err != nil {
		return nil, err
	}
	outputs, err := newPorts("Converter", r.Ports("outputs"))
	if err != nil {
		return nil, err
	}
	factors := make(map[*Bus]Sequence)
	for bus, v := range r.Ports("conversion_factors") {
		s, ok := toSequence(v)
		if !ok {
			return nil, fmt.Errorf("Converter: %w: conversion factor for %q: want number or series, got %T", ErrBadArgument, bus.Label(), v)
		}
		factors[bus] = s
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("Converter: inputs and outputs are required")
	}
	c := &Converter{label, inputs, outputs, factors}
	for bus := range factors {
		if !c.connected(bus) {
			return nil, fmt.Errorf("Converter %q: conversion factor for unconnected bus %q", label, bus.Label())
		}
	}
	return c, nil
}

func (c *Converter) connected(b *Bus) bool {
	for _, p := range c.inputs {
		if p.Bus == b {
			return true
		}
	}
	for _, p := range c.outputs {
		if p.Bus == b {
			return true
		}
	}
	return false
}

// Label is an accessor for the converter label.
func (c *Converter) Label() string { return c.label }

// Inputs returns the input ports sorted by bus label.
func (c *Converter) Inputs() []Port { return c.inputs }

// Outputs returns the output ports sorted by bus label.
func (c *Converter) Outputs() []Port { return c.outputs }

// ConversionFactor returns the factor for bus b, 1 when unset.
func (c *Converter) ConversionFactor(b *Bus) Sequence {
	if s, ok := c.conversionFactors[b]; ok {
		return s
	}
	return Scalar(1)
}

// GenericStorage stores energy taken from one bus and released to another.
type GenericStorage struct {
	label                   string
	input                   Port
	output                  Port
	NominalStorageCapacity  *float64
	Investment              *Investment
	LossRate                Sequence
	FixedLossesRelative     Sequence
	FixedLossesAbsolute     Sequence
	InflowConversionFactor  Sequence
	OutflowConversionFactor Sequence
	InitialStorageLevel     *float64
	Balanced                bool
	MinStorageLevel         Sequence
	MaxStorageLevel         Sequence
	StorageCosts            *Sequence
}

// NewGenericStorage builds a storage. It needs exactly one input and one
// output; nominal_storage_capacity is a number or an *Investment.
func NewGenericStorage(kw Kwargs) (*GenericStorage, error) {
	r := ReadKwargs("GenericStorage", kw)
	label, err := readLabel(r, "GenericStorage")
	if err != nil {
		return nil, err
	}
	inputs, err := newPorts("GenericStorage", r.Ports("inputs"))
	if err != nil {
		return nil, err
	}
	outputs, err := newPorts("GenericStorage", r.Ports("outputs"))
	if err != nil {
		return nil, err
	}
	s := &GenericStorage{
		label:                   label,
		LossRate:                Scalar(0),
		FixedLossesRelative:     Scalar(0),
		FixedLossesAbsolute:     Scalar(0),
		InflowConversionFactor:  Scalar(1),
		OutflowConversionFactor: Scalar(1),
		Balanced:                true,
		MinStorageLevel:         Scalar(0),
		MaxStorageLevel:         Scalar(1),
	}
	if v, ok := r.Value("nominal_storage_capacity"); ok {
		switch c := v.(type) {
		case *Investment:
			s.Investment = c
		default:
			n, ok := toFloat(v)
			if !ok {
				r.Fail("nominal_storage_capacity", v, "number or *Investment")
				break
			}
			s.NominalStorageCapacity = &n
		}
	}
	setSeq := func(name string, dst *Sequence) {
		if v := r.Sequence(name); v != nil {
			*dst = *v
		}
	}
	setSeq("loss_rate", &s.LossRate)
	setSeq("fixed_losses_relative", &s.FixedLossesRelative)
	setSeq("fixed_losses_absolute", &s.FixedLossesAbsolute)
	setSeq("inflow_conversion_factor", &s.InflowConversionFactor)
	setSeq("outflow_conversion_factor", &s.OutflowConversionFactor)
	setSeq("min_storage_level", &s.MinStorageLevel)
	setSeq("max_storage_level", &s.MaxStorageLevel)
	s.InitialStorageLevel = r.Float("initial_storage_level")
	if v := r.Bool("balanced"); v != nil {
		s.Balanced = *v
	}
	s.StorageCosts = r.Sequence("storage_costs")
	if err := r.Done(); err != nil {
		return nil, err
	}

	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("GenericStorage %q: needs exactly one input and one output, got %d and %d", label, len(inputs), len(outputs))
	}
	if s.NominalStorageCapacity == nil && s.Investment == nil {
		return nil, fmt.Errorf("GenericStorage %q: nominal_storage_capacity is required", label)
	}
	s.input, s.output = inputs[0], outputs[0]
	return s, nil
}

// Label is an accessor for the storage label.
func (s *GenericStorage) Label() string { return s.label }

// Input returns the charging port.
func (s *GenericStorage) Input() Port { return s.input }

// Output returns the discharging port.
func (s *GenericStorage) Output() Port { return s.output }

// Inputs returns the charging port as a slice.
func (s *GenericStorage) Inputs() []Port { return []Port{s.input} }

// Outputs returns the discharging port as a slice.
func (s *GenericStorage) Outputs() []Port { return []Port{s.output} }

func (s *GenericStorage) checkLength(n int) error {
	named := map[string]*Sequence{
		"loss_rate":                 &s.LossRate,
		"fixed_losses_relative":     &s.FixedLossesRelative,
		"fixed_losses_absolute":     &s.FixedLossesAbsolute,
		"inflow_conversion_factor":  &s.InflowConversionFactor,
		"outflow_conversion_factor": &s.OutflowConversionFactor,
		"min_storage_level":         &s.MinStorageLevel,
		"max_storage_level":         &s.MaxStorageLevel,
		"storage_costs":             s.StorageCosts,
	}
	for name, seq := range named {
		if seq == nil {
			continue
		}
		if err := seq.CheckLength(n); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
