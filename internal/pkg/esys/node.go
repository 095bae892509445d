package esys

import (
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

// Bus is a balance point that flows attach to.
type Bus struct {
	Label    string `json:"label" validate:"required"`
	Balanced *bool  `json:"balanced,omitempty"`
}

func (b *Bus) element() {}

// Name is an accessor for the label.
func (b *Bus) Name() string { return b.Label }

// Validate checks required fields.
func (b *Bus) Validate() error {
	return validateStruct("Bus", b)
}

func (b *Bus) fields() []field {
	return []field{
		stringField("label", b.Label),
		boolField("balanced", b.Balanced),
	}
}

// Kwargs returns the constructor arguments of the bus.
func (b *Bus) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("Bus "+b.Label, b.fields(), reg)
}

// Lower builds the target bus.
func (b *Bus) Lower(reg Registry) (network.Node, error) {
	kw, err := b.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewBus(kw)
}

// Source feeds energy into its output buses.
type Source struct {
	Label      string          `json:"label" validate:"required"`
	Outputs    map[string]Port `json:"outputs" validate:"required,min=1"`
	Technology *Technology     `json:"technology,omitempty"`
}

func (s *Source) element() {}

// Name is an accessor for the label.
func (s *Source) Name() string { return s.Label }

// Validate checks required fields and every output flow.
func (s *Source) Validate() error {
	if err := validateStruct("Source", s); err != nil {
		return err
	}
	return validatePorts("Source "+s.Label, "outputs", s.Outputs)
}

func (s *Source) fields() []field {
	return []field{
		stringField("label", s.Label),
		portsField("outputs", s.Outputs),
	}
}

// Kwargs returns the constructor arguments of the source.
func (s *Source) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("Source "+s.Label, s.fields(), reg)
}

// Lower builds the target source.
func (s *Source) Lower(reg Registry) (network.Node, error) {
	kw, err := s.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewSource(kw)
}

// Sink draws energy from its input buses.
type Sink struct {
	Label      string          `json:"label" validate:"required"`
	Inputs     map[string]Port `json:"inputs" validate:"required,min=1"`
	Technology *Technology     `json:"technology,omitempty"`
}

func (s *Sink) element() {}

// Name is an accessor for the label.
func (s *Sink) Name() string { return s.Label }

// Validate checks required fields and every input flow.
func (s *Sink) Validate() error {
	if err := validateStruct("Sink", s); err != nil {
		return err
	}
	return validatePorts("Sink "+s.Label, "inputs", s.Inputs)
}

func (s *Sink) fields() []field {
	return []field{
		stringField("label", s.Label),
		portsField("inputs", s.Inputs),
	}
}

// Kwargs returns the constructor arguments of the sink.
func (s *Sink) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("Sink "+s.Label, s.fields(), reg)
}

// Lower builds the target sink.
func (s *Sink) Lower(reg Registry) (network.Node, error) {
	kw, err := s.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewSink(kw)
}

// Converter turns input flows into output flows at fixed ratios.
type Converter struct {
	Label             string          `json:"label" validate:"required"`
	Inputs            map[string]Port `json:"inputs" validate:"required,min=1"`
	Outputs           map[string]Port `json:"outputs" validate:"required,min=1"`
	ConversionFactors map[string]Port `json:"conversion_factors" validate:"required,min=1"`
	Technology        *Technology     `json:"technology,omitempty"`
}

func (c *Converter) element() {}

// Name is an accessor for the label.
func (c *Converter) Name() string { return c.Label }

// Validate checks required fields, every flow, and that conversion factors
// are plain values.
func (c *Converter) Validate() error {
	if err := validateStruct("Converter", c); err != nil {
		return err
	}
	owner := "Converter " + c.Label
	if err := validatePorts(owner, "inputs", c.Inputs); err != nil {
		return err
	}
	if err := validatePorts(owner, "outputs", c.Outputs); err != nil {
		return err
	}
	for label, p := range c.ConversionFactors {
		if p.Plain == nil {
			return fmt.Errorf("%w: %s: conversion_factors[%s]: want number or series", ErrValidation, owner, label)
		}
	}
	return nil
}

func (c *Converter) fields() []field {
	return []field{
		stringField("label", c.Label),
		portsField("inputs", c.Inputs),
		portsField("outputs", c.Outputs),
		portsField("conversion_factors", c.ConversionFactors),
	}
}

// Kwargs returns the constructor arguments of the converter.
func (c *Converter) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("Converter "+c.Label, c.fields(), reg)
}

// Lower builds the target converter.
func (c *Converter) Lower(reg Registry) (network.Node, error) {
	kw, err := c.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewConverter(kw)
}

// GenericStorage stores energy between timesteps.
type GenericStorage struct {
	Label                   string            `json:"label" validate:"required"`
	Inputs                  map[string]Port   `json:"inputs" validate:"required,len=1"`
	Outputs                 map[string]Port   `json:"outputs" validate:"required,len=1"`
	NominalStorageCapacity  *Capacity         `json:"nominal_storage_capacity" validate:"required"`
	LossRate                *network.Sequence `json:"loss_rate" validate:"required"`
	FixedLossesRelative     *network.Sequence `json:"fixed_losses_relative,omitempty"`
	FixedLossesAbsolute     *network.Sequence `json:"fixed_losses_absolute,omitempty"`
	InflowConversionFactor  *network.Sequence `json:"inflow_conversion_factor" validate:"required"`
	OutflowConversionFactor *network.Sequence `json:"outflow_conversion_factor" validate:"required"`
	InitialStorageLevel     *float64          `json:"initial_storage_level" validate:"required,gte=0,lte=1"`
	Balanced                *bool             `json:"balanced,omitempty"`
	MinStorageLevel         *network.Sequence `json:"min_storage_level,omitempty"`
	MaxStorageLevel         *network.Sequence `json:"max_storage_level,omitempty"`
	StorageCosts            *network.Sequence `json:"storage_costs,omitempty"`
	Technology              *Technology       `json:"technology,omitempty"`
}

func (s *GenericStorage) element() {}

// Name is an accessor for the label.
func (s *GenericStorage) Name() string { return s.Label }

// Validate checks required fields and both port flows.
func (s *GenericStorage) Validate() error {
	if err := validateStruct("GenericStorage", s); err != nil {
		return err
	}
	if s.NominalStorageCapacity.empty() {
		return fmt.Errorf("%w: GenericStorage %s: nominal_storage_capacity: field is required", ErrValidation, s.Label)
	}
	owner := "GenericStorage " + s.Label
	if err := validatePorts(owner, "inputs", s.Inputs); err != nil {
		return err
	}
	return validatePorts(owner, "outputs", s.Outputs)
}

func (s *GenericStorage) fields() []field {
	return []field{
		stringField("label", s.Label),
		portsField("inputs", s.Inputs),
		portsField("outputs", s.Outputs),
		capField("nominal_storage_capacity", s.NominalStorageCapacity),
		seqField("loss_rate", s.LossRate),
		seqField("fixed_losses_relative", s.FixedLossesRelative),
		seqField("fixed_losses_absolute", s.FixedLossesAbsolute),
		seqField("inflow_conversion_factor", s.InflowConversionFactor),
		seqField("outflow_conversion_factor", s.OutflowConversionFactor),
		floatField("initial_storage_level", s.InitialStorageLevel),
		boolField("balanced", s.Balanced),
		seqField("min_storage_level", s.MinStorageLevel),
		seqField("max_storage_level", s.MaxStorageLevel),
		seqField("storage_costs", s.StorageCosts),
	}
}

// Kwargs returns the constructor arguments of the storage.
func (s *GenericStorage) Kwargs(reg Registry) (network.Kwargs, error) {
	return build("GenericStorage "+s.Label, s.fields(), reg)
}

// Lower builds the target storage.
func (s *GenericStorage) Lower(reg Registry) (network.Node, error) {
	kw, err := s.Kwargs(reg)
	if err != nil {
		return nil, err
	}
	return network.NewGenericStorage(kw)
}
