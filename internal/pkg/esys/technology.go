package esys

import (
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
	"github.com/ohowland/cgc_planner/internal/pkg/techdata"
)

// Technology declares a node by technology type. Parameters the node leaves
// unset are taken from the technology table row for Year.
type Technology struct {
	Name         string  `json:"name" validate:"required"`
	Year         int     `json:"year" validate:"required"`
	InterestRate float64 `json:"interest_rate,omitempty" validate:"gte=0"`
}

// Lookup is what technology synthesis needs from a table.
type Lookup interface {
	Lookup(name string, year int) (techdata.Record, error)
}

// ApplyTechnology fills unset parameters of a node declared by
// technology. Nodes without a technology are left alone.
func ApplyTechnology(node Node, table Lookup) error {
	var tech *Technology
	switch n := node.(type) {
	case *Source:
		if n != nil {
			tech = n.Technology
		}
	case *Sink:
		if n != nil {
			tech = n.Technology
		}
	case *Converter:
		if n != nil {
			tech = n.Technology
		}
	case *GenericStorage:
		if n != nil {
			tech = n.Technology
		}
	}
	if tech == nil {
		return nil
	}
	if err := validateStruct("Technology", tech); err != nil {
		return err
	}
	if table == nil {
		return fmt.Errorf("%s: technology %q needs a technology table", node.Name(), tech.Name)
	}
	rec, err := table.Lookup(tech.Name, tech.Year)
	if err != nil {
		return fmt.Errorf("%s: %w", node.Name(), err)
	}
	epCosts := techdata.Annuity(rec.InvestmentCosts, rec.Lifetime, tech.InterestRate)

	switch n := node.(type) {
	case *Source:
		for _, p := range n.Outputs {
			synthesizeFlow(p.Flow, rec, epCosts, tech)
		}
	case *Sink:
		for _, p := range n.Inputs {
			synthesizeFlow(p.Flow, rec, epCosts, tech)
		}
	case *Converter:
		for label, p := range n.Outputs {
			synthesizeFlow(p.Flow, rec, epCosts, tech)
			if n.ConversionFactors == nil {
				n.ConversionFactors = make(map[string]Port)
			}
			if _, ok := n.ConversionFactors[label]; !ok {
				n.ConversionFactors[label] = PlainPort(network.Scalar(rec.Efficiency))
			}
		}
	case *GenericStorage:
		if n.NominalStorageCapacity == nil || n.NominalStorageCapacity.empty() {
			n.NominalStorageCapacity = Invested(&Investment{})
		}
		synthesizeInvestment(n.NominalStorageCapacity.Investment, rec, epCosts, tech)
		if n.InflowConversionFactor == nil {
			eff := network.Scalar(rec.Efficiency)
			n.InflowConversionFactor = &eff
		}
	}
	return nil
}

// synthesizeFlow turns an unsized flow into an investment flow and fills
// costs and lifetime. Plain ports carry no flow and are skipped.
func synthesizeFlow(f *Flow, rec techdata.Record, epCosts float64, tech *Technology) {
	if f == nil {
		return
	}
	if (f.NominalValue == nil || f.NominalValue.empty()) && !f.NonConvex.Enabled() {
		f.NominalValue = Invested(&Investment{})
	}
	if f.NominalValue != nil {
		synthesizeInvestment(f.NominalValue.Investment, rec, epCosts, tech)
	}
	if f.VariableCosts == nil {
		vc := network.Scalar(rec.OperatingCosts)
		f.VariableCosts = &vc
	}
	if f.Lifetime == nil {
		lifetime := rec.Lifetime
		f.Lifetime = &lifetime
	}
}

func synthesizeInvestment(inv *Investment, rec techdata.Record, epCosts float64, tech *Technology) {
	if inv == nil {
		return
	}
	if inv.EPCosts == nil {
		inv.EPCosts = &epCosts
	}
	if inv.Lifetime == nil {
		lifetime := rec.Lifetime
		inv.Lifetime = &lifetime
	}
	if inv.InterestRate == nil {
		rate := tech.InterestRate
		inv.InterestRate = &rate
	}
}
