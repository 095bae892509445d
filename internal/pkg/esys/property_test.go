package esys

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

func properties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	return gopter.NewProperties(parameters)
}

func TestLabelsSurviveLowering(t *testing.T) {
	props := properties()

	props.Property("bus label and balance survive lowering", prop.ForAll(
		func(label string, balanced bool) bool {
			lowered, err := (&Bus{Label: label, Balanced: &balanced}).Lower(nil)
			if err != nil {
				return false
			}
			b := lowered.(*network.Bus)
			return b.Label() == label && b.Balanced() == balanced
		},
		gen.Identifier(),
		gen.Bool(),
	))

	props.Property("source label and nominal value survive lowering", prop.ForAll(
		func(label string, nominal float64) bool {
			net := registry(t, 1, &Bus{Label: "el"})
			if label == "el" {
				label = "el2"
			}
			src := &Source{Label: label, Outputs: map[string]Port{"el": FlowPort(&Flow{NominalValue: Fixed(nominal)})}}
			lowered, err := src.Lower(net)
			if err != nil {
				return false
			}
			s := lowered.(*network.Source)
			return s.Label() == label && *s.Outputs()[0].Flow.NominalValue == nominal
		},
		gen.Identifier(),
		gen.Float64Range(0, 1e6),
	))

	props.TestingRun(t)
}

func TestInvestmentLoweringProperty(t *testing.T) {
	props := properties()

	props.Property("investment flows carry an investment and no fixed capacity", prop.ForAll(
		func(epCosts, maximum float64) bool {
			f := &Flow{NominalValue: Invested(&Investment{EPCosts: &epCosts, Maximum: &maximum})}
			lowered, err := f.Lower(nil)
			if err != nil {
				return false
			}
			return lowered.NominalValue == nil &&
				lowered.Investment != nil &&
				lowered.Investment.EPCosts == epCosts &&
				lowered.Investment.Maximum == maximum
		},
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0, 1e6),
	))

	props.TestingRun(t)
}

func TestAddDispatchProperty(t *testing.T) {
	props := properties()
	limit := 1.0

	variants := []func() Element{
		func() Element { return &Bus{Label: "el"} },
		func() Element {
			return &Source{Label: "pv", Outputs: map[string]Port{"el": FlowPort(&Flow{})}}
		},
		func() Element {
			return &Sink{Label: "demand", Inputs: map[string]Port{"el": FlowPort(&Flow{})}}
		},
		func() Element {
			return &Converter{
				Label:             "pp",
				Inputs:            map[string]Port{"gas": FlowPort(&Flow{})},
				Outputs:           map[string]Port{"el": FlowPort(&Flow{})},
				ConversionFactors: map[string]Port{"el": PlainPort(network.Scalar(0.4))},
			}
		},
		func() Element {
			return &GenericStorage{
				Label:                   "battery",
				Inputs:                  map[string]Port{"el": FlowPort(&Flow{})},
				Outputs:                 map[string]Port{"el": FlowPort(&Flow{})},
				NominalStorageCapacity:  Fixed(10),
				LossRate:                seq(0),
				InflowConversionFactor:  seq(1),
				OutflowConversionFactor: seq(1),
				InitialStorageLevel:     ptr(0.0),
			}
		},
		func() Element { return &Constraint{Kind: EmissionLimit, Limit: &limit} },
	}

	props.Property("each variant lands in exactly one list", prop.ForAll(
		func(i int) bool {
			es, err := NewEnergySystem(time.Now(), 1, Hourly)
			if err != nil {
				return false
			}
			if err := es.Add(variants[i]()); err != nil {
				return false
			}
			if i == len(variants)-1 {
				return len(es.Nodes()) == 0 && len(es.Constraints()) == 1
			}
			return len(es.Nodes()) == 1 && len(es.Constraints()) == 0
		},
		gen.IntRange(0, len(variants)-1),
	))

	props.Property("nil values of any variant are rejected", prop.ForAll(
		func(i int) bool {
			nils := []Element{nil, (*Bus)(nil), (*Source)(nil), (*Sink)(nil), (*Converter)(nil), (*GenericStorage)(nil), (*Constraint)(nil)}
			es, _ := NewEnergySystem(time.Now(), 1, Hourly)
			return errors.Is(es.Add(nils[i]), ErrUnknownType)
		},
		gen.IntRange(0, 6),
	))

	props.TestingRun(t)
}

type edgeSummary struct {
	nominal float64
	invest  bool
}

func summarize(net *network.Network) (labels []string, edges map[network.EdgeKey]edgeSummary) {
	for _, n := range net.Nodes() {
		labels = append(labels, network.KindOf(n)+":"+n.Label())
	}
	edges = make(map[network.EdgeKey]edgeSummary)
	for _, e := range net.Edges() {
		s := edgeSummary{invest: e.Flow.Investment != nil}
		if e.Flow.NominalValue != nil {
			s.nominal = *e.Flow.NominalValue
		}
		edges[e.Key()] = s
	}
	return labels, edges
}

func TestNetworkIsIdempotent(t *testing.T) {
	props := properties()

	props.Property("lowering twice yields the same structure", prop.ForAll(
		func(steps int, supply, demand float64) bool {
			es, err := NewEnergySystem(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), steps, QuarterHour)
			if err != nil {
				return false
			}
			err = es.Add(
				&Bus{Label: "el"},
				&Source{Label: "pv", Outputs: map[string]Port{"el": FlowPort(&Flow{NominalValue: Fixed(supply)})}},
				&Source{Label: "grid", Outputs: map[string]Port{"el": FlowPort(&Flow{NominalValue: Invested(&Investment{})})}},
				&Sink{Label: "demand", Inputs: map[string]Port{"el": FlowPort(&Flow{NominalValue: Fixed(demand), Fix: seq(1)})}},
			)
			if err != nil {
				return false
			}
			first, err := es.Network()
			if err != nil {
				return false
			}
			second, err := es.Network()
			if err != nil {
				return false
			}
			l1, e1 := summarize(first)
			l2, e2 := summarize(second)
			if len(l1) != len(l2) || len(e1) != len(e2) || first.Steps() != steps {
				return false
			}
			for i := range l1 {
				if l1[i] != l2[i] {
					return false
				}
			}
			for k, v := range e1 {
				if e2[k] != v {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 96),
		gen.Float64Range(0, 1e3),
		gen.Float64Range(0, 1e3),
	))

	props.TestingRun(t)
}
