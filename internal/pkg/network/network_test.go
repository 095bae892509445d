package network

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func newIndex(n int) []time.Time {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return idx
}

func newNetwork(t *testing.T, n int) *Network {
	net, err := New(newIndex(n), time.Hour)
	assert.NilError(t, err)
	return net
}

func newBus(t *testing.T, label string) *Bus {
	b, err := NewBus(Kwargs{"label": label})
	assert.NilError(t, err)
	return b
}

// BEGIN --- Sequence Tests

func TestSequenceScalarAndSeries(t *testing.T) {
	s := Scalar(2.5)
	assert.Assert(t, !s.IsSeries())
	assert.Equal(t, s.At(7), 2.5)

	ser := Series(1, 2, 3)
	assert.Assert(t, ser.IsSeries())
	assert.Equal(t, ser.At(1), 2.0)
	assert.Equal(t, ser.At(10), 3.0)
	assert.DeepEqual(t, ser.Values(4), []float64{1, 2, 3, 3})
	assert.ErrorContains(t, ser.CheckLength(4), "3 values")
}

func TestSequenceJSON(t *testing.T) {
	var s Sequence
	assert.NilError(t, json.Unmarshal([]byte("4"), &s))
	assert.Equal(t, s.At(3), 4.0)

	assert.NilError(t, json.Unmarshal([]byte("[1, 0.5]"), &s))
	assert.Assert(t, s.IsSeries())
	assert.Equal(t, s.At(1), 0.5)

	assert.ErrorContains(t, json.Unmarshal([]byte(`"x"`), &s), "sequence")
}

// --- END Sequence Tests

// BEGIN --- Constructor Tests

func TestNewBusDefaultsBalanced(t *testing.T) {
	b := newBus(t, "el")
	assert.Equal(t, b.Label(), "el")
	assert.Assert(t, b.Balanced())

	b, err := NewBus(Kwargs{"label": "heat", "balanced": false})
	assert.NilError(t, err)
	assert.Assert(t, !b.Balanced())
}

func TestConstructorRejectsUnknownArgument(t *testing.T) {
	_, err := NewBus(Kwargs{"label": "el", "colour": "red"})
	assert.Assert(t, errors.Is(err, ErrBadArgument))
	assert.ErrorContains(t, err, "colour")
}

func TestConstructorRejectsWrongType(t *testing.T) {
	_, err := NewFlow(Kwargs{"nominal_value": "lots"})
	assert.Assert(t, errors.Is(err, ErrBadArgument))
}

func TestNewFlowEmpty(t *testing.T) {
	f, err := NewFlow(Kwargs{})
	assert.NilError(t, err)
	assert.Assert(t, f.NominalValue == nil)
	assert.Assert(t, !f.Bounded())
	assert.Equal(t, f.MaxAt(0), 1.0)
	assert.Equal(t, f.MinAt(0), 0.0)
}

func TestNewFlowWithInvestment(t *testing.T) {
	inv, err := NewInvestment(Kwargs{"ep_costs": 10.0, "maximum": 50.0})
	assert.NilError(t, err)
	f, err := NewFlow(Kwargs{"nominal_value": inv})
	assert.NilError(t, err)
	assert.Assert(t, f.Investment == inv)
	assert.Assert(t, f.NominalValue == nil)
}

func TestNewFlowRejectsInvestmentNonConvex(t *testing.T) {
	inv, _ := NewInvestment(Kwargs{})
	_, err := NewFlow(Kwargs{"nominal_value": inv, "nonconvex": true})
	assert.Assert(t, errors.Is(err, ErrInvestmentNonConvex))
}

func TestNewNonConvex(t *testing.T) {
	nc, err := NewNonConvex(Kwargs{
		"initial_status":    0,
		"minimum_uptime":    12,
		"minimum_downtime":  6,
		"maximum_startups":  3,
		"maximum_shutdowns": 3,
	})
	assert.NilError(t, err)
	assert.Equal(t, nc.InitialStatus, 0)
	assert.Equal(t, *nc.MaximumStartups, 3)
	assert.Assert(t, nc.NeedsStartup())
	assert.Assert(t, nc.NeedsShutdown())

	_, err = NewNonConvex(Kwargs{"initial_status": 2})
	assert.ErrorContains(t, err, "initial_status")
}

func TestNewInvestmentDefaults(t *testing.T) {
	inv, err := NewInvestment(Kwargs{})
	assert.NilError(t, err)
	assert.Assert(t, math.IsInf(inv.Maximum, 1))

	_, err = NewInvestment(Kwargs{"nonconvex": true})
	assert.ErrorContains(t, err, "finite maximum")
}

func TestNewConverterDefaultsFactor(t *testing.T) {
	gas := newBus(t, "gas")
	el := newBus(t, "el")
	heat := newBus(t, "heat")
	c, err := NewConverter(Kwargs{
		"label":              "chp",
		"inputs":             map[*Bus]interface{}{gas: &Flow{}},
		"outputs":            map[*Bus]interface{}{el: &Flow{}, heat: &Flow{}},
		"conversion_factors": map[*Bus]interface{}{el: Scalar(0.4)},
	})
	assert.NilError(t, err)
	assert.Equal(t, c.ConversionFactor(el).At(0), 0.4)
	assert.Equal(t, c.ConversionFactor(heat).At(0), 1.0)
	assert.Equal(t, c.Outputs()[0].Bus.Label(), "el")
	assert.Equal(t, c.Outputs()[1].Bus.Label(), "heat")
}

func TestNewConverterRejectsUnconnectedFactor(t *testing.T) {
	gas := newBus(t, "gas")
	el := newBus(t, "el")
	other := newBus(t, "other")
	_, err := NewConverter(Kwargs{
		"label":              "pp",
		"inputs":             map[*Bus]interface{}{gas: &Flow{}},
		"outputs":            map[*Bus]interface{}{el: &Flow{}},
		"conversion_factors": map[*Bus]interface{}{other: 0.5},
	})
	assert.ErrorContains(t, err, "unconnected bus")
}

func TestPlainPortValueBecomesNominalValue(t *testing.T) {
	el := newBus(t, "el")
	s, err := NewSink(Kwargs{"label": "demand", "inputs": map[*Bus]interface{}{el: Scalar(20)}})
	assert.NilError(t, err)
	assert.Equal(t, *s.Inputs()[0].Flow.NominalValue, 20.0)
}

func TestNewGenericStorage(t *testing.T) {
	el := newBus(t, "el")
	s, err := NewGenericStorage(Kwargs{
		"label":                    "battery",
		"inputs":                   map[*Bus]interface{}{el: &Flow{}},
		"outputs":                  map[*Bus]interface{}{el: &Flow{}},
		"nominal_storage_capacity": 100.0,
		"loss_rate":                Scalar(0.01),
		"initial_storage_level":    0.5,
	})
	assert.NilError(t, err)
	assert.Equal(t, *s.NominalStorageCapacity, 100.0)
	assert.Equal(t, s.LossRate.At(0), 0.01)
	assert.Assert(t, s.Balanced)
	assert.Equal(t, s.MaxStorageLevel.At(0), 1.0)

	_, err = NewGenericStorage(Kwargs{
		"label":   "battery",
		"inputs":  map[*Bus]interface{}{el: &Flow{}},
		"outputs": map[*Bus]interface{}{el: &Flow{}},
	})
	assert.ErrorContains(t, err, "nominal_storage_capacity")
}

// --- END Constructor Tests

// BEGIN --- Network Tests

func TestNetworkLookup(t *testing.T) {
	net := newNetwork(t, 3)
	el := newBus(t, "el")
	assert.NilError(t, net.Add(el))

	node, err := net.Lookup("el")
	assert.NilError(t, err)
	assert.Assert(t, node == el)

	_, err = net.Lookup("heat")
	assert.Assert(t, errors.Is(err, ErrNotFound))
}

func TestNetworkRejectsDuplicateLabel(t *testing.T) {
	net := newNetwork(t, 3)
	assert.NilError(t, net.Add(newBus(t, "el")))
	err := net.Add(newBus(t, "el"))
	assert.ErrorContains(t, err, "already exists")
}

func TestNetworkRejectsSeriesLengthMismatch(t *testing.T) {
	net := newNetwork(t, 3)
	el := newBus(t, "el")
	fix := Series(1, 1)
	nom := 10.0
	sink, err := NewSink(Kwargs{"label": "d", "inputs": map[*Bus]interface{}{el: &Flow{NominalValue: &nom, Fix: &fix}}})
	assert.NilError(t, err)
	assert.NilError(t, net.Add(el))
	assert.ErrorContains(t, net.Add(sink), "2 values")
}

func TestNetworkEdges(t *testing.T) {
	net := newNetwork(t, 2)
	el := newBus(t, "el")
	src, _ := NewSource(Kwargs{"label": "pv", "outputs": map[*Bus]interface{}{el: &Flow{}}})
	snk, _ := NewSink(Kwargs{"label": "demand", "inputs": map[*Bus]interface{}{el: &Flow{}}})
	assert.NilError(t, net.Add(el, src, snk))

	edges := net.Edges()
	assert.Equal(t, len(edges), 2)
	assert.Equal(t, edges[0].Key(), EdgeKey{"pv", "el"})
	assert.Equal(t, edges[1].Key(), EdgeKey{"el", "demand"})
	assert.Equal(t, net.StepHours(), 1.0)
	assert.Equal(t, KindOf(src), "source")
}

// --- END Network Tests
