package optimize

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ohowland/cgc_planner/internal/pkg/network"
	"gotest.tools/v3/assert"
)

func hourly(t *testing.T, n int) *network.Network {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	net, err := network.New(idx, time.Hour)
	assert.NilError(t, err)
	return net
}

func mustFlow(t *testing.T, kw network.Kwargs) *network.Flow {
	f, err := network.NewFlow(kw)
	assert.NilError(t, err)
	return f
}

func mustBus(t *testing.T, label string) *network.Bus {
	b, err := network.NewBus(network.Kwargs{"label": label})
	assert.NilError(t, err)
	return b
}

type ports = map[*network.Bus]interface{}

// supplyDemand is pv -> el -> demand with a fixed demand of 5.
func supplyDemand(t *testing.T, steps int, supply *network.Flow) *network.Network {
	net := hourly(t, steps)
	el := mustBus(t, "el")
	pv, err := network.NewSource(network.Kwargs{"label": "pv", "outputs": ports{el: supply}})
	assert.NilError(t, err)
	demand, err := network.NewSink(network.Kwargs{
		"label":  "demand",
		"inputs": ports{el: mustFlow(t, network.Kwargs{"nominal_value": 5.0, "fix": 1.0})},
	})
	assert.NilError(t, err)
	assert.NilError(t, net.Add(el, pv, demand))
	return net
}

// BEGIN --- Model Tests

func TestAddConstraintFoldsConstant(t *testing.T) {
	m := newModel("m", hourly(t, 1))
	x := m.AddVariable("x", 0, 10, Continuous)
	e := Expr{}
	e.Add(x, 1)
	e.Add(x, 2)
	e.AddConstant(4)
	assert.NilError(t, m.AddConstraint("c", e, LessEqual, 10))

	c, ok := m.Constraint("c")
	assert.Assert(t, ok)
	assert.DeepEqual(t, c.Terms, []Term{{x, 3}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 6.0)

	assert.NilError(t, m.AddConstraint("c", e, GreaterEqual, 0))
	c, ok = m.Constraint("c_1")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, GreaterEqual)
}

func TestAddConstraintEmptyRow(t *testing.T) {
	m := newModel("m", hourly(t, 1))
	assert.NilError(t, m.AddConstraint("ok", Expr{}, LessEqual, 1))
	_, ok := m.Constraint("ok")
	assert.Assert(t, !ok)
	assert.ErrorContains(t, m.AddConstraint("bad", Expr{Constant: 2}, Equal, 0), "infeasible")
}

func TestVariableNamesAreUnique(t *testing.T) {
	m := newModel("m", hourly(t, 1))
	a := m.AddVariable("x", 0, 1, Continuous)
	b := m.AddVariable("x", 0, 1, Continuous)
	assert.Equal(t, m.VarName(a), "x")
	assert.Equal(t, m.VarName(b), "x_1")
	assert.Equal(t, sanitize("chp gas-1"), "chp_gas_1")
}

// --- END Model Tests

// BEGIN --- Formulation Tests

func TestBuildSupplyDemand(t *testing.T) {
	net := supplyDemand(t, 3, mustFlow(t, network.Kwargs{"nominal_value": 10.0, "variable_costs": 2.0}))
	m, err := New(net, "")
	assert.NilError(t, err)
	assert.Equal(t, m.Name(), "model")

	// ONE_VAR_CONSTANT plus two flows over three steps
	assert.Equal(t, m.NumVariables(), 7)
	assert.Equal(t, m.NumConstraints(), 4)

	pv, ok := m.FlowVars("pv", "el")
	assert.Assert(t, ok)
	lb, ub := m.Bounds(pv[0])
	assert.Equal(t, lb, 0.0)
	assert.Equal(t, ub, 10.0)
	assert.Equal(t, m.ObjectiveCoef(pv[2]), 2.0)

	demand, _ := m.FlowVars("el", "demand")
	lb, ub = m.Bounds(demand[1])
	assert.Equal(t, lb, 5.0)
	assert.Equal(t, ub, 5.0)

	c, ok := m.Constraint("balance(el_1)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, Equal)
	assert.DeepEqual(t, c.Terms, []Term{{pv[1], 1}, {demand[1], -1}}, cmp.AllowUnexported(Var{}))
}

func TestBuildUnbalancedBusHasNoBalance(t *testing.T) {
	net := hourly(t, 2)
	el, err := network.NewBus(network.Kwargs{"label": "el", "balanced": false})
	assert.NilError(t, err)
	pv, _ := network.NewSource(network.Kwargs{"label": "pv", "outputs": ports{el: &network.Flow{}}})
	assert.NilError(t, net.Add(el, pv))

	m, err := New(net, "m")
	assert.NilError(t, err)
	_, ok := m.Constraint("balance(el_0)")
	assert.Assert(t, !ok)
}

func TestBuildInvestmentFlow(t *testing.T) {
	inv, err := network.NewInvestment(network.Kwargs{"ep_costs": 10.0, "fixed_costs": 1.0, "maximum": 50.0, "existing": 2.0})
	assert.NilError(t, err)
	net := supplyDemand(t, 2, mustFlow(t, network.Kwargs{"nominal_value": inv}))
	m, err := New(net, "m")
	assert.NilError(t, err)

	v, ok := m.InvestVar("pv", "el")
	assert.Assert(t, ok)
	lb, ub := m.Bounds(v)
	assert.Equal(t, lb, 0.0)
	assert.Equal(t, ub, 50.0)
	assert.Equal(t, m.ObjectiveCoef(v), 11.0)

	c, ok := m.Constraint("invest_max(pv_el_1)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, LessEqual)
	assert.Equal(t, c.RHS, 2.0)
	assert.Equal(t, len(c.Terms), 2)
}

func TestBuildNonConvexFlow(t *testing.T) {
	nc, err := network.NewNonConvex(network.Kwargs{
		"initial_status":   0,
		"minimum_uptime":   2,
		"maximum_startups": 1,
		"startup_costs":    3.0,
	})
	assert.NilError(t, err)
	net := supplyDemand(t, 3, mustFlow(t, network.Kwargs{"nominal_value": 10.0, "min": 0.2, "nonconvex": nc}))
	m, err := New(net, "m")
	assert.NilError(t, err)

	status, ok := m.StatusVars("pv", "el")
	assert.Assert(t, ok)
	assert.Equal(t, len(status), 3)
	assert.Equal(t, m.Kind(status[0]), Binary)

	// initial status 0 moves into the startup row's rhs
	c, ok := m.Constraint("startup_constraint(pv_el_0)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, GreaterEqual)
	assert.Equal(t, c.RHS, 0.0)

	_, ok = m.Constraint("min_uptime(pv_el_0_1)")
	assert.Assert(t, ok)
	_, ok = m.Constraint("min_uptime(pv_el_0_2)")
	assert.Assert(t, !ok)

	c, ok = m.Constraint("max_startups(pv_el)")
	assert.Assert(t, ok)
	assert.Equal(t, c.RHS, 1.0)

	c, ok = m.Constraint("nonconvex_min(pv_el_0)")
	assert.Assert(t, ok)
	assert.DeepEqual(t, c.Terms[1], Term{status[0], -2}, cmp.AllowUnexported(Var{}))
}

func TestBuildConverter(t *testing.T) {
	net := hourly(t, 1)
	gas := mustBus(t, "gas")
	el := mustBus(t, "el")
	pp, err := network.NewConverter(network.Kwargs{
		"label":              "pp",
		"inputs":             ports{gas: &network.Flow{}},
		"outputs":            ports{el: &network.Flow{}},
		"conversion_factors": ports{el: 0.4},
	})
	assert.NilError(t, err)
	assert.NilError(t, net.Add(gas, el, pp))

	m, err := New(net, "m")
	assert.NilError(t, err)
	in, _ := m.FlowVars("gas", "pp")
	out, _ := m.FlowVars("pp", "el")
	c, ok := m.Constraint("conversion(pp_gas_el_0)")
	assert.Assert(t, ok)
	assert.DeepEqual(t, c.Terms, []Term{{in[0], 0.4}, {out[0], -1}}, cmp.AllowUnexported(Var{}))
}

func TestBuildStorage(t *testing.T) {
	net := hourly(t, 2)
	el := mustBus(t, "el")
	battery, err := network.NewGenericStorage(network.Kwargs{
		"label":                    "battery",
		"inputs":                   ports{el: &network.Flow{}},
		"outputs":                  ports{el: &network.Flow{}},
		"nominal_storage_capacity": 100.0,
		"initial_storage_level":    0.5,
		"inflow_conversion_factor": 0.9,
	})
	assert.NilError(t, err)
	assert.NilError(t, net.Add(el, battery))

	m, err := New(net, "m")
	assert.NilError(t, err)
	content, ok := m.ContentVars("battery")
	assert.Assert(t, ok)
	lb, ub := m.Bounds(content[0])
	assert.Equal(t, lb, 0.0)
	assert.Equal(t, ub, 100.0)

	c, ok := m.Constraint("storage_balance(battery_0)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, Equal)
	assert.Equal(t, c.RHS, 50.0)

	c, ok = m.Constraint("storage_balanced(battery)")
	assert.Assert(t, ok)
	assert.Equal(t, c.RHS, 50.0)
}

func TestCollidingLabelsGetDistinctRows(t *testing.T) {
	net := hourly(t, 1)
	dash := mustBus(t, "el-1")
	under := mustBus(t, "el_1")
	a, _ := network.NewSource(network.Kwargs{"label": "a", "outputs": ports{dash: &network.Flow{}}})
	b, _ := network.NewSink(network.Kwargs{"label": "b", "inputs": ports{under: mustFlow(t, network.Kwargs{"nominal_value": 1.0, "fix": 1.0})}})
	c, _ := network.NewSource(network.Kwargs{"label": "c", "outputs": ports{under: &network.Flow{}}})
	assert.NilError(t, net.Add(dash, under, a, b, c))

	m, err := New(net, "m")
	assert.NilError(t, err)
	first, ok := m.Constraint("balance(el_1_0)")
	assert.Assert(t, ok)
	second, ok := m.Constraint("balance(el_1_0)_1")
	assert.Assert(t, ok)
	assert.Equal(t, len(first.Terms), 1)
	assert.Equal(t, len(second.Terms), 2)

	net = hourly(t, 1)
	bus := mustBus(t, "bus")
	elBus := mustBus(t, "el_bus")
	inv1, _ := network.NewInvestment(network.Kwargs{"ep_costs": 1.0})
	inv2, _ := network.NewInvestment(network.Kwargs{"ep_costs": 1.0})
	pv, _ := network.NewSource(network.Kwargs{"label": "pv", "outputs": ports{elBus: mustFlow(t, network.Kwargs{"nominal_value": inv1})}})
	pvEl, _ := network.NewSource(network.Kwargs{"label": "pv_el", "outputs": ports{bus: mustFlow(t, network.Kwargs{"nominal_value": inv2})}})
	assert.NilError(t, net.Add(bus, elBus, pv, pvEl))

	m, err = New(net, "m")
	assert.NilError(t, err)
	v1, _ := m.InvestVar("pv", "el_bus")
	v2, _ := m.InvestVar("pv_el", "bus")
	row1, ok := m.Constraint("invest_max(pv_el_bus_0)")
	assert.Assert(t, ok)
	row2, ok := m.Constraint("invest_max(pv_el_bus_0)_1")
	assert.Assert(t, ok)
	assert.DeepEqual(t, row1.Terms[1], Term{v1, -1}, cmp.AllowUnexported(Var{}))
	assert.DeepEqual(t, row2.Terms[1], Term{v2, -1}, cmp.AllowUnexported(Var{}))
}

func TestNonConvexNeedsCapacityAtBuild(t *testing.T) {
	nc, err := network.NewNonConvex(network.Kwargs{"initial_status": 0, "maximum_startups": 3})
	assert.NilError(t, err)
	f := mustFlow(t, network.Kwargs{"nonconvex": nc})
	assert.Equal(t, *f.NonConvex.MaximumStartups, 3)

	_, err = New(supplyDemand(t, 2, f), "m")
	assert.ErrorContains(t, err, "nonconvex flow needs a nominal_value")
}

func TestBuildMinimumDowntime(t *testing.T) {
	nc, err := network.NewNonConvex(network.Kwargs{"initial_status": 1, "minimum_downtime": 3})
	assert.NilError(t, err)
	net := supplyDemand(t, 4, mustFlow(t, network.Kwargs{"nominal_value": 10.0, "nonconvex": nc}))
	m, err := New(net, "m")
	assert.NilError(t, err)
	status, _ := m.StatusVars("pv", "el")

	// status[tau] - status[t] + status[t-1] <= 1, with status[-1] = 1 folded
	c, ok := m.Constraint("min_downtime(pv_el_0_1)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, LessEqual)
	assert.DeepEqual(t, c.Terms, []Term{{status[1], 1}, {status[0], -1}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 0.0)

	c, ok = m.Constraint("min_downtime(pv_el_1_3)")
	assert.Assert(t, ok)
	assert.DeepEqual(t, c.Terms, []Term{{status[3], 1}, {status[1], -1}, {status[0], 1}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 1.0)

	_, ok = m.Constraint("min_downtime(pv_el_0_3)")
	assert.Assert(t, !ok)
	_, ok = m.Constraint("min_uptime(pv_el_0_1)")
	assert.Assert(t, !ok)
}

func TestBuildShutdown(t *testing.T) {
	nc, err := network.NewNonConvex(network.Kwargs{
		"initial_status":    1,
		"maximum_shutdowns": 2,
		"shutdown_costs":    4.0,
	})
	assert.NilError(t, err)
	net := supplyDemand(t, 3, mustFlow(t, network.Kwargs{"nominal_value": 10.0, "nonconvex": nc}))
	m, err := New(net, "m")
	assert.NilError(t, err)
	status, _ := m.StatusVars("pv", "el")
	shutdown, ok := m.shutdown[network.EdgeKey{From: "pv", To: "el"}]
	assert.Assert(t, ok)
	assert.Equal(t, len(shutdown), 3)
	assert.Equal(t, m.Kind(shutdown[0]), Binary)
	assert.Equal(t, m.ObjectiveCoef(shutdown[2]), 4.0)

	// shutdown[0] + status[0] >= initial status
	c, ok := m.Constraint("shutdown_constraint(pv_el_0)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, GreaterEqual)
	assert.DeepEqual(t, c.Terms, []Term{{shutdown[0], 1}, {status[0], 1}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 1.0)

	c, ok = m.Constraint("shutdown_constraint(pv_el_2)")
	assert.Assert(t, ok)
	assert.DeepEqual(t, c.Terms, []Term{{shutdown[2], 1}, {status[2], 1}, {status[1], -1}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 0.0)

	c, ok = m.Constraint("max_shutdowns(pv_el)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, LessEqual)
	assert.DeepEqual(t, c.Terms, []Term{{shutdown[0], 1}, {shutdown[1], 1}, {shutdown[2], 1}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 2.0)
}

func TestBuildFullLoadTime(t *testing.T) {
	net := supplyDemand(t, 3, mustFlow(t, network.Kwargs{
		"nominal_value":      10.0,
		"full_load_time_max": 2.0,
		"full_load_time_min": 1.0,
	}))
	m, err := New(net, "m")
	assert.NilError(t, err)
	pv, _ := m.FlowVars("pv", "el")

	// sum(flow * dt) <= 2 * 10
	c, ok := m.Constraint("full_load_time_max(pv_el)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, LessEqual)
	assert.DeepEqual(t, c.Terms, []Term{{pv[0], 1}, {pv[1], 1}, {pv[2], 1}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 20.0)

	c, ok = m.Constraint("full_load_time_min(pv_el)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, GreaterEqual)
	assert.Equal(t, c.RHS, 10.0)

	inv, _ := network.NewInvestment(network.Kwargs{"existing": 5.0})
	net = supplyDemand(t, 2, mustFlow(t, network.Kwargs{"nominal_value": inv, "full_load_time_max": 3.0}))
	m, err = New(net, "m")
	assert.NilError(t, err)
	pv, _ = m.FlowVars("pv", "el")
	v, _ := m.InvestVar("pv", "el")
	c, ok = m.Constraint("full_load_time_max(pv_el)")
	assert.Assert(t, ok)
	assert.DeepEqual(t, c.Terms, []Term{{pv[0], 1}, {pv[1], 1}, {v, -3}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 15.0)
}

func TestGradientNeedsCapacity(t *testing.T) {
	net := supplyDemand(t, 2, mustFlow(t, network.Kwargs{"positive_gradient_limit": 0.1}))
	_, err := New(net, "m")
	assert.ErrorContains(t, err, "gradient")
}

// --- END Formulation Tests

// BEGIN --- Global Constraint Tests

func TestEmissionLimit(t *testing.T) {
	supply := mustFlow(t, network.Kwargs{
		"nominal_value":     100.0,
		"custom_attributes": map[string]interface{}{"emission_factor": 0.5},
	})
	net := supplyDemand(t, 24, supply)
	m, err := New(net, "m")
	assert.NilError(t, err)

	m, err = EmissionLimit(m, network.Kwargs{"limit": 1000.0, "keyword": "emission_factor"})
	assert.NilError(t, err)

	c, ok := m.Constraint("emission_limit")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, LessEqual)
	assert.Equal(t, c.RHS, 1000.0)
	assert.Equal(t, len(c.Terms), 24)
	for _, term := range c.Terms {
		assert.Equal(t, term.Coef, 0.5)
	}
}

func TestGenericIntegralLimitNeedsKeyword(t *testing.T) {
	m, err := New(supplyDemand(t, 1, &network.Flow{}), "m")
	assert.NilError(t, err)
	_, err = GenericIntegralLimit(m, network.Kwargs{"limit": 1.0})
	assert.ErrorContains(t, err, "keyword")
	_, err = GenericIntegralLimit(m, network.Kwargs{"keyword": "co2", "limit": 1.0, "bogus": 1})
	assert.Assert(t, errors.Is(err, network.ErrBadArgument))
}

func TestInvestmentLimit(t *testing.T) {
	inv, _ := network.NewInvestment(network.Kwargs{"ep_costs": 4.0})
	m, err := New(supplyDemand(t, 1, mustFlow(t, network.Kwargs{"nominal_value": inv})), "m")
	assert.NilError(t, err)
	m, err = InvestmentLimit(m, network.Kwargs{"limit": 100.0})
	assert.NilError(t, err)

	v, _ := m.InvestVar("pv", "el")
	c, ok := m.Constraint("investment_limit")
	assert.Assert(t, ok)
	assert.DeepEqual(t, c.Terms, []Term{{v, 4}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 100.0)
}

func TestEquateVariables(t *testing.T) {
	net := hourly(t, 1)
	el := mustBus(t, "el")
	inv1, _ := network.NewInvestment(network.Kwargs{})
	inv2, _ := network.NewInvestment(network.Kwargs{})
	pv, _ := network.NewSource(network.Kwargs{"label": "pv", "outputs": ports{el: mustFlow(t, network.Kwargs{"nominal_value": inv1})}})
	wind, _ := network.NewSource(network.Kwargs{"label": "wind", "outputs": ports{el: mustFlow(t, network.Kwargs{"nominal_value": inv2})}})
	assert.NilError(t, net.Add(el, pv, wind))

	m, err := New(net, "m")
	assert.NilError(t, err)
	m, err = EquateVariables(m, network.Kwargs{
		"var1":    VarRef{Flow: []string{"pv", "el"}},
		"var2":    VarRef{Flow: []string{"wind", "el"}},
		"factor1": 2.0,
	})
	assert.NilError(t, err)
	c, ok := m.Constraint("equate_variables")
	assert.Assert(t, ok)
	assert.Equal(t, c.Terms[0].Coef, 2.0)

	_, err = EquateVariables(m, network.Kwargs{
		"var1": VarRef{Storage: "battery"},
		"var2": VarRef{Flow: []string{"wind", "el"}},
	})
	assert.Assert(t, errors.Is(err, ErrUnknownVariable))
}

func TestLimitActiveFlowCountNeedsNonConvex(t *testing.T) {
	m, err := New(supplyDemand(t, 1, &network.Flow{}), "m")
	assert.NilError(t, err)
	_, err = LimitActiveFlowCount(m, network.Kwargs{
		"flows":       [][2]string{{"pv", "el"}},
		"upper_limit": 1.0,
	})
	assert.Assert(t, errors.Is(err, ErrUnknownVariable))
}

func TestAdditionalInvestmentFlowLimit(t *testing.T) {
	net := hourly(t, 1)
	el := mustBus(t, "el")
	inv1, _ := network.NewInvestment(network.Kwargs{})
	inv2, _ := network.NewInvestment(network.Kwargs{})
	inv3, _ := network.NewInvestment(network.Kwargs{})
	pv, _ := network.NewSource(network.Kwargs{"label": "pv", "outputs": ports{el: mustFlow(t, network.Kwargs{
		"nominal_value":     inv1,
		"custom_attributes": map[string]interface{}{"space": 2.0},
	})}})
	wind, _ := network.NewSource(network.Kwargs{"label": "wind", "outputs": ports{el: mustFlow(t, network.Kwargs{
		"nominal_value":     inv2,
		"custom_attributes": map[string]interface{}{"space": 0.5},
	})}})
	grid, _ := network.NewSource(network.Kwargs{"label": "grid", "outputs": ports{el: mustFlow(t, network.Kwargs{"nominal_value": inv3})}})
	assert.NilError(t, net.Add(el, pv, wind, grid))

	m, err := New(net, "m")
	assert.NilError(t, err)
	m, err = AdditionalInvestmentFlowLimit(m, network.Kwargs{"keyword": "space", "limit": 30.0})
	assert.NilError(t, err)

	v1, _ := m.InvestVar("pv", "el")
	v2, _ := m.InvestVar("wind", "el")
	c, ok := m.Constraint("invest_limit_space")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, LessEqual)
	assert.DeepEqual(t, c.Terms, []Term{{v1, 2}, {v2, 0.5}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 30.0)

	_, err = AdditionalInvestmentFlowLimit(m, network.Kwargs{"limit": 30.0})
	assert.ErrorContains(t, err, "keyword is required")
}

func TestLimitActiveFlowCountByKeyword(t *testing.T) {
	net := hourly(t, 2)
	el := mustBus(t, "el")
	nc1, _ := network.NewNonConvex(network.Kwargs{})
	nc2, _ := network.NewNonConvex(network.Kwargs{})
	nc3, _ := network.NewNonConvex(network.Kwargs{})
	newSource := func(label string, nc *network.NonConvex, counted bool) *network.Source {
		s, err := network.NewSource(network.Kwargs{"label": label, "outputs": ports{el: mustFlow(t, network.Kwargs{
			"nominal_value":     10.0,
			"nonconvex":         nc,
			"custom_attributes": map[string]interface{}{"chp": counted},
		})}})
		assert.NilError(t, err)
		return s
	}
	assert.NilError(t, net.Add(el, newSource("a", nc1, true), newSource("b", nc2, true), newSource("c", nc3, false)))

	m, err := New(net, "m")
	assert.NilError(t, err)
	m, err = LimitActiveFlowCountByKeyword(m, network.Kwargs{"keyword": "chp", "lower_limit": 1.0, "upper_limit": 1.0})
	assert.NilError(t, err)

	a, _ := m.StatusVars("a", "el")
	b, _ := m.StatusVars("b", "el")
	c, ok := m.Constraint("chp_upper(1)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, LessEqual)
	assert.DeepEqual(t, c.Terms, []Term{{a[1], 1}, {b[1], 1}}, cmp.AllowUnexported(Var{}))
	assert.Equal(t, c.RHS, 1.0)

	c, ok = m.Constraint("chp_lower(0)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Sense, GreaterEqual)
	assert.DeepEqual(t, c.Terms, []Term{{a[0], 1}, {b[0], 1}}, cmp.AllowUnexported(Var{}))

	_, err = LimitActiveFlowCountByKeyword(m, network.Kwargs{"keyword": "missing", "upper_limit": 1.0})
	assert.ErrorContains(t, err, "no flows to count")
}

func TestSharedLimit(t *testing.T) {
	net := hourly(t, 2)
	el := mustBus(t, "el")
	battery, err := network.NewGenericStorage(network.Kwargs{
		"label":                    "battery",
		"inputs":                   ports{el: &network.Flow{}},
		"outputs":                  ports{el: &network.Flow{}},
		"nominal_storage_capacity": 10.0,
	})
	assert.NilError(t, err)
	assert.NilError(t, net.Add(el, battery))
	m, err := New(net, "m")
	assert.NilError(t, err)

	m, err = SharedLimit(m, network.Kwargs{"components": []string{"battery"}, "weights": []float64{0.5}, "upper_limit": 4.0})
	assert.NilError(t, err)
	c, ok := m.Constraint("shared_limit_upper(1)")
	assert.Assert(t, ok)
	assert.Equal(t, c.Terms[0].Coef, 0.5)

	_, err = SharedLimit(m, network.Kwargs{"components": []string{"battery"}, "weights": []float64{1, 2}, "upper_limit": 4.0})
	assert.ErrorContains(t, err, "weights")
}

// --- END Global Constraint Tests

// BEGIN --- LP and Results Tests

func TestWriteLP(t *testing.T) {
	nc, _ := network.NewNonConvex(network.Kwargs{})
	net := supplyDemand(t, 1, mustFlow(t, network.Kwargs{"nominal_value": 10.0, "nonconvex": nc, "variable_costs": -1.5}))
	m, err := New(net, "test")
	assert.NilError(t, err)

	var buf bytes.Buffer
	assert.NilError(t, m.WriteLP(&buf))
	lp := buf.String()

	for _, want := range []string{
		"min\nobjective:\n+0 ONE_VAR_CONSTANT\n-1.5 flow(pv_el_0)\n",
		"\nc_e_ONE_VAR_CONSTANT:\n+1 ONE_VAR_CONSTANT\n= 1\n",
		"\nbalance(el_0):\n+1 flow(pv_el_0)\n-1 flow(el_demand_0)\n= 0\n",
		"   flow(el_demand_0) = 5\n",
		"   0 <= flow(pv_el_0) <= 10\n",
		"\nbinary\n  status(pv_el_0)\n",
	} {
		assert.Assert(t, strings.Contains(lp, want), "missing %q in\n%s", want, lp)
	}
	assert.Assert(t, strings.HasSuffix(lp, "\nend\n"))
	assert.Assert(t, !strings.Contains(lp, "general"))
}

func TestResults(t *testing.T) {
	net := supplyDemand(t, 2, mustFlow(t, network.Kwargs{"nominal_value": 10.0}))
	m, err := New(net, "m")
	assert.NilError(t, err)

	_, err = m.Results()
	assert.Assert(t, errors.Is(err, ErrNoSolution))

	m.SetSolution(map[string]float64{
		"flow(pv_el_0)":     5,
		"flow(pv_el_1)":     5,
		"flow(el_demand_0)": 5,
	}, 0, "optimal", "cbc", time.Second)
	res, err := m.Results()
	assert.NilError(t, err)
	assert.Equal(t, res.Meta.Status, "optimal")
	assert.Equal(t, res.Meta.Variables, m.NumVariables())

	pv, ok := res.Flow("pv", "el")
	assert.Assert(t, ok)
	assert.Equal(t, pv.Total(), 10.0)
	demand, _ := res.Flow("el", "demand")
	assert.DeepEqual(t, demand.Values, []float64{5, 0})
}

// --- END LP and Results Tests
