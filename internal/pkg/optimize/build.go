package optimize

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

// New builds the optimisation model of net: flow, status and investment
// variables, bus balances, conversion equations, storage balances and the
// cost objective.
func New(net *network.Network, name string) (*Model, error) {
	if net == nil {
		return nil, fmt.Errorf("optimize: nil network")
	}
	if name == "" {
		name = "model"
	}
	m := newModel(name, net)

	edges := net.Edges()
	for _, e := range edges {
		if err := m.addFlow(e); err != nil {
			return nil, fmt.Errorf("optimize: flow %s: %w", e.Key(), err)
		}
	}
	for _, node := range net.Nodes() {
		var err error
		switch n := node.(type) {
		case *network.Bus:
			err = m.addBalance(n, edges)
		case *network.Converter:
			err = m.addConversion(n)
		case *network.GenericStorage:
			err = m.addStorage(n)
		}
		if err != nil {
			return nil, fmt.Errorf("optimize: node %q: %w", node.Label(), err)
		}
	}
	return m, nil
}

func edgeTag(k network.EdgeKey) string {
	return sanitize(k.From) + "_" + sanitize(k.To)
}

func (m *Model) addFlow(e network.Edge) error {
	key := e.Key()
	f := e.Flow
	tag := edgeTag(key)
	steps := m.net.Steps()
	dt := m.net.StepHours()

	vars := make([]Var, steps)
	for t := range vars {
		lb, ub := 0.0, inf()
		if f.NominalValue != nil {
			nom := *f.NominalValue
			switch {
			case f.Fix != nil:
				lb = f.Fix.At(t) * nom
				ub = lb
			case f.NonConvex != nil:
				ub = f.MaxAt(t) * nom
			default:
				lb = f.MinAt(t) * nom
				ub = f.MaxAt(t) * nom
			}
		}
		vars[t] = m.AddVariable(fmt.Sprintf("flow(%s_%d)", tag, t), lb, ub, Continuous)
	}
	m.flow[key] = vars

	var capacity Expr
	switch {
	case f.Investment != nil:
		inv, status, err := m.addInvestment("invest", tag, f.Investment)
		if err != nil {
			return err
		}
		m.invest[key] = inv
		if status != nil {
			m.investStatus[key] = *status
		}
		capacity = Expr{Terms: []Term{{inv, 1}}, Constant: f.Investment.Existing}
		if err := m.addInvestmentFlowBounds(tag, f, vars, inv); err != nil {
			return err
		}
	case f.NominalValue != nil:
		capacity = Expr{Constant: *f.NominalValue}
	}

	if f.NonConvex != nil {
		if err := m.addNonConvex(key, tag, f, vars); err != nil {
			return err
		}
	}

	if err := m.addGradients("", tag, f.Bounded(), vars, capacity, f.PositiveGradientLimit, f.NegativeGradientLimit); err != nil {
		return err
	}

	if f.FullLoadTimeMax != nil || f.FullLoadTimeMin != nil {
		var energy Expr
		for _, v := range vars {
			energy.Add(v, dt)
		}
		if f.FullLoadTimeMax != nil {
			e := energy
			e.Terms = append([]Term(nil), energy.Terms...)
			e.AddExpr(capacity, -*f.FullLoadTimeMax)
			if err := m.AddConstraint(fmt.Sprintf("full_load_time_max(%s)", tag), e, LessEqual, 0); err != nil {
				return err
			}
		}
		if f.FullLoadTimeMin != nil {
			e := energy
			e.Terms = append([]Term(nil), energy.Terms...)
			e.AddExpr(capacity, -*f.FullLoadTimeMin)
			if err := m.AddConstraint(fmt.Sprintf("full_load_time_min(%s)", tag), e, GreaterEqual, 0); err != nil {
				return err
			}
		}
	}

	if f.VariableCosts != nil {
		var cost Expr
		for t, v := range vars {
			cost.Add(v, f.VariableCosts.At(t)*dt)
		}
		m.AddObjective(cost)
	}
	return nil
}

// addInvestment adds the capacity variable of inv, its optional binary
// status, overall bounds and cost terms.
func (m *Model) addInvestment(prefix, tag string, inv *network.Investment) (Var, *Var, error) {
	lb, ub := inv.Minimum, inv.Maximum
	if inv.NonConvex {
		lb = 0
	}
	v := m.AddVariable(fmt.Sprintf("%s(%s)", prefix, tag), lb, ub, Continuous)

	costs := Expr{}
	costs.Add(v, inv.EPCosts+inv.FixedCosts)

	var status *Var
	if inv.NonConvex {
		s := m.AddVariable(fmt.Sprintf("%s_status(%s)", prefix, tag), 0, 1, Binary)
		status = &s
		upper := Expr{}
		upper.Add(v, 1)
		upper.Add(s, -inv.Maximum)
		if err := m.AddConstraint(fmt.Sprintf("%s_nonconvex_max(%s)", prefix, tag), upper, LessEqual, 0); err != nil {
			return Var{}, nil, err
		}
		lower := Expr{}
		lower.Add(v, 1)
		lower.Add(s, -inv.Minimum)
		if err := m.AddConstraint(fmt.Sprintf("%s_nonconvex_min(%s)", prefix, tag), lower, GreaterEqual, 0); err != nil {
			return Var{}, nil, err
		}
		costs.Add(s, inv.Offset)
	}

	if inv.OverallMaximum != nil {
		e := Expr{Terms: []Term{{v, 1}}}
		if err := m.AddConstraint(fmt.Sprintf("%s_overall_max(%s)", prefix, tag), e, LessEqual, *inv.OverallMaximum-inv.Existing); err != nil {
			return Var{}, nil, err
		}
	}
	if inv.OverallMinimum != nil {
		e := Expr{Terms: []Term{{v, 1}}}
		if err := m.AddConstraint(fmt.Sprintf("%s_overall_min(%s)", prefix, tag), e, GreaterEqual, *inv.OverallMinimum-inv.Existing); err != nil {
			return Var{}, nil, err
		}
	}

	m.AddObjective(costs)
	m.investCosts = append(m.investCosts, costs)
	return v, status, nil
}

func (m *Model) addInvestmentFlowBounds(tag string, f *network.Flow, vars []Var, inv Var) error {
	existing := f.Investment.Existing
	steps := len(vars)
	needMin := f.Min != nil && f.Min.Any(steps, func(v float64) bool { return v > 0 })
	for t, v := range vars {
		if f.Fix != nil {
			fix := f.Fix.At(t)
			e := Expr{}
			e.Add(v, 1)
			e.Add(inv, -fix)
			if err := m.AddConstraint(fmt.Sprintf("invest_fix(%s_%d)", tag, t), e, Equal, fix*existing); err != nil {
				return err
			}
			continue
		}
		max := f.MaxAt(t)
		upper := Expr{}
		upper.Add(v, 1)
		upper.Add(inv, -max)
		if err := m.AddConstraint(fmt.Sprintf("invest_max(%s_%d)", tag, t), upper, LessEqual, max*existing); err != nil {
			return err
		}
		if needMin {
			min := f.MinAt(t)
			lower := Expr{}
			lower.Add(v, 1)
			lower.Add(inv, -min)
			if err := m.AddConstraint(fmt.Sprintf("invest_min(%s_%d)", tag, t), lower, GreaterEqual, min*existing); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) addGradients(prefix, tag string, bounded bool, vars []Var, capacity Expr, pos, neg *network.Sequence) error {
	if pos == nil && neg == nil {
		return nil
	}
	if !bounded {
		return fmt.Errorf("gradient limits need a nominal_value")
	}
	for t := 1; t < len(vars); t++ {
		if pos != nil {
			e := Expr{}
			e.Add(vars[t], 1)
			e.Add(vars[t-1], -1)
			e.AddExpr(capacity, -pos.At(t))
			if err := m.AddConstraint(fmt.Sprintf("%spositive_gradient(%s_%d)", prefix, tag, t), e, LessEqual, 0); err != nil {
				return err
			}
		}
		if neg != nil {
			e := Expr{}
			e.Add(vars[t-1], 1)
			e.Add(vars[t], -1)
			e.AddExpr(capacity, -neg.At(t))
			if err := m.AddConstraint(fmt.Sprintf("%snegative_gradient(%s_%d)", prefix, tag, t), e, LessEqual, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) addNonConvex(key network.EdgeKey, tag string, f *network.Flow, vars []Var) error {
	nc := f.NonConvex
	if f.NominalValue == nil {
		return fmt.Errorf("nonconvex flow needs a nominal_value")
	}
	nom := *f.NominalValue
	steps := len(vars)
	needMin := f.Min != nil && f.Min.Any(steps, func(v float64) bool { return v > 0 })

	status := make([]Var, steps)
	var costs Expr
	for t, v := range vars {
		status[t] = m.AddVariable(fmt.Sprintf("status(%s_%d)", tag, t), 0, 1, Binary)
		upper := Expr{}
		upper.Add(v, 1)
		upper.Add(status[t], -f.MaxAt(t)*nom)
		if err := m.AddConstraint(fmt.Sprintf("nonconvex_max(%s_%d)", tag, t), upper, LessEqual, 0); err != nil {
			return err
		}
		if needMin {
			lower := Expr{}
			lower.Add(v, 1)
			lower.Add(status[t], -f.MinAt(t)*nom)
			if err := m.AddConstraint(fmt.Sprintf("nonconvex_min(%s_%d)", tag, t), lower, GreaterEqual, 0); err != nil {
				return err
			}
		}
		if nc.ActivityCosts != nil {
			costs.Add(status[t], nc.ActivityCosts.At(t))
		}
		if nc.InactivityCosts != nil {
			c := nc.InactivityCosts.At(t)
			costs.Add(status[t], -c)
			costs.AddConstant(c)
		}
	}
	m.status[key] = status

	initial := float64(nc.InitialStatus)
	prev := func(t int) Expr {
		if t == 0 {
			return Expr{Constant: initial}
		}
		return Expr{Terms: []Term{{status[t-1], 1}}}
	}

	if nc.NeedsStartup() {
		startup := make([]Var, steps)
		var count Expr
		for t := range startup {
			startup[t] = m.AddVariable(fmt.Sprintf("startup(%s_%d)", tag, t), 0, 1, Binary)
			e := Expr{}
			e.Add(startup[t], 1)
			e.Add(status[t], -1)
			e.AddExpr(prev(t), 1)
			if err := m.AddConstraint(fmt.Sprintf("startup_constraint(%s_%d)", tag, t), e, GreaterEqual, 0); err != nil {
				return err
			}
			if nc.StartupCosts != nil {
				costs.Add(startup[t], nc.StartupCosts.At(t))
			}
			count.Add(startup[t], 1)
		}
		m.startup[key] = startup
		if nc.MaximumStartups != nil {
			if err := m.AddConstraint(fmt.Sprintf("max_startups(%s)", tag), count, LessEqual, float64(*nc.MaximumStartups)); err != nil {
				return err
			}
		}
	}

	if nc.NeedsShutdown() {
		shutdown := make([]Var, steps)
		var count Expr
		for t := range shutdown {
			shutdown[t] = m.AddVariable(fmt.Sprintf("shutdown(%s_%d)", tag, t), 0, 1, Binary)
			e := Expr{}
			e.Add(shutdown[t], 1)
			e.Add(status[t], 1)
			e.AddExpr(prev(t), -1)
			if err := m.AddConstraint(fmt.Sprintf("shutdown_constraint(%s_%d)", tag, t), e, GreaterEqual, 0); err != nil {
				return err
			}
			if nc.ShutdownCosts != nil {
				costs.Add(shutdown[t], nc.ShutdownCosts.At(t))
			}
			count.Add(shutdown[t], 1)
		}
		m.shutdown[key] = shutdown
		if nc.MaximumShutdowns != nil {
			if err := m.AddConstraint(fmt.Sprintf("max_shutdowns(%s)", tag), count, LessEqual, float64(*nc.MaximumShutdowns)); err != nil {
				return err
			}
		}
	}

	// switching on at t keeps the unit on until t+uptime-1
	for t := 0; t < steps && nc.MinimumUptime > 1; t++ {
		for tau := t + 1; tau < steps && tau < t+nc.MinimumUptime; tau++ {
			e := Expr{}
			e.Add(status[tau], 1)
			e.Add(status[t], -1)
			e.AddExpr(prev(t), 1)
			if err := m.AddConstraint(fmt.Sprintf("min_uptime(%s_%d_%d)", tag, t, tau), e, GreaterEqual, 0); err != nil {
				return err
			}
		}
	}
	// switching off at t keeps the unit off until t+downtime-1
	for t := 0; t < steps && nc.MinimumDowntime > 1; t++ {
		for tau := t + 1; tau < steps && tau < t+nc.MinimumDowntime; tau++ {
			e := Expr{}
			e.Add(status[tau], 1)
			e.Add(status[t], -1)
			e.AddExpr(prev(t), 1)
			if err := m.AddConstraint(fmt.Sprintf("min_downtime(%s_%d_%d)", tag, t, tau), e, LessEqual, 1); err != nil {
				return err
			}
		}
	}

	if err := m.addGradients("nonconvex_", tag, true, vars, Expr{Constant: nom}, nc.PositiveGradientLimit, nc.NegativeGradientLimit); err != nil {
		return err
	}

	m.AddObjective(costs)
	return nil
}

func (m *Model) addBalance(b *network.Bus, edges []network.Edge) error {
	if !b.Balanced() {
		return nil
	}
	var in, out [][]Var
	for _, e := range edges {
		switch {
		case e.To == network.Node(b):
			in = append(in, m.flow[e.Key()])
		case e.From == network.Node(b):
			out = append(out, m.flow[e.Key()])
		}
	}
	if len(in) == 0 && len(out) == 0 {
		return nil
	}
	tag := sanitize(b.Label())
	for t := 0; t < m.net.Steps(); t++ {
		e := Expr{}
		for _, vars := range in {
			e.Add(vars[t], 1)
		}
		for _, vars := range out {
			e.Add(vars[t], -1)
		}
		if err := m.AddConstraint(fmt.Sprintf("balance(%s_%d)", tag, t), e, Equal, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) addConversion(c *network.Converter) error {
	label := c.Label()
	tag := sanitize(label)
	for _, i := range c.Inputs() {
		in := m.flow[network.EdgeKey{From: i.Bus.Label(), To: label}]
		cfIn := c.ConversionFactor(i.Bus)
		for _, o := range c.Outputs() {
			out := m.flow[network.EdgeKey{From: label, To: o.Bus.Label()}]
			cfOut := c.ConversionFactor(o.Bus)
			for t := 0; t < m.net.Steps(); t++ {
				e := Expr{}
				e.Add(in[t], cfOut.At(t))
				e.Add(out[t], -cfIn.At(t))
				name := fmt.Sprintf("conversion(%s_%s_%s_%d)", tag, sanitize(i.Bus.Label()), sanitize(o.Bus.Label()), t)
				if err := m.AddConstraint(name, e, Equal, 0); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (m *Model) addStorage(s *network.GenericStorage) error {
	label := s.Label()
	tag := sanitize(label)
	steps := m.net.Steps()
	dt := m.net.StepHours()

	var capacity Expr
	var inv *Var
	if s.Investment != nil {
		v, status, err := m.addInvestment("storage_invest", tag, s.Investment)
		if err != nil {
			return err
		}
		inv = &v
		m.storageInvest[label] = v
		if status != nil {
			m.storageStatus[label] = *status
		}
		capacity = Expr{Terms: []Term{{v, 1}}, Constant: s.Investment.Existing}
	} else {
		capacity = Expr{Constant: *s.NominalStorageCapacity}
	}

	needMin := s.MinStorageLevel.Any(steps, func(v float64) bool { return v > 0 })
	levelVar := func(name string, t int) (Var, error) {
		if inv == nil {
			c := *s.NominalStorageCapacity
			return m.AddVariable(name, s.MinStorageLevel.At(t)*c, s.MaxStorageLevel.At(t)*c, Continuous), nil
		}
		v := m.AddVariable(name, 0, inf(), Continuous)
		existing := s.Investment.Existing
		upper := Expr{}
		upper.Add(v, 1)
		upper.Add(*inv, -s.MaxStorageLevel.At(t))
		if err := m.AddConstraint("max_"+name, upper, LessEqual, s.MaxStorageLevel.At(t)*existing); err != nil {
			return Var{}, err
		}
		if needMin {
			lower := Expr{}
			lower.Add(v, 1)
			lower.Add(*inv, -s.MinStorageLevel.At(t))
			if err := m.AddConstraint("min_"+name, lower, GreaterEqual, s.MinStorageLevel.At(t)*existing); err != nil {
				return Var{}, err
			}
		}
		return v, nil
	}

	content := make([]Var, steps)
	for t := range content {
		v, err := levelVar(fmt.Sprintf("storage_content(%s_%d)", tag, t), t)
		if err != nil {
			return err
		}
		content[t] = v
	}
	m.content[label] = content

	var initial Expr
	if s.InitialStorageLevel != nil {
		initial.AddExpr(capacity, *s.InitialStorageLevel)
	} else {
		v, err := levelVar(fmt.Sprintf("storage_initial(%s)", tag), 0)
		if err != nil {
			return err
		}
		initial.Add(v, 1)
	}

	in := m.flow[network.EdgeKey{From: s.Input().Bus.Label(), To: label}]
	out := m.flow[network.EdgeKey{From: label, To: s.Output().Bus.Label()}]
	for t := 0; t < steps; t++ {
		etaOut := s.OutflowConversionFactor.At(t)
		if etaOut <= 0 {
			return fmt.Errorf("outflow_conversion_factor must be > 0, got %v at %d", etaOut, t)
		}
		retention := math.Pow(1-s.LossRate.At(t), dt)
		e := Expr{}
		e.Add(content[t], 1)
		if t == 0 {
			e.AddExpr(initial, -retention)
		} else {
			e.Add(content[t-1], -retention)
		}
		e.Add(in[t], -s.InflowConversionFactor.At(t)*dt)
		e.Add(out[t], dt/etaOut)
		e.AddExpr(capacity, s.FixedLossesRelative.At(t)*dt)
		e.AddConstant(s.FixedLossesAbsolute.At(t) * dt)
		if err := m.AddConstraint(fmt.Sprintf("storage_balance(%s_%d)", tag, t), e, Equal, 0); err != nil {
			return err
		}
	}

	if s.Balanced {
		e := Expr{}
		e.Add(content[steps-1], 1)
		e.AddExpr(initial, -1)
		if err := m.AddConstraint(fmt.Sprintf("storage_balanced(%s)", tag), e, Equal, 0); err != nil {
			return err
		}
	}

	if s.StorageCosts != nil {
		var costs Expr
		for t, v := range content {
			costs.Add(v, s.StorageCosts.At(t))
		}
		m.AddObjective(costs)
	}
	return nil
}
