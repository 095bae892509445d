package optimize

import (
	"errors"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

// ErrNoSolution is returned by Results before SetSolution.
var ErrNoSolution = errors.New("model has no solution")

// SetSolution stores primal values keyed by LP column name. Columns the
// solver did not report are taken as zero.
func (m *Model) SetSolution(values map[string]float64, objective float64, status, solver string, duration time.Duration) {
	s := &solution{
		values:    make([]float64, len(m.vars)),
		objective: objective,
		status:    status,
		solver:    solver,
		duration:  duration,
	}
	for i, v := range m.vars {
		s.values[i] = values[v.name]
	}
	m.solution = s
}

// Value returns the solved value of v.
func (m *Model) Value(v Var) (float64, error) {
	if m.solution == nil {
		return 0, ErrNoSolution
	}
	return m.solution.values[v.idx], nil
}

func (m *Model) values(vars []Var) []float64 {
	out := make([]float64, len(vars))
	for i, v := range vars {
		out[i] = m.solution.values[v.idx]
	}
	return out
}

// Results extracts flow, status, investment and storage values in network
// edge order.
func (m *Model) Results() (*network.Results, error) {
	if m.solution == nil {
		return nil, ErrNoSolution
	}
	res := &network.Results{
		Meta: network.Meta{
			Name:        m.name,
			Solver:      m.solution.solver,
			Status:      m.solution.status,
			Objective:   m.solution.objective,
			Variables:   len(m.vars),
			Constraints: len(m.cons),
			SolveTime:   m.solution.duration,
		},
	}
	for _, e := range m.net.Edges() {
		key := e.Key()
		fr := network.FlowResult{From: key.From, To: key.To, Values: m.values(m.flow[key])}
		if st, ok := m.status[key]; ok {
			fr.Status = m.values(st)
		}
		if inv, ok := m.invest[key]; ok {
			v := m.solution.values[inv.idx]
			fr.Invest = &v
		}
		res.Flows = append(res.Flows, fr)
	}
	for _, node := range m.net.Nodes() {
		s, ok := node.(*network.GenericStorage)
		if !ok {
			continue
		}
		sr := network.StorageResult{Label: s.Label(), Content: m.values(m.content[s.Label()])}
		if inv, ok := m.storageInvest[s.Label()]; ok {
			v := m.solution.values[inv.idx]
			sr.Invest = &v
		}
		res.Storages = append(res.Storages, sr)
	}
	return res, nil
}
