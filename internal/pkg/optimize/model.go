// Package optimize turns a network into a mixed-integer linear program.
package optimize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

// VarKind is the domain of a decision variable.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
	Integer
)

// Sense is the relation of a constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	}
	return "="
}

// Var refers to a column of the model.
type Var struct {
	idx int
}

// Index is the column position, starting at zero.
func (v Var) Index() int { return v.idx }

type variable struct {
	name string
	lb   float64
	ub   float64
	kind VarKind
}

// Term is coefficient * variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression with a constant part.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Add appends coef * v.
func (e *Expr) Add(v Var, coef float64) {
	if coef == 0 {
		return
	}
	e.Terms = append(e.Terms, Term{v, coef})
}

// AddConstant adds c to the constant part.
func (e *Expr) AddConstant(c float64) {
	e.Constant += c
}

// AddExpr appends scale * other.
func (e *Expr) AddExpr(other Expr, scale float64) {
	for _, t := range other.Terms {
		e.Add(t.Var, t.Coef*scale)
	}
	e.Constant += other.Constant * scale
}

// Constraint is lhs sense rhs with all constants folded into rhs.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is the optimisation model of one network.
type Model struct {
	name     string
	net      *network.Network
	vars     []variable
	varNames map[string]bool
	cons     []Constraint
	conIndex map[string]int
	objTerms map[int]float64
	one      Var

	flow          map[network.EdgeKey][]Var
	status        map[network.EdgeKey][]Var
	startup       map[network.EdgeKey][]Var
	shutdown      map[network.EdgeKey][]Var
	invest        map[network.EdgeKey]Var
	investStatus  map[network.EdgeKey]Var
	content       map[string][]Var
	storageInvest map[string]Var
	storageStatus map[string]Var
	investCosts   []Expr

	solution *solution
}

type solution struct {
	values    []float64
	objective float64
	status    string
	solver    string
	duration  time.Duration
}

// ErrUnknownVariable is returned when a global constraint references a
// variable the model does not have.
var ErrUnknownVariable = errors.New("unknown model variable")

const oneVarName = "ONE_VAR_CONSTANT"

func newModel(name string, net *network.Network) *Model {
	m := &Model{
		name:          name,
		net:           net,
		varNames:      make(map[string]bool),
		conIndex:      make(map[string]int),
		objTerms:      make(map[int]float64),
		flow:          make(map[network.EdgeKey][]Var),
		status:        make(map[network.EdgeKey][]Var),
		startup:       make(map[network.EdgeKey][]Var),
		shutdown:      make(map[network.EdgeKey][]Var),
		invest:        make(map[network.EdgeKey]Var),
		investStatus:  make(map[network.EdgeKey]Var),
		content:       make(map[string][]Var),
		storageInvest: make(map[string]Var),
		storageStatus: make(map[string]Var),
	}
	// A column fixed to one carries objective constants; the matching row keeps
	// every LP reader happy with an otherwise empty constraint section.
	m.one = m.AddVariable(oneVarName, 1, 1, Continuous)
	m.cons = append(m.cons, Constraint{Name: "c_e_" + oneVarName, Terms: []Term{{m.one, 1}}, Sense: Equal, RHS: 1})
	m.conIndex[m.cons[0].Name] = 0
	return m
}

// Name is the model name used for the LP artifact.
func (m *Model) Name() string { return m.name }

// Network returns the network the model was built from.
func (m *Model) Network() *network.Network { return m.net }

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitize(label string) string {
	return invalidNameChars.ReplaceAllString(label, "_")
}

func (m *Model) uniqueVarName(name string) string {
	candidate := name
	for i := 1; m.varNames[candidate]; i++ {
		candidate = name + "_" + strconv.Itoa(i)
	}
	return candidate
}

// AddVariable adds a column; the name is made unique if needed.
func (m *Model) AddVariable(name string, lb, ub float64, kind VarKind) Var {
	name = m.uniqueVarName(name)
	m.varNames[name] = true
	m.vars = append(m.vars, variable{name, lb, ub, kind})
	return Var{len(m.vars) - 1}
}

func (m *Model) uniqueConName(name string) string {
	candidate := name
	for i := 1; ; i++ {
		if _, exists := m.conIndex[candidate]; !exists {
			return candidate
		}
		candidate = name + "_" + strconv.Itoa(i)
	}
}

// AddConstraint adds expr sense rhs. The expression constant moves to the
// right-hand side and duplicate terms are merged. Labels that sanitise to
// the same row name get a numeric suffix, like variables.
func (m *Model) AddConstraint(name string, expr Expr, sense Sense, rhs float64) error {
	name = m.uniqueConName(name)
	terms := mergeTerms(expr.Terms)
	rhs -= expr.Constant
	if len(terms) == 0 {
		if !trivial(sense, rhs) {
			return fmt.Errorf("optimize: constraint %q is infeasible: 0 %v %v", name, sense, rhs)
		}
		return nil
	}
	m.conIndex[name] = len(m.cons)
	m.cons = append(m.cons, Constraint{name, terms, sense, rhs})
	return nil
}

func trivial(sense Sense, rhs float64) bool {
	switch sense {
	case LessEqual:
		return 0 <= rhs
	case GreaterEqual:
		return 0 >= rhs
	}
	return rhs == 0
}

func mergeTerms(terms []Term) []Term {
	pos := make(map[int]int, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var.idx]; ok {
			out[i].Coef += t.Coef
			continue
		}
		pos[t.Var.idx] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}

// AddObjective adds expr to the minimised objective.
func (m *Model) AddObjective(expr Expr) {
	for _, t := range expr.Terms {
		m.objTerms[t.Var.idx] += t.Coef
	}
	if expr.Constant != 0 {
		m.objTerms[m.one.idx] += expr.Constant
	}
}

// Constraint returns the named constraint.
func (m *Model) Constraint(name string) (Constraint, bool) {
	i, ok := m.conIndex[name]
	if !ok {
		return Constraint{}, false
	}
	return m.cons[i], true
}

// Constraints returns all constraints in insertion order.
func (m *Model) Constraints() []Constraint { return m.cons }

// NumVariables is the number of columns.
func (m *Model) NumVariables() int { return len(m.vars) }

// NumConstraints is the number of rows.
func (m *Model) NumConstraints() int { return len(m.cons) }

// VarName returns the LP name of v.
func (m *Model) VarName(v Var) string { return m.vars[v.idx].name }

// Bounds returns the bounds of v.
func (m *Model) Bounds(v Var) (float64, float64) { return m.vars[v.idx].lb, m.vars[v.idx].ub }

// Kind returns the domain of v.
func (m *Model) Kind(v Var) VarKind { return m.vars[v.idx].kind }

// ObjectiveCoef returns the objective coefficient of v.
func (m *Model) ObjectiveCoef(v Var) float64 { return m.objTerms[v.idx] }

// ColumnNames returns every variable name in column order.
func (m *Model) ColumnNames() []string {
	names := make([]string, len(m.vars))
	for i, v := range m.vars {
		names[i] = v.name
	}
	return names
}

// FlowVars returns the per-timestep flow variables of from -> to.
func (m *Model) FlowVars(from, to string) ([]Var, bool) {
	v, ok := m.flow[network.EdgeKey{From: from, To: to}]
	return v, ok
}

// StatusVars returns the status variables of a nonconvex flow.
func (m *Model) StatusVars(from, to string) ([]Var, bool) {
	v, ok := m.status[network.EdgeKey{From: from, To: to}]
	return v, ok
}

// InvestVar returns the investment variable of an investment flow.
func (m *Model) InvestVar(from, to string) (Var, bool) {
	v, ok := m.invest[network.EdgeKey{From: from, To: to}]
	return v, ok
}

// ContentVars returns the content variables of a storage.
func (m *Model) ContentVars(label string) ([]Var, bool) {
	v, ok := m.content[label]
	return v, ok
}

// StorageInvestVar returns the capacity investment variable of a storage.
func (m *Model) StorageInvestVar(label string) (Var, bool) {
	v, ok := m.storageInvest[label]
	return v, ok
}

func inf() float64 { return math.Inf(1) }
