package optimize

import (
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

// GlobalConstraint adds a system-wide restriction to m and returns the model
// to continue with.
type GlobalConstraint func(m *Model, kw network.Kwargs) (*Model, error)

// VarRef names one model variable in an equate_variables constraint: either
// the investment of the flow [from, to] or the capacity investment of a
// storage.
type VarRef struct {
	Flow    []string `json:"flow,omitempty" yaml:"flow,omitempty"`
	Storage string   `json:"storage,omitempty" yaml:"storage,omitempty"`
}

func (r VarRef) String() string {
	if r.Storage != "" {
		return "storage " + r.Storage
	}
	return fmt.Sprintf("flow %v", r.Flow)
}

func (m *Model) resolveInvest(ref VarRef) (Var, error) {
	switch {
	case ref.Storage != "" && len(ref.Flow) == 0:
		if v, ok := m.storageInvest[ref.Storage]; ok {
			return v, nil
		}
	case ref.Storage == "" && len(ref.Flow) == 2:
		if v, ok := m.invest[network.EdgeKey{From: ref.Flow[0], To: ref.Flow[1]}]; ok {
			return v, nil
		}
	default:
		return Var{}, fmt.Errorf("optimize: variable reference needs either flow [from, to] or storage, got %v", ref)
	}
	return Var{}, fmt.Errorf("%w: investment of %v", ErrUnknownVariable, ref)
}

func readFlows(r *network.KwargReader, name string) ([]network.EdgeKey, bool) {
	v, ok := r.Value(name)
	if !ok {
		return nil, false
	}
	var keys []network.EdgeKey
	switch l := v.(type) {
	case [][2]string:
		for _, p := range l {
			keys = append(keys, network.EdgeKey{From: p[0], To: p[1]})
		}
	case [][]string:
		for _, p := range l {
			if len(p) != 2 {
				r.Fail(name, v, "list of [from, to] pairs")
				return nil, false
			}
			keys = append(keys, network.EdgeKey{From: p[0], To: p[1]})
		}
	case []network.EdgeKey:
		keys = l
	default:
		r.Fail(name, v, "list of [from, to] pairs")
		return nil, false
	}
	return keys, true
}

func readVarRef(r *network.KwargReader, name string) (VarRef, bool) {
	v, ok := r.Value(name)
	if !ok {
		return VarRef{}, false
	}
	switch ref := v.(type) {
	case VarRef:
		return ref, true
	case *VarRef:
		return *ref, true
	}
	r.Fail(name, v, "variable reference")
	return VarRef{}, false
}

func limitName(r *network.KwargReader, fallback string) string {
	if n := r.String("limit_name"); n != nil && *n != "" {
		return sanitize(*n)
	}
	return fallback
}

func (m *Model) flowVars(key network.EdgeKey) ([]Var, error) {
	vars, ok := m.flow[key]
	if !ok {
		return nil, fmt.Errorf("%w: flow %s", ErrUnknownVariable, key)
	}
	return vars, nil
}

// SharedLimit bounds the weighted sum of storage contents per timestep.
// Arguments: components (storage labels), weights (default 1 each),
// lower_limit, upper_limit and limit_name.
func SharedLimit(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("shared_limit", kw)
	components := r.Strings("components")
	weights := r.Floats("weights")
	lower := r.Float("lower_limit")
	upper := r.Float("upper_limit")
	name := limitName(r, "shared_limit")
	if err := r.Done(); err != nil {
		return m, err
	}
	if len(components) == 0 {
		return m, fmt.Errorf("shared_limit: components must not be empty")
	}
	if weights == nil {
		weights = make([]float64, len(components))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(components) {
		return m, fmt.Errorf("shared_limit: %d weights for %d components", len(weights), len(components))
	}
	if lower == nil && upper == nil {
		return m, fmt.Errorf("shared_limit: needs lower_limit or upper_limit")
	}

	contents := make([][]Var, len(components))
	for i, label := range components {
		vars, ok := m.content[label]
		if !ok {
			return m, fmt.Errorf("shared_limit: %w: storage content %q", ErrUnknownVariable, label)
		}
		contents[i] = vars
	}
	for t := 0; t < m.net.Steps(); t++ {
		e := Expr{}
		for i, vars := range contents {
			e.Add(vars[t], weights[i])
		}
		if upper != nil {
			if err := m.AddConstraint(fmt.Sprintf("%s_upper(%d)", name, t), e, LessEqual, *upper); err != nil {
				return m, err
			}
		}
		if lower != nil {
			if err := m.AddConstraint(fmt.Sprintf("%s_lower(%d)", name, t), e, GreaterEqual, *lower); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// InvestmentLimit caps the total investment cost of all flows and storages.
// Argument: limit.
func InvestmentLimit(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("investment_limit", kw)
	limit := r.Float("limit")
	if err := r.Done(); err != nil {
		return m, err
	}
	if limit == nil {
		return m, fmt.Errorf("investment_limit: limit is required")
	}
	var e Expr
	for _, c := range m.investCosts {
		e.AddExpr(c, 1)
	}
	if err := m.AddConstraint("investment_limit", e, LessEqual, *limit); err != nil {
		return m, err
	}
	return m, nil
}

// AdditionalInvestmentFlowLimit caps sum(attr * invest) over the investment
// flows carrying custom attribute keyword. Arguments: keyword, limit.
func AdditionalInvestmentFlowLimit(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("additional_investment_flow_limit", kw)
	keyword := r.String("keyword")
	limit := r.Float("limit")
	if err := r.Done(); err != nil {
		return m, err
	}
	if keyword == nil || *keyword == "" {
		return m, fmt.Errorf("additional_investment_flow_limit: keyword is required")
	}
	if limit == nil {
		return m, fmt.Errorf("additional_investment_flow_limit: limit is required")
	}
	var e Expr
	for _, edge := range m.net.Edges() {
		inv, ok := m.invest[edge.Key()]
		if !ok {
			continue
		}
		raw, ok := edge.Flow.CustomAttributes[*keyword]
		if !ok {
			continue
		}
		attr, ok := network.AttributeSequence(raw)
		if !ok || attr.IsSeries() {
			return m, fmt.Errorf("additional_investment_flow_limit: attribute %q of %s must be a number", *keyword, edge.Key())
		}
		e.Add(inv, attr.At(0))
	}
	if err := m.AddConstraint("invest_limit_"+sanitize(*keyword), e, LessEqual, *limit); err != nil {
		return m, err
	}
	return m, nil
}

// integral sums attr[t] * flow[t] * dt over every flow that carries the
// custom attribute keyword, optionally restricted to flows.
func (m *Model) integral(owner, keyword string, flows []network.EdgeKey) (Expr, error) {
	var only map[network.EdgeKey]bool
	if flows != nil {
		only = make(map[network.EdgeKey]bool, len(flows))
		for _, k := range flows {
			if _, err := m.flowVars(k); err != nil {
				return Expr{}, fmt.Errorf("%s: %w", owner, err)
			}
			only[k] = true
		}
	}
	dt := m.net.StepHours()
	var e Expr
	for _, edge := range m.net.Edges() {
		key := edge.Key()
		if only != nil && !only[key] {
			continue
		}
		raw, ok := edge.Flow.CustomAttributes[keyword]
		if !ok {
			continue
		}
		attr, ok := network.AttributeSequence(raw)
		if !ok {
			return Expr{}, fmt.Errorf("%s: attribute %q of %s must be a number or series", owner, keyword, key)
		}
		for t, v := range m.flow[key] {
			e.Add(v, attr.At(t)*dt)
		}
	}
	return e, nil
}

func integralLimit(m *Model, owner, name, keyword string, flows []network.EdgeKey, upper, lower *float64) (*Model, error) {
	if upper == nil && lower == nil {
		return m, fmt.Errorf("%s: needs limit or lower_limit", owner)
	}
	e, err := m.integral(owner, keyword, flows)
	if err != nil {
		return m, err
	}
	if upper != nil {
		if err := m.AddConstraint(name, e, LessEqual, *upper); err != nil {
			return m, err
		}
	}
	if lower != nil {
		if err := m.AddConstraint(name+"_lower", e, GreaterEqual, *lower); err != nil {
			return m, err
		}
	}
	return m, nil
}

// GenericIntegralLimit bounds the time integral of flows weighted by the
// custom attribute keyword. Arguments: keyword, limit, lower_limit, flows.
func GenericIntegralLimit(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("generic_integral_limit", kw)
	keyword := r.String("keyword")
	upper := r.Float("limit")
	lower := r.Float("lower_limit")
	flows, _ := readFlows(r, "flows")
	if err := r.Done(); err != nil {
		return m, err
	}
	if keyword == nil || *keyword == "" {
		return m, fmt.Errorf("generic_integral_limit: keyword is required")
	}
	return integralLimit(m, "generic_integral_limit", "integral_limit_"+sanitize(*keyword), *keyword, flows, upper, lower)
}

// EmissionLimit is GenericIntegralLimit with keyword defaulting to
// emission_factor and the constraint named emission_limit.
func EmissionLimit(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("emission_limit", kw)
	keyword := "emission_factor"
	if k := r.String("keyword"); k != nil && *k != "" {
		keyword = *k
	}
	upper := r.Float("limit")
	lower := r.Float("lower_limit")
	flows, _ := readFlows(r, "flows")
	if err := r.Done(); err != nil {
		return m, err
	}
	return integralLimit(m, "emission_limit", "emission_limit", keyword, flows, upper, lower)
}

func activeFlowCount(m *Model, owner, name string, keys []network.EdgeKey, lower, upper *float64) (*Model, error) {
	if len(keys) == 0 {
		return m, fmt.Errorf("%s: no flows to count", owner)
	}
	statuses := make([][]Var, len(keys))
	for i, k := range keys {
		st, ok := m.status[k]
		if !ok {
			return m, fmt.Errorf("%s: %w: status of %s (flow must be nonconvex)", owner, ErrUnknownVariable, k)
		}
		statuses[i] = st
	}
	lo := 0.0
	if lower != nil {
		lo = *lower
	}
	for t := 0; t < m.net.Steps(); t++ {
		e := Expr{}
		for _, st := range statuses {
			e.Add(st[t], 1)
		}
		if upper != nil {
			if err := m.AddConstraint(fmt.Sprintf("%s_upper(%d)", name, t), e, LessEqual, *upper); err != nil {
				return m, err
			}
		}
		if lo > 0 {
			if err := m.AddConstraint(fmt.Sprintf("%s_lower(%d)", name, t), e, GreaterEqual, lo); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// LimitActiveFlowCount bounds the number of nonconvex flows active at each
// timestep. Arguments: flows, lower_limit (default 0), upper_limit and
// limit_name.
func LimitActiveFlowCount(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("limit_active_flow_count", kw)
	flows, _ := readFlows(r, "flows")
	lower := r.Float("lower_limit")
	upper := r.Float("upper_limit")
	name := limitName(r, "number_of_active_flows")
	if err := r.Done(); err != nil {
		return m, err
	}
	return activeFlowCount(m, "limit_active_flow_count", name, flows, lower, upper)
}

// LimitActiveFlowCountByKeyword counts the nonconvex flows whose custom
// attribute keyword is true.
func LimitActiveFlowCountByKeyword(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("limit_active_flow_count_by_keyword", kw)
	keyword := r.String("keyword")
	lower := r.Float("lower_limit")
	upper := r.Float("upper_limit")
	name := r.String("limit_name")
	if err := r.Done(); err != nil {
		return m, err
	}
	if keyword == nil || *keyword == "" {
		return m, fmt.Errorf("limit_active_flow_count_by_keyword: keyword is required")
	}
	var keys []network.EdgeKey
	for _, edge := range m.net.Edges() {
		if on, ok := edge.Flow.CustomAttributes[*keyword].(bool); ok && on {
			keys = append(keys, edge.Key())
		}
	}
	limit := *keyword
	if name != nil && *name != "" {
		limit = *name
	}
	return activeFlowCount(m, "limit_active_flow_count_by_keyword", sanitize(limit), keys, lower, upper)
}

// EquateVariables adds var1 * factor1 == var2 over two investment
// variables. Arguments: var1, var2, factor1 (default 1), limit_name.
func EquateVariables(m *Model, kw network.Kwargs) (*Model, error) {
	r := network.ReadKwargs("equate_variables", kw)
	ref1, ok1 := readVarRef(r, "var1")
	ref2, ok2 := readVarRef(r, "var2")
	factor := 1.0
	if f := r.Float("factor1"); f != nil {
		factor = *f
	}
	name := limitName(r, "equate_variables")
	if err := r.Done(); err != nil {
		return m, err
	}
	if !ok1 || !ok2 {
		return m, fmt.Errorf("equate_variables: var1 and var2 are required")
	}
	v1, err := m.resolveInvest(ref1)
	if err != nil {
		return m, err
	}
	v2, err := m.resolveInvest(ref2)
	if err != nil {
		return m, err
	}
	e := Expr{}
	e.Add(v1, factor)
	e.Add(v2, -1)
	if err := m.AddConstraint(name, e, Equal, 0); err != nil {
		return m, err
	}
	return m, nil
}
