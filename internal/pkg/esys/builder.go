package esys

import (
	"fmt"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

type fieldKind int

const (
	plainField fieldKind = iota
	portField
	nonconvexField
	capacityField
)

// field is one row of a descriptor's field table. Only the slot matching
// kind is read, and only when set is true.
type field struct {
	name      string
	kind      fieldKind
	set       bool
	value     interface{}
	ports     map[string]Port
	nonconvex *NonConvexOption
	capacity  *Capacity
}

func seqField(name string, s *network.Sequence) field {
	if s == nil {
		return field{name: name}
	}
	return field{name: name, set: true, value: *s}
}

func floatField(name string, v *float64) field {
	if v == nil {
		return field{name: name}
	}
	return field{name: name, set: true, value: *v}
}

func intField(name string, v *int) field {
	if v == nil {
		return field{name: name}
	}
	return field{name: name, set: true, value: *v}
}

func boolField(name string, v *bool) field {
	if v == nil {
		return field{name: name}
	}
	return field{name: name, set: true, value: *v}
}

func stringField(name, v string) field {
	return field{name: name, set: v != "", value: v}
}

func attrField(name string, m map[string]interface{}) field {
	return field{name: name, set: m != nil, value: m}
}

func portsField(name string, p map[string]Port) field {
	return field{name: name, kind: portField, set: p != nil, ports: p}
}

func capField(name string, c *Capacity) field {
	return field{name: name, kind: capacityField, set: c != nil && !c.empty(), capacity: c}
}

func nonconvexOptField(name string, n *NonConvexOption) field {
	return field{name: name, kind: nonconvexField, set: n != nil && !n.empty(), nonconvex: n}
}

// build interprets a field table into constructor arguments. Unset rows
// are omitted; port keys are resolved to lowered buses through reg.
func build(owner string, fields []field, reg Registry) (network.Kwargs, error) {
	kw := network.Kwargs{}
	for _, f := range fields {
		if !f.set {
			continue
		}
		switch f.kind {
		case plainField:
			kw[f.name] = f.value
		case portField:
			ports, err := lowerPorts(owner, f.name, f.ports, reg)
			if err != nil {
				return nil, err
			}
			kw[f.name] = ports
		case capacityField:
			v, err := f.capacity.lower(reg)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", owner, f.name, err)
			}
			kw[f.name] = v
		case nonconvexField:
			v, err := f.nonconvex.lower(reg)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", owner, f.name, err)
			}
			kw[f.name] = v
		}
	}
	return kw, nil
}

func lowerPorts(owner, name string, ports map[string]Port, reg Registry) (map[*network.Bus]interface{}, error) {
	out := make(map[*network.Bus]interface{}, len(ports))
	for label, p := range ports {
		if reg == nil {
			return nil, fmt.Errorf("%s: %s: no registry to resolve bus %q", owner, name, label)
		}
		node, err := reg.Lookup(label)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", owner, name, err)
		}
		bus, ok := node.(*network.Bus)
		if !ok {
			return nil, fmt.Errorf("%s: %s: %q is a %s, not a bus", owner, name, label, network.KindOf(node))
		}
		v, err := p.lower(reg)
		if err != nil {
			return nil, fmt.Errorf("%s: %s[%s]: %w", owner, name, label, err)
		}
		out[bus] = v
	}
	return out, nil
}
