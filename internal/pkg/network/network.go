package network

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Lookup for an unknown label.
var ErrNotFound = errors.New("node not found")

// Edge is one directed flow between two nodes, one of which is a bus.
type Edge struct {
	From Node
	To   Node
	Flow *Flow
}

// Key identifies the edge by node labels.
func (e Edge) Key() EdgeKey {
	return EdgeKey{e.From.Label(), e.To.Label()}
}

// EdgeKey is the (from, to) label pair of an edge.
type EdgeKey struct {
	From string
	To   string
}

func (k EdgeKey) String() string {
	return k.From + "->" + k.To
}

// Network is the solver-level energy system. During lowering it doubles as
// the registry that resolves labels of already added nodes.
type Network struct {
	timeindex []time.Time
	step      time.Duration
	nodes     []Node
	byLabel   map[string]Node

	// Results is filled after a successful solve.
	Results *Results
}

// New returns an empty network over timeindex with a constant step.
func New(timeindex []time.Time, step time.Duration) (*Network, error) {
	if len(timeindex) == 0 {
		return nil, errors.New("network: empty time index")
	}
	if step <= 0 {
		return nil, fmt.Errorf("network: invalid step %v", step)
	}
	idx := make([]time.Time, len(timeindex))
	copy(idx, timeindex)
	return &Network{
		timeindex: idx,
		step:      step,
		byLabel:   make(map[string]Node),
	}, nil
}

// Add inserts nodes in order. Labels must be unique and every series must
// match the time index length.
func (n *Network) Add(nodes ...Node) error {
	for _, node := range nodes {
		if node == nil {
			return errors.New("network: nil node")
		}
		label := node.Label()
		if _, exists := n.byLabel[label]; exists {
			return fmt.Errorf("network: node %q already exists", label)
		}
		if err := n.checkLength(node); err != nil {
			return fmt.Errorf("network: node %q: %w", label, err)
		}
		n.byLabel[label] = node
		n.nodes = append(n.nodes, node)
	}
	return nil
}

func (n *Network) checkLength(node Node) error {
	steps := len(n.timeindex)
	for _, e := range edgesOf(node) {
		if err := e.Flow.checkLength(steps); err != nil {
			return fmt.Errorf("flow %s: %w", e.Key(), err)
		}
	}
	switch v := node.(type) {
	case *Converter:
		for bus, s := range v.conversionFactors {
			if err := s.CheckLength(steps); err != nil {
				return fmt.Errorf("conversion factor %q: %w", bus.Label(), err)
			}
		}
	case *GenericStorage:
		return v.checkLength(steps)
	}
	return nil
}

// Lookup returns the node registered under label.
func (n *Network) Lookup(label string) (Node, error) {
	node, ok := n.byLabel[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, label)
	}
	return node, nil
}

// Nodes returns the nodes in insertion order.
func (n *Network) Nodes() []Node {
	return n.nodes
}

// TimeIndex returns the timestamps of the horizon.
func (n *Network) TimeIndex() []time.Time {
	return n.timeindex
}

// Steps is the number of timesteps.
func (n *Network) Steps() int {
	return len(n.timeindex)
}

// Step is the sampling interval.
func (n *Network) Step() time.Duration {
	return n.step
}

// StepHours is the sampling interval in hours, the time increment used by
// every energy term.
func (n *Network) StepHours() float64 {
	return n.step.Hours()
}

// Edges returns every flow in node insertion order; for each node inputs
// come before outputs.
func (n *Network) Edges() []Edge {
	var edges []Edge
	for _, node := range n.nodes {
		edges = append(edges, edgesOf(node)...)
	}
	return edges
}

func edgesOf(node Node) []Edge {
	var edges []Edge
	in := func(ports []Port) {
		for _, p := range ports {
			edges = append(edges, Edge{p.Bus, node, p.Flow})
		}
	}
	out := func(ports []Port) {
		for _, p := range ports {
			edges = append(edges, Edge{node, p.Bus, p.Flow})
		}
	}
	switch v := node.(type) {
	case *Source:
		out(v.outputs)
	case *Sink:
		in(v.inputs)
	case *Converter:
		in(v.inputs)
		out(v.outputs)
	case *GenericStorage:
		in(v.Inputs())
		out(v.Outputs())
	}
	return edges
}

// KindOf names the variant of node.
func KindOf(node Node) string {
	switch node.(type) {
	case *Bus:
		return "bus"
	case *Source:
		return "source"
	case *Sink:
		return "sink"
	case *Converter:
		return "converter"
	case *GenericStorage:
		return "storage"
	}
	return "unknown"
}
