package esys

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/network"
	"github.com/ohowland/cgc_planner/internal/pkg/optimize"
)

// Frequency is the sampling step in hours: 0.25, 0.5 or 1.
type Frequency float64

const (
	QuarterHour Frequency = 0.25
	HalfHour    Frequency = 0.5
	Hourly      Frequency = 1
)

// Step returns the sampling interval.
func (f Frequency) Step() (time.Duration, error) {
	switch f {
	case QuarterHour:
		return 15 * time.Minute, nil
	case HalfHour:
		return 30 * time.Minute, nil
	case Hourly:
		return time.Hour, nil
	}
	return 0, fmt.Errorf("%w: frequency must be 0.25, 0.5 or 1 hour, got %v", ErrValidation, float64(f))
}

var frequencyAliases = map[string]Frequency{
	"15min": QuarterHour, "15t": QuarterHour,
	"30min": HalfHour, "30t": HalfHour,
	"h": Hourly, "1h": Hourly, "60min": Hourly,
}

// UnmarshalJSON accepts a number of hours or a string such as "0,25",
// "15min" or "1h".
func (f *Frequency) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if v, ok := frequencyAliases[s]; ok {
			*f = v
			return nil
		}
		v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return fmt.Errorf("frequency: unknown value %q", s)
		}
		*f = Frequency(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	*f = Frequency(v)
	return nil
}

// EnergySystem is the ordered collection of nodes and constraints of one
// optimisation run.
type EnergySystem struct {
	StartDate time.Time
	TimeSteps int
	Frequency Frequency

	nodes       []Node
	labels      map[string]bool
	constraints []*Constraint
}

// NewEnergySystem returns an empty system over timeSteps steps of freq
// starting at start.
func NewEnergySystem(start time.Time, timeSteps int, freq Frequency) (*EnergySystem, error) {
	if timeSteps <= 0 {
		return nil, fmt.Errorf("%w: time_steps must be > 0, got %d", ErrValidation, timeSteps)
	}
	if _, err := freq.Step(); err != nil {
		return nil, err
	}
	return &EnergySystem{
		StartDate: start,
		TimeSteps: timeSteps,
		Frequency: freq,
		labels:    make(map[string]bool),
	}, nil
}

// Add validates each element and appends it to the node or constraint
// list. Values outside the element variants fail with ErrUnknownType. The
// batch is checked as a whole first; if any element fails nothing is added.
func (es *EnergySystem) Add(elements ...Element) error {
	var nodes []Node
	var constraints []*Constraint
	seen := make(map[string]bool)
	for _, el := range elements {
		var node Node
		switch e := el.(type) {
		case *Bus:
			if e != nil {
				node = e
			}
		case *Source:
			if e != nil {
				node = e
			}
		case *Sink:
			if e != nil {
				node = e
			}
		case *Converter:
			if e != nil {
				node = e
			}
		case *GenericStorage:
			if e != nil {
				node = e
			}
		case *Constraint:
			if e == nil {
				break
			}
			if err := e.Validate(); err != nil {
				return err
			}
			constraints = append(constraints, e)
			continue
		}
		if node == nil {
			return fmt.Errorf("%w: %T", ErrUnknownType, el)
		}
		if err := node.Validate(); err != nil {
			return err
		}
		if es.labels[node.Name()] || seen[node.Name()] {
			return fmt.Errorf("%w: duplicate label %q", ErrValidation, node.Name())
		}
		seen[node.Name()] = true
		nodes = append(nodes, node)
	}
	for _, n := range nodes {
		es.labels[n.Name()] = true
	}
	es.nodes = append(es.nodes, nodes...)
	es.constraints = append(es.constraints, constraints...)
	return nil
}

// Nodes returns the nodes in insertion order.
func (es *EnergySystem) Nodes() []Node { return es.nodes }

// Constraints returns the constraints in insertion order.
func (es *EnergySystem) Constraints() []*Constraint { return es.constraints }

// Step returns the sampling interval.
func (es *EnergySystem) Step() time.Duration {
	step, _ := es.Frequency.Step()
	return step
}

// TimeIndex returns the timestamps of the horizon.
func (es *EnergySystem) TimeIndex() []time.Time {
	step := es.Step()
	idx := make([]time.Time, es.TimeSteps)
	for i := range idx {
		idx[i] = es.StartDate.Add(time.Duration(i) * step)
	}
	return idx
}

// Lower lowers every node in insertion order and adds it to net at once,
// so later nodes resolve buses added before them.
func (es *EnergySystem) Lower(net *network.Network) error {
	for _, n := range es.nodes {
		lowered, err := n.Lower(net)
		if err != nil {
			return fmt.Errorf("lower %s: %w", n.Name(), err)
		}
		if err := net.Add(lowered); err != nil {
			return err
		}
	}
	return nil
}

// Network builds a fresh network over the time index and lowers the
// system into it.
func (es *EnergySystem) Network() (*network.Network, error) {
	net, err := network.New(es.TimeIndex(), es.Step())
	if err != nil {
		return nil, err
	}
	if err := es.Lower(net); err != nil {
		return nil, err
	}
	return net, nil
}

// ApplyConstraints adds every constraint to m in insertion order and
// returns the resulting model.
func (es *EnergySystem) ApplyConstraints(m *optimize.Model) (*optimize.Model, error) {
	for _, c := range es.constraints {
		next, err := c.Apply(m)
		if err != nil {
			return nil, err
		}
		m = next
	}
	return m, nil
}
