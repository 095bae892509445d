package esys

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/solver"
)

// Model is one optimisation run: the energy system plus solver settings.
type Model struct {
	EnergySystem  *EnergySystem
	Solver        string
	SolverVerbose bool
	SolverKwargs  map[string]interface{}
}

type modelDocument struct {
	EnergySystem  *systemDocument        `json:"energysystem"`
	Solver        string                 `json:"solver"`
	SolverVerbose bool                   `json:"solver_verbose"`
	SolverKwargs  map[string]interface{} `json:"solver_kwargs"`
}

type systemDocument struct {
	Busses       []*Bus            `json:"busses"`
	Components   []component       `json:"components"`
	Sources      []*Source         `json:"sources"`
	Sinks        []*Sink           `json:"sinks"`
	Transformers []*Converter      `json:"transformers"`
	Storages     []*GenericStorage `json:"storages"`
	Constraints  []*Constraint     `json:"constraints"`
	StartDate    string            `json:"start_date"`
	TimeSteps    int               `json:"time_steps"`
	Frequency    *Frequency        `json:"frequency"`
	Frequenz     *Frequency        `json:"frequenz"`
}

// nodes returns the nodes in load order: busses, components, sources,
// sinks, transformers, storages.
func (d *systemDocument) nodes() []Node {
	var out []Node
	for _, b := range d.Busses {
		out = append(out, b)
	}
	for _, c := range d.Components {
		out = append(out, c.Node)
	}
	for _, s := range d.Sources {
		out = append(out, s)
	}
	for _, s := range d.Sinks {
		out = append(out, s)
	}
	for _, c := range d.Transformers {
		out = append(out, c)
	}
	for _, s := range d.Storages {
		out = append(out, s)
	}
	return out
}

// component is an entry of the untyped components list, tagged by "type".
type component struct {
	Node
}

func (c *component) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var kind string
	if t, ok := raw["type"]; ok {
		if err := json.Unmarshal(t, &kind); err != nil {
			return fmt.Errorf("component type: %w", err)
		}
	}
	delete(raw, "type")
	switch kind {
	case "bus":
		c.Node = &Bus{}
	case "source":
		c.Node = &Source{}
	case "sink":
		c.Node = &Sink{}
	case "converter", "transformer":
		c.Node = &Converter{}
	case "storage", "generic_storage":
		c.Node = &GenericStorage{}
	default:
		return fmt.Errorf("%w: component type %q", ErrUnknownType, kind)
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return strictUnmarshal(body, c.Node)
}

// DecodeOption customises Decode.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	table Lookup
}

// WithTechnologies synthesises parameters of technology-typed nodes from
// table before validation.
func WithTechnologies(table Lookup) DecodeOption {
	return func(o *decodeOptions) { o.table = table }
}

// Decode reads a model configuration. Unknown fields are rejected; every
// node and constraint is validated as it is added.
func Decode(r io.Reader, opts ...DecodeOption) (*Model, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc modelDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if doc.EnergySystem == nil {
		return nil, fmt.Errorf("%w: energysystem: field is required", ErrValidation)
	}
	sys := doc.EnergySystem

	start, err := parseStartDate(sys.StartDate)
	if err != nil {
		return nil, err
	}
	freq := Hourly
	switch {
	case sys.Frequency != nil:
		freq = *sys.Frequency
	case sys.Frequenz != nil:
		freq = *sys.Frequenz
	}
	es, err := NewEnergySystem(start, sys.TimeSteps, freq)
	if err != nil {
		return nil, err
	}

	for _, n := range sys.nodes() {
		if err := ApplyTechnology(n, o.table); err != nil {
			return nil, err
		}
		if err := es.Add(n); err != nil {
			return nil, err
		}
	}
	for _, c := range sys.Constraints {
		if err := es.Add(c); err != nil {
			return nil, err
		}
	}

	m := &Model{
		EnergySystem:  es,
		Solver:        doc.Solver,
		SolverVerbose: doc.SolverVerbose,
		SolverKwargs:  doc.SolverKwargs,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadModel reads and decodes the configuration file at path.
func LoadModel(path string, opts ...DecodeOption) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data), opts...)
}

// Validate checks the run settings.
func (m *Model) Validate() error {
	if m.EnergySystem == nil {
		return fmt.Errorf("%w: energysystem: field is required", ErrValidation)
	}
	if m.Solver == "" {
		m.Solver = "cbc"
	}
	if _, err := solver.New(m.Solver, ""); err != nil {
		return fmt.Errorf("%w: solver: %v", ErrValidation, err)
	}
	return nil
}

func parseStartDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: start_date: field is required", ErrValidation)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: start_date: want ISO date, got %q", ErrValidation, s)
}
