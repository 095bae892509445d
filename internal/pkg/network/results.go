package network

import "time"

// Results holds the primal values and meta data of a solved run.
type Results struct {
	Meta     Meta            `bson:"meta" json:"meta"`
	Flows    []FlowResult    `bson:"flows" json:"flows"`
	Storages []StorageResult `bson:"storages" json:"storages"`
}

// Meta describes the solve that produced the results.
type Meta struct {
	Name        string        `bson:"name" json:"name"`
	Solver      string        `bson:"solver" json:"solver"`
	Status      string        `bson:"status" json:"status"`
	Objective   float64       `bson:"objective" json:"objective"`
	Variables   int           `bson:"variables" json:"variables"`
	Constraints int           `bson:"constraints" json:"constraints"`
	SolveTime   time.Duration `bson:"solve_time" json:"solve_time"`
}

// FlowResult holds the values of one edge.
type FlowResult struct {
	From   string    `bson:"from" json:"from"`
	To     string    `bson:"to" json:"to"`
	Values []float64 `bson:"values" json:"values"`
	Status []float64 `bson:"status,omitempty" json:"status,omitempty"`
	Invest *float64  `bson:"invest,omitempty" json:"invest,omitempty"`
}

// Total is the sum of the flow values over the horizon.
func (r FlowResult) Total() float64 {
	var sum float64
	for _, v := range r.Values {
		sum += v
	}
	return sum
}

// StorageResult holds the content trajectory of one storage.
type StorageResult struct {
	Label   string    `bson:"label" json:"label"`
	Content []float64 `bson:"content" json:"content"`
	Invest  *float64  `bson:"invest,omitempty" json:"invest,omitempty"`
}

// Flow returns the result of the edge from -> to.
func (r *Results) Flow(from, to string) (FlowResult, bool) {
	for _, f := range r.Flows {
		if f.From == from && f.To == to {
			return f, true
		}
	}
	return FlowResult{}, false
}

// Storage returns the result of the storage with label.
func (r *Results) Storage(label string) (StorageResult, bool) {
	for _, s := range r.Storages {
		if s.Label == label {
			return s, true
		}
	}
	return StorageResult{}, false
}
