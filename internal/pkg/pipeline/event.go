package pipeline

import "time"

// State is the coarse state of a run.
type State string

const (
	Running State = "running"
	Solved  State = "solved"
	Failed  State = "failed"
)

// Stage is one step of the build and solve sequence.
type Stage string

const (
	StageLoad      Stage = "load"
	StageIndex     Stage = "index"
	StageLower     Stage = "lower"
	StageConstruct Stage = "construct"
	StageConstrain Stage = "constrain"
	StageWriteLP   Stage = "write_lp"
	StageSolve     Stage = "solve"
	StageResults   Stage = "results"
	StageDump      Stage = "dump"
)

// Event is published on the status topic whenever a run enters a stage or
// reaches a terminal state.
type Event struct {
	Token     string    `json:"token" bson:"token"`
	Name      string    `json:"name" bson:"name"`
	State     State     `json:"state" bson:"state"`
	Stage     Stage     `json:"stage" bson:"stage"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
	Objective *float64  `json:"objective,omitempty" bson:"objective,omitempty"`
	Time      time.Time `json:"time" bson:"time"`
}
