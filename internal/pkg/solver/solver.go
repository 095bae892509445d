// Package solver drives external MILP solvers. Each driver builds the
// command line for an LP model file, captures the solver output in a log
// file and parses the solution file the solver writes.
package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"
)

// ErrSolverFailed is returned when the solver process fails or ends without
// an optimal or feasible solution.
var ErrSolverFailed = errors.New("solver failed")

// ErrUnknownSolver is returned by New for an unsupported solver name.
var ErrUnknownSolver = errors.New("unknown solver")

// Status is the outcome of a solve.
type Status int

const (
	Unknown Status = iota
	Optimal
	Feasible
	Infeasible
	Unbounded
	Error
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case Error:
		return "error"
	}
	return "unknown"
}

// OK reports whether results may be extracted.
func (s Status) OK() bool {
	return s == Optimal || s == Feasible
}

// Request names the files of one solve.
type Request struct {
	ModelPath    string
	SolutionPath string
	LogPath      string
	Verbose      bool
	Options      map[string]interface{}
	// Columns lists the LP column names in model order, for solvers that
	// report values by column index.
	Columns []string
}

// Solution is the parsed solver output.
type Solution struct {
	Status    Status
	Objective float64
	Values    map[string]float64
	Duration  time.Duration
}

// Err returns nil for an optimal or feasible solution, otherwise an error
// wrapping ErrSolverFailed.
func (s *Solution) Err() error {
	if s.Status.OK() {
		return nil
	}
	return fmt.Errorf("%w: status %v", ErrSolverFailed, s.Status)
}

// Solver runs one external solver.
type Solver interface {
	Name() string
	Solve(ctx context.Context, req Request) (*Solution, error)
}

// Names lists the supported solvers.
func Names() []string {
	return []string{"cbc", "glpk", "gurobi", "highs"}
}

// New returns the driver for name. An empty binary selects the solver's
// default executable name.
func New(name, binary string) (Solver, error) {
	switch name {
	case "cbc":
		return &Cbc{binary: pick(binary, "cbc")}, nil
	case "glpk":
		return &Glpk{binary: pick(binary, "glpsol")}, nil
	case "highs":
		return &Highs{binary: pick(binary, "highs")}, nil
	case "gurobi":
		return &Gurobi{binary: pick(binary, "gurobi_cl")}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, name)
}

func pick(binary, fallback string) string {
	if binary == "" {
		return fallback
	}
	return binary
}

// run executes binary with args, appending stdout and stderr to the log
// file and echoing them to stdout when verbose.
func run(ctx context.Context, req Request, binary string, args ...string) (time.Duration, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSolverFailed, err)
	}

	var out io.Writer = io.Discard
	if req.LogPath != "" {
		f, err := os.OpenFile(req.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		out = f
	}
	if req.Verbose {
		out = io.MultiWriter(out, os.Stdout)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, fmt.Errorf("%w: %s: %v", ErrSolverFailed, binary, err)
	}
	return elapsed, nil
}

// sortedOptions returns option keys in a stable order.
func sortedOptions(opts map[string]interface{}) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readSolution(path string, parse func(io.Reader) (*Solution, error)) (*Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: no solution file: %v", ErrSolverFailed, err)
	}
	defer f.Close()
	return parse(f)
}
