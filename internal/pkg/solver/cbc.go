package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Cbc drives the COIN-OR branch and cut solver.
type Cbc struct {
	binary string
}

// Name is the solver name.
func (c *Cbc) Name() string { return "cbc" }

// Solve runs cbc on the model and reads its solution file.
func (c *Cbc) Solve(ctx context.Context, req Request) (*Solution, error) {
	args := []string{req.ModelPath}
	for _, k := range sortedOptions(req.Options) {
		args = append(args, "-"+k, fmt.Sprint(req.Options[k]))
	}
	args = append(args, "-printingOptions", "all", "-solve", "-solu", req.SolutionPath)

	elapsed, err := run(ctx, req, c.binary, args...)
	if err != nil {
		return nil, err
	}
	sol, err := readSolution(req.SolutionPath, parseCbc)
	if err != nil {
		return nil, err
	}
	sol.Duration = elapsed
	return sol, nil
}

// parseCbc reads a cbc solution file: a status line followed by
// "index name value reduced-cost" rows, rows with infeasibilities are
// prefixed by "**".
func parseCbc(r io.Reader) (*Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() {
		return nil, fmt.Errorf("%w: empty cbc solution", ErrSolverFailed)
	}
	header := sc.Text()
	sol := &Solution{Status: cbcStatus(header), Values: make(map[string]float64)}
	if i := strings.Index(header, "objective value"); i >= 0 {
		fields := strings.Fields(header[i+len("objective value"):])
		if len(fields) > 0 {
			if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
				sol.Objective = v
			}
		}
	}

	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("cbc solution: column %s: %w", fields[1], err)
		}
		sol.Values[fields[1]] = v
	}
	return sol, sc.Err()
}

func cbcStatus(header string) Status {
	h := strings.ToLower(strings.TrimSpace(header))
	switch {
	case strings.HasPrefix(h, "optimal"):
		return Optimal
	case strings.Contains(h, "infeasible"):
		return Infeasible
	case strings.HasPrefix(h, "unbounded"):
		return Unbounded
	case strings.HasPrefix(h, "stopped") && strings.Contains(h, "no integer solution"):
		return Unknown
	case strings.HasPrefix(h, "stopped"):
		return Feasible
	}
	return Unknown
}
