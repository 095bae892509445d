package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Gurobi drives gurobi_cl.
type Gurobi struct {
	binary string
}

// Name is the solver name.
func (g *Gurobi) Name() string { return "gurobi" }

// Solve runs gurobi_cl. Gurobi writes a result file only when it found a
// solution, so a missing file means the model has none.
func (g *Gurobi) Solve(ctx context.Context, req Request) (*Solution, error) {
	args := []string{"ResultFile=" + req.SolutionPath}
	if req.LogPath != "" {
		args = append(args, "LogFile="+req.LogPath+".gurobi")
	}
	for _, k := range sortedOptions(req.Options) {
		args = append(args, fmt.Sprintf("%s=%v", k, req.Options[k]))
	}
	args = append(args, req.ModelPath)

	elapsed, err := run(ctx, req, g.binary, args...)
	if err != nil {
		return nil, err
	}
	sol, err := readSolution(req.SolutionPath, parseGurobi)
	if err != nil {
		return &Solution{Status: Infeasible, Duration: elapsed}, nil
	}
	sol.Duration = elapsed
	return sol, nil
}

// parseGurobi reads a .sol file: comment lines starting with "#", one of
// them carrying the objective, then "name value" rows.
func parseGurobi(r io.Reader) (*Solution, error) {
	sol := &Solution{Status: Optimal, Values: make(map[string]float64)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if i := strings.Index(line, "Objective value ="); i >= 0 {
				v, err := strconv.ParseFloat(strings.TrimSpace(line[i+len("Objective value ="):]), 64)
				if err == nil {
					sol.Objective = v
				}
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("gurobi solution: bad line %q", line)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("gurobi solution: column %s: %w", fields[0], err)
		}
		sol.Values[fields[0]] = v
	}
	return sol, sc.Err()
}
