package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Highs drives the HiGHS command line solver.
type Highs struct {
	binary string
}

// Name is the solver name.
func (h *Highs) Name() string { return "highs" }

// Solve writes an options file next to the solution file and runs highs.
func (h *Highs) Solve(ctx context.Context, req Request) (*Solution, error) {
	args := []string{"--model_file", req.ModelPath, "--solution_file", req.SolutionPath}
	if len(req.Options) > 0 {
		optsPath := req.SolutionPath + ".opts"
		if err := writeHighsOptions(optsPath, req.Options); err != nil {
			return nil, err
		}
		args = append(args, "--options_file", optsPath)
	}
	elapsed, err := run(ctx, req, h.binary, args...)
	if err != nil {
		return nil, err
	}
	sol, err := readSolution(req.SolutionPath, parseHighs)
	if err != nil {
		return nil, err
	}
	sol.Duration = elapsed
	return sol, nil
}

func writeHighsOptions(path string, opts map[string]interface{}) error {
	var b strings.Builder
	for _, k := range sortedOptions(opts) {
		fmt.Fprintf(&b, "%s = %v\n", k, opts[k])
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// parseHighs reads the HiGHS raw solution format: a "Model status" block,
// then the primal solution with an "Objective" line and a "# Columns N"
// block of "name value" rows.
func parseHighs(r io.Reader) (*Solution, error) {
	sol := &Solution{Values: make(map[string]float64)}
	primalFeasible := false
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "Model status":
			if sc.Scan() {
				sol.Status = highsStatus(strings.TrimSpace(sc.Text()))
			}
		case line == "# Primal solution values":
			if sc.Scan() {
				primalFeasible = strings.TrimSpace(sc.Text()) == "Feasible"
			}
		case strings.HasPrefix(line, "Objective "):
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "Objective ")), 64)
			if err == nil {
				sol.Objective = v
			}
		case strings.HasPrefix(line, "# Columns "):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "# Columns "))
			if err != nil {
				return nil, fmt.Errorf("highs solution: bad column count %q", line)
			}
			for i := 0; i < n && sc.Scan(); i++ {
				fields := strings.Fields(sc.Text())
				if len(fields) != 2 {
					return nil, fmt.Errorf("highs solution: bad column line %q", sc.Text())
				}
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, fmt.Errorf("highs solution: column %s: %w", fields[0], err)
				}
				sol.Values[fields[0]] = v
			}
			// only the primal block is needed
			if sol.Status == Unknown && primalFeasible {
				sol.Status = Feasible
			}
			return sol, sc.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if sol.Status == Unknown && primalFeasible {
		sol.Status = Feasible
	}
	return sol, nil
}

func highsStatus(s string) Status {
	switch strings.ToLower(s) {
	case "optimal":
		return Optimal
	case "infeasible":
		return Infeasible
	case "unbounded", "primal infeasible or unbounded":
		return Unbounded
	}
	return Unknown
}
