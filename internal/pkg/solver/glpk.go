package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Glpk drives glpsol.
type Glpk struct {
	binary string
}

// Name is the solver name.
func (g *Glpk) Name() string { return "glpk" }

// Solve runs glpsol and maps the column indices of its plain text
// solution onto req.Columns.
func (g *Glpk) Solve(ctx context.Context, req Request) (*Solution, error) {
	args := []string{"--lp", req.ModelPath, "-w", req.SolutionPath}
	for _, k := range sortedOptions(req.Options) {
		args = append(args, "--"+k)
		if v := fmt.Sprint(req.Options[k]); v != "" && v != "true" {
			args = append(args, v)
		}
	}
	elapsed, err := run(ctx, req, g.binary, args...)
	if err != nil {
		return nil, err
	}
	sol, err := readSolution(req.SolutionPath, func(r io.Reader) (*Solution, error) {
		return parseGlpk(r, req.Columns)
	})
	if err != nil {
		return nil, err
	}
	sol.Duration = elapsed
	return sol, nil
}

// parseGlpk reads the glpsol -w format. "s bas" and "s mip" lines carry the
// status and objective, "j" lines the column values.
func parseGlpk(r io.Reader, columns []string) (*Solution, error) {
	sol := &Solution{Values: make(map[string]float64)}
	mip := false
	seen := false
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "s":
			if len(fields) < 2 {
				return nil, fmt.Errorf("glpk solution: bad status line %q", sc.Text())
			}
			seen = true
			switch fields[1] {
			case "bas", "ipt":
				// s bas rows cols prim dual obj
				if len(fields) < 7 {
					return nil, fmt.Errorf("glpk solution: bad status line %q", sc.Text())
				}
				sol.Status = glpkLPStatus(fields[4], fields[5])
				sol.Objective, _ = strconv.ParseFloat(fields[6], 64)
			case "mip":
				// s mip rows cols stat obj
				if len(fields) < 6 {
					return nil, fmt.Errorf("glpk solution: bad status line %q", sc.Text())
				}
				mip = true
				sol.Status = glpkMIPStatus(fields[4])
				sol.Objective, _ = strconv.ParseFloat(fields[5], 64)
			}
		case "j":
			pos := 3
			if mip {
				pos = 2
			}
			if len(fields) <= pos {
				return nil, fmt.Errorf("glpk solution: bad column line %q", sc.Text())
			}
			col, err := strconv.Atoi(fields[1])
			if err != nil || col < 1 || col > len(columns) {
				return nil, fmt.Errorf("glpk solution: column %q out of range", fields[1])
			}
			v, err := strconv.ParseFloat(fields[pos], 64)
			if err != nil {
				return nil, fmt.Errorf("glpk solution: column %d: %w", col, err)
			}
			sol.Values[columns[col-1]] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !seen {
		return nil, fmt.Errorf("%w: glpk solution has no status line", ErrSolverFailed)
	}
	return sol, nil
}

func glpkLPStatus(prim, dual string) Status {
	switch {
	case prim == "f" && dual == "f":
		return Optimal
	case prim == "n" || prim == "i":
		return Infeasible
	case prim == "f" && (dual == "n" || dual == "i"):
		return Unbounded
	case prim == "f":
		return Feasible
	}
	return Unknown
}

func glpkMIPStatus(stat string) Status {
	switch stat {
	case "o":
		return Optimal
	case "f":
		return Feasible
	case "n":
		return Infeasible
	}
	return Unknown
}
