package optimize

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// WriteLP writes the model in CPLEX LP format. Every column appears in the
// objective, in column order, so solvers that report by column index map
// back onto the model.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\* Source model name=%s *\\\n\n", m.name)
	fmt.Fprintln(bw, "min")
	fmt.Fprintln(bw, "objective:")
	for i, v := range m.vars {
		writeTerm(bw, m.objTerms[i], v.name)
	}

	fmt.Fprintln(bw, "\ns.t.")
	for _, c := range m.cons {
		fmt.Fprintf(bw, "\n%s:\n", c.Name)
		for _, t := range c.Terms {
			writeTerm(bw, t.Coef, m.vars[t.Var.idx].name)
		}
		fmt.Fprintf(bw, "%s %s\n", c.Sense, formatNumber(c.RHS))
	}

	fmt.Fprintln(bw, "\nbounds")
	for _, v := range m.vars {
		writeBounds(bw, v)
	}

	writeSection(bw, "binary", m.vars, Binary)
	writeSection(bw, "general", m.vars, Integer)

	fmt.Fprintln(bw, "\nend")
	return bw.Flush()
}

// WriteLPFile writes the LP file to path.
func (m *Model) WriteLPFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeTerm(w *bufio.Writer, coef float64, name string) {
	if coef < 0 {
		fmt.Fprintf(w, "-%s %s\n", formatNumber(-coef), name)
		return
	}
	fmt.Fprintf(w, "+%s %s\n", formatNumber(coef), name)
}

func writeBounds(w *bufio.Writer, v variable) {
	lb, ub := v.lb, v.ub
	switch {
	case lb == ub:
		fmt.Fprintf(w, "   %s = %s\n", v.name, formatNumber(lb))
	case math.IsInf(lb, -1) && math.IsInf(ub, 1):
		fmt.Fprintf(w, "   %s free\n", v.name)
	default:
		fmt.Fprintf(w, "   %s <= %s <= %s\n", formatNumber(lb), v.name, formatNumber(ub))
	}
}

func writeSection(w *bufio.Writer, title string, vars []variable, kind VarKind) {
	header := false
	for _, v := range vars {
		if v.kind != kind {
			continue
		}
		if !header {
			fmt.Fprintf(w, "\n%s\n", title)
			header = true
		}
		fmt.Fprintf(w, "  %s\n", v.name)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
