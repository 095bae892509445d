// Package techdata reads per-technology reference tables. Each technology
// is one ';' separated file with decimal commas, one row per simulation
// year.
package techdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrNoRecord is returned by Lookup when a technology has no row for the
// requested year.
var ErrNoRecord = errors.New("no technology record")

// Record is one row of a technology table.
type Record struct {
	Year            int
	InvestmentCosts float64
	OperatingCosts  float64
	Lifetime        int
	Efficiency      float64
}

var columns = []string{"year", "investment_costs", "operating_costs", "lifetime", "efficiency"}

// Read parses a technology table. The header names the columns; extra
// columns are ignored.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("techdata: header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := pos[c]; !ok {
			return nil, fmt.Errorf("techdata: missing column %q", c)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("techdata: line %d: %w", line, err)
		}
		values := make(map[string]decimal.Decimal, len(columns))
		for _, c := range columns {
			d, err := parseDecimal(row[pos[c]])
			if err != nil {
				return nil, fmt.Errorf("techdata: line %d: %s: %w", line, c, err)
			}
			values[c] = d
		}
		records = append(records, Record{
			Year:            int(values["year"].IntPart()),
			InvestmentCosts: values["investment_costs"].InexactFloat64(),
			OperatingCosts:  values["operating_costs"].InexactFloat64(),
			Lifetime:        int(values["lifetime"].IntPart()),
			Efficiency:      values["efficiency"].InexactFloat64(),
		})
	}
	return records, nil
}

// parseDecimal accepts "1234,5", "1.234,5" and "1234.5".
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

// Table loads technology files from one directory on first use.
type Table struct {
	dir   string
	mu    sync.Mutex
	cache map[string][]Record
}

// New returns a table over dir.
func New(dir string) *Table {
	return &Table{dir: dir, cache: make(map[string][]Record)}
}

// Lookup returns the record of technology name for year.
func (t *Table) Lookup(name string, year int) (Record, error) {
	records, err := t.load(name)
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.Year == year {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s for year %d", ErrNoRecord, name, year)
}

func (t *Table) load(name string) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if records, ok := t.cache[name]; ok {
		return records, nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("techdata: invalid technology name %q", name)
	}
	f, err := os.Open(filepath.Join(t.dir, name+".csv"))
	if err != nil {
		return nil, fmt.Errorf("techdata: %w", err)
	}
	defer f.Close()
	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	t.cache[name] = records
	return records, nil
}

// Annuity spreads an investment over lifetime years at interest rate
// rate. A zero rate divides evenly.
func Annuity(capex float64, lifetime int, rate float64) float64 {
	if lifetime <= 0 {
		return capex
	}
	n := float64(lifetime)
	if rate == 0 {
		return capex / n
	}
	q := math.Pow(1+rate, n)
	return capex * rate * q / (q - 1)
}
