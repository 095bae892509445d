package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Sequence is a flow or storage parameter that is either one scalar for
// every timestep or an explicit per-timestep series.
type Sequence struct {
	scalar   float64
	series   []float64
	isSeries bool
}

// Scalar returns a Sequence holding v for every timestep.
func Scalar(v float64) Sequence {
	return Sequence{scalar: v}
}

// Series returns a Sequence holding one value per timestep.
func Series(values ...float64) Sequence {
	s := make([]float64, len(values))
	copy(s, values)
	return Sequence{series: s, isSeries: true}
}

// IsSeries reports whether the sequence carries per-timestep values.
func (s Sequence) IsSeries() bool {
	return s.isSeries
}

// Len is the number of explicit values, zero for a scalar.
func (s Sequence) Len() int {
	return len(s.series)
}

// At returns the value at timestep t. A series shorter than t repeats its
// last value; an empty series is zero.
func (s Sequence) At(t int) float64 {
	if !s.isSeries {
		return s.scalar
	}
	if len(s.series) == 0 {
		return 0
	}
	if t < len(s.series) {
		return s.series[t]
	}
	return s.series[len(s.series)-1]
}

// Values expands the sequence to n timesteps.
func (s Sequence) Values(n int) []float64 {
	out := make([]float64, n)
	for t := range out {
		out[t] = s.At(t)
	}
	return out
}

// Any reports whether f holds for at least one of the first n timesteps.
func (s Sequence) Any(n int, f func(float64) bool) bool {
	for t := 0; t < n; t++ {
		if f(s.At(t)) {
			return true
		}
	}
	return false
}

// CheckLength returns an error if s is a series whose length differs from n.
func (s Sequence) CheckLength(n int) error {
	if s.isSeries && len(s.series) != n {
		return fmt.Errorf("sequence has %d values, time index has %d", len(s.series), n)
	}
	return nil
}

// MarshalJSON writes a scalar as a number and a series as an array.
func (s Sequence) MarshalJSON() ([]byte, error) {
	if s.isSeries {
		return json.Marshal(s.series)
	}
	return json.Marshal(s.scalar)
}

// UnmarshalJSON accepts a number or an array of numbers.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty sequence")
	}
	if data[0] == '[' {
		var values []float64
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("sequence: %w", err)
		}
		*s = Series(values...)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("sequence: %w", err)
	}
	*s = Scalar(v)
	return nil
}
