package network

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrBadArgument is returned by constructors for unknown or mistyped keyword
// arguments.
var ErrBadArgument = errors.New("bad keyword argument")

// Kwargs is the keyword-argument map the constructors of this package accept.
// An absent key means unset; a present key is an explicit value, even zero.
type Kwargs map[string]interface{}

// Keys returns the argument names in sorted order.
func (kw Kwargs) Keys() []string {
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KwargReader consumes a Kwargs map on behalf of one constructor. The first
// error is kept and returned by Done, together with any unconsumed names.
type KwargReader struct {
	owner string
	kw    Kwargs
	used  map[string]bool
	err   error
}

// ReadKwargs starts reading kw for the named constructor.
func ReadKwargs(owner string, kw Kwargs) *KwargReader {
	return &KwargReader{owner: owner, kw: kw, used: make(map[string]bool)}
}

func (r *KwargReader) get(name string) (interface{}, bool) {
	v, ok := r.kw[name]
	if ok {
		r.used[name] = true
	}
	return v, ok
}

func (r *KwargReader) fail(name string, v interface{}, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w %q: want %s, got %T", r.owner, ErrBadArgument, name, want, v)
	}
}

// Has reports whether name was passed.
func (r *KwargReader) Has(name string) bool {
	_, ok := r.kw[name]
	return ok
}

// Float reads a number.
func (r *KwargReader) Float(name string) *float64 {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(name, v, "number")
		return nil
	}
	return &f
}

// Int reads an integer.
func (r *KwargReader) Int(name string) *int {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		if n == float64(int(n)) {
			i := int(n)
			return &i
		}
	}
	r.fail(name, v, "integer")
	return nil
}

// Bool reads a boolean.
func (r *KwargReader) Bool(name string) *bool {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(name, v, "bool")
		return nil
	}
	return &b
}

// String reads a string.
func (r *KwargReader) String(name string) *string {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		r.fail(name, v, "string")
		return nil
	}
	return &s
}

// Sequence reads a Sequence; plain numbers are promoted to scalars.
func (r *KwargReader) Sequence(name string) *Sequence {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	s, ok := toSequence(v)
	if !ok {
		r.fail(name, v, "sequence")
		return nil
	}
	return &s
}

// Floats reads a list of numbers.
func (r *KwargReader) Floats(name string) []float64 {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	switch l := v.(type) {
	case []float64:
		return l
	case []interface{}:
		out := make([]float64, 0, len(l))
		for _, item := range l {
			f, ok := toFloat(item)
			if !ok {
				r.fail(name, v, "list of numbers")
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	r.fail(name, v, "list of numbers")
	return nil
}

// Strings reads a list of strings.
func (r *KwargReader) Strings(name string) []string {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	l, ok := v.([]string)
	if !ok {
		r.fail(name, v, "list of strings")
		return nil
	}
	return l
}

// Attributes reads a free-form attribute map.
func (r *KwargReader) Attributes(name string) map[string]interface{} {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		r.fail(name, v, "attribute map")
		return nil
	}
	return m
}

// Value reads name without type checking.
func (r *KwargReader) Value(name string) (interface{}, bool) {
	return r.get(name)
}

// Ports reads a resolved port map.
func (r *KwargReader) Ports(name string) map[*Bus]interface{} {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	p, ok := v.(map[*Bus]interface{})
	if !ok {
		r.fail(name, v, "port map")
		return nil
	}
	return p
}

// Fail records a caller-side type error for name.
func (r *KwargReader) Fail(name string, v interface{}, want string) {
	r.fail(name, v, want)
}

// Done returns the first conversion error, or an error naming every
// argument that no reader consumed.
func (r *KwargReader) Done() error {
	if r.err != nil {
		return r.err
	}
	var unknown []string
	for _, k := range r.kw.Keys() {
		if !r.used[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%s: %w: unexpected %s", r.owner, ErrBadArgument, strings.Join(unknown, ", "))
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toSequence(v interface{}) (Sequence, bool) {
	switch s := v.(type) {
	case Sequence:
		return s, true
	case []float64:
		return Series(s...), true
	case []interface{}:
		values := make([]float64, 0, len(s))
		for _, item := range s {
			f, ok := toFloat(item)
			if !ok {
				return Sequence{}, false
			}
			values = append(values, f)
		}
		return Series(values...), true
	}
	if f, ok := toFloat(v); ok {
		return Scalar(f), true
	}
	return Sequence{}, false
}

// AttributeSequence interprets a custom attribute value as a Sequence.
func AttributeSequence(v interface{}) (Sequence, bool) {
	return toSequence(v)
}
