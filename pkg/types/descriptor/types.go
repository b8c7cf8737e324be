// Package descriptor defines the typed feature-vector carrier shared by the
// descriptor generator, the corpus repositories, and downstream consumers.
//
// Every producer of descriptor values goes through Vector.Append, which
// rejects anything that is not a plain finite float64.  This makes the
// uniform-numeric invariant structural: a Vector can always be averaged
// component-wise with its peers without per-element type checks.
package descriptor

import (
	"fmt"
	"math"

	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// Vector is an ordered sequence of (name, value) pairs.  Name order is
// significant: vectors of the same substructure kind must share an identical
// name sequence so that per-component averaging is well defined.
type Vector struct {
	names  []string
	values []float64
}

// NewVector returns an empty Vector with capacity for n entries.
func NewVector(n int) *Vector {
	return &Vector{
		names:  make([]string, 0, n),
		values: make([]float64, 0, n),
	}
}

// Append adds one named value.  NaN and ±Inf are rejected with
// CodeMalformedDescriptor; this should never fire for well-formed kernels and
// exists to stop a poisoned value from silently corrupting averaged features.
func (v *Vector) Append(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.New(errors.CodeMalformedDescriptor, "descriptor value is not a finite real").
			WithDetail(fmt.Sprintf("name=%s value=%v", name, value))
	}
	v.names = append(v.names, name)
	v.values = append(v.values, value)
	return nil
}

// Extend appends a parallel (names, values) pair sequence.  The two slices
// must have equal length.
func (v *Vector) Extend(names []string, values []float64) error {
	if len(names) != len(values) {
		return errors.New(errors.ErrCodeNameMismatch, "name/value sequence length mismatch").
			WithDetail(fmt.Sprintf("names=%d values=%d", len(names), len(values)))
	}
	for i := range names {
		if err := v.Append(names[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries.
func (v *Vector) Len() int { return len(v.values) }

// Names returns a copy of the name sequence.
func (v *Vector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Values returns a copy of the value sequence.
func (v *Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// At returns the i-th (name, value) pair.
func (v *Vector) At(i int) (string, float64) {
	return v.names[i], v.values[i]
}

// Concat returns a new Vector holding the receiver's entries followed by
// other's entries.  Neither input is mutated.
func (v *Vector) Concat(other *Vector) *Vector {
	out := NewVector(v.Len() + other.Len())
	out.names = append(out.names, v.names...)
	out.names = append(out.names, other.names...)
	out.values = append(out.values, v.values...)
	out.values = append(out.values, other.values...)
	return out
}

// SameNames reports whether two vectors carry identical name sequences in
// identical order.
func (v *Vector) SameNames(other *Vector) bool {
	if len(v.names) != len(other.names) {
		return false
	}
	for i := range v.names {
		if v.names[i] != other.names[i] {
			return false
		}
	}
	return true
}

// Average computes the component-wise arithmetic mean of the given vectors.
// All vectors must share an identical name sequence; the result carries that
// sequence.  Averaging over a one-element slice returns a copy of the input.
func Average(vecs []*Vector) (*Vector, error) {
	if len(vecs) == 0 {
		return nil, errors.New(errors.CodeEmptyFeaturization, "no vectors to average")
	}
	first := vecs[0]
	sums := make([]float64, first.Len())
	for _, vec := range vecs {
		if !first.SameNames(vec) {
			return nil, errors.New(errors.ErrCodeNameMismatch,
				"descriptor name sequences differ between substructures of the same kind")
		}
		for i, val := range vec.values {
			sums[i] += val
		}
	}
	n := float64(len(vecs))
	out := NewVector(first.Len())
	for i, s := range sums {
		if err := out.Append(first.names[i], s/n); err != nil {
			return nil, err
		}
	}
	return out, nil
}
