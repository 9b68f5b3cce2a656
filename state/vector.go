package state

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Vector is a mapping from variable id to a shaped numeric array, stored as
// one flat buffer described by a Layout. All arithmetic returns a new Vector:
// a Vector handed to someone else is never modified behind their back.
type Vector struct {
	layout *Layout
	data   []float64
}

// Layout returns the vector's layout.
func (v *Vector) Layout() *Layout {
	return v.layout
}

// Len is the number of scalars in the vector.
func (v *Vector) Len() int {
	return len(v.data)
}

// Raw returns the underlying flat buffer. Callers must treat it as read-only.
func (v *Vector) Raw() []float64 {
	return v.data
}

// Get returns a copy of the values for one variable, or nil if unknown.
func (v *Vector) Get(id string) []float64 {
	start, end, ok := v.layout.Span(id)
	if !ok {
		return nil
	}
	return append([]float64{}, v.data[start:end]...)
}

// Set overwrites the values for one variable. It is meant for building
// vectors, not for changing vectors already shared.
func (v *Vector) Set(id string, vals []float64) error {
	start, end, ok := v.layout.Span(id)
	if !ok {
		return errors.Errorf("Unknown variable %s", id)
	}
	if len(vals) != end-start {
		return errors.Errorf("Variable %s needs %d values, got %d", id, end-start, len(vals))
	}
	copy(v.data[start:end], vals)
	return nil
}

// Map returns a copy of the vector as id -> values.
func (v *Vector) Map() map[string][]float64 {
	m := make(map[string][]float64, len(v.layout.ids))
	for _, id := range v.layout.ids {
		m[id] = v.Get(id)
	}
	return m
}

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	return &Vector{layout: v.layout, data: append([]float64{}, v.data...)}
}

func (v *Vector) mustMatch(o *Vector) {
	if len(v.data) != len(o.data) || !v.layout.Equal(o.layout) {
		panic("state: vector layout mismatch")
	}
}

// Add returns v + o.
func (v *Vector) Add(o *Vector) *Vector {
	return v.AddScaled(1, o)
}

// AddScaled returns v + alpha*o.
func (v *Vector) AddScaled(alpha float64, o *Vector) *Vector {
	v.mustMatch(o)
	dst := make([]float64, len(v.data))
	floats.AddScaledTo(dst, v.data, alpha, o.data)
	return &Vector{layout: v.layout, data: dst}
}

// Scale returns alpha*v.
func (v *Vector) Scale(alpha float64) *Vector {
	dst := make([]float64, len(v.data))
	floats.ScaleTo(dst, alpha, v.data)
	return &Vector{layout: v.layout, data: dst}
}

// Mul returns the element-wise product of v and o.
func (v *Vector) Mul(o *Vector) *Vector {
	v.mustMatch(o)
	dst := make([]float64, len(v.data))
	floats.MulTo(dst, v.data, o.data)
	return &Vector{layout: v.layout, data: dst}
}

// Dot is the sum over every entry of every variable of a*b.
func Dot(a, b *Vector) float64 {
	a.mustMatch(b)
	return floats.Dot(a.data, b.data)
}

// IsFinite is false if any entry is NaN or infinite.
func (v *Vector) IsFinite() bool {
	for _, x := range v.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
