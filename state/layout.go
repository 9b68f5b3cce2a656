package state

import (
	"github.com/pkg/errors"
)

// Layout describes how a set of named, shaped variables is packed into a
// single flat buffer. Layouts are immutable once created and are shared by
// every Vector built from them.
type Layout struct {
	ids     []string
	index   map[string]int
	shapes  [][]int
	offsets []int // len(ids)+1, offsets[i]:offsets[i+1] is the span of ids[i]
}

// NewLayout creates a layout for the given ordered ids and shapes. A nil or
// empty shape is a scalar.
func NewLayout(ids []string, shapes [][]int) (*Layout, error) {
	if len(ids) < 1 {
		return nil, errors.New("At least one variable is required for a layout")
	}
	if len(ids) != len(shapes) {
		return nil, errors.Errorf("Layout has %d ids but %d shapes", len(ids), len(shapes))
	}

	l := &Layout{
		ids:     make([]string, len(ids)),
		index:   make(map[string]int, len(ids)),
		shapes:  make([][]int, len(ids)),
		offsets: make([]int, len(ids)+1),
	}
	copy(l.ids, ids)

	for i, id := range ids {
		if len(id) < 1 {
			return nil, errors.Errorf("Variable %d has an empty id", i)
		}
		if _, dup := l.index[id]; dup {
			return nil, errors.Errorf("Duplicate variable id %s", id)
		}
		l.index[id] = i

		size, err := ShapeSize(shapes[i])
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid shape for variable %s", id)
		}
		l.shapes[i] = append([]int{}, shapes[i]...)
		l.offsets[i+1] = l.offsets[i] + size
	}

	return l, nil
}

// ShapeSize returns the number of scalars held by an array of the given
// shape.
func ShapeSize(shape []int) (int, error) {
	size := 1
	for _, d := range shape {
		if d < 1 {
			return 0, errors.Errorf("Dimension %d in shape %v must be positive", d, shape)
		}
		size *= d
	}
	return size, nil
}

// IDs returns the ordered variable ids (a copy).
func (l *Layout) IDs() []string {
	return append([]string{}, l.ids...)
}

// Len is the total number of scalars across all variables.
func (l *Layout) Len() int {
	return l.offsets[len(l.offsets)-1]
}

// Has is true if the id is part of the layout.
func (l *Layout) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Shape returns the shape of the given variable, or nil if unknown.
func (l *Layout) Shape(id string) []int {
	i, ok := l.index[id]
	if !ok {
		return nil
	}
	return append([]int{}, l.shapes[i]...)
}

// Span returns the [start, end) window of the variable in the flat buffer.
func (l *Layout) Span(id string) (start int, end int, ok bool) {
	i, ok := l.index[id]
	if !ok {
		return 0, 0, false
	}
	return l.offsets[i], l.offsets[i+1], true
}

// Equal is true when both layouts pack the same ids with the same shapes in
// the same order.
func (l *Layout) Equal(o *Layout) bool {
	if l == o {
		return true
	}
	if l == nil || o == nil || len(l.ids) != len(o.ids) {
		return false
	}
	for i, id := range l.ids {
		if o.ids[i] != id || len(l.shapes[i]) != len(o.shapes[i]) {
			return false
		}
		for j, d := range l.shapes[i] {
			if o.shapes[i][j] != d {
				return false
			}
		}
	}
	return true
}

// Zeros returns a new all-zero vector with this layout.
func (l *Layout) Zeros() *Vector {
	return &Vector{layout: l, data: make([]float64, l.Len())}
}

// FromMap builds a vector from per-variable values. Every id in the layout
// must be present with exactly the right number of values.
func (l *Layout) FromMap(values map[string][]float64) (*Vector, error) {
	v := l.Zeros()
	for _, id := range l.ids {
		vals, ok := values[id]
		if !ok {
			return nil, errors.Errorf("Missing values for variable %s", id)
		}
		if err := v.Set(id, vals); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// FromSlice wraps a copy of data as a vector with this layout.
func (l *Layout) FromSlice(data []float64) (*Vector, error) {
	if len(data) != l.Len() {
		return nil, errors.Errorf("Data length %d does not match layout length %d", len(data), l.Len())
	}
	return &Vector{layout: l, data: append([]float64{}, data...)}, nil
}
