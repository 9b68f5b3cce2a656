package model

import (
	"github.com/pkg/errors"
)

// IndexIter is an iterator over every multi-index of an array shape, in
// row-major (flat buffer) order.
type IndexIter struct {
	shape   []int
	lastVal []int
}

// NewIndexIter returns a new iterator over the given shape
func NewIndexIter(shape []int) (*IndexIter, error) {
	if len(shape) < 1 {
		return nil, errors.Errorf("At least one dimension required for iteration")
	}
	for _, d := range shape {
		if d < 1 {
			return nil, errors.Errorf("Invalid dimension %d in shape %v", d, shape)
		}
	}

	ii := &IndexIter{
		shape:   make([]int, len(shape)),
		lastVal: make([]int, len(shape)),
	}

	copy(ii.shape, shape)

	return ii, nil
}

// Val populates curr with the current index
func (ii *IndexIter) Val(curr []int) error {
	if len(curr) < len(ii.lastVal) {
		return errors.Errorf("Dest buffer of size %d needs to be %d", len(curr), len(ii.lastVal))
	}

	copy(curr, ii.lastVal)

	return nil
}

// Next advances to the next index and returns True if there are still indexes to see
func (ii *IndexIter) Next() bool {
	for i := len(ii.shape) - 1; i >= 0; i-- {
		prop := ii.lastVal[i] + 1

		if prop < ii.shape[i] {
			// All done
			ii.lastVal[i] = prop
			return true
		}

		ii.lastVal[i] = 0 // Overflow: continue to next
	}

	// If we're still here then we set every digit to 0 and wrapped around
	return false
}
