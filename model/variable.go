package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gnuts/state"
)

// Prior is the (independent, element-wise) prior density of a latent
// variable. Mu and Sigma are the location and scale for normal, laplace and
// cauchy; Low and High bound a uniform.
type Prior struct {
	Dist  string  `yaml:"dist"`
	Mu    float64 `yaml:"mu,omitempty"`
	Sigma float64 `yaml:"sigma,omitempty"`
	Low   float64 `yaml:"low,omitempty"`
	High  float64 `yaml:"high,omitempty"`
}

func (p *Prior) density() (density, error) {
	return newDensity(p.Dist, p.Mu, p.Sigma, p.Low, p.High)
}

// Variable represents a single continuous latent node in a model: a shaped
// array of real values.
type Variable struct {
	ID    string    `yaml:"id"`              // Unique id, also used as the name
	Shape []int     `yaml:"shape,omitempty"` // Array shape: empty is a scalar
	Value []float64 `yaml:"init,omitempty"`  // Current value, flattened row-major
	Prior *Prior    `yaml:"prior,omitempty"` // Optional prior; nil is an improper flat prior
}

// NewVariable is our standard way to create a variable from an index and a
// shape. The value is set to zeros and the id to a letter name.
func NewVariable(index int, shape []int) (*Variable, error) {
	if index < 0 {
		return nil, errors.Errorf("Invalid index %d with shape %v", index, shape)
	}
	size, err := state.ShapeSize(shape)
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid shape for variable %d", index)
	}

	v := &Variable{
		Shape: append([]int{}, shape...),
		Value: make([]float64, size),
	}

	err = v.CreateName(index)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not init name for var %d (shape %v)", index, shape)
	}

	return v, nil
}

// Size is the number of scalars in the variable
func (v *Variable) Size() int {
	size, err := state.ShapeSize(v.Shape)
	if err != nil {
		return 0
	}
	return size
}

// Clone returns a deep copy of the variable.
func (v *Variable) Clone() *Variable {
	cp := &Variable{
		ID:    v.ID,
		Shape: append([]int{}, v.Shape...),
		Value: append([]float64{}, v.Value...),
	}
	if v.Prior != nil {
		p := *v.Prior
		cp.Prior = &p
	}
	return cp
}

// Check returns an error if any problem is found
func (v *Variable) Check() error {
	if len(v.ID) < 1 {
		return errors.New("Variable has no id")
	}

	size, err := state.ShapeSize(v.Shape)
	if err != nil {
		return errors.Wrapf(err, "Variable %s has an invalid shape", v.ID)
	}
	if size != len(v.Value) {
		return errors.Errorf("Variable %s has shape %v (size %d) but %d values", v.ID, v.Shape, size, len(v.Value))
	}

	for i, x := range v.Value {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return errors.Errorf("Variable %s has non-finite value %v at %d", v.ID, x, i)
		}
	}

	if v.Prior != nil {
		d, err := v.Prior.density()
		if err != nil {
			return errors.Wrapf(err, "Variable %s has an invalid prior", v.ID)
		}
		for i, x := range v.Value {
			if math.IsInf(d.logProb(x), -1) {
				return errors.Errorf("Variable %s value %v at %d is outside the prior support", v.ID, x, i)
			}
		}
	}

	return nil
}

// Init fills in a missing value: zeros, or the centre of a uniform prior.
func (v *Variable) Init() {
	if len(v.Value) > 0 {
		return
	}

	fill := 0.0
	if v.Prior != nil {
		if v.Prior.Dist == UNIFORM {
			fill = (v.Prior.Low + v.Prior.High) / 2
		} else {
			fill = v.Prior.Mu
		}
	}

	v.Value = make([]float64, v.Size())
	for i := range v.Value {
		v.Value[i] = fill
	}
}

// ElementNames returns one name per scalar, like "beta[1,0]", in flat order.
// Scalars are just named by their id.
func (v *Variable) ElementNames() []string {
	if len(v.Shape) < 1 {
		return []string{v.ID}
	}

	names := make([]string, 0, v.Size())
	iter, err := NewIndexIter(v.Shape)
	if err != nil {
		return names
	}

	idx := make([]int, len(v.Shape))
	parts := make([]string, len(v.Shape))
	for ok := true; ok; ok = iter.Next() {
		iter.Val(idx)
		for i, n := range idx {
			parts[i] = fmt.Sprintf("%d", n)
		}
		names = append(names, fmt.Sprintf("%s[%s]", v.ID, strings.Join(parts, ",")))
	}

	return names
}

// CreateName just gives a name to variable based on a numeric index
func (v *Variable) CreateName(i int) error {
	if i < 0 {
		return errors.Errorf("Invalid index %d for CreateName - must be >= 0", i)
	}

	// Just use a letter scheme (similar to Excel columns)
	v.ID = letter26(i)
	return nil
}

func divmod(numerator, denominator int) (quotient, remainder int) {
	quotient = numerator / denominator // integer division, decimals are truncated
	remainder = numerator % denominator
	return
}

// letter26 is sort of base-26 with only letters, but A=0 *and* the start digit (so 0=A, 1=B, and ZZ+1=AAA)
func letter26(n int) string {
	// Easy for n==0
	if n == 0 {
		return "A"
	}
	// Need to bump up one
	n++

	const LETTERS = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits := make([]byte, 0, 8)
	var remain int
	for n > 0 {
		n, remain = divmod(n-1, 26)
		digits = append(digits, LETTERS[remain])
	}

	//reverse
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	return string(digits)
}
