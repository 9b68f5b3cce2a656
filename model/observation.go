package model

import (
	"math"

	"github.com/pkg/errors"
)

// Observation is observed data with a location-family likelihood centred on
// a latent variable. If the latent variable is a scalar every value shares
// it, otherwise the latent must have exactly one element per value.
type Observation struct {
	Name   string    `yaml:"id"`     // Name for the observation
	Dist   string    `yaml:"dist"`   // normal, laplace or cauchy
	Of     string    `yaml:"of"`     // Id of the latent variable used as location
	Sigma  float64   `yaml:"sigma"`  // Scale of the likelihood
	Values []float64 `yaml:"values"` // Observed data
}

// Clone returns a deep copy
func (o *Observation) Clone() *Observation {
	cp := *o
	cp.Values = append([]float64{}, o.Values...)
	return &cp
}

// Check returns an error if any problem is found
func (o *Observation) Check() error {
	d, err := newDensity(o.Dist, 0, o.Sigma, 0, 0)
	if err != nil {
		return errors.Wrapf(err, "Observation %s has an invalid likelihood", o.Name)
	}
	if !d.isLocationFamily() {
		return errors.Errorf("Observation %s: %s is not a location family", o.Name, o.Dist)
	}
	if len(o.Of) < 1 {
		return errors.Errorf("Observation %s does not name a latent variable", o.Name)
	}
	if len(o.Values) < 1 {
		return errors.Errorf("Observation %s has no values", o.Name)
	}
	for i, y := range o.Values {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return errors.Errorf("Observation %s has non-finite value %v at %d", o.Name, y, i)
		}
	}
	return nil
}

// accumulate adds the observation's log likelihood given the latent values
// x, and adds its gradient with respect to x into grad.
func (o *Observation) accumulate(x []float64, grad []float64) (float64, error) {
	d, err := newDensity(o.Dist, 0, o.Sigma, 0, 0)
	if err != nil {
		return 0, err
	}

	broadcast := len(x) == 1
	if !broadcast && len(x) != len(o.Values) {
		return 0, errors.Errorf("Observation %s has %d values but %s has %d elements", o.Name, len(o.Values), o.Of, len(x))
	}

	logProb := 0.0
	for i, y := range o.Values {
		k := i
		if broadcast {
			k = 0
		}
		at := d.at(x[k])
		logProb += at.logProb(y)
		// location family: d/dloc log f(y - loc) = -d/dy log f(y - loc)
		grad[k] -= at.dLogProb(y)
	}

	return logProb, nil
}
