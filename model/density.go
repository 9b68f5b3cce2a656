package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution names understood in model files
const (
	NORMAL  = "normal"
	LAPLACE = "laplace"
	CAUCHY  = "cauchy"
	UNIFORM = "uniform"
)

// density is a univariate log density with its derivative. Location
// families (normal, laplace, cauchy) use loc and scale, uniform uses low and
// high.
type density struct {
	dist  string
	loc   float64
	scale float64
	low   float64
	high  float64
}

func newDensity(dist string, loc, scale, low, high float64) (density, error) {
	d := density{dist: dist, loc: loc, scale: scale, low: low, high: high}
	switch dist {
	case NORMAL, LAPLACE, CAUCHY:
		if !(scale > 0) || math.IsInf(scale, 0) {
			return d, errors.Errorf("Distribution %s needs a positive finite scale, got %v", dist, scale)
		}
	case UNIFORM:
		if !(high > low) || math.IsInf(low, 0) || math.IsInf(high, 0) {
			return d, errors.Errorf("Distribution %s needs finite low < high, got [%v, %v]", dist, low, high)
		}
	default:
		return d, errors.Errorf("Unknown distribution %s", dist)
	}
	return d, nil
}

// at returns a copy of a location family density moved to loc
func (d density) at(loc float64) density {
	d.loc = loc
	return d
}

func (d density) isLocationFamily() bool {
	return d.dist != UNIFORM
}

func (d density) logProb(x float64) float64 {
	switch d.dist {
	case NORMAL:
		return distuv.Normal{Mu: d.loc, Sigma: d.scale}.LogProb(x)
	case LAPLACE:
		return distuv.Laplace{Mu: d.loc, Scale: d.scale}.LogProb(x)
	case CAUCHY:
		return distuv.StudentsT{Mu: d.loc, Sigma: d.scale, Nu: 1}.LogProb(x)
	case UNIFORM:
		return distuv.Uniform{Min: d.low, Max: d.high}.LogProb(x)
	}
	return math.NaN()
}

// dLogProb is d/dx of logProb
func (d density) dLogProb(x float64) float64 {
	z := x - d.loc
	switch d.dist {
	case NORMAL:
		return -z / (d.scale * d.scale)
	case LAPLACE:
		switch {
		case z > 0:
			return -1 / d.scale
		case z < 0:
			return 1 / d.scale
		}
		return 0
	case CAUCHY:
		return -2 * z / (d.scale*d.scale + z*z)
	case UNIFORM:
		// flat inside the support, the log density is -Inf outside
		if math.IsNaN(x) {
			return x
		}
		return 0
	}
	return math.NaN()
}
