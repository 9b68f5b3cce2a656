package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDensityValues(t *testing.T) {
	assert := assert.New(t)
	const eps = 1e-10

	d, err := newDensity(NORMAL, 1, 2, 0, 0)
	assert.NoError(err)
	assert.InDelta(-0.5*math.Log(2*math.Pi)-math.Log(2)-0.125, d.logProb(2), eps)

	d, err = newDensity(LAPLACE, 0, 2, 0, 0)
	assert.NoError(err)
	assert.InDelta(-math.Log(4)-1.5, d.logProb(-3), eps)

	d, err = newDensity(CAUCHY, 0, 1, 0, 0)
	assert.NoError(err)
	assert.InDelta(-math.Log(math.Pi*2), d.logProb(1), eps)

	d, err = newDensity(UNIFORM, 0, 0, -1, 3)
	assert.NoError(err)
	assert.InDelta(-math.Log(4), d.logProb(0), eps)
	assert.True(math.IsInf(d.logProb(5), -1))
	assert.Equal(0.0, d.dLogProb(2))
	assert.True(math.IsNaN(d.dLogProb(math.NaN())))

	_, err = newDensity("gamma", 0, 1, 0, 0)
	assert.Error(err)
	_, err = newDensity(NORMAL, 0, -1, 0, 0)
	assert.Error(err)
	_, err = newDensity(CAUCHY, 0, math.Inf(1), 0, 0)
	assert.Error(err)
	_, err = newDensity(UNIFORM, 0, 0, 2, 1)
	assert.Error(err)
}

// Analytic derivatives must agree with central finite differences
func TestDensityGradients(t *testing.T) {
	assert := assert.New(t)
	const h = 1e-6

	dists := []density{
		{dist: NORMAL, loc: 0.5, scale: 1.5},
		{dist: LAPLACE, loc: -1, scale: 0.7},
		{dist: CAUCHY, loc: 2, scale: 0.3},
		{dist: UNIFORM, low: -10, high: 10},
	}

	for _, d := range dists {
		for _, x := range []float64{-2.3, -0.4, 0.9, 3.1} {
			fd := (d.logProb(x+h) - d.logProb(x-h)) / (2 * h)
			assert.InDelta(fd, d.dLogProb(x), 1e-5, "%s at %v", d.dist, x)
		}
	}
}
