package sampler

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/CraigKelly/gnuts/state"
)

// gaussianGraph is an independent N(mean, sd^2) over every scalar of "x"
type gaussianGraph struct {
	layout   *state.Layout
	mean     float64
	sd       float64
	start    []float64
	cascaded bool
	evals    int
	failAt   int // error on this evaluation, 0 = never
}

func newGaussianGraph(t testing.TB, start ...float64) *gaussianGraph {
	var shape []int
	if len(start) > 1 {
		shape = []int{len(start)}
	}
	l, err := state.NewLayout([]string{"x"}, [][]int{shape})
	require.NoError(t, err)
	return &gaussianGraph{layout: l, mean: 0, sd: 1, start: start}
}

func (g *gaussianGraph) ContinuousLatentIDs() []string { return g.layout.IDs() }

func (g *gaussianGraph) CurrentPosition() (*state.Vector, error) {
	return g.layout.FromSlice(g.start)
}

func (g *gaussianGraph) CascadeObservations() error {
	g.cascaded = true
	return nil
}

func (g *gaussianGraph) LogProbAndGradient(pos *state.Vector) (float64, *state.Vector, error) {
	g.evals++
	if g.failAt > 0 && g.evals >= g.failAt {
		return 0, nil, errors.New("graph exploded")
	}

	grad := g.layout.Zeros()
	gr := grad.Raw()
	lp := 0.0
	for i, x := range pos.Raw() {
		z := (x - g.mean) / g.sd
		lp += -0.5*z*z - math.Log(g.sd) - 0.5*math.Log(2*math.Pi)
		gr[i] = -z / g.sd
	}
	return lp, grad, nil
}

// nanGraph has a finite log probability but a NaN gradient everywhere
type nanGraph struct {
	gaussianGraph
}

func (g *nanGraph) LogProbAndGradient(pos *state.Vector) (float64, *state.Vector, error) {
	grad := g.layout.Zeros()
	for i := range grad.Raw() {
		grad.Raw()[i] = math.NaN()
	}
	return -1, grad, nil
}

// emptyGraph has no latent variables at all
type emptyGraph struct{}

func (emptyGraph) ContinuousLatentIDs() []string { return nil }
func (emptyGraph) CurrentPosition() (*state.Vector, error) {
	return nil, errors.New("no position")
}
func (emptyGraph) LogProbAndGradient(pos *state.Vector) (float64, *state.Vector, error) {
	return 0, nil, errors.New("no position")
}
func (emptyGraph) CascadeObservations() error { return nil }
