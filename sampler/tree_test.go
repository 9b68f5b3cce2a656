package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CraigKelly/gnuts/rand"
	"github.com/CraigKelly/gnuts/state"
)

func TestUTurnSymmetry(t *testing.T) {
	assert := assert.New(t)

	l, err := state.NewLayout([]string{"a", "b"}, [][]int{nil, {2}})
	require.NoError(t, err)
	vec := func(x ...float64) *state.Vector {
		v, err := l.FromSlice(x)
		require.NoError(t, err)
		return v
	}
	lf := func(p *state.Vector) *Leapfrog {
		return &Leapfrog{Position: l.Zeros(), Momentum: p, Gradient: l.Zeros()}
	}

	gen, err := rand.NewGenerator(7)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		left := vec(gen.NormFloat64(), gen.NormFloat64(), gen.NormFloat64())
		right := vec(gen.NormFloat64(), gen.NormFloat64(), gen.NormFloat64())
		rho := left.Add(right).Add(vec(gen.NormFloat64(), gen.NormFloat64(), gen.NormFloat64()))

		forward := isUTurn(lf(left), lf(right), rho)
		swapped := isUTurn(lf(right), lf(left), rho)
		reversed := isUTurn(lf(right.Scale(-1)), lf(left.Scale(-1)), rho.Scale(-1))

		assert.Equal(forward, swapped)
		assert.Equal(forward, reversed)
	}

	// Momenta all aligned: no U-turn. Opposed: U-turn.
	p := vec(1, 2, 3)
	assert.False(isUTurn(lf(p), lf(p), p.Scale(2)))
	assert.True(isUTurn(lf(p), lf(p.Scale(-1)), p.Scale(3)))
}

func testBuilder(t *testing.T, g *gaussianGraph, eps float64) (*treeBuilder, *Leapfrog) {
	start := startLeapfrog(t, g, 1.0)
	gen, err := rand.NewGenerator(42)
	require.NoError(t, err)
	return &treeBuilder{
		graph:               g,
		gen:                 gen,
		stepSize:            eps,
		h0:                  start.Hamiltonian(),
		divergenceThreshold: 1000,
	}, start
}

func TestBuildTreeSize(t *testing.T) {
	assert := assert.New(t)

	g := newGaussianGraph(t, 0.0)
	for depth := 0; depth < 6; depth++ {
		b, start := testBuilder(t, g, 0.01)
		tr, err := b.build(start, 1, depth)
		require.NoError(t, err)
		assert.True(tr.leaves >= 1 && tr.leaves <= 1<<uint(depth))
		assert.True(tr.meanAcceptProb() >= 0 && tr.meanAcceptProb() <= 1)
		// Tiny steps on a smooth target go a long way before turning
		if tr.continueBuilding {
			assert.Equal(1<<uint(depth), tr.leaves)
		}
	}
}

func TestBuildTreeDirection(t *testing.T) {
	assert := assert.New(t)

	g := newGaussianGraph(t, 0.0)
	b, start := testBuilder(t, g, 0.1)

	fwd, err := b.build(start, 1, 2)
	require.NoError(t, err)
	assert.Equal(4, fwd.leaves)
	assert.True(fwd.rightmost.Position.Raw()[0] > fwd.leftmost.Position.Raw()[0])
	assert.InDelta(0.1, fwd.leftmost.Position.Raw()[0], 0.01)

	back, err := b.build(start, -1, 2)
	require.NoError(t, err)
	assert.True(back.rightmost.Position.Raw()[0] < 0)
	assert.True(back.leftmost.Position.Raw()[0] < back.rightmost.Position.Raw()[0])

	// Joining a backward subtree keeps the old tree on the right
	root := newRootTree(start)
	joined := b.combine(root, back, -1, true)
	assert.Equal(start, joined.rightmost)
	assert.Equal(back.leftmost, joined.leftmost)
	assert.Equal(4, joined.leaves)
}

func TestBuildTreeUTurn(t *testing.T) {
	assert := assert.New(t)

	// Big steps on a unit gaussian come back around quickly
	g := newGaussianGraph(t, 0.0)
	b, start := testBuilder(t, g, 0.9)
	tr, err := b.build(start, 1, 6)
	require.NoError(t, err)
	assert.False(tr.continueBuilding)
	assert.True(tr.uturn)
	assert.False(tr.divergent)
	assert.True(tr.leaves < 64)
}

func TestBuildTreeDivergent(t *testing.T) {
	assert := assert.New(t)

	g := newGaussianGraph(t, 0.0)
	b, start := testBuilder(t, g, 0.1)
	b.divergenceThreshold = 1e-12

	tr, err := b.build(start, 1, 3)
	require.NoError(t, err)
	assert.True(tr.divergent)
	assert.False(tr.continueBuilding)
	assert.Equal(1, tr.leaves)
	assert.True(math.IsInf(tr.logWeight, -1))

	// A divergent subtree is never chosen
	root := newRootTree(start)
	joined := b.combine(root, tr, 1, true)
	assert.Equal(start, joined.candidate)
	assert.False(joined.continueBuilding)
}

func TestCombineSelection(t *testing.T) {
	assert := assert.New(t)

	g := newGaussianGraph(t, 0.0)
	b, start := testBuilder(t, g, 0.1)

	// A heavier second half always wins at the top level but only some of
	// the time inside a subtree.
	heavier := func() *tree {
		leaf, err := b.leaf(start, 1)
		require.NoError(t, err)
		leaf.logWeight = 0.5
		return leaf
	}

	const trials = 2000
	biasedHits, subtreeHits := 0, 0
	for i := 0; i < trials; i++ {
		second := heavier()
		if b.combine(newRootTree(start), second, 1, true).candidate == second.candidate {
			biasedHits++
		}
		second = heavier()
		if b.combine(newRootTree(start), second, 1, false).candidate == second.candidate {
			subtreeHits++
		}
	}
	assert.Equal(trials, biasedHits)
	want := math.Exp(0.5) / (1 + math.Exp(0.5))
	assert.InDelta(want, float64(subtreeHits)/trials, 0.05)

	// A lighter second half is taken with probability w2/w1 at the top level
	lighterHits := 0
	for i := 0; i < trials; i++ {
		second := heavier()
		second.logWeight = math.Log(0.25)
		if b.combine(newRootTree(start), second, 1, true).candidate == second.candidate {
			lighterHits++
		}
	}
	assert.InDelta(0.25, float64(lighterHits)/trials, 0.05)
}
