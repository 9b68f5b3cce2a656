package sampler

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CraigKelly/gnuts/state"
)

// scriptSampler replays a fixed list of positions
type scriptSampler struct {
	layout *state.Layout
	values [][]float64
	next   int
}

func (s *scriptSampler) NextSample() (*Sample, error) {
	if s.next >= len(s.values) {
		return nil, errors.New("script exhausted")
	}
	pos, err := s.layout.FromSlice(s.values[s.next])
	if err != nil {
		return nil, err
	}
	s.next++
	return &Sample{
		Position: pos,
		Values:   pos.Map(),
		LogProb:  -float64(s.next),
	}, nil
}

func newScript(t *testing.T, n int) *scriptSampler {
	l, err := state.NewLayout([]string{"a", "b"}, [][]int{nil, {2}})
	require.NoError(t, err)
	vals := make([][]float64, n)
	for i := range vals {
		x := float64(i)
		vals[i] = []float64{x, 10 + x, -x}
	}
	return &scriptSampler{layout: l, values: vals}
}

func TestChainBurnIn(t *testing.T) {
	assert := assert.New(t)

	_, err := NewChain(nil, 10, 0)
	assert.Error(err)

	s := newScript(t, 20)
	_, err = NewChain(s, 10, -1)
	assert.Error(err)

	ch, err := NewChain(s, 10, 5)
	require.NoError(t, err)
	assert.NotEqual(uuid.Nil, ch.ID)
	assert.Equal(5, s.next)
	assert.Equal(int64(0), ch.TotalSampleCount)
	assert.Empty(ch.Names())

	// Burn in failing is an error
	_, err = NewChain(newScript(t, 3), 10, 5)
	assert.Error(err)

	other, err := NewChain(newScript(t, 1), 10, 0)
	require.NoError(t, err)
	assert.NotEqual(ch.ID, other.ID)
}

func TestChainGenerate(t *testing.T) {
	assert := assert.New(t)

	s := newScript(t, 30)
	ch, err := NewChain(s, 4, 2)
	require.NoError(t, err)

	var calls, lastDone, lastTotal int
	ch.Progress = func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	}

	samples, err := ch.Generate(10, 3)
	require.NoError(t, err)
	assert.Equal(10, calls)
	assert.Equal(10, lastDone)
	assert.Equal(10, lastTotal)
	assert.Equal(int64(10), ch.TotalSampleCount)

	// Draws 2..11 were made, keeping 2, 5, 8, 11
	assert.Equal(4, samples.Len())
	a, err := samples.Scalar("a", 0)
	require.NoError(t, err)
	assert.Equal([]float64{2, 5, 8, 11}, a)
	assert.Equal([]string{"a", "b[0]", "b[1]"}, ch.Names())
	assert.Equal(11.0, ch.LastSample.Values["a"][0])

	_, err = ch.Generate(-1, 1)
	assert.Error(err)

	// Running out of samples fails
	_, err = ch.Generate(100, 1)
	assert.Error(err)
}

func TestChainConvergence(t *testing.T) {
	assert := assert.New(t)

	ch, err := NewChain(newScript(t, 30), 4, 0)
	require.NoError(t, err)

	_, err = ch.Convergence()
	assert.Error(err)

	_, err = ch.Generate(3, 1)
	require.NoError(t, err)
	_, err = ch.Convergence()
	assert.Error(err)

	// Window holds draws 2..5: halves [2,3] and [4,5]
	_, err = ch.Generate(3, 1)
	require.NoError(t, err)
	z, err := ch.Convergence()
	require.NoError(t, err)
	assert.Len(z, 3)

	se := math.Sqrt(0.5/2 + 0.5/2)
	assert.InDelta((2.5-4.5)/se, z["a"], 1e-9)
	assert.InDelta((12.5-14.5)/se, z["b[0]"], 1e-9)
	assert.InDelta((-2.5+4.5)/se, z["b[1]"], 1e-9)
}

func TestChainConvergenceFlat(t *testing.T) {
	l, err := state.NewLayout([]string{"c"}, [][]int{nil})
	require.NoError(t, err)
	s := &scriptSampler{layout: l, values: [][]float64{{1}, {1}, {1}, {1}}}

	ch, err := NewChain(s, 4, 0)
	require.NoError(t, err)
	_, err = ch.Generate(4, 1)
	require.NoError(t, err)

	z, err := ch.Convergence()
	require.NoError(t, err)
	assert.Equal(t, 0.0, z["c"])
}
