package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gnuts/model"
	"github.com/CraigKelly/gnuts/rand"
	"github.com/CraigKelly/gnuts/state"
)

// Dual averaging constants from Hoffman and Gelman (2014)
const (
	DefaultGamma = 0.05
	DefaultT0    = 10.0
	DefaultKappa = 0.75
)

// maxStepSizeSearch bounds the doubling/halving in FindStartingStepSize
const maxStepSizeSearch = 100

// Stepsize tunes the leapfrog step size by dual averaging toward a target
// acceptance probability during the first window transitions. After the
// window the step size is frozen at exp(logAverage).
type Stepsize struct {
	Gamma float64 // Shrinkage toward mu
	T0    float64 // Damps the early iterations
	Kappa float64 // Decay of the averaging weight

	start      float64
	current    float64
	logAverage float64
	hBar       float64
	mu         float64
	target     float64
	iteration  int
	window     int
}

// NewStepsize creates a step size adapter. A window of 0 never adapts.
func NewStepsize(start float64, target float64, window int) (*Stepsize, error) {
	if !(start > 0) || math.IsInf(start, 0) {
		return nil, errors.Wrapf(ErrInvalidConfig, "Step size must be positive and finite, got %v", start)
	}
	if !(target > 0 && target < 1) {
		return nil, errors.Wrapf(ErrInvalidConfig, "Target acceptance probability must be in (0,1), got %v", target)
	}
	if window < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "Adaptation window must be >= 0, got %d", window)
	}

	return &Stepsize{
		Gamma:   DefaultGamma,
		T0:      DefaultT0,
		Kappa:   DefaultKappa,
		start:   start,
		current: start,
		mu:      math.Log(10 * start),
		target:  target,
		window:  window,
	}, nil
}

// Current is the step size to use for the next transition
func (s *Stepsize) Current() float64 {
	return s.current
}

// Adapting is true while the adaptation window has not elapsed
func (s *Stepsize) Adapting() bool {
	return s.iteration < s.window
}

// Iteration is the number of adaptation updates made so far
func (s *Stepsize) Iteration() int {
	return s.iteration
}

// Adapt feeds the mean acceptance probability of a completed transition and
// returns the step size for the next one. Outside the window it does
// nothing.
func (s *Stepsize) Adapt(meanAcceptProb float64) float64 {
	if !s.Adapting() {
		return s.current
	}
	if math.IsNaN(meanAcceptProb) {
		meanAcceptProb = 0
	}

	s.iteration++
	t := float64(s.iteration)

	eta := 1 / (t + s.T0)
	s.hBar = (1-eta)*s.hBar + eta*(s.target-meanAcceptProb)

	logStepSize := s.mu - math.Sqrt(t)/s.Gamma*s.hBar
	w := math.Pow(t, -s.Kappa)
	s.logAverage = w*logStepSize + (1-w)*s.logAverage

	if s.iteration >= s.window {
		s.current = math.Exp(s.logAverage)
	} else {
		s.current = math.Exp(logStepSize)
	}

	return s.current
}

// FindStartingStepSize is the heuristic of Hoffman and Gelman (2014,
// algorithm 4): starting from 1, keep doubling (or halving) the step size
// until the acceptance ratio of a single leapfrog step from the start
// crosses 0.5.
func FindStartingStepSize(g model.Graph, position, gradient *state.Vector, logProb float64, gen *rand.Generator) (float64, error) {
	start := &Leapfrog{
		Position: position,
		Momentum: standardNormal(position.Layout(), gen),
		Gradient: gradient,
		LogProb:  logProb,
	}
	h0 := start.Hamiltonian()

	logRatio := func(eps float64) (float64, error) {
		next, _, err := start.Step(g, eps, 1)
		if err != nil {
			return 0, err
		}
		lr := h0 - next.Hamiltonian()
		if math.IsNaN(lr) {
			lr = math.Inf(-1)
		}
		return lr, nil
	}

	eps := 1.0
	lr, err := logRatio(eps)
	if err != nil {
		return 0, errors.Wrap(err, "Step size search failed")
	}

	a := -1.0
	if lr > -math.Ln2 {
		a = 1.0
	}

	for i := 0; i < maxStepSizeSearch && a*lr > -a*math.Ln2; i++ {
		eps *= math.Pow(2, a)
		lr, err = logRatio(eps)
		if err != nil {
			return 0, errors.Wrap(err, "Step size search failed")
		}
	}

	if !(eps > 0) || math.IsInf(eps, 0) {
		return 0, errors.Errorf("Step size search ended on unusable step size %v", eps)
	}
	return eps, nil
}

// standardNormal draws an independent N(0,1) per scalar of the layout
func standardNormal(l *state.Layout, gen *rand.Generator) *state.Vector {
	v := l.Zeros()
	raw := v.Raw()
	for i := range raw {
		raw[i] = gen.NormFloat64()
	}
	return v
}
