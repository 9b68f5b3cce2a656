package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gnuts/model"
	"github.com/CraigKelly/gnuts/state"
)

// Leapfrog is one point of a simulated Hamiltonian trajectory: position,
// momentum, the gradient of the log probability at position and the log
// probability itself. A Leapfrog is never modified after creation.
type Leapfrog struct {
	Position *state.Vector
	Momentum *state.Vector
	Gradient *state.Vector
	LogProb  float64
}

// Kinetic is the kinetic energy of the momentum (identity mass matrix)
func (l *Leapfrog) Kinetic() float64 {
	return 0.5 * state.Dot(l.Momentum, l.Momentum)
}

// Hamiltonian is the total energy: potential (negative log probability)
// plus kinetic energy
func (l *Leapfrog) Hamiltonian() float64 {
	return -l.LogProb + l.Kinetic()
}

// Step advances one leapfrog step of size eps forwards (dir > 0) or
// backwards (dir < 0) in time. The returned bool is true when the new state
// is not finite: that is a divergent step and not an error. An error means
// the graph could not be evaluated at all.
func (l *Leapfrog) Step(g model.Graph, eps float64, dir int) (*Leapfrog, bool, error) {
	signed := eps
	if dir < 0 {
		signed = -eps
	}

	halfMomentum := l.Momentum.AddScaled(0.5*signed, l.Gradient)
	position := l.Position.AddScaled(signed, halfMomentum)

	logProb, gradient, err := g.LogProbAndGradient(position)
	if err != nil {
		return nil, false, errors.Wrap(err, "Could not evaluate graph during leapfrog step")
	}
	if gradient == nil || !gradient.Layout().Equal(position.Layout()) {
		return nil, false, errors.New("Graph returned a gradient that does not match the position")
	}

	momentum := halfMomentum.AddScaled(0.5*signed, gradient)

	next := &Leapfrog{
		Position: position,
		Momentum: momentum,
		Gradient: gradient,
		LogProb:  logProb,
	}

	divergent := math.IsNaN(logProb) || math.IsInf(logProb, 0) || !gradient.IsFinite() || !momentum.IsFinite()
	return next, divergent, nil
}
