package model

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/gnuts/state"
)

// ErrUngradientable is returned (wrapped) when some latent variable has no
// differentiable path to the joint log probability.
var ErrUngradientable = errors.New("Ungradientable model")

// Graph is a probabilistic graph over continuous latent variables, as seen
// by a gradient-based sampler.
type Graph interface {
	// ContinuousLatentIDs is the ordered set of latent variable ids.
	ContinuousLatentIDs() []string

	// CurrentPosition is a snapshot of the current latent values. Its layout
	// gives the shape of every latent variable.
	CurrentPosition() (*state.Vector, error)

	// LogProbAndGradient evaluates the joint log probability and its
	// gradient with respect to every latent variable at pos. It must be
	// deterministic. Non-finite results are reported as values, not errors;
	// an error means the graph cannot be evaluated at all.
	LogProbAndGradient(pos *state.Vector) (float64, *state.Vector, error)

	// CascadeObservations propagates observed values through the graph. It
	// is called once before sampling starts.
	CascadeObservations() error
}
