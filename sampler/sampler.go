package sampler

import (
	"github.com/CraigKelly/gnuts/state"
)

// A Sampler produces the successive states of a Markov chain
type Sampler interface {
	NextSample() (*Sample, error)
}

// Termination says why a NUTS trajectory stopped growing
type Termination int

// Ways a trajectory can end
const (
	UTurn Termination = iota
	Divergence
	MaxTreeHeight
)

func (t Termination) String() string {
	switch t {
	case UTurn:
		return "u-turn"
	case Divergence:
		return "divergence"
	case MaxTreeHeight:
		return "max-tree-height"
	}
	return "unknown"
}

// Diagnostics describes a single transition
type Diagnostics struct {
	StepSize       float64     // Step size used for the transition
	TreeDepth      int         // Doublings completed when the trajectory stopped
	TreeSize       int         // Leapfrog steps taken
	MeanAcceptProb float64     // Mean acceptance probability over the trajectory
	LogProb        float64     // Log probability of the chosen state
	Divergent      bool        // Some leapfrog step diverged
	Adapting       bool        // The step size was still being tuned
	Termination    Termination // Why the trajectory stopped
}

// Sample is one state of the chain. Values only holds the latent variables
// selected for sampling; Position always holds all of them.
type Sample struct {
	Position    *state.Vector
	Values      map[string][]float64
	LogProb     float64
	Diagnostics Diagnostics
}
