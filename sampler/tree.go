package sampler

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/gnuts/model"
	"github.com/CraigKelly/gnuts/rand"
	"github.com/CraigKelly/gnuts/state"
)

// tree is a balanced binary trajectory of leapfrog states. Only the
// endpoints, the chosen candidate and running sums are kept.
type tree struct {
	leftmost  *Leapfrog
	rightmost *Leapfrog
	candidate *Leapfrog

	momentumSum *state.Vector
	logWeight   float64 // log of the summed (unnormalized) Boltzmann weights

	leaves        int
	sumAcceptProb float64

	continueBuilding bool
	divergent        bool
	uturn            bool
}

// newRootTree is the trajectory holding only the starting state
func newRootTree(start *Leapfrog) *tree {
	return &tree{
		leftmost:         start,
		rightmost:        start,
		candidate:        start,
		momentumSum:      start.Momentum,
		logWeight:        0,
		continueBuilding: true,
	}
}

// endpoint is the state to extend from when growing in direction dir
func (t *tree) endpoint(dir int) *Leapfrog {
	if dir > 0 {
		return t.rightmost
	}
	return t.leftmost
}

func (t *tree) meanAcceptProb() float64 {
	if t.leaves < 1 {
		return 0
	}
	return t.sumAcceptProb / float64(t.leaves)
}

// treeBuilder holds what stays fixed while one trajectory is built
type treeBuilder struct {
	graph               model.Graph
	gen                 *rand.Generator
	stepSize            float64
	h0                  float64
	divergenceThreshold float64
}

// build returns a subtree of 2^depth leapfrog steps starting from "from" and
// moving in direction dir. Building stops early on the first subtree that
// diverges or makes a U-turn.
func (b *treeBuilder) build(from *Leapfrog, dir int, depth int) (*tree, error) {
	if depth == 0 {
		return b.leaf(from, dir)
	}

	first, err := b.build(from, dir, depth-1)
	if err != nil {
		return nil, err
	}
	if !first.continueBuilding {
		return first, nil
	}

	second, err := b.build(first.endpoint(dir), dir, depth-1)
	if err != nil {
		return nil, err
	}

	return b.combine(first, second, dir, false), nil
}

// leaf takes a single leapfrog step
func (b *treeBuilder) leaf(from *Leapfrog, dir int) (*tree, error) {
	next, divergent, err := from.Step(b.graph, b.stepSize, dir)
	if err != nil {
		return nil, err
	}

	logRatio := b.h0 - next.Hamiltonian()
	if math.IsNaN(logRatio) || logRatio < -b.divergenceThreshold {
		divergent = true
	}

	acceptProb := 0.0
	if !math.IsNaN(logRatio) {
		acceptProb = math.Min(1, math.Exp(logRatio))
	}

	logWeight := logRatio
	if divergent {
		logWeight = math.Inf(-1)
	}

	return &tree{
		leftmost:         next,
		rightmost:        next,
		candidate:        next,
		momentumSum:      next.Momentum,
		logWeight:        logWeight,
		leaves:           1,
		sumAcceptProb:    acceptProb,
		continueBuilding: !divergent,
		divergent:        divergent,
	}, nil
}

// combine joins second onto first, where second was grown from first's
// endpoint in direction dir. Inside a subtree the candidate moves to
// second's candidate with probability w2/(w1+w2). When biased is set (the
// top level doubling) it moves with probability min(1, w2/w1), which favours
// the newer, more distant half (Betancourt 2017, appendix A.3.2). A second
// that stopped building is never chosen.
func (b *treeBuilder) combine(first, second *tree, dir int, biased bool) *tree {
	t := &tree{
		candidate:     first.candidate,
		momentumSum:   first.momentumSum.Add(second.momentumSum),
		logWeight:     floats.LogSumExp([]float64{first.logWeight, second.logWeight}),
		leaves:        first.leaves + second.leaves,
		sumAcceptProb: first.sumAcceptProb + second.sumAcceptProb,
		divergent:     first.divergent || second.divergent,
		uturn:         first.uturn || second.uturn,
	}

	if dir > 0 {
		t.leftmost, t.rightmost = first.leftmost, second.rightmost
	} else {
		t.leftmost, t.rightmost = second.leftmost, first.rightmost
	}

	if second.continueBuilding && !math.IsInf(second.logWeight, -1) {
		logAccept := second.logWeight - t.logWeight
		if biased {
			logAccept = second.logWeight - first.logWeight
		}
		if b.gen.Bernoulli(math.Exp(logAccept)) {
			t.candidate = second.candidate
		}
	}

	t.continueBuilding = first.continueBuilding && second.continueBuilding
	if t.continueBuilding && isUTurn(t.leftmost, t.rightmost, t.momentumSum) {
		t.uturn = true
		t.continueBuilding = false
	}

	return t
}

// isUTurn is the momentum-sum no-U-turn criterion: the trajectory has turned
// back when the summed momentum points against either endpoint's momentum.
func isUTurn(left, right *Leapfrog, momentumSum *state.Vector) bool {
	return state.Dot(momentumSum, right.Momentum) < 0 || state.Dot(momentumSum, left.Momentum) < 0
}
