package sampler

import (
	"io"
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gnuts/model"
	"github.com/CraigKelly/gnuts/rand"
	"github.com/CraigKelly/gnuts/state"
)

// ErrInvalidConfig is returned (wrapped) for any configuration problem found
// while creating a sampler.
var ErrInvalidConfig = errors.New("Invalid sampler configuration")

// Config controls a NUTS sampler
type Config struct {
	AdaptCount          int          `yaml:"adapt_count"`          // Transitions spent tuning the step size
	TargetAcceptProb    float64      `yaml:"target_accept_prob"`   // Dual averaging target, in (0,1)
	MaxTreeHeight       int          `yaml:"max_tree_height"`      // Max doublings per transition
	InitialStepSize     float64      `yaml:"initial_step_size"`    // 0 means find one heuristically
	AdaptEnabled        bool         `yaml:"adapt_enabled"`        // Tune the step size at all
	SaveStatistics      bool         `yaml:"save_statistics"`      // Keep per-transition metric traces
	DivergenceThreshold float64      `yaml:"divergence_threshold"` // Energy error that counts as divergent
	SampleFrom          []string     `yaml:"sample_from"`          // Latent ids reported in samples; empty = all
	Logger              *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the standard NUTS settings
func DefaultConfig() Config {
	return Config{
		AdaptCount:          1000,
		TargetAcceptProb:    0.65,
		MaxTreeHeight:       10,
		InitialStepSize:     0,
		AdaptEnabled:        true,
		SaveStatistics:      false,
		DivergenceThreshold: 1000,
	}
}

// Validate checks everything that does not need the graph
func (c Config) Validate() error {
	if c.AdaptCount < 0 {
		return errors.Wrapf(ErrInvalidConfig, "adapt count must be >= 0, got %d", c.AdaptCount)
	}
	if !(c.TargetAcceptProb > 0 && c.TargetAcceptProb < 1) {
		return errors.Wrapf(ErrInvalidConfig, "target accept prob must be in (0,1), got %v", c.TargetAcceptProb)
	}
	if c.MaxTreeHeight < 1 {
		return errors.Wrapf(ErrInvalidConfig, "max tree height must be >= 1, got %d", c.MaxTreeHeight)
	}
	if c.InitialStepSize < 0 || math.IsNaN(c.InitialStepSize) || math.IsInf(c.InitialStepSize, 0) {
		return errors.Wrapf(ErrInvalidConfig, "initial step size must be positive and finite (or 0), got %v", c.InitialStepSize)
	}
	if !(c.DivergenceThreshold > 0) {
		return errors.Wrapf(ErrInvalidConfig, "divergence threshold must be positive, got %v", c.DivergenceThreshold)
	}
	return nil
}

// NUTS is a No-U-Turn sampler over the continuous latent variables of a
// graph. Each NUTS owns its generator and is not safe for concurrent use.
type NUTS struct {
	graph    model.Graph
	gen      *rand.Generator
	cfg      Config
	logger   *slog.Logger
	stepsize *Stepsize
	stats    *Statistics

	sampleFrom []string

	position *state.Vector
	gradient *state.Vector
	logProb  float64
}

// NewNUTS prepares a sampler starting at the graph's current position
func NewNUTS(g model.Graph, gen *rand.Generator, cfg Config) (*NUTS, error) {
	if g == nil {
		return nil, errors.New("A graph is required for NUTS")
	}
	if gen == nil {
		return nil, errors.New("A generator is required for NUTS")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := g.CascadeObservations(); err != nil {
		return nil, errors.Wrap(err, "Could not cascade observations")
	}

	ids := g.ContinuousLatentIDs()
	if len(ids) < 1 {
		return nil, errors.Wrap(ErrInvalidConfig, "graph has no continuous latent variables")
	}

	position, err := g.CurrentPosition()
	if err != nil {
		return nil, errors.Wrap(err, "Could not read the starting position")
	}
	layout := position.Layout()

	sampleFrom := ids
	if len(cfg.SampleFrom) > 0 {
		for _, id := range cfg.SampleFrom {
			if !layout.Has(id) {
				return nil, errors.Wrapf(ErrInvalidConfig, "unknown sample-from id %s", id)
			}
		}
		sampleFrom = append([]string(nil), cfg.SampleFrom...)
	}

	logProb, gradient, err := g.LogProbAndGradient(position)
	if err != nil {
		return nil, errors.Wrap(err, "Could not evaluate the starting position")
	}

	start := cfg.InitialStepSize
	if start == 0 {
		start, err = FindStartingStepSize(g, position, gradient, logProb, gen)
		if err != nil {
			return nil, err
		}
		logger.Debug("Found starting step size", "step_size", start)
	}

	window := 0
	if cfg.AdaptEnabled {
		window = cfg.AdaptCount
	}
	stepsize, err := NewStepsize(start, cfg.TargetAcceptProb, window)
	if err != nil {
		return nil, err
	}

	return &NUTS{
		graph:      g,
		gen:        gen,
		cfg:        cfg,
		logger:     logger,
		stepsize:   stepsize,
		stats:      NewStatistics(),
		sampleFrom: sampleFrom,
		position:   position,
		gradient:   gradient,
		logProb:    logProb,
	}, nil
}

// StepSize is the step size the next transition will use
func (n *NUTS) StepSize() float64 {
	return n.stepsize.Current()
}

// Adapting is true while the step size is still being tuned
func (n *NUTS) Adapting() bool {
	return n.stepsize.Adapting()
}

// Statistics returns the sampler's statistics. Metric traces are only
// present when SaveStatistics is set; counters are always kept.
func (n *NUTS) Statistics() *Statistics {
	return n.stats
}

// NextSample implements Sampler: one NUTS transition
func (n *NUTS) NextSample() (*Sample, error) {
	eps := n.stepsize.Current()

	start := &Leapfrog{
		Position: n.position,
		Momentum: standardNormal(n.position.Layout(), n.gen),
		Gradient: n.gradient,
		LogProb:  n.logProb,
	}

	b := &treeBuilder{
		graph:               n.graph,
		gen:                 n.gen,
		stepSize:            eps,
		h0:                  start.Hamiltonian(),
		divergenceThreshold: n.cfg.DivergenceThreshold,
	}

	t := newRootTree(start)
	if math.IsNaN(b.h0) || math.IsInf(b.h0, 0) || !start.Gradient.IsFinite() {
		t.continueBuilding = false
		t.divergent = true
	}

	depth := 0
	for t.continueBuilding && depth < n.cfg.MaxTreeHeight {
		dir := n.gen.Direction()
		sub, err := b.build(t.endpoint(dir), dir, depth)
		if err != nil {
			return nil, err
		}
		t = b.combine(t, sub, dir, true)
		depth++
	}

	d := Diagnostics{
		StepSize:       eps,
		TreeDepth:      depth,
		TreeSize:       t.leaves,
		MeanAcceptProb: t.meanAcceptProb(),
		LogProb:        t.candidate.LogProb,
		Divergent:      t.divergent,
		Adapting:       n.stepsize.Adapting(),
		Termination:    MaxTreeHeight,
	}
	switch {
	case t.divergent:
		d.Termination = Divergence
		n.logger.Debug("Divergent transition", "transition", n.stats.Transitions, "step_size", eps, "depth", depth)
	case t.uturn:
		d.Termination = UTurn
	default:
		n.logger.Debug("Tree height limit reached", "transition", n.stats.Transitions, "step_size", eps, "depth", depth)
	}

	n.position = t.candidate.Position
	n.gradient = t.candidate.Gradient
	n.logProb = t.candidate.LogProb

	n.stepsize.Adapt(d.MeanAcceptProb)

	if n.cfg.SaveStatistics {
		n.stats.Observe(n.logProb, d)
	} else {
		n.stats.Count(d)
	}

	values := make(map[string][]float64, len(n.sampleFrom))
	for _, id := range n.sampleFrom {
		values[id] = n.position.Get(id)
	}

	return &Sample{
		Position:    n.position,
		Values:      values,
		LogProb:     n.logProb,
		Diagnostics: d,
	}, nil
}
