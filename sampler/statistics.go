package sampler

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metric names a per-transition quantity kept by Statistics
type Metric int

// Recorded metrics
const (
	MetricStepSize Metric = iota
	MetricLogProb
	MetricMeanTreeAccept
	MetricTreeSize
	MetricTreeDepth
)

// Metrics lists every metric in recording order
var Metrics = []Metric{MetricStepSize, MetricLogProb, MetricMeanTreeAccept, MetricTreeSize, MetricTreeDepth}

func (m Metric) String() string {
	switch m {
	case MetricStepSize:
		return "step_size"
	case MetricLogProb:
		return "log_prob"
	case MetricMeanTreeAccept:
		return "mean_tree_accept"
	case MetricTreeSize:
		return "tree_size"
	case MetricTreeDepth:
		return "tree_depth"
	}
	return "unknown"
}

// Statistics keeps one trace per Metric plus termination counts
type Statistics struct {
	traces map[Metric][]float64

	Transitions       int // Transitions observed
	Divergences       int // Transitions ended by a divergence
	MaxTreeHeightHits int // Transitions ended by the tree height limit
}

// NewStatistics returns empty statistics
func NewStatistics() *Statistics {
	return &Statistics{
		traces: make(map[Metric][]float64),
	}
}

// Record appends a value to a metric's trace
func (s *Statistics) Record(m Metric, v float64) {
	s.traces[m] = append(s.traces[m], v)
}

// Get returns a copy of a metric's trace
func (s *Statistics) Get(m Metric) []float64 {
	return append([]float64(nil), s.traces[m]...)
}

// Mean of a metric's trace, NaN when nothing was recorded
func (s *Statistics) Mean(m Metric) float64 {
	tr := s.traces[m]
	if len(tr) < 1 {
		return math.NaN()
	}
	return stat.Mean(tr, nil)
}

// DivergenceRate is the fraction of transitions that diverged
func (s *Statistics) DivergenceRate() float64 {
	if s.Transitions < 1 {
		return 0
	}
	return float64(s.Divergences) / float64(s.Transitions)
}

// Count updates the termination counters for one transition
func (s *Statistics) Count(d Diagnostics) {
	s.Transitions++
	switch d.Termination {
	case Divergence:
		s.Divergences++
	case MaxTreeHeight:
		s.MaxTreeHeightHits++
	}
}

// Observe counts one transition and records every metric for it
func (s *Statistics) Observe(logProb float64, d Diagnostics) {
	s.Count(d)
	s.Record(MetricStepSize, d.StepSize)
	s.Record(MetricLogProb, logProb)
	s.Record(MetricMeanTreeAccept, d.MeanAcceptProb)
	s.Record(MetricTreeSize, float64(d.TreeSize))
	s.Record(MetricTreeDepth, float64(d.TreeDepth))
}
