package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/gnuts/model"
)

// Samples stores the kept samples of a chain: one trace per latent id (each
// entry the flattened value at that sample) plus the log probabilities.
type Samples struct {
	ids      []string
	shapes   map[string][]int
	traces   map[string][][]float64
	logProbs []float64
}

// NewSamples returns an empty store. The ids are fixed by the first Add.
func NewSamples() *Samples {
	return &Samples{
		shapes: make(map[string][]int),
		traces: make(map[string][][]float64),
	}
}

// Add appends a sample
func (s *Samples) Add(sample *Sample) error {
	if s.ids == nil {
		layout := sample.Position.Layout()
		s.ids = []string{}
		for _, id := range layout.IDs() {
			if _, ok := sample.Values[id]; ok {
				s.ids = append(s.ids, id)
				s.shapes[id] = layout.Shape(id)
			}
		}
	}

	if len(sample.Values) != len(s.ids) {
		return errors.Errorf("Sample has %d variables, expected %d", len(sample.Values), len(s.ids))
	}
	for _, id := range s.ids {
		vals, ok := sample.Values[id]
		if !ok {
			return errors.Errorf("Sample is missing variable %s", id)
		}
		s.traces[id] = append(s.traces[id], append([]float64(nil), vals...))
	}
	s.logProbs = append(s.logProbs, sample.LogProb)
	return nil
}

// Len is the number of samples stored
func (s *Samples) Len() int {
	return len(s.logProbs)
}

// IDs returns the sampled ids in layout order
func (s *Samples) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Shape returns the shape of a sampled id
func (s *Samples) Shape(id string) []int {
	return append([]int(nil), s.shapes[id]...)
}

// Get returns the trace for an id: one flattened value per sample
func (s *Samples) Get(id string) [][]float64 {
	return s.traces[id]
}

// Scalar returns the trace of a single element of an id
func (s *Samples) Scalar(id string, index int) ([]float64, error) {
	tr, ok := s.traces[id]
	if !ok {
		return nil, errors.Errorf("Unknown variable %s", id)
	}
	out := make([]float64, len(tr))
	for i, vals := range tr {
		if index < 0 || index >= len(vals) {
			return nil, errors.Errorf("Index %d out of range for %s (size %d)", index, id, len(vals))
		}
		out[i] = vals[index]
	}
	return out, nil
}

// LogProbs returns the log probability trace
func (s *Samples) LogProbs() []float64 {
	return s.logProbs
}

// subset builds a new store from the sample indexes keep returns true for
func (s *Samples) subset(keep func(i int) bool) *Samples {
	out := NewSamples()
	out.ids = append([]string{}, s.ids...)
	for id, sh := range s.shapes {
		out.shapes[id] = sh
	}
	for i := range s.logProbs {
		if !keep(i) {
			continue
		}
		for _, id := range s.ids {
			out.traces[id] = append(out.traces[id], s.traces[id][i])
		}
		out.logProbs = append(out.logProbs, s.logProbs[i])
	}
	return out
}

// Drop returns the samples without the first n
func (s *Samples) Drop(n int) *Samples {
	return s.subset(func(i int) bool { return i >= n })
}

// DownSample keeps every interval-th sample, starting with the first
func (s *Samples) DownSample(interval int) *Samples {
	if interval < 1 {
		interval = 1
	}
	return s.subset(func(i int) bool { return i%interval == 0 })
}

// column gathers element k of id across all samples
func (s *Samples) column(id string, k int) []float64 {
	tr := s.traces[id]
	col := make([]float64, len(tr))
	for i, vals := range tr {
		col[i] = vals[k]
	}
	return col
}

func (s *Samples) reduce(id string, f func([]float64) float64) []float64 {
	tr := s.traces[id]
	if len(tr) < 1 {
		return nil
	}
	out := make([]float64, len(tr[0]))
	for k := range out {
		out[k] = f(s.column(id, k))
	}
	return out
}

// Mean returns the per-element sample mean of an id
func (s *Samples) Mean(id string) []float64 {
	return s.reduce(id, func(x []float64) float64 { return stat.Mean(x, nil) })
}

// StdDev returns the per-element sample standard deviation of an id
func (s *Samples) StdDev(id string) []float64 {
	return s.reduce(id, func(x []float64) float64 { return stat.StdDev(x, nil) })
}

// Summary returns the marginal mean/sd of every sampled id, ready to score
// against a model.Solution
func (s *Samples) Summary() []*model.SolutionVar {
	out := make([]*model.SolutionVar, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, &model.SolutionVar{
			ID:   id,
			Mean: s.Mean(id),
			SD:   s.StdDev(id),
		})
	}
	return out
}

// DefaultMaxLag is the default autocorrelation lag for n samples:
// min(floor(10*log10(n)), n-1)
func DefaultMaxLag(n int) int {
	if n < 2 {
		return 0
	}
	// the epsilon keeps exact powers of ten from rounding down
	lag := int(math.Floor(10*math.Log10(float64(n)) + 1e-9))
	if lag > n-1 {
		lag = n - 1
	}
	return lag
}

// Autocorrelation returns the sample autocorrelation of one element of an id
// for lags 0 through nlags. A non-positive nlags uses DefaultMaxLag.
func (s *Samples) Autocorrelation(id string, index int, nlags int) ([]float64, error) {
	x, err := s.Scalar(id, index)
	if err != nil {
		return nil, err
	}
	return Autocorrelation(x, nlags)
}

// Autocorrelation of a series for lags 0 through nlags
func Autocorrelation(x []float64, nlags int) ([]float64, error) {
	n := len(x)
	if n < 2 {
		return nil, errors.Errorf("At least 2 values are required for autocorrelation, got %d", n)
	}
	if nlags <= 0 {
		nlags = DefaultMaxLag(n)
	}
	if nlags > n-1 {
		return nil, errors.Errorf("Lag %d is too large for %d values", nlags, n)
	}

	mean := stat.Mean(x, nil)
	denom := 0.0
	for _, v := range x {
		denom += (v - mean) * (v - mean)
	}

	acf := make([]float64, nlags+1)
	if denom == 0 {
		for k := range acf {
			acf[k] = math.NaN()
		}
		return acf, nil
	}

	for k := range acf {
		sum := 0.0
		for t := 0; t+k < n; t++ {
			sum += (x[t] - mean) * (x[t+k] - mean)
		}
		acf[k] = sum / denom
	}
	return acf, nil
}
