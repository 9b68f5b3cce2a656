package sampler

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/gnuts/buffer"
	"github.com/CraigKelly/gnuts/model"
)

// Chain drives a Sampler: burn in, sample generation and a convergence window
// over every scalar being sampled.
type Chain struct {
	ID                uuid.UUID
	Sampler           Sampler
	ConvergenceWindow int
	ChainHistory      map[string]*buffer.CircularFloat // By element name, like "beta[0,1]"
	TotalSampleCount  int64
	LastSample        *Sample

	// Progress, if set, is called after every transition of Generate
	Progress func(done int, total int)

	names []string
}

// NewChain returns a chain ready to go. It even performs burnin: the burn in
// transitions are drawn and thrown away.
func NewChain(samp Sampler, cw int, burnIn int64) (*Chain, error) {
	if samp == nil {
		return nil, errors.New("A sampler is required for a chain")
	}
	if burnIn < 0 {
		return nil, errors.Errorf("Invalid burn in %d", burnIn)
	}

	ch := &Chain{
		ID:                uuid.New(),
		Sampler:           samp,
		ConvergenceWindow: cw,
		ChainHistory:      make(map[string]*buffer.CircularFloat),
	}

	for i := int64(0); i < burnIn; i++ {
		if _, err := ch.oneSample(false); err != nil {
			return nil, errors.Wrap(err, "Failure during chain burn in")
		}
	}

	return ch, nil
}

// Names returns the scalar element names tracked by the chain, in order.
// Empty until the first sample has been kept.
func (c *Chain) Names() []string {
	return append([]string(nil), c.names...)
}

// Generate draws n transitions and keeps every downSample-th one (a
// downSample below 2 keeps everything).
func (c *Chain) Generate(n int, downSample int) (*Samples, error) {
	if n < 0 {
		return nil, errors.Errorf("Invalid sample count %d", n)
	}
	if downSample < 1 {
		downSample = 1
	}

	samples := NewSamples()
	for i := 0; i < n; i++ {
		s, err := c.oneSample(true)
		if err != nil {
			return nil, errors.Wrapf(err, "Failure on sample %d", i)
		}
		if i%downSample == 0 {
			if err := samples.Add(s); err != nil {
				return nil, err
			}
		}
		if c.Progress != nil {
			c.Progress(i+1, n)
		}
	}

	return samples, nil
}

// Convergence returns a Geweke style z score per scalar: the difference of
// the means of the first and second halves of the convergence window over
// their combined standard error. Values near 0 suggest a stationary chain.
func (c *Chain) Convergence() (map[string]float64, error) {
	if len(c.names) < 1 {
		return nil, errors.New("No samples in the convergence window yet")
	}

	z := make(map[string]float64, len(c.names))
	for _, name := range c.names {
		hist := c.ChainHistory[name]
		if !hist.Full() {
			return nil, errors.Errorf("Convergence window not full: %d of %d", hist.Count, hist.BufSize)
		}

		first := hist.FirstHalf().Collect()
		second := hist.SecondHalf().Collect()
		m1, v1 := stat.MeanVariance(first, nil)
		m2, v2 := stat.MeanVariance(second, nil)

		se := math.Sqrt(v1/float64(len(first)) + v2/float64(len(second)))
		switch {
		case se > 0:
			z[name] = (m1 - m2) / se
		case m1 == m2:
			z[name] = 0
		default:
			z[name] = math.Inf(1)
		}
	}

	return z, nil
}

// track lazily sets up the history buffers from the first kept sample
func (c *Chain) track(s *Sample) {
	if c.names != nil {
		return
	}

	layout := s.Position.Layout()
	c.names = make([]string, 0, layout.Len())
	for _, id := range layout.IDs() {
		if _, ok := s.Values[id]; !ok {
			continue
		}
		v := &model.Variable{ID: id, Shape: layout.Shape(id)}
		for _, name := range v.ElementNames() {
			c.names = append(c.names, name)
			c.ChainHistory[name] = buffer.NewCircularFloat(c.ConvergenceWindow)
		}
	}
}

// oneSample takes a single sample and optionally updates the chain state.
func (c *Chain) oneSample(updateHistory bool) (*Sample, error) {
	s, err := c.Sampler.NextSample()
	if err != nil {
		return nil, errors.Wrap(err, "Error taking sample")
	}
	if s == nil || s.Position == nil {
		return nil, errors.New("Invalid sample")
	}
	c.LastSample = s

	if updateHistory {
		c.track(s)
		pos := 0
		layout := s.Position.Layout()
		for _, id := range layout.IDs() {
			vals, ok := s.Values[id]
			if !ok {
				continue
			}
			for _, v := range vals {
				c.ChainHistory[c.names[pos]].Add(v)
				pos++
			}
		}
		c.TotalSampleCount++
	}

	return s, nil
}
