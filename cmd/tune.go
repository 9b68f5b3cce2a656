package cmd

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/gnuts/model"
	"github.com/CraigKelly/gnuts/rand"
	"github.com/CraigKelly/gnuts/sampler"
)

// TuneTargets are the target acceptance probabilities compared by tune
var TuneTargets = []float64{0.6, 0.65, 0.8, 0.9, 0.95}

// TuneResult is what one tuning run found
type TuneResult struct {
	Target       float64
	StepSize     float64
	MeanAccept   float64
	MeanTreeSize float64
	Divergences  int
	MeanLag1ACF  float64
	Score        *model.ErrorSuite
}

// TuneIteration is a testing mode command that will sample the model once per
// target acceptance probability and print the adapted step size, the cost
// per sample, mixing and (with a solution) the error of each run.
func TuneIteration(sp *startupParams) error {
	mod, sol, err := readModel(sp)
	if err != nil {
		return err
	}

	results := make([]*TuneResult, 0, len(TuneTargets))
	for _, target := range TuneTargets {
		sp.out.Printf("--------------------------------------------------\n")
		sp.out.Printf("Target acceptance %.2f\n", target)

		res, err := tuneOnce(sp, mod.Clone(), sol, target)
		if err != nil {
			return errors.Wrapf(err, "Tuning failed for target %v", target)
		}
		results = append(results, res)

		sp.out.Printf("StepSize: %.6f, MeanAccept: %.3f, MeanTreeSize: %.1f, Divergences: %d\n",
			res.StepSize, res.MeanAccept, res.MeanTreeSize, res.Divergences)
		sp.out.Printf("Mean lag 1 ACF: %.3f\n", res.MeanLag1ACF)
		if res.Score != nil {
			sp.out.Printf("NLog | MeanAE:%7.3f MaxAE:%7.3f Hel:%7.3f\n",
				-math.Log2(res.Score.MeanMeanAbsError),
				-math.Log2(res.Score.MaxMeanAbsError),
				-math.Log2(res.Score.MaxHellinger),
			)
		}
	}
	sp.out.Printf("--------------------------------------------------\n")

	// Trace gets one line per target for easy read back
	sp.trace.Printf("# target step_size mean_accept mean_tree_size divergences lag1_acf\n")
	for _, r := range results {
		sp.trace.Printf("%.2f %.8g %.6f %.3f %d %.6f\n",
			r.Target, r.StepSize, r.MeanAccept, r.MeanTreeSize, r.Divergences, r.MeanLag1ACF)
	}

	return nil
}

// tuneOnce adapts during burn in then samples with the step size frozen
func tuneOnce(sp *startupParams, mod *model.Model, sol *model.Solution, target float64) (*TuneResult, error) {
	gen, err := rand.NewGenerator(sp.cfg.Run.Seed)
	if err != nil {
		return nil, err
	}

	cfg := sp.cfg.NUTS
	cfg.TargetAcceptProb = target
	cfg.SaveStatistics = true
	cfg.Logger = sp.logger

	nuts, err := sampler.NewNUTS(mod, gen, cfg)
	if err != nil {
		return nil, err
	}

	ch, err := sampler.NewChain(nuts, sp.cfg.Run.ConvergenceWindow, sp.cfg.Run.BurnIn)
	if err != nil {
		return nil, err
	}
	samples, err := ch.Generate(sp.cfg.Run.Samples, sp.cfg.Run.DownSample)
	if err != nil {
		return nil, err
	}

	stats := nuts.Statistics()
	kept := int(sp.cfg.Run.BurnIn)
	accept := stats.Get(sampler.MetricMeanTreeAccept)
	sizes := stats.Get(sampler.MetricTreeSize)
	if kept < len(accept) {
		accept = accept[kept:]
		sizes = sizes[kept:]
	}

	res := &TuneResult{
		Target:       target,
		StepSize:     nuts.StepSize(),
		MeanAccept:   stat.Mean(accept, nil),
		MeanTreeSize: stat.Mean(sizes, nil),
		Divergences:  stats.Divergences,
		MeanLag1ACF:  meanLag1(samples),
	}

	if sol != nil {
		res.Score, err = sol.Error(samples.Summary())
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// meanLag1 averages the lag 1 autocorrelation over every sampled scalar
func meanLag1(samples *sampler.Samples) float64 {
	var acfs []float64
	for _, id := range samples.IDs() {
		size := 1
		for _, d := range samples.Shape(id) {
			size *= d
		}
		for i := 0; i < size; i++ {
			acf, err := samples.Autocorrelation(id, i, 1)
			if err != nil || math.IsNaN(acf[1]) {
				continue
			}
			acfs = append(acfs, acf[1])
		}
	}
	if len(acfs) < 1 {
		return math.NaN()
	}
	return stat.Mean(acfs, nil)
}
