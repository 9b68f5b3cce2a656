package cmd

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/CraigKelly/gnuts/model"
	"github.com/CraigKelly/gnuts/rand"
	"github.com/CraigKelly/gnuts/sampler"
)

// readModel loads the model (and evidence and solution when requested)
func readModel(sp *startupParams) (*model.Model, *model.Solution, error) {
	reader := model.YAMLReader{}

	sp.out.Printf("Reading model from %s\n", sp.modelFile)
	mod, err := model.NewModelFromFile(reader, sp.modelFile, sp.useEvidence)
	if err != nil {
		return nil, nil, err
	}
	sp.out.Printf("Model %s has %d latent vars and %d observations\n", mod.Name, len(mod.Vars), len(mod.Observations))

	if !sp.solFile {
		return mod, nil, nil
	}

	solFilename := sp.modelFile + ".sol"
	sol, err := model.NewSolutionFromFile(reader, solFilename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Could not read solution file %s", solFilename)
	}
	if err := sol.Check(mod); err != nil {
		return nil, nil, errors.Wrapf(err, "Solution file %s does not match the model", solFilename)
	}

	return mod, sol, nil
}

// errorReport writes the scores of an estimate against a solution
func errorReport(sp *startupParams, title string, score *model.ErrorSuite, target *log.Logger) {
	target.Printf("%s\n", title)
	target.Printf("  MeanAE(mean): %10.6f  MaxAE(mean): %10.6f\n", score.MeanMeanAbsError, score.MaxMeanAbsError)
	target.Printf("  MeanAE(sd):   %10.6f  MaxAE(sd):   %10.6f\n", score.MeanSDAbsError, score.MaxSDAbsError)
	target.Printf("  Hellinger:    %10.6f  Max:         %10.6f\n", score.MeanHellinger, score.MaxHellinger)
	target.Printf("  KL:           %10.6f  Max:         %10.6f\n", score.MeanKLDiverge, score.MaxKLDiverge)
	if sp.verbose {
		target.Printf("  -Log2 MeanAE(mean): %7.3f\n", -math.Log2(score.MeanMeanAbsError))
	}
}

// SampleModel is the main sampling run: NUTS with adaptation during burn in,
// then the kept samples are summarized (and scored against a solution when
// one was given).
func SampleModel(sp *startupParams) error {
	mod, sol, err := readModel(sp)
	if err != nil {
		return err
	}
	cfg := sp.cfg

	gen, err := rand.NewGenerator(cfg.Run.Seed)
	if err != nil {
		return err
	}

	nutsCfg := cfg.NUTS
	nutsCfg.Logger = sp.logger
	nuts, err := sampler.NewNUTS(mod, gen, nutsCfg)
	if err != nil {
		return errors.Wrap(err, "Could not create NUTS sampler")
	}
	sp.out.Printf("Starting step size %.6f (adapting for %d transitions)\n", nuts.StepSize(), nutsCfg.AdaptCount)

	var mon *monitor
	if len(cfg.Monitor.Addr) > 0 {
		mon = newMonitor()
		if err := mon.Start(cfg.Monitor.Addr); err != nil {
			return err
		}
		defer mon.Stop()
		mon.BurnIn.Set(cfg.Run.BurnIn)
		mon.ConvergeWindow.Set(int64(cfg.Run.ConvergenceWindow))
		mon.TargetSamples.Set(int64(cfg.Run.Samples))
	}

	sp.out.Printf("Burn in: %d transitions\n", cfg.Run.BurnIn)
	ch, err := sampler.NewChain(nuts, cfg.Run.ConvergenceWindow, cfg.Run.BurnIn)
	if err != nil {
		return err
	}
	sp.out.Printf("Chain %s: step size after burn in %.6f\n", ch.ID, nuts.StepSize())

	bar := progressbar.NewOptions(
		cfg.Run.Samples,
		progressbar.OptionSetWriter(sp.progress),
		progressbar.OptionSetDescription("sampling"),
		progressbar.OptionClearOnFinish(),
	)
	ch.Progress = func(done, total int) {
		bar.Add(1)
		if mon != nil {
			mon.Observe(ch.LastSample)
		}
	}

	samples, err := ch.Generate(cfg.Run.Samples, cfg.Run.DownSample)
	bar.Finish()
	if err != nil {
		return err
	}

	writeTrace(sp, ch, samples)
	summaryReport(sp, samples)
	statsReport(sp, nuts.Statistics())

	if sp.verbose {
		convergenceReport(sp, ch)
		acfReport(sp, samples)
	}

	if sol != nil {
		score, err := sol.Error(samples.Summary())
		if err != nil {
			return errors.Wrap(err, "Could not score samples against the solution")
		}
		errorReport(sp, "SCORE VS SOLUTION", score, sp.out)
		errorReport(sp, "SCORE VS SOLUTION", score, sp.trace)
	}

	return nil
}

// writeTrace writes every kept sample to the trace file, one line each
func writeTrace(sp *startupParams, ch *sampler.Chain, samples *sampler.Samples) {
	sp.trace.Printf("# chain %s\n", ch.ID)
	ids := samples.IDs()
	sp.trace.Printf("# index log_prob %s\n", strings.Join(ids, " "))

	logProbs := samples.LogProbs()
	for i := 0; i < samples.Len(); i++ {
		parts := make([]string, 0, len(ids)+2)
		parts = append(parts, fmt.Sprintf("%d", i), fmt.Sprintf("%.8g", logProbs[i]))
		for _, id := range ids {
			for _, v := range samples.Get(id)[i] {
				parts = append(parts, fmt.Sprintf("%.8g", v))
			}
		}
		sp.trace.Printf("%s\n", strings.Join(parts, " "))
	}
}

func summaryReport(sp *startupParams, samples *sampler.Samples) {
	sp.out.Printf("Kept %d samples\n", samples.Len())
	for _, sv := range samples.Summary() {
		v := &model.Variable{ID: sv.ID, Shape: samples.Shape(sv.ID)}
		for i, name := range v.ElementNames() {
			sp.out.Printf("  %-16s mean %10.5f  sd %10.5f\n", name, sv.Mean[i], sv.SD[i])
		}
	}
}

func statsReport(sp *startupParams, stats *sampler.Statistics) {
	sp.out.Printf("Transitions: %d, Divergences: %d (%.2f%%), Max tree height hits: %d\n",
		stats.Transitions,
		stats.Divergences,
		100*stats.DivergenceRate(),
		stats.MaxTreeHeightHits,
	)
	if len(stats.Get(sampler.MetricStepSize)) < 1 {
		return
	}
	for _, m := range sampler.Metrics {
		sp.out.Printf("  mean %-16s %10.5f\n", m, stats.Mean(m))
	}
}

func convergenceReport(sp *startupParams, ch *sampler.Chain) {
	z, err := ch.Convergence()
	if err != nil {
		sp.out.Printf("Convergence check skipped: %v\n", err)
		return
	}
	sp.out.Printf("Convergence z scores (last %d samples)\n", ch.ConvergenceWindow)
	for _, name := range ch.Names() {
		sp.out.Printf("  %-16s z %7.3f\n", name, z[name])
	}
}

func acfReport(sp *startupParams, samples *sampler.Samples) {
	sp.out.Printf("Lag 1 autocorrelation\n")
	for _, id := range samples.IDs() {
		v := &model.Variable{ID: id, Shape: samples.Shape(id)}
		for i, name := range v.ElementNames() {
			acf, err := samples.Autocorrelation(id, i, 1)
			if err != nil {
				sp.out.Printf("  %-16s %v\n", name, err)
				continue
			}
			sp.out.Printf("  %-16s %7.3f\n", name, acf[1])
		}
	}
}
