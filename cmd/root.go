package cmd

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cfgFile string
var verbose bool
var modelFile string
var useEvidence bool
var useSolution bool
var traceFile string
var randomSeed int64

var sampleCount int
var burnIn int64
var downSample int
var monitorAddr string

// startupParams is everything a command needs, gathered from the config
// file and the flags
type startupParams struct {
	cfg         *Config
	verbose     bool
	modelFile   string
	useEvidence bool
	solFile     bool
	traceFile   string

	out      *log.Logger  // Normal output
	trace    *log.Logger  // Trace file output (discarded without a trace file)
	logger   *slog.Logger // Sampler logging
	progress io.Writer    // Progress bar target

	closers []io.Closer
}

// Close releases anything opened for the run
func (sp *startupParams) Close() {
	for _, c := range sp.closers {
		c.Close()
	}
	sp.closers = nil
}

// newStartupParams reads the config file (if any) and lets any flag set on
// the command line override it
func newStartupParams(c *cobra.Command) (*startupParams, error) {
	cfg := DefaultConfig()
	if len(cfgFile) > 0 {
		var err error
		cfg, err = LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
	}

	flags := c.Flags()
	if flags.Changed("seed") {
		cfg.Run.Seed = randomSeed
	}
	if flags.Changed("samples") {
		cfg.Run.Samples = sampleCount
	}
	if flags.Changed("burn-in") {
		cfg.Run.BurnIn = burnIn
	}
	if flags.Changed("down-sample") {
		cfg.Run.DownSample = downSample
	}
	if flags.Changed("monitor") {
		cfg.Monitor.Addr = monitorAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	sp := &startupParams{
		cfg:         cfg,
		verbose:     verbose,
		modelFile:   modelFile,
		useEvidence: useEvidence,
		solFile:     useSolution,
		traceFile:   traceFile,
		out:         log.New(os.Stdout, "", log.Ltime),
		trace:       log.New(io.Discard, "", 0),
		logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		progress:    os.Stderr,
	}

	if len(traceFile) > 0 {
		f, err := os.Create(traceFile)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not create trace file %s", traceFile)
		}
		sp.trace = log.New(f, "", 0)
		sp.closers = append(sp.closers, f)
	}

	return sp, nil
}

// runWith wraps a command body with startup and teardown
func runWith(body func(sp *startupParams) error) func(*cobra.Command, []string) error {
	return func(c *cobra.Command, args []string) error {
		sp, err := newStartupParams(c)
		if err != nil {
			return err
		}
		defer sp.Close()

		sp.out.Printf("gnuts\n")
		sp.out.Printf("Verbose:  %v\n", sp.verbose)
		sp.out.Printf("Model:    %s\n", sp.modelFile)
		sp.out.Printf("Rnd Seed: %d\n", sp.cfg.Run.Seed)

		return body(sp)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gnuts",
	Short: "No-U-Turn sampling for continuous probabilistic models",
	Long: `gnuts provides gradient-based MCMC inference for continuous PGM's.
Among other features:

  - The ability to read YAML models (with evidence and solution files)
  - A No-U-Turn (NUTS) sampler with dual averaging step size adaptation
  - Step size tuning reports and graphviz output of models
`,
	SilenceUsage: true,
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Sample a model with NUTS and report marginal summaries",
	RunE:  runWith(SampleModel),
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Compare step size adaptation across target acceptance probabilities",
	RunE:  runWith(TuneIteration),
}

var dotCmd = &cobra.Command{
	Use:   "dot",
	Short: "Write a graphviz description of a model",
	RunE:  runWith(DotOutput),
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "YAML config file (default is built in settings)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	pf.StringVarP(&modelFile, "model", "m", "", "YAML model file to read")
	pf.BoolVarP(&useEvidence, "evidence", "e", false, "Apply evidence from the model file name + .evid")
	pf.BoolVarP(&useSolution, "solution", "", false, "Score against the solution in the model file name + .sol")
	pf.StringVarP(&traceFile, "trace", "", "", "Trace file for samples (or the dot graph)")
	pf.Int64VarP(&randomSeed, "seed", "r", 1, "Random seed to use")
	rootCmd.MarkPersistentFlagRequired("model")

	for _, c := range []*cobra.Command{sampleCmd, tuneCmd} {
		f := c.Flags()
		f.IntVarP(&sampleCount, "samples", "n", 2000, "Samples to keep after burn in")
		f.Int64VarP(&burnIn, "burn-in", "", 1000, "Transitions to discard before sampling")
		f.IntVarP(&downSample, "down-sample", "", 1, "Keep every Nth sample")
		f.StringVarP(&monitorAddr, "monitor", "", "", "Serve progress over HTTP on this address (like :8000)")
	}

	rootCmd.AddCommand(sampleCmd, tuneCmd, dotCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
