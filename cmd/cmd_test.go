package cmd

import (
	"bytes"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CraigKelly/gnuts/sampler"
)

func testParams(modelFile string) (*startupParams, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	trace := &bytes.Buffer{}

	cfg := DefaultConfig()
	cfg.Run.Samples = 200
	cfg.Run.BurnIn = 200
	cfg.Run.ConvergenceWindow = 50
	cfg.NUTS.AdaptCount = 200

	sp := &startupParams{
		cfg:       cfg,
		modelFile: modelFile,
		out:       log.New(out, "", 0),
		trace:     log.New(trace, "", 0),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		progress:  io.Discard,
	}
	return sp, out, trace
}

func TestConfigParse(t *testing.T) {
	assert := assert.New(t)

	def := DefaultConfig()
	assert.NoError(def.Validate())
	assert.Equal(sampler.DefaultConfig().TargetAcceptProb, def.NUTS.TargetAcceptProb)

	cfg, err := ParseConfig([]byte(""))
	require.NoError(t, err)
	assert.Equal(def, cfg)

	cfg, err = ParseConfig([]byte(`
run:
  samples: 50
  seed: 42
nuts:
  target_accept_prob: 0.8
  sample_from: [mu]
monitor:
  addr: ":9999"
`))
	require.NoError(t, err)
	assert.Equal(50, cfg.Run.Samples)
	assert.Equal(int64(42), cfg.Run.Seed)
	assert.Equal(def.Run.BurnIn, cfg.Run.BurnIn)
	assert.Equal(0.8, cfg.NUTS.TargetAcceptProb)
	assert.Equal(10, cfg.NUTS.MaxTreeHeight)
	assert.True(cfg.NUTS.AdaptEnabled)
	assert.Equal([]string{"mu"}, cfg.NUTS.SampleFrom)
	assert.Equal(":9999", cfg.Monitor.Addr)

	bad := []string{
		"run: {samplez: 10}",
		"run: {samples: 0}",
		"run: {down_sample: 0}",
		"run: {convergence_window: 1}",
		"nuts: {target_accept_prob: 1.5}",
		"nuts: {max_tree_height: 0}",
		"nuts: {logger: x}",
		"run: [",
	}
	for _, b := range bad {
		_, err := ParseConfig([]byte(b))
		assert.Error(err, b)
	}
}

func TestConfigLoad(t *testing.T) {
	assert := assert.New(t)

	_, err := LoadConfig("../res/does-not-exist.yaml")
	assert.Error(err)

	fn := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("run: {burn_in: 5}\n"), 0o644))
	cfg, err := LoadConfig(fn)
	require.NoError(t, err)
	assert.Equal(int64(5), cfg.Run.BurnIn)
}

func TestStartupFlagsOverride(t *testing.T) {
	assert := assert.New(t)

	fn := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("run: {samples: 10, burn_in: 3, seed: 9}\n"), 0o644))
	tracefn := filepath.Join(t.TempDir(), "trace.txt")

	require.NoError(t, sampleCmd.ParseFlags([]string{
		"-c", fn,
		"-m", "../res/normal_mean.yaml",
		"-n", "25",
		"--trace", tracefn,
	}))
	defer func() {
		cfgFile, traceFile, modelFile = "", "", ""
	}()

	sp, err := newStartupParams(sampleCmd)
	require.NoError(t, err)
	defer sp.Close()

	assert.Equal(25, sp.cfg.Run.Samples)
	assert.Equal(int64(3), sp.cfg.Run.BurnIn)
	assert.Equal(int64(9), sp.cfg.Run.Seed)
	assert.Equal("../res/normal_mean.yaml", sp.modelFile)

	sp.trace.Printf("hello\n")
	sp.Close()
	data, err := os.ReadFile(tracefn)
	require.NoError(t, err)
	assert.Equal("hello\n", string(data))
}

func TestSampleModel(t *testing.T) {
	assert := assert.New(t)

	sp, out, trace := testParams("../res/normal_mean.yaml")
	sp.solFile = true
	sp.verbose = true
	sp.cfg.Run.DownSample = 2

	require.NoError(t, SampleModel(sp))

	o := out.String()
	assert.Contains(o, "Kept 100 samples")
	assert.Contains(o, "mu ")
	assert.Contains(o, "Transitions: 400")
	assert.Contains(o, "Convergence z scores")
	assert.Contains(o, "Lag 1 autocorrelation")
	assert.Contains(o, "SCORE VS SOLUTION")

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	assert.True(strings.HasPrefix(lines[0], "# chain "))
	assert.Equal("# index log_prob mu", lines[1])
	assert.Equal("SCORE VS SOLUTION", lines[102])
	assert.Len(strings.Fields(lines[2]), 3)
}

func TestSampleModelEvidence(t *testing.T) {
	sp, out, _ := testParams("../res/normal_mean.yaml")
	sp.useEvidence = true
	sp.cfg.NUTS.SaveStatistics = true

	require.NoError(t, SampleModel(sp))
	assert.Contains(t, out.String(), "1 latent vars and 1 observations")
	assert.Contains(t, out.String(), "mean step_size")
}

func TestSampleModelErrors(t *testing.T) {
	assert := assert.New(t)

	sp, _, _ := testParams("../res/does-not-exist.yaml")
	assert.Error(SampleModel(sp))

	sp, _, _ = testParams("../res/ungradientable.yaml")
	assert.Error(SampleModel(sp))

	// shaped.yaml has no evidence file
	sp, _, _ = testParams("../res/shaped.yaml")
	sp.useEvidence = true
	assert.Error(SampleModel(sp))

	sp, _, _ = testParams("../res/shaped.yaml")
	sp.cfg.NUTS.SampleFrom = []string{"nope"}
	assert.Error(SampleModel(sp))
}

func TestTuneIteration(t *testing.T) {
	assert := assert.New(t)

	sp, out, trace := testParams("../res/normal_mean.yaml")
	sp.solFile = true
	sp.cfg.Run.Samples = 100
	sp.cfg.Run.BurnIn = 100
	sp.cfg.NUTS.AdaptCount = 100

	require.NoError(t, TuneIteration(sp))
	assert.Equal(len(TuneTargets), strings.Count(out.String(), "Target acceptance"))
	assert.Contains(out.String(), "NLog | MeanAE")

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	assert.Len(lines, len(TuneTargets)+1)
	assert.True(strings.HasPrefix(lines[1], "0.60 "))
}

func TestDotOutput(t *testing.T) {
	assert := assert.New(t)

	sp, out, trace := testParams("../res/shaped.yaml")
	require.NoError(t, DotOutput(sp))
	o := out.String()
	assert.Contains(o, "digraph G {")
	assert.Contains(o, `"theta" [shape=box, label="theta[2]\n~ normal"];`)
	assert.Contains(o, `"tau" [shape=box, label="tau\n~ uniform"];`)
	assert.Contains(o, `"theta" -> "obs:y";`)
	assert.Empty(trace.String())

	sp, out, trace = testParams("../res/shaped.yaml")
	sp.traceFile = "graph.dot"
	require.NoError(t, DotOutput(sp))
	assert.Contains(trace.String(), "digraph G {")
	assert.NotContains(out.String(), "digraph G {")
}

func TestMonitor(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor()
	m.Stop() // Never started is fine
	require.NoError(t, m.Start("127.0.0.1:0"))
	defer m.Stop()
	assert.Error(m.Start("127.0.0.1:0"))

	m.BurnIn.Set(10)
	m.Observe(&sampler.Sample{LogProb: -3.5, Diagnostics: sampler.Diagnostics{StepSize: 0.25, TreeDepth: 2}})
	m.Observe(&sampler.Sample{LogProb: -1.5, Diagnostics: sampler.Diagnostics{StepSize: 0.25, Termination: sampler.Divergence}})

	get := func(path string) string {
		resp, err := http.Get("http://" + m.Addr() + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	vars := get("/debug/vars")
	assert.Contains(vars, `"Total-Samples": 2`)
	assert.Contains(vars, `"Burn-In": 10`)
	assert.Contains(vars, `"Divergences": 1`)
	assert.Contains(vars, `"Last-Log-Prob": -1.5`)

	// The root redirects to the same JSON
	assert.Equal(vars[:20], get("/")[:20])

	metrics := get("/metrics")
	assert.Contains(metrics, "gnuts_transitions_total 2")
	assert.Contains(metrics, "gnuts_divergences_total 1")
	assert.Contains(metrics, "gnuts_step_size 0.25")
	assert.Contains(metrics, "gnuts_tree_depth_count 2")
}
