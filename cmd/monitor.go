package cmd

import (
	"expvar"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CraigKelly/gnuts/sampler"
)

// monitor serves run progress over HTTP: expvar style JSON on /debug/vars
// and Prometheus metrics on /metrics
type monitor struct {
	info     *expvar.Map
	registry *prometheus.Registry
	stopped  chan struct{}
	server   *http.Server
	listener net.Listener
	started  time.Time

	BurnIn         *expvar.Int
	ConvergeWindow *expvar.Int
	TargetSamples  *expvar.Int
	TotalSamples   *expvar.Int
	RunTime        *expvar.Float
	StepSize       *expvar.Float
	LastLogProb    *expvar.Float
	Divergences    *expvar.Int

	transitions prometheus.Counter
	divergences prometheus.Counter
	stepSize    prometheus.Gauge
	logProb     prometheus.Gauge
	treeDepth   prometheus.Histogram
}

func newMonitor() *monitor {
	m := &monitor{
		info:           new(expvar.Map).Init(),
		registry:       prometheus.NewRegistry(),
		BurnIn:         new(expvar.Int),
		ConvergeWindow: new(expvar.Int),
		TargetSamples:  new(expvar.Int),
		TotalSamples:   new(expvar.Int),
		RunTime:        new(expvar.Float),
		StepSize:       new(expvar.Float),
		LastLogProb:    new(expvar.Float),
		Divergences:    new(expvar.Int),
	}

	m.info.Set("Burn-In", m.BurnIn)
	m.info.Set("Convergence-Window", m.ConvergeWindow)
	m.info.Set("Target-Samples", m.TargetSamples)
	m.info.Set("Total-Samples", m.TotalSamples)
	m.info.Set("Run-Time", m.RunTime)
	m.info.Set("Step-Size", m.StepSize)
	m.info.Set("Last-Log-Prob", m.LastLogProb)
	m.info.Set("Divergences", m.Divergences)

	factory := promauto.With(m.registry)
	m.transitions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "gnuts",
		Name:      "transitions_total",
		Help:      "NUTS transitions observed by the monitor",
	})
	m.divergences = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "gnuts",
		Name:      "divergences_total",
		Help:      "Transitions that ended in a divergence",
	})
	m.stepSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "gnuts",
		Name:      "step_size",
		Help:      "Leapfrog step size of the latest transition",
	})
	m.logProb = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "gnuts",
		Name:      "log_prob",
		Help:      "Log probability of the latest sample",
	})
	m.treeDepth = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gnuts",
		Name:      "tree_depth",
		Help:      "Tree depth reached per transition",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})

	return m
}

// Start begins serving on addr (":0" picks a free port)
func (m *monitor) Start(addr string) error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "Could not listen on %s", addr)
	}

	mux := http.NewServeMux()
	// Help the user and redirect to the JSON progress
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/debug/vars", func(w http.ResponseWriter, r *http.Request) {
		m.RunTime.Set(time.Since(m.started).Seconds())
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, m.info.String())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.listener = ln
	m.started = time.Now()
	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Actual server that will close the stopped channel on exit
	go func() {
		defer close(m.stopped)
		m.server.Serve(ln)
	}()

	fmt.Fprintf(os.Stderr, "HTTP now available at %v (see /debug/vars and /metrics)\n", m.Addr())
	return nil
}

// Addr is the address actually being served
func (m *monitor) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Observe records one kept transition
func (m *monitor) Observe(s *sampler.Sample) {
	d := s.Diagnostics

	m.TotalSamples.Add(1)
	m.StepSize.Set(d.StepSize)
	m.LastLogProb.Set(s.LogProb)

	m.transitions.Inc()
	m.stepSize.Set(d.StepSize)
	m.logProb.Set(s.LogProb)
	m.treeDepth.Observe(float64(d.TreeDepth))

	if d.Termination == sampler.Divergence {
		m.Divergences.Add(1)
		m.divergences.Inc()
	}
}

// Stop shuts the server down (if it was started)
func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
