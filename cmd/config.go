package cmd

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/CraigKelly/gnuts/sampler"
)

// RunConfig controls the chain around the sampler
type RunConfig struct {
	Samples           int   `yaml:"samples"`            // Transitions kept after burn in (before down sampling)
	BurnIn            int64 `yaml:"burn_in"`            // Transitions thrown away first
	DownSample        int   `yaml:"down_sample"`        // Keep every Nth sample
	ConvergenceWindow int   `yaml:"convergence_window"` // Samples used for the convergence check
	Seed              int64 `yaml:"seed"`               // Generator seed
}

// MonitorConfig controls the HTTP progress monitor
type MonitorConfig struct {
	Addr string `yaml:"addr"` // Empty disables the monitor
}

// Config is everything a run can read from a config file. Flags given on
// the command line override it.
//
//	run:
//	  samples: 2000
//	  burn_in: 1000
//	nuts:
//	  target_accept_prob: 0.8
//	  max_tree_height: 8
//	monitor:
//	  addr: ":8000"
type Config struct {
	Run     RunConfig      `yaml:"run"`
	NUTS    sampler.Config `yaml:"nuts"`
	Monitor MonitorConfig  `yaml:"monitor"`
}

// DefaultConfig returns the settings used with no config file
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Samples:           2000,
			BurnIn:            1000,
			DownSample:        1,
			ConvergenceWindow: 200,
			Seed:              1,
		},
		NUTS: sampler.DefaultConfig(),
	}
}

// LoadConfig reads a YAML config file over the defaults
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ config from %s", filename)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data over the defaults. Unknown keys are an
// error.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "Could not PARSE config")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error if there is a problem with the config
func (c *Config) Validate() error {
	if c.Run.Samples < 1 {
		return errors.Errorf("samples must be >= 1, got %d", c.Run.Samples)
	}
	if c.Run.BurnIn < 0 {
		return errors.Errorf("burn in must be >= 0, got %d", c.Run.BurnIn)
	}
	if c.Run.DownSample < 1 {
		return errors.Errorf("down sample must be >= 1, got %d", c.Run.DownSample)
	}
	if c.Run.ConvergenceWindow < 2 {
		return errors.Errorf("convergence window must be >= 2, got %d", c.Run.ConvergenceWindow)
	}
	return c.NUTS.Validate()
}
