package model

import (
	"bytes"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// YAMLReader reads models, evidence and solutions written in YAML. A model
// looks like:
//
//	name: gaussian-mean
//	latent:
//	  - id: mu
//	    init: [5.0]
//	    prior: {dist: normal, mu: 0, sigma: 10}
//	observed:
//	  - id: y
//	    dist: normal
//	    of: mu
//	    sigma: 1
//	    values: [0.3, -0.1, 0.8]
//
// An evidence file only carries an "observed" list, and a solution file a
// "vars" list of {id, mean, sd}.
type YAMLReader struct {
}

// decodeStrict refuses unknown fields so typos in model files are reported
func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// ReadModel implements the model.Reader interface
func (r YAMLReader) ReadModel(data []byte) (*Model, error) {
	if len(bytes.TrimSpace(data)) < 1 {
		return nil, errors.New("Empty model data")
	}

	m := &Model{}
	if err := decodeStrict(data, m); err != nil {
		return nil, errors.Wrap(err, "Error reading YAML model")
	}
	if len(m.Vars) < 1 {
		return nil, errors.New("Model declares no latent variables")
	}

	return m, nil
}

type evidenceFile struct {
	Observed []*Observation `yaml:"observed"`
}

// ApplyEvidence implements the model.Reader interface: the observations in
// the evidence replace any observations already on the model.
func (r YAMLReader) ApplyEvidence(data []byte, m *Model) error {
	ev := evidenceFile{}
	if err := decodeStrict(data, &ev); err != nil {
		return errors.Wrap(err, "Error reading YAML evidence")
	}
	if len(ev.Observed) < 1 {
		return errors.New("Evidence contains no observations")
	}

	m.Observations = ev.Observed
	return nil
}

type solutionFile struct {
	Vars []*SolutionVar `yaml:"vars"`
}

// ReadMargSolution implements SolReader
func (r YAMLReader) ReadMargSolution(data []byte) (*Solution, error) {
	sf := solutionFile{}
	if err := decodeStrict(data, &sf); err != nil {
		return nil, errors.Wrap(err, "Error reading YAML solution")
	}
	if len(sf.Vars) < 1 {
		return nil, errors.New("Solution contains no variables")
	}
	return &Solution{Vars: sf.Vars}, nil
}
