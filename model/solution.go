package model

import (
	"math"
	"os"

	"github.com/pkg/errors"
)

// SolReader implementors read a solution (currently we only support marginal
// mean/sd solutions)
type SolReader interface {
	ReadMargSolution(data []byte) (*Solution, error)
}

// SolutionVar is a marginal summary of one latent variable: per-element
// posterior mean and standard deviation, flattened like the variable.
type SolutionVar struct {
	ID   string    `yaml:"id"`
	Mean []float64 `yaml:"mean"`
	SD   []float64 `yaml:"sd"`
}

// Check returns an error if any problem is found
func (sv *SolutionVar) Check() error {
	if len(sv.ID) < 1 {
		return errors.New("Solution variable has no id")
	}
	if len(sv.Mean) < 1 || len(sv.Mean) != len(sv.SD) {
		return errors.Errorf("Solution variable %s has %d means and %d sds", sv.ID, len(sv.Mean), len(sv.SD))
	}
	for i, sd := range sv.SD {
		if !(sd > 0) || math.IsInf(sd, 0) || math.IsNaN(sv.Mean[i]) {
			return errors.Errorf("Solution variable %s has invalid mean/sd %v/%v at %d", sv.ID, sv.Mean[i], sd, i)
		}
	}
	return nil
}

// Solution to a marginal estimation problem specified on a Model. It also
// provides evaluation metrics to evaluate vs the solution.
type Solution struct {
	Vars []*SolutionVar // Variables with their marginal summaries
}

// NewSolutionFromFile reads a solution file
func NewSolutionFromFile(r SolReader, filename string) (*Solution, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ solution from %s", filename)
	}

	sol, err := NewSolutionFromBuffer(r, data)
	if err != nil {
		return nil, err
	}

	return sol, nil
}

// NewSolutionFromBuffer reads a solution from the specified buffer
func NewSolutionFromBuffer(r SolReader, data []byte) (*Solution, error) {
	s, err := r.ReadMargSolution(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE solution")
	}

	return s, nil
}

// Check insures that the solution is as correct as can be checked given a model
func (s *Solution) Check(m *Model) error {
	for _, v := range s.Vars {
		e := v.Check()
		if e != nil {
			return errors.Wrapf(e, "Solution has an invalid Variable %s", v.ID)
		}
	}

	if len(s.Vars) != len(m.Vars) {
		return errors.Errorf("Solution var count %d != model var count %d", len(s.Vars), len(m.Vars))
	}

	sizes := make(map[string]int, len(m.Vars))
	for _, v := range m.Vars {
		sizes[v.ID] = v.Size()
	}
	for _, sv := range s.Vars {
		size, ok := sizes[sv.ID]
		if !ok {
			return errors.Errorf("Solution variable %s is not in model %s", sv.ID, m.Name)
		}
		if size != len(sv.Mean) {
			return errors.Errorf("Solution variable %s has %d elements, model has %d", sv.ID, len(sv.Mean), size)
		}
	}

	return nil
}

// Error is a helper method to return the entire error suite we offer for the
// given estimate against this solution
func (s *Solution) Error(estimate []*SolutionVar) (*ErrorSuite, error) {
	return NewErrorSuite(estimate, s.Vars)
}
