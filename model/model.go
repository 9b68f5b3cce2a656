package model

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gnuts/state"
)

// Reader implementors instantiate a model from a byte stream and optionally
// applies evidence from a second byte stream.
type Reader interface {
	ReadModel(data []byte) (*Model, error)
	ApplyEvidence(data []byte, m *Model) error
}

// Model is a continuous PGM: latent variables with independent priors and
// observations whose likelihood is centred on a latent variable. Model
// implements Graph.
type Model struct {
	Name         string         `yaml:"name"`     // Model name
	Vars         []*Variable    `yaml:"latent"`   // Latent variables (nodes) in the model
	Observations []*Observation `yaml:"observed"` // Observed data attached to latent variables

	layout   *state.Layout
	cascaded bool
	linked   map[string]bool // latent ids with a differentiable path
}

// Clone returns a copy of the current model, including current values. The
// clone must be cascaded again before use.
func (m *Model) Clone() *Model {
	cp := &Model{
		Name:         m.Name,
		Vars:         make([]*Variable, len(m.Vars)),
		Observations: make([]*Observation, len(m.Observations)),
	}

	for i, v := range m.Vars {
		cp.Vars[i] = v.Clone()
	}

	for i, o := range m.Observations {
		cp.Observations[i] = o.Clone()
	}

	return cp
}

// NewModelFromFile initializes and creates a model from the specified source.
// If useEvidence is set, evidence is read from filename + ".evid".
func NewModelFromFile(r Reader, filename string, useEvidence bool) (*Model, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ model from %s", filename)
	}

	model, err := NewModelFromBuffer(r, data)
	if err != nil {
		return nil, err
	}

	// Name the model from the file if it has no name
	if len(model.Name) < 1 {
		var ext = filepath.Ext(filename)
		model.Name = filename[0 : len(filename)-len(ext)]
	}

	// Apply evidence if necessary
	if useEvidence {
		err = model.ApplyEvidenceFromFile(r, filename+".evid")
		if err != nil {
			return nil, err
		}
	}

	return model, nil
}

// NewModelFromBuffer creates a model from the given pre-read data
func NewModelFromBuffer(r Reader, data []byte) (*Model, error) {
	m, err := r.ReadModel(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE model")
	}

	for i, v := range m.Vars {
		if len(v.ID) < 1 {
			if err := v.CreateName(i); err != nil {
				return nil, err
			}
		}
		v.Init()
	}

	err = m.Check()
	if err != nil {
		return nil, errors.Wrapf(err, "Parsed model is not valid")
	}

	return m, nil
}

// ApplyEvidenceFromFile will read, parse, and apply the evidence
func (m *Model) ApplyEvidenceFromFile(r Reader, eviFilename string) error {
	data, err := os.ReadFile(eviFilename)
	if err != nil {
		return errors.Wrapf(err, "Could not READ model evidence from %s", eviFilename)
	}

	err = r.ApplyEvidence(data, m)
	if err != nil {
		return errors.Wrapf(err, "Could not apply evidence to model %s", m.Name)
	}

	m.cascaded = false
	return m.Check()
}

// Check returns an error if there is a problem with the model
func (m *Model) Check() error {
	if len(m.Vars) < 1 {
		return errors.Errorf("Model %s has no latent variables", m.Name)
	}

	varID := make(map[string]*Variable)
	for _, v := range m.Vars {
		e := v.Check()
		if e != nil {
			return errors.Wrapf(e, "Model %s has an invalid Variable %s", m.Name, v.ID)
		}

		_, ok := varID[v.ID]
		if ok {
			return errors.Errorf("Duplicate Id %s", v.ID)
		}
		varID[v.ID] = v
	}

	for _, o := range m.Observations {
		e := o.Check()
		if e != nil {
			return errors.Wrapf(e, "Model %s has an invalid Observation %s", m.Name, o.Name)
		}
		v, ok := varID[o.Of]
		if !ok {
			return errors.Errorf("Observation %s refers to unknown variable %s", o.Name, o.Of)
		}
		if v.Size() != 1 && v.Size() != len(o.Values) {
			return errors.Errorf("Observation %s has %d values for variable %s of size %d", o.Name, len(o.Values), v.ID, v.Size())
		}
	}

	return nil
}

// Layout returns the flat-buffer layout of the latent variables
func (m *Model) Layout() (*state.Layout, error) {
	if m.layout != nil {
		return m.layout, nil
	}

	ids := make([]string, len(m.Vars))
	shapes := make([][]int, len(m.Vars))
	for i, v := range m.Vars {
		ids[i] = v.ID
		shapes[i] = v.Shape
	}

	l, err := state.NewLayout(ids, shapes)
	if err != nil {
		return nil, errors.Wrapf(err, "Model %s has no valid layout", m.Name)
	}
	m.layout = l
	return l, nil
}

// ContinuousLatentIDs implements Graph
func (m *Model) ContinuousLatentIDs() []string {
	ids := make([]string, len(m.Vars))
	for i, v := range m.Vars {
		ids[i] = v.ID
	}
	return ids
}

// CurrentPosition implements Graph
func (m *Model) CurrentPosition() (*state.Vector, error) {
	l, err := m.Layout()
	if err != nil {
		return nil, err
	}

	pos := l.Zeros()
	for _, v := range m.Vars {
		if err := pos.Set(v.ID, v.Value); err != nil {
			return nil, errors.Wrapf(err, "Variable %s does not match its shape", v.ID)
		}
	}
	return pos, nil
}

// SetPosition copies the values of pos back into the latent variables
func (m *Model) SetPosition(pos *state.Vector) error {
	l, err := m.Layout()
	if err != nil {
		return err
	}
	if !l.Equal(pos.Layout()) {
		return errors.Errorf("Position layout does not match model %s", m.Name)
	}

	for _, v := range m.Vars {
		v.Value = pos.Get(v.ID)
	}
	return nil
}

// CascadeObservations implements Graph. It checks the model, links every
// observation to its latent variable and verifies every latent variable has
// a differentiable path to the joint log probability.
func (m *Model) CascadeObservations() error {
	if err := m.Check(); err != nil {
		return err
	}
	if _, err := m.Layout(); err != nil {
		return err
	}

	m.linked = make(map[string]bool, len(m.Vars))
	for _, v := range m.Vars {
		if v.Prior != nil {
			m.linked[v.ID] = true
		}
	}
	for _, o := range m.Observations {
		m.linked[o.Of] = true
	}

	for _, v := range m.Vars {
		if !m.linked[v.ID] {
			return errors.Wrapf(ErrUngradientable, "Variable %s has no prior and no observations", v.ID)
		}
	}

	m.cascaded = true
	return nil
}

// LogProbAndGradient implements Graph
func (m *Model) LogProbAndGradient(pos *state.Vector) (float64, *state.Vector, error) {
	if !m.cascaded {
		return 0, nil, errors.Errorf("Model %s: observations have not been cascaded", m.Name)
	}
	if !m.layout.Equal(pos.Layout()) {
		return 0, nil, errors.Errorf("Position layout does not match model %s", m.Name)
	}

	grad := m.layout.Zeros()
	x := pos.Raw()
	g := grad.Raw()

	logProb := 0.0
	for _, v := range m.Vars {
		if v.Prior == nil {
			continue
		}
		d, err := v.Prior.density()
		if err != nil {
			return 0, nil, errors.Wrapf(err, "Variable %s prior", v.ID)
		}
		start, end, _ := m.layout.Span(v.ID)
		for i := start; i < end; i++ {
			logProb += d.logProb(x[i])
			g[i] += d.dLogProb(x[i])
		}
	}

	for _, o := range m.Observations {
		start, end, ok := m.layout.Span(o.Of)
		if !ok {
			return 0, nil, errors.Errorf("Observation %s refers to unknown variable %s", o.Name, o.Of)
		}
		lp, err := o.accumulate(x[start:end], g[start:end])
		if err != nil {
			return 0, nil, err
		}
		logProb += lp
	}

	return logProb, grad, nil
}
