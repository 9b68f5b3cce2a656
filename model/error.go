package model

import (
	"math"

	"github.com/pkg/errors"
)

// ErrorSuite represents all the loss/error functions we use to judge an
// estimated set of marginals against a reference. Every scalar element of
// every variable is scored as a normal approximation N(mean, sd). Errors
// beginning with Mean are the mean across all elements while Max is the
// maximum value. So MeanMeanAbsError is the MEAN absolute error of the
// element means, and MaxSDAbsError is the largest absolute error of an
// element's standard deviation.
type ErrorSuite struct {
	MeanMeanAbsError float64
	MeanSDAbsError   float64
	MeanHellinger    float64
	MeanKLDiverge    float64

	MaxMeanAbsError float64
	MaxSDAbsError   float64
	MaxHellinger    float64
	MaxKLDiverge    float64
}

// NewErrorSuite returns an ErrorSuite with all calculated error functions.
// Variables are matched by id.
func NewErrorSuite(estimate []*SolutionVar, reference []*SolutionVar) (*ErrorSuite, error) {
	if len(estimate) != len(reference) {
		return nil, errors.Errorf("Variable count mismatch %d != %d", len(estimate), len(reference))
	}

	ref := make(map[string]*SolutionVar, len(reference))
	for _, r := range reference {
		if err := r.Check(); err != nil {
			return nil, errors.Wrap(err, "Invalid reference")
		}
		ref[r.ID] = r
	}

	es := ErrorSuite{}
	count := 0

	var d float64
	for _, est := range estimate {
		if err := est.Check(); err != nil {
			return nil, errors.Wrap(err, "Invalid estimate")
		}
		r, ok := ref[est.ID]
		if !ok {
			return nil, errors.Errorf("Variable %s has no reference", est.ID)
		}
		if len(r.Mean) != len(est.Mean) {
			return nil, errors.Errorf("Variable %s size mismatch %d != %d", est.ID, len(est.Mean), len(r.Mean))
		}

		for i := range est.Mean {
			m1, s1 := est.Mean[i], est.SD[i]
			m2, s2 := r.Mean[i], r.SD[i]

			d = math.Abs(m1 - m2)
			es.MeanMeanAbsError += d
			es.MaxMeanAbsError = math.Max(d, es.MaxMeanAbsError)

			d = math.Abs(s1 - s2)
			es.MeanSDAbsError += d
			es.MaxSDAbsError = math.Max(d, es.MaxSDAbsError)

			d = NormalHellinger(m1, s1, m2, s2)
			es.MeanHellinger += d
			es.MaxHellinger = math.Max(d, es.MaxHellinger)

			d = NormalKL(m2, s2, m1, s1)
			es.MeanKLDiverge += d
			es.MaxKLDiverge = math.Max(d, es.MaxKLDiverge)

			count++
		}
	}

	if count < 1 {
		return nil, errors.Errorf("No variables to score")
	}

	fc := float64(count)
	es.MeanMeanAbsError /= fc
	es.MeanSDAbsError /= fc
	es.MeanHellinger /= fc
	es.MeanKLDiverge /= fc

	return &es, nil
}

// NormalHellinger returns the Hellinger distance between N(m1, s1) and
// N(m2, s2). It is symmetric and lies in [0, 1].
func NormalHellinger(m1, s1, m2, s2 float64) float64 {
	v := s1*s1 + s2*s2
	bc := math.Sqrt(2*s1*s2/v) * math.Exp(-(m1-m2)*(m1-m2)/(4*v))
	return math.Sqrt(math.Max(0, 1-bc))
}

// NormalKL returns the Kullback–Leibler divergence D_KL(N(m1,s1) || N(m2,s2)),
// which is non-symmetric!
func NormalKL(m1, s1, m2, s2 float64) float64 {
	return math.Log(s2/s1) + (s1*s1+(m1-m2)*(m1-m2))/(2*s2*s2) - 0.5
}
