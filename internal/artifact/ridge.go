package artifact

import (
	"fmt"
	"math"

	"github.com/kjstillabower/fwi-predictor/internal/models"
)

// Ridge is a fitted linear model: intercept + sum(coef[i] * x[i]).
// Alpha is the L2 penalty used at training time; informational only.
type Ridge struct {
	coef      [models.NumFeatures]float64
	intercept float64
	alpha     float64
}

type ridgeFile struct {
	FeatureNames []string  `json:"feature_names"`
	Coef         []float64 `json:"coef"`
	Intercept    *float64  `json:"intercept"`
	Alpha        float64   `json:"alpha"`
}

// NewRidge validates parameters and returns a model.
func NewRidge(coef []float64, intercept, alpha float64) (*Ridge, error) {
	if err := checkLen("model", "coef", len(coef)); err != nil {
		return nil, err
	}
	if err := checkFinite("model", "coef", coef...); err != nil {
		return nil, err
	}
	if err := checkFinite("model", "intercept", intercept); err != nil {
		return nil, err
	}
	if err := checkFinite("model", "alpha", alpha); err != nil {
		return nil, err
	}
	m := &Ridge{intercept: intercept, alpha: alpha}
	copy(m.coef[:], coef)
	return m, nil
}

// Predict implements Model.
func (m *Ridge) Predict(v models.ScaledVector) (float64, error) {
	y := m.intercept
	for i, x := range v {
		y += m.coef[i] * x
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("predict: result not finite")
	}
	return y, nil
}

// Coef returns a copy of the coefficients.
func (m *Ridge) Coef() []float64 { return append([]float64(nil), m.coef[:]...) }

// Intercept returns the model intercept.
func (m *Ridge) Intercept() float64 { return m.intercept }

// Alpha returns the training-time L2 penalty.
func (m *Ridge) Alpha() float64 { return m.alpha }
