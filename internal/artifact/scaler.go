package artifact

import (
	"fmt"
	"math"

	"github.com/kjstillabower/fwi-predictor/internal/models"
)

// StandardScaler applies (x - mean) / scale per feature.
type StandardScaler struct {
	mean  [models.NumFeatures]float64
	scale [models.NumFeatures]float64
}

type scalerFile struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// NewStandardScaler validates parameters and returns a scaler. Scale entries must be finite and non-zero.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if err := checkLen("scaler", "mean", len(mean)); err != nil {
		return nil, err
	}
	if err := checkLen("scaler", "scale", len(scale)); err != nil {
		return nil, err
	}
	if err := checkFinite("scaler", "mean", mean...); err != nil {
		return nil, err
	}
	if err := checkFinite("scaler", "scale", scale...); err != nil {
		return nil, err
	}
	s := &StandardScaler{}
	for i := range s.mean {
		if scale[i] == 0 {
			return nil, fmt.Errorf("scaler: %w: scale[%d] is zero", ErrIncompatible, i)
		}
		s.mean[i] = mean[i]
		s.scale[i] = scale[i]
	}
	return s, nil
}

// Transform implements Scaler.
func (s *StandardScaler) Transform(v models.FeatureVector) (models.ScaledVector, error) {
	var out models.ScaledVector
	for i, x := range v {
		out[i] = (x - s.mean[i]) / s.scale[i]
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return models.ScaledVector{}, fmt.Errorf("scale %s: result not finite", models.FeatureNames[i])
		}
	}
	return out, nil
}

// Mean returns a copy of the per-feature means.
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.mean[:]...) }

// Scale returns a copy of the per-feature scales.
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale[:]...) }
