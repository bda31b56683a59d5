// Package artifact loads the fitted scaler and regression model from their numeric
// exports. Both are decoded into plain Go structs once at startup and never mutated.
package artifact

import (
	"errors"
	"fmt"
	"math"

	"github.com/kjstillabower/fwi-predictor/internal/models"
)

// ErrIncompatible is returned when an artifact decodes but cannot serve the fixed feature layout.
var ErrIncompatible = errors.New("incompatible artifact")

// Scaler standardizes raw features with parameters fixed at training time.
type Scaler interface {
	Transform(v models.FeatureVector) (models.ScaledVector, error)
}

// Model maps a scaled vector to the predicted FWI.
type Model interface {
	Predict(v models.ScaledVector) (float64, error)
}

// checkFeatureNames verifies optional exported names match models.FeatureNames.
func checkFeatureNames(kind string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if len(names) != models.NumFeatures {
		return fmt.Errorf("%s: %w: %d feature names, want %d", kind, ErrIncompatible, len(names), models.NumFeatures)
	}
	for i, n := range names {
		if n != models.FeatureNames[i] {
			return fmt.Errorf("%s: %w: feature %d is %q, want %q", kind, ErrIncompatible, i, n, models.FeatureNames[i])
		}
	}
	return nil
}

func checkLen(kind, field string, got int) error {
	if got != models.NumFeatures {
		return fmt.Errorf("%s: %w: %s has %d values, want %d", kind, ErrIncompatible, field, got, models.NumFeatures)
	}
	return nil
}

func checkFinite(kind, field string, vals ...float64) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w: %s[%d] is not finite", kind, ErrIncompatible, field, i)
		}
	}
	return nil
}
