package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/fwi-predictor/internal/models"
)

// ErrFieldMissing is returned when a required feature is absent or empty.
var ErrFieldMissing = errors.New("is required")

// ErrFieldNotNumeric is returned when a feature does not parse as a finite number.
var ErrFieldNotNumeric = errors.New("must be a valid number")

// ErrBadBody is returned when a JSON request body cannot be decoded.
var ErrBadBody = errors.New("request body must be a JSON object")

// FieldError names the offending feature. Unwraps to ErrFieldMissing or ErrFieldNotNumeric.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ParseForm reads the nine features from form values in models.FeatureNames order.
// Names are case-sensitive. The first failing field is reported.
func ParseForm(values url.Values) (models.FeatureVector, error) {
	var v models.FeatureVector
	for i, name := range models.FeatureNames {
		x, err := parseValue(values.Get(name))
		if err != nil {
			return models.FeatureVector{}, &FieldError{Field: name, Err: err}
		}
		v[i] = x
	}
	return v, nil
}

// ParseJSON reads the nine features from a JSON object. Values may be numbers or numeric strings.
func ParseJSON(r io.Reader) (models.FeatureVector, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return models.FeatureVector{}, fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if body == nil {
		return models.FeatureVector{}, ErrBadBody
	}

	var v models.FeatureVector
	for i, name := range models.FeatureNames {
		var (
			x   float64
			err error
		)
		switch raw := body[name].(type) {
		case nil:
			err = ErrFieldMissing
		case json.Number:
			x, err = parseValue(raw.String())
		case string:
			x, err = parseValue(raw)
		default:
			err = ErrFieldNotNumeric
		}
		if err != nil {
			return models.FeatureVector{}, &FieldError{Field: name, Err: err}
		}
		v[i] = x
	}
	return v, nil
}

// parseValue trims s and parses it as a finite float64. NaN and infinities are rejected.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrFieldMissing
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, ErrFieldNotNumeric
	}
	return x, nil
}
