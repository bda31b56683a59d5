package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/fwi-predictor/internal/artifact"
	"github.com/kjstillabower/fwi-predictor/internal/models"
	"github.com/kjstillabower/fwi-predictor/internal/validation"
)

var (
	testScaler = filepath.Join("..", "..", "models", "scaler1.json")
	testModel  = filepath.Join("..", "..", "models", "ridge1.json")
)

func TestRun_PrintsParameters(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, run([]string{"-scaler", testScaler, "-model", testModel}, &out, &errOut))

	store, err := artifact.Load(testScaler, testModel)
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "fingerprint: "+store.Fingerprint())
	for _, name := range models.FeatureNames {
		assert.Contains(t, s, name)
	}
	assert.Contains(t, s, "intercept:")
	assert.NotContains(t, s, "fwi:")
}

func TestRun_JSONWithPrediction(t *testing.T) {
	var out, errOut bytes.Buffer
	args := []string{"-scaler", testScaler, "-model", testModel, "-json",
		"-Temperature", "29", "-RH", "57", "-Ws", "18", "-Rain", "0", "-FFMC", "65.7",
		"-DMC", "3.4", "-ISI", "1.3", "-Classes", "0", "-Region", "0"}
	require.NoError(t, run(args, &out, &errOut))

	var rep report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	require.Len(t, rep.Features, models.NumFeatures)
	require.NotNil(t, rep.Prediction)

	store, err := artifact.Load(testScaler, testModel)
	require.NoError(t, err)
	scaled, err := store.Scaler().Transform(models.FeatureVector{29, 57, 18, 0, 65.7, 3.4, 1.3, 0, 0})
	require.NoError(t, err)
	want, err := store.Model().Predict(scaled)
	require.NoError(t, err)
	assert.Equal(t, want, rep.Prediction.FWI)
	assert.Equal(t, models.Classify(want), rep.Prediction.RiskLevel)
}

func TestRun_PartialInputRejected(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run([]string{"-scaler", testScaler, "-model", testModel, "-Temperature", "29"}, &out, &errOut)

	var fe *validation.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "RH", fe.Field)
	assert.ErrorIs(t, err, validation.ErrFieldMissing)
}

func TestRun_MissingArtifact(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run([]string{"-scaler", filepath.Join(t.TempDir(), "nope.json"), "-model", testModel}, &out, &errOut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
