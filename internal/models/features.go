package models

// NumFeatures is the length of a FeatureVector.
const NumFeatures = 9

// FeatureNames lists the form field names in the order the scaler and model were fitted on.
var FeatureNames = [NumFeatures]string{
	"Temperature",
	"RH",
	"Ws",
	"Rain",
	"FFMC",
	"DMC",
	"ISI",
	"Classes",
	"Region",
}

// FeatureVector holds the nine raw inputs in FeatureNames order.
type FeatureVector [NumFeatures]float64

// ScaledVector is a FeatureVector after standardization. Request-scoped.
type ScaledVector [NumFeatures]float64

// Map returns the vector keyed by feature name.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range FeatureNames {
		m[name] = v[i]
	}
	return m
}
