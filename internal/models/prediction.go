package models

import "strconv"

// RiskLevel is the fire danger band derived from a predicted FWI.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskExtreme  RiskLevel = "Extreme"
)

// Prediction is the model output for one FeatureVector plus its risk band.
type Prediction struct {
	FWI             float64   `json:"fwi"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Description     string    `json:"description"`
	Recommendations []string  `json:"recommendations"`
	Cached          bool      `json:"cached,omitempty"` // served from the result cache
}

// Classify returns the risk band for an FWI value.
// Bands: < 5 Low, < 15 Moderate, < 30 High, otherwise Extreme.
func Classify(fwi float64) RiskLevel {
	switch {
	case fwi < 5:
		return RiskLow
	case fwi < 15:
		return RiskModerate
	case fwi < 30:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

// Description returns a one-line summary of the band.
func (r RiskLevel) Description() string {
	switch r {
	case RiskLow:
		return "Very low fire danger conditions"
	case RiskModerate:
		return "Moderate fire danger conditions"
	case RiskHigh:
		return "High fire danger conditions"
	default:
		return "Extreme fire danger conditions"
	}
}

// Recommendations returns the safety guidance shown with the band.
func (r RiskLevel) Recommendations() []string {
	switch r {
	case RiskLow:
		return []string{
			"Normal fire safety precautions apply",
			"Outdoor activities can proceed as planned",
			"Monitor weather conditions regularly",
		}
	case RiskModerate:
		return []string{
			"Increased awareness of fire conditions",
			"Avoid outdoor burning activities",
			"Keep fire suppression equipment nearby",
		}
	case RiskHigh:
		return []string{
			"Exercise extreme caution with fire",
			"Postpone non-essential outdoor burning",
			"Have emergency evacuation plans ready",
		}
	default:
		return []string{
			"No outdoor burning permitted",
			"Prepare for potential evacuations",
			"Monitor emergency broadcasts closely",
		}
	}
}

// NewPrediction builds a Prediction for fwi with its band details filled in.
func NewPrediction(fwi float64) Prediction {
	level := Classify(fwi)
	return Prediction{
		FWI:             fwi,
		RiskLevel:       level,
		Description:     level.Description(),
		Recommendations: level.Recommendations(),
	}
}

// FormatFWI renders v with the shortest decimal that parses back to the same float64.
func FormatFWI(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
