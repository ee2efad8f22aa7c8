package entities

import (
	"strings"
	"time"
)

// RiskLevel is the categorical label derived from a prediction
type RiskLevel string

const (
	RiskHigh     RiskLevel = "HIGH"
	RiskModerate RiskLevel = "MODERATE"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// IsValid checks the level is one of the defined constants
func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskHigh, RiskModerate, RiskMedium, RiskLow:
		return true
	}
	return false
}

// CSSClass returns the alert style used to render the level
func (l RiskLevel) CSSClass() string {
	switch l {
	case RiskHigh:
		return "alert-high"
	case RiskModerate, RiskMedium:
		return "alert-moderate"
	default:
		return "alert-low"
	}
}

// Lower returns the level in lower case for CSS and log fields
func (l RiskLevel) Lower() string {
	return strings.ToLower(string(l))
}

// ThresholdPolicy selects how emergency counts become risk levels in batch mode
type ThresholdPolicy string

const (
	// PolicyFixed compares every row against constant count cutoffs
	PolicyFixed ThresholdPolicy = "fixed"
	// PolicyQuantile compares every row against the batch's own 50th/80th percentiles,
	// so the same count can land in different bands in different batches
	PolicyQuantile ThresholdPolicy = "quantile"
)

// IsValid checks the policy is one of the defined constants
func (p ThresholdPolicy) IsValid() bool {
	return p == PolicyFixed || p == PolicyQuantile
}

// ClinicalPrediction holds the raw outputs of the three clinical models
type ClinicalPrediction struct {
	ICUProbability float64
	EmergencyCount int
	StaffClass     int
	StaffLabel     string
}

// LoadPrediction holds the output of the combined emergency-load model and
// the ICU demand derived from it
type LoadPrediction struct {
	EmergencyCount int
	ICUDemand      int
}

// Recommendation is a staffing action for a risk level
type Recommendation struct {
	Level RiskLevel
	Text  string
}

// Alert is a banner shown under a prediction panel
type Alert struct {
	Level   RiskLevel
	Message string
}

// TrendPoint is one point of a projected series
type TrendPoint struct {
	Hour  int
	Value float64
}

// ICUPanel is the ICU risk section of the clinical report
type ICUPanel struct {
	Probability        float64
	Level              RiskLevel
	EmergencyInfluence int
	Alert              Alert
}

// EmergencyPanel is the emergency forecast section of the clinical report
type EmergencyPanel struct {
	Predicted int
	Delta     int
	Trend     []TrendPoint
}

// StaffPanel is the staff workload section of the clinical report
type StaffPanel struct {
	WorkloadScore  float64
	PredictedLevel string
	Level          RiskLevel
	Alert          Alert

	// Confidence is the model probability of the predicted class, set only
	// when the staff model exposes class probabilities
	Confidence    float64
	HasConfidence bool
}

// ClinicalReport is everything rendered after one slider-form prediction pass
type ClinicalReport struct {
	Input      ClinicalInput
	Features   FeatureVector
	Prediction ClinicalPrediction
	ICU        ICUPanel
	Emergency  EmergencyPanel
	Staff      StaffPanel
	CreatedAt  time.Time
}

// LoadReport is everything rendered after one date-form prediction pass
type LoadReport struct {
	Input          LoadInput
	Features       FeatureVector
	Prediction     LoadPrediction
	Level          RiskLevel
	Recommendation Recommendation
	Alert          Alert
	Trend          []TrendPoint
	CreatedAt      time.Time
}
