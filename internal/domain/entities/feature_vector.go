package entities

import (
	"fmt"
	"strings"
)

// Feature names as the models were trained on them
const (
	FeatureAge                  = "Age"
	FeatureCost                 = "Cost"
	FeatureBedOccupancyRate     = "Bed_Occupancy_Rate"
	FeatureICUOccupancyRate     = "ICU_Occupancy_Rate"
	FeatureStaffWorkloadScore   = "Staff_Workload_Score"
	FeatureHour                 = "Hour"
	FeatureDayOfWeek            = "DayOfWeek"
	FeatureMonth                = "Month"
	FeatureIsWeekend            = "Is_Weekend"
	FeatureEmergencyFlag        = "Emergency_Flag"
	FeatureRecentEmergencies24h = "Recent_Emergencies_24h"
)

// FeatureSchema is the ordered list of feature names a predictor expects.
// Both names and order are significant.
type FeatureSchema []string

// ClinicalSchema is the input schema of the ICU, emergency and staff models
var ClinicalSchema = FeatureSchema{
	FeatureAge,
	FeatureCost,
	FeatureBedOccupancyRate,
	FeatureICUOccupancyRate,
	FeatureStaffWorkloadScore,
	FeatureHour,
	FeatureDayOfWeek,
	FeatureEmergencyFlag,
	FeatureRecentEmergencies24h,
}

// LoadSchema is the input schema of the combined emergency-load model
var LoadSchema = FeatureSchema{
	FeatureDayOfWeek,
	FeatureMonth,
	FeatureIsWeekend,
	FeatureRecentEmergencies24h,
	FeatureBedOccupancyRate,
	FeatureICUOccupancyRate,
}

// Equal reports whether both schemas list the same names in the same order
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the schema as a comma separated list
func (s FeatureSchema) String() string {
	return strings.Join(s, ",")
}

// FeatureVector holds named numeric features in a fixed order. It is never
// mutated after creation; accessors hand out copies.
type FeatureVector struct {
	names  []string
	values []float64
}

// NewFeatureVector builds a vector from parallel name and value slices
func NewFeatureVector(names []string, values []float64) (FeatureVector, error) {
	if len(names) != len(values) {
		return FeatureVector{}, fmt.Errorf("feature vector has %d names but %d values", len(names), len(values))
	}
	return FeatureVector{
		names:  append([]string(nil), names...),
		values: append([]float64(nil), values...),
	}, nil
}

// Len returns the number of features
func (v FeatureVector) Len() int {
	return len(v.names)
}

// Names returns the feature names in order
func (v FeatureVector) Names() FeatureSchema {
	return append(FeatureSchema(nil), v.names...)
}

// Values returns the feature values in order
func (v FeatureVector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

// Get returns the value of a named feature
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.names {
		if n == name {
			return v.values[i], true
		}
	}
	return 0, false
}

// Equal reports whether two vectors have identical names, order and values
func (v FeatureVector) Equal(other FeatureVector) bool {
	if !FeatureSchema(v.names).Equal(other.names) {
		return false
	}
	for i := range v.values {
		if v.values[i] != other.values[i] {
			return false
		}
	}
	return true
}
