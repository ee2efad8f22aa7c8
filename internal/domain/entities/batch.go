package entities

import "time"

// Required columns of an uploaded batch file
const (
	ColumnAdmissionDate        = "Admission_Date"
	ColumnRecentEmergencies24h = "Recent_Emergencies_24h"
	ColumnBedOccupancyRate     = "Bed_Occupancy_Rate"
	ColumnICUOccupancyRate     = "ICU_Occupancy_Rate"
)

// RequiredBatchColumns lists the columns every batch file must carry
var RequiredBatchColumns = []string{
	ColumnAdmissionDate,
	ColumnRecentEmergencies24h,
	ColumnBedOccupancyRate,
	ColumnICUOccupancyRate,
}

// BatchRow is one scored line of a batch file
type BatchRow struct {
	Line           int
	Input          LoadInput
	EmergencyCount int
	ICUDemand      int
	Level          RiskLevel
	Recommendation string
}

// BatchThresholds records the cutoffs one batch was classified with
type BatchThresholds struct {
	Policy ThresholdPolicy
	P50    float64
	P80    float64
}

// BatchReport is the rendered result of one batch upload
type BatchReport struct {
	ID         string
	Rows       []BatchRow
	Thresholds BatchThresholds
	Counts     map[RiskLevel]int
	Trend      []TrendPoint
	CreatedAt  time.Time
}

// HighCount returns the number of rows classified HIGH
func (r *BatchReport) HighCount() int {
	return r.Counts[RiskHigh]
}
