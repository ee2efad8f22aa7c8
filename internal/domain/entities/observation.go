package entities

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

// Raw field names collected from the dashboard form or a batch file
const (
	FieldAge                  = "age"
	FieldCost                 = "cost"
	FieldBedOccupancy         = "bed_occupancy"
	FieldICUOccupancy         = "icu_occupancy"
	FieldStaffWorkloadScore   = "staff_workload_score"
	FieldRecentEmergencies24h = "recent_emergencies_24h"
	FieldHour                 = "hour"
	FieldDayOfWeek            = "day_of_week"
	FieldEmergencyFlag        = "emergency_flag"
)

// RawObservation is one row of input: numeric fields keyed by raw field name
// plus an optional admission date. It is built once per form submit or CSV row.
type RawObservation struct {
	fields        map[string]float64
	admissionDate time.Time
	hasDate       bool
}

// NewRawObservation creates an empty observation
func NewRawObservation() *RawObservation {
	return &RawObservation{fields: make(map[string]float64)}
}

// Set stores a raw field value
func (o *RawObservation) Set(field string, value float64) *RawObservation {
	o.fields[field] = value
	return o
}

// SetAdmissionDate stores the admission date
func (o *RawObservation) SetAdmissionDate(d time.Time) *RawObservation {
	o.admissionDate = d
	o.hasDate = true
	return o
}

// Field returns a raw field value and whether it was supplied
func (o *RawObservation) Field(field string) (float64, bool) {
	v, ok := o.fields[field]
	return v, ok
}

// AdmissionDate returns the admission date and whether it was supplied
func (o *RawObservation) AdmissionDate() (time.Time, bool) {
	return o.admissionDate, o.hasDate
}

// ClinicalInput is the slider-based form used by the three-model dashboard
type ClinicalInput struct {
	Age                  int
	Cost                 int
	BedOccupancy         float64
	ICUOccupancy         float64
	StaffWorkloadScore   float64
	RecentEmergencies24h int
	Hour                 int
	DayOfWeek            int
}

// DefaultClinicalInput returns the values the form starts with
func DefaultClinicalInput() ClinicalInput {
	return ClinicalInput{
		Age:                  40,
		Cost:                 25000,
		BedOccupancy:         0.75,
		ICUOccupancy:         0.60,
		StaffWorkloadScore:   45,
		RecentEmergencies24h: 30,
		Hour:                 10,
		DayOfWeek:            2,
	}
}

// Validate checks every field against its documented domain
func (in ClinicalInput) Validate() error {
	checks := []error{
		intInRange("age", in.Age, 1, 100),
		intInRange("cost", in.Cost, 1000, 500000),
		fractionInRange("bed_occupancy", in.BedOccupancy),
		fractionInRange("icu_occupancy", in.ICUOccupancy),
		floatInRange("staff_workload_score", in.StaffWorkloadScore, 0, 100),
		intInRange("recent_emergencies_24h", in.RecentEmergencies24h, 0, 200),
		intInRange("hour", in.Hour, 0, 23),
		intInRange("day_of_week", in.DayOfWeek, 0, 6),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// Observation converts the form into a raw observation
func (in ClinicalInput) Observation() *RawObservation {
	return NewRawObservation().
		Set(FieldAge, float64(in.Age)).
		Set(FieldCost, float64(in.Cost)).
		Set(FieldBedOccupancy, in.BedOccupancy).
		Set(FieldICUOccupancy, in.ICUOccupancy).
		Set(FieldStaffWorkloadScore, in.StaffWorkloadScore).
		Set(FieldRecentEmergencies24h, float64(in.RecentEmergencies24h)).
		Set(FieldHour, float64(in.Hour)).
		Set(FieldDayOfWeek, float64(in.DayOfWeek))
}

// LoadInput is the date-based form used by the combined emergency-load model
type LoadInput struct {
	AdmissionDate        time.Time
	RecentEmergencies24h int
	BedOccupancy         float64
	ICUOccupancy         float64
}

// Validate checks every field against its documented domain
func (in LoadInput) Validate() error {
	if in.AdmissionDate.IsZero() {
		return apperrors.NewInvalidInputError("admission_date is required")
	}
	if in.RecentEmergencies24h < 0 {
		return apperrors.NewInvalidInputError("recent_emergencies_24h must not be negative")
	}
	if err := fractionInRange("bed_occupancy", in.BedOccupancy); err != nil {
		return err
	}
	return fractionInRange("icu_occupancy", in.ICUOccupancy)
}

// Observation converts the form into a raw observation
func (in LoadInput) Observation() *RawObservation {
	return NewRawObservation().
		SetAdmissionDate(in.AdmissionDate).
		Set(FieldRecentEmergencies24h, float64(in.RecentEmergencies24h)).
		Set(FieldBedOccupancy, in.BedOccupancy).
		Set(FieldICUOccupancy, in.ICUOccupancy)
}

func intInRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return apperrors.NewInvalidInputError(fmt.Sprintf("%s must be between %d and %d, got %d", name, lo, hi, v))
	}
	return nil
}

func floatInRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return apperrors.NewInvalidInputError(fmt.Sprintf("%s must be between %g and %g, got %g", name, lo, hi, v))
	}
	return nil
}

func fractionInRange(name string, v float64) error {
	return floatInRange(name, v, 0, 1)
}
