package services

import (
	"fmt"
	"time"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

// admissionDateField names the date in missing-field lists
const admissionDateField = "admission_date"

// passthroughFields maps schema features copied verbatim from a raw field
var passthroughFields = map[string]string{
	entities.FeatureAge:                  entities.FieldAge,
	entities.FeatureCost:                 entities.FieldCost,
	entities.FeatureBedOccupancyRate:     entities.FieldBedOccupancy,
	entities.FeatureICUOccupancyRate:     entities.FieldICUOccupancy,
	entities.FeatureStaffWorkloadScore:   entities.FieldStaffWorkloadScore,
	entities.FeatureHour:                 entities.FieldHour,
	entities.FeatureRecentEmergencies24h: entities.FieldRecentEmergencies24h,
}

// FeatureService turns raw observations into model-ready feature vectors
type FeatureService struct{}

// NewFeatureService creates a new feature service
func NewFeatureService() *FeatureService {
	return &FeatureService{}
}

// Derive builds the vector for schema from obs. The result follows the
// schema's order exactly. Every absent raw field is reported in a single
// SchemaMismatch error so no predictor is ever called with partial input.
func (s *FeatureService) Derive(obs *entities.RawObservation, schema entities.FeatureSchema) (entities.FeatureVector, error) {
	if obs == nil {
		return entities.FeatureVector{}, apperrors.NewValidationError("observation is required")
	}

	values := make([]float64, len(schema))
	var missing []string
	addMissing := func(field string) {
		for _, m := range missing {
			if m == field {
				return
			}
		}
		missing = append(missing, field)
	}

	for i, name := range schema {
		switch name {
		case entities.FeatureDayOfWeek:
			dow, ok, err := dayOfWeek(obs)
			if err != nil {
				return entities.FeatureVector{}, err
			}
			if !ok {
				addMissing(entities.FieldDayOfWeek)
				continue
			}
			values[i] = float64(dow)

		case entities.FeatureIsWeekend:
			dow, ok, err := dayOfWeek(obs)
			if err != nil {
				return entities.FeatureVector{}, err
			}
			if !ok {
				addMissing(entities.FieldDayOfWeek)
				continue
			}
			if dow >= 5 {
				values[i] = 1
			}

		case entities.FeatureMonth:
			date, ok := obs.AdmissionDate()
			if !ok {
				addMissing(admissionDateField)
				continue
			}
			values[i] = float64(date.Month())

		case entities.FeatureEmergencyFlag:
			values[i] = 1
			if v, ok := obs.Field(entities.FieldEmergencyFlag); ok {
				values[i] = v
			}

		default:
			field, known := passthroughFields[name]
			if !known {
				return entities.FeatureVector{}, apperrors.NewSchemaConflictError(
					fmt.Sprintf("model expects unknown feature %q", name))
			}
			v, ok := obs.Field(field)
			if !ok {
				addMissing(field)
				continue
			}
			values[i] = v
		}
	}

	if len(missing) > 0 {
		return entities.FeatureVector{}, apperrors.NewSchemaMismatchError("observation", missing)
	}

	return entities.NewFeatureVector(schema, values)
}

// dayOfWeek returns the Monday-based weekday of the admission date, falling
// back to the explicit day_of_week field. Both present and disagreeing is an error.
func dayOfWeek(obs *entities.RawObservation) (int, bool, error) {
	explicit, hasExplicit := obs.Field(entities.FieldDayOfWeek)
	date, hasDate := obs.AdmissionDate()

	if !hasDate {
		if !hasExplicit {
			return 0, false, nil
		}
		return int(explicit), true, nil
	}

	dow := mondayIndex(date.Weekday())
	if hasExplicit && int(explicit) != dow {
		return 0, false, apperrors.NewInvalidInputError(fmt.Sprintf(
			"day_of_week %d does not match admission date %s (%s)",
			int(explicit), date.Format("2006-01-02"), date.Weekday()))
	}
	return dow, true, nil
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
