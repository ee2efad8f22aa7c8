package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/hospitalintelligence/internal/application/services"
	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

func TestFeatureService_Derive(t *testing.T) {
	svc := services.NewFeatureService()

	t.Run("saturday date gives weekend", func(t *testing.T) {
		obs := entities.LoadInput{
			AdmissionDate:        time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
			RecentEmergencies24h: 12,
			BedOccupancy:         0.8,
			ICUOccupancy:         0.5,
		}.Observation()

		fv, err := svc.Derive(obs, entities.LoadSchema)
		require.NoError(t, err)

		assert.Equal(t, entities.LoadSchema, fv.Names())
		assert.Equal(t, []float64{5, 3, 1, 12, 0.8, 0.5}, fv.Values())
	})

	t.Run("monday is day zero and not weekend", func(t *testing.T) {
		obs := entities.NewRawObservation().SetAdmissionDate(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC))

		fv, err := svc.Derive(obs, entities.FeatureSchema{entities.FeatureDayOfWeek, entities.FeatureIsWeekend})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0}, fv.Values())
	})

	t.Run("sunday is day six", func(t *testing.T) {
		obs := entities.NewRawObservation().SetAdmissionDate(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC))

		fv, err := svc.Derive(obs, entities.FeatureSchema{entities.FeatureDayOfWeek, entities.FeatureIsWeekend})
		require.NoError(t, err)
		assert.Equal(t, []float64{6, 1}, fv.Values())
	})

	t.Run("clinical form follows schema order with emergency flag default", func(t *testing.T) {
		fv, err := svc.Derive(entities.DefaultClinicalInput().Observation(), entities.ClinicalSchema)
		require.NoError(t, err)

		assert.Equal(t, entities.ClinicalSchema, fv.Names())
		assert.Equal(t, []float64{40, 25000, 0.75, 0.60, 45, 10, 2, 1, 30}, fv.Values())
	})

	t.Run("explicit emergency flag wins", func(t *testing.T) {
		obs := entities.NewRawObservation().Set(entities.FieldEmergencyFlag, 0)

		fv, err := svc.Derive(obs, entities.FeatureSchema{entities.FeatureEmergencyFlag})
		require.NoError(t, err)
		assert.Equal(t, []float64{0}, fv.Values())
	})

	t.Run("is deterministic", func(t *testing.T) {
		obs := entities.DefaultClinicalInput().Observation()
		a, err := svc.Derive(obs, entities.ClinicalSchema)
		require.NoError(t, err)
		b, err := svc.Derive(obs, entities.ClinicalSchema)
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
	})

	t.Run("date and explicit day disagree", func(t *testing.T) {
		obs := entities.NewRawObservation().
			SetAdmissionDate(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)).
			Set(entities.FieldDayOfWeek, 2)

		_, err := svc.Derive(obs, entities.FeatureSchema{entities.FeatureDayOfWeek})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
	})

	t.Run("date and explicit day agree", func(t *testing.T) {
		obs := entities.NewRawObservation().
			SetAdmissionDate(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)).
			Set(entities.FieldDayOfWeek, 5)

		fv, err := svc.Derive(obs, entities.FeatureSchema{entities.FeatureDayOfWeek})
		require.NoError(t, err)
		assert.Equal(t, []float64{5}, fv.Values())
	})

	t.Run("missing fields are all reported", func(t *testing.T) {
		obs := entities.NewRawObservation().Set(entities.FieldAge, 40)

		_, err := svc.Derive(obs, entities.LoadSchema)
		require.Error(t, err)

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorTypeSchemaMismatch, appErr.Type)
		assert.Equal(t, []string{
			entities.FieldDayOfWeek,
			"admission_date",
			entities.FieldRecentEmergencies24h,
			entities.FieldBedOccupancy,
			entities.FieldICUOccupancy,
		}, appErr.MissingFields)
	})

	t.Run("unknown feature", func(t *testing.T) {
		_, err := svc.Derive(entities.NewRawObservation(), entities.FeatureSchema{"Blood_Pressure"})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSchemaMismatch))
		assert.Contains(t, err.Error(), "Blood_Pressure")
	})

	t.Run("nil observation", func(t *testing.T) {
		_, err := svc.Derive(nil, entities.LoadSchema)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}
