package services_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/hospitalintelligence/internal/application/services"
	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

type clinicalModels struct {
	icu, emergency, staff, load *MockPredictor
	labels                      *MockLabelDecoder
}

func newClinicalModels() *clinicalModels {
	return &clinicalModels{
		icu:       NewMockPredictor("icu", entities.ClinicalSchema),
		emergency: NewMockPredictor("emergency", entities.ClinicalSchema),
		staff:     NewMockPredictor("staff", entities.ClinicalSchema),
		load:      NewMockPredictor("load", entities.LoadSchema),
		labels:    new(MockLabelDecoder),
	}
}

func (m *clinicalModels) set() *providers.ModelSet {
	return &providers.ModelSet{
		ICU:           m.icu,
		Emergency:     m.emergency,
		Staff:         m.staff,
		EmergencyLoad: m.load,
		StaffLabels:   m.labels,
	}
}

func TestPredictionService_PredictClinical(t *testing.T) {
	t.Run("renders all three panels", func(t *testing.T) {
		m := newClinicalModels()
		bus := new(MockEventBus)
		cfg := defaultConfig(t)
		svc := services.NewPredictionService(staticModels{set: m.set()}, cfg.Prediction, services.NewAlertPublisher(bus, nil), nil)

		m.icu.On("PredictProbability", mock.Anything).Return(0.55, nil).Once()
		m.emergency.On("Predict", mock.Anything).Return(32.7, nil).Once()
		m.staff.On("Predict", mock.Anything).Return(2.0, nil).Once()
		m.labels.On("Decode", 2).Return("Moderate", nil).Once()

		report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.NoError(t, err)

		assert.Equal(t, entities.RiskModerate, report.ICU.Level)
		assert.Equal(t, "MODERATE RISK - MONITOR CLOSELY", report.ICU.Alert.Message)
		assert.Equal(t, 30, report.ICU.EmergencyInfluence)
		assert.Equal(t, 32, report.Emergency.Predicted)
		assert.Equal(t, 30, report.Emergency.Delta)
		assert.Len(t, report.Emergency.Trend, 12)
		assert.Equal(t, "Moderate", report.Staff.PredictedLevel)
		assert.Equal(t, entities.RiskModerate, report.Staff.Level)
		assert.Equal(t, "MODERATE LOAD", report.Staff.Alert.Message)
		assert.Equal(t, entities.ClinicalSchema, report.Features.Names())

		m.icu.AssertExpectations(t)
		m.emergency.AssertExpectations(t)
		m.staff.AssertExpectations(t)
		bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("high icu risk publishes an alert", func(t *testing.T) {
		m := newClinicalModels()
		bus := new(MockEventBus)
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, services.NewAlertPublisher(bus, nil), nil)

		m.icu.On("PredictProbability", mock.Anything).Return(0.91, nil)
		m.emergency.On("Predict", mock.Anything).Return(10.0, nil)
		m.staff.On("Predict", mock.Anything).Return(1.0, nil)
		m.labels.On("Decode", 1).Return("Low", nil)
		bus.On("Publish", mock.Anything, providers.EventChannelAlerts, mock.MatchedBy(func(e *entities.AlertEvent) bool {
			return e.Source == entities.AlertSourceICU && e.Level == entities.RiskHigh && e.ID != ""
		})).Return(nil).Once()

		report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.NoError(t, err)
		assert.Equal(t, "CRITICAL ICU RISK - PREPARE NOW", report.ICU.Alert.Message)
		assert.Equal(t, "OPTIMAL STAFFING", report.Staff.Alert.Message)
		bus.AssertExpectations(t)
	})

	t.Run("alert publish failure does not fail the render", func(t *testing.T) {
		m := newClinicalModels()
		bus := new(MockEventBus)
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, services.NewAlertPublisher(bus, nil), nil)

		m.icu.On("PredictProbability", mock.Anything).Return(0.95, nil)
		m.emergency.On("Predict", mock.Anything).Return(10.0, nil)
		m.staff.On("Predict", mock.Anything).Return(0.0, nil)
		m.labels.On("Decode", 0).Return("High", nil)
		bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.NoError(t, err)
		assert.Equal(t, entities.RiskHigh, report.Staff.Level)
		bus.AssertNumberOfCalls(t, "Publish", 2)
	})

	t.Run("without label encoder the class index is shown", func(t *testing.T) {
		m := newClinicalModels()
		set := m.set()
		set.StaffLabels = nil
		svc := services.NewPredictionService(staticModels{set: set}, defaultConfig(t).Prediction, nil, nil)

		m.icu.On("PredictProbability", mock.Anything).Return(0.1, nil)
		m.emergency.On("Predict", mock.Anything).Return(-3.0, nil)
		m.staff.On("Predict", mock.Anything).Return(2.0, nil)

		report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.NoError(t, err)
		assert.Equal(t, "2", report.Staff.PredictedLevel)
		assert.Equal(t, entities.RiskLow, report.Staff.Level)
		assert.Equal(t, 0, report.Emergency.Predicted)
	})

	t.Run("schema mismatch stops before any predictor call", func(t *testing.T) {
		m := newClinicalModels()
		m.icu = NewMockPredictor("icu", entities.FeatureSchema{entities.FeatureAge, entities.FeatureMonth})
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, nil, nil)

		_, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.Error(t, err)

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorTypeSchemaMismatch, appErr.Type)
		assert.Equal(t, []string{"admission_date"}, appErr.MissingFields)

		m.icu.AssertNotCalled(t, "PredictProbability", mock.Anything)
		m.emergency.AssertNotCalled(t, "Predict", mock.Anything)
		m.staff.AssertNotCalled(t, "Predict", mock.Anything)
	})

	t.Run("out of range input is rejected", func(t *testing.T) {
		m := newClinicalModels()
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, nil, nil)

		in := entities.DefaultClinicalInput()
		in.Hour = 25
		_, err := svc.PredictClinical(context.Background(), in)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
		m.icu.AssertNotCalled(t, "PredictProbability", mock.Anything)
	})

	t.Run("model failure yields no partial report", func(t *testing.T) {
		m := newClinicalModels()
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, nil, nil)

		m.icu.On("PredictProbability", mock.Anything).Return(0.2, nil)
		m.emergency.On("Predict", mock.Anything).Return(0.0, errors.New("boom"))

		report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		assert.Nil(t, report)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
		m.staff.AssertNotCalled(t, "Predict", mock.Anything)
	})

	t.Run("model load failure is returned", func(t *testing.T) {
		loadErr := apperrors.NewModelLoadError("failed to load icu_model.json", errors.New("missing"))
		svc := services.NewPredictionService(staticModels{err: loadErr}, defaultConfig(t).Prediction, nil, nil)

		_, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeModelLoad))
	})
}

func TestPredictionService_PredictLoad(t *testing.T) {
	saturday := entities.LoadInput{
		AdmissionDate:        time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		RecentEmergencies24h: 12,
		BedOccupancy:         0.8,
		ICUOccupancy:         0.5,
	}

	t.Run("five emergencies need four icu beds", func(t *testing.T) {
		m := newClinicalModels()
		bus := new(MockEventBus)
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, services.NewAlertPublisher(bus, nil), nil)

		m.load.On("Predict", mock.MatchedBy(func(fv entities.FeatureVector) bool {
			dow, _ := fv.Get(entities.FeatureDayOfWeek)
			weekend, _ := fv.Get(entities.FeatureIsWeekend)
			month, _ := fv.Get(entities.FeatureMonth)
			return dow == 5 && weekend == 1 && month == 3
		})).Return(5.6, nil).Once()
		bus.On("Publish", mock.Anything, providers.EventChannelAlerts, mock.MatchedBy(func(e *entities.AlertEvent) bool {
			return e.Source == entities.AlertSourceLoad
		})).Return(nil).Once()

		report, err := svc.PredictLoad(context.Background(), saturday)
		require.NoError(t, err)

		assert.Equal(t, 5, report.Prediction.EmergencyCount)
		assert.Equal(t, 4, report.Prediction.ICUDemand)
		assert.Equal(t, entities.RiskHigh, report.Level)
		assert.Equal(t, "Add 3 nurses + 1 doctor per shift", report.Recommendation.Text)
		assert.Len(t, report.Trend, 12)
		m.load.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("low load keeps staffing", func(t *testing.T) {
		m := newClinicalModels()
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, nil, nil)
		m.load.On("Predict", mock.Anything).Return(2.0, nil)

		report, err := svc.PredictLoad(context.Background(), saturday)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Prediction.ICUDemand)
		assert.Equal(t, entities.RiskLow, report.Level)
		assert.Equal(t, "Maintain current staffing levels", report.Recommendation.Text)
		for _, p := range report.Trend {
			assert.GreaterOrEqual(t, p.Value, 0.0)
		}
	})

	t.Run("missing date is rejected before prediction", func(t *testing.T) {
		m := newClinicalModels()
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, nil, nil)

		in := saturday
		in.AdmissionDate = time.Time{}
		_, err := svc.PredictLoad(context.Background(), in)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidInput))
		m.load.AssertNotCalled(t, "Predict", mock.Anything)
	})
}

func TestPredictionService_RejectsBrokenModelOutput(t *testing.T) {
	saturday := entities.LoadInput{
		AdmissionDate:        time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		RecentEmergencies24h: 12,
		BedOccupancy:         0.8,
		ICUOccupancy:         0.5,
	}

	for _, value := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e19} {
		t.Run(fmt.Sprintf("load %v", value), func(t *testing.T) {
			m := newClinicalModels()
			bus := new(MockEventBus)
			svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, services.NewAlertPublisher(bus, nil), nil)
			m.load.On("Predict", mock.Anything).Return(value, nil).Once()

			report, err := svc.PredictLoad(context.Background(), saturday)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
			bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		})

		t.Run(fmt.Sprintf("clinical emergency %v", value), func(t *testing.T) {
			m := newClinicalModels()
			svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, nil, nil)
			m.icu.On("PredictProbability", mock.Anything).Return(0.5, nil).Once()
			m.emergency.On("Predict", mock.Anything).Return(value, nil).Once()

			report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
			m.staff.AssertNotCalled(t, "Predict", mock.Anything)
		})
	}

	t.Run("icu probability NaN", func(t *testing.T) {
		m := newClinicalModels()
		svc := services.NewPredictionService(staticModels{set: m.set()}, defaultConfig(t).Prediction, nil, nil)
		m.icu.On("PredictProbability", mock.Anything).Return(math.NaN(), nil).Once()

		_, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
		m.emergency.AssertNotCalled(t, "Predict", mock.Anything)
	})
}

func TestPredictionService_StaffConfidence(t *testing.T) {
	newService := func(t *testing.T, m *clinicalModels, staff providers.Predictor) *services.PredictionService {
		set := m.set()
		set.Staff = staff
		return services.NewPredictionService(staticModels{set: set}, defaultConfig(t).Prediction, nil, nil)
	}

	t.Run("reported when the model exposes probabilities", func(t *testing.T) {
		m := newClinicalModels()
		staff := MockScoringPredictor{MockPredictor: m.staff}
		svc := newService(t, m, staff)

		m.icu.On("PredictProbability", mock.Anything).Return(0.2, nil).Once()
		m.emergency.On("Predict", mock.Anything).Return(4.0, nil).Once()
		m.staff.On("Predict", mock.Anything).Return(1.0, nil).Once()
		m.staff.On("Probabilities", mock.Anything).Return([]float64{0.1, 0.7, 0.2}, nil).Once()
		m.labels.On("Decode", 1).Return("Low", nil).Once()

		report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.NoError(t, err)
		assert.True(t, report.Staff.HasConfidence)
		assert.InDelta(t, 0.7, report.Staff.Confidence, 1e-12)
		m.staff.AssertExpectations(t)
	})

	t.Run("absent for plain predictors", func(t *testing.T) {
		m := newClinicalModels()
		svc := newService(t, m, m.staff)

		m.icu.On("PredictProbability", mock.Anything).Return(0.2, nil).Once()
		m.emergency.On("Predict", mock.Anything).Return(4.0, nil).Once()
		m.staff.On("Predict", mock.Anything).Return(1.0, nil).Once()
		m.labels.On("Decode", 1).Return("Low", nil).Once()

		report, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.NoError(t, err)
		assert.False(t, report.Staff.HasConfidence)
	})

	t.Run("scoring failure is internal", func(t *testing.T) {
		m := newClinicalModels()
		staff := MockScoringPredictor{MockPredictor: m.staff}
		svc := newService(t, m, staff)

		m.icu.On("PredictProbability", mock.Anything).Return(0.2, nil).Once()
		m.emergency.On("Predict", mock.Anything).Return(4.0, nil).Once()
		m.staff.On("Predict", mock.Anything).Return(1.0, nil).Once()
		m.staff.On("Probabilities", mock.Anything).Return(nil, errors.New("weights mismatch")).Once()
		m.labels.On("Decode", 1).Return("Low", nil).Once()

		_, err := svc.PredictClinical(context.Background(), entities.DefaultClinicalInput())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}
