package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

// ModelSource hands out the loaded model set
type ModelSource interface {
	Load() (*providers.ModelSet, error)
}

// PredictionService runs the single-record pipelines behind the dashboard forms
type PredictionService struct {
	models     ModelSource
	features   *FeatureService
	classifier *ClassificationService
	trend      *TrendGenerator
	loadTrend  *TrendGenerator
	alerts     *AlertPublisher
	metrics    *observability.Metrics
}

// NewPredictionService creates a new prediction service
func NewPredictionService(
	models ModelSource,
	cfg config.PredictionConfig,
	alerts *AlertPublisher,
	metrics *observability.Metrics,
) *PredictionService {
	trend := NewTrendGenerator(cfg)
	return &PredictionService{
		models:     models,
		features:   NewFeatureService(),
		classifier: NewClassificationService(cfg),
		trend:      trend,
		loadTrend:  trend.WithScale(0, 1),
		alerts:     alerts,
		metrics:    metrics,
	}
}

// PredictClinical runs the ICU, emergency and staff models on the slider form.
// Any failure aborts the whole pass; no partial report is returned.
func (s *PredictionService) PredictClinical(ctx context.Context, in entities.ClinicalInput) (*entities.ClinicalReport, error) {
	ctx, span := observability.StartSpan(ctx, "PredictionService.PredictClinical")
	defer span.End()
	start := time.Now()

	if err := in.Validate(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	models, err := s.models.Load()
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	obs := in.Observation()
	derived := newVectorCache(s.features, obs)

	icuVec, err := derived.For(models.ICU.Schema())
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	emVec, err := derived.For(models.Emergency.Schema())
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	staffVec, err := derived.For(models.Staff.Schema())
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	prob, err := models.ICU.PredictProbability(icuVec)
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapPredictError(models.ICU.Name(), err)
	}
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		err := apperrors.NewInternalError(fmt.Sprintf("model %s returned probability %v outside [0, 1]", models.ICU.Name(), prob), nil)
		observability.RecordError(span, err)
		return nil, err
	}

	emRaw, err := models.Emergency.Predict(emVec)
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapPredictError(models.Emergency.Name(), err)
	}
	emergency, err := EmergencyCount(emRaw)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	staffRaw, err := models.Staff.Predict(staffVec)
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapPredictError(models.Staff.Name(), err)
	}
	staffClass := int(staffRaw)
	staffLabel, err := decodeStaffLabel(models.StaffLabels, staffClass)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	confidence, hasConfidence, err := classConfidence(models.Staff, staffVec, staffClass)
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapPredictError(models.Staff.Name(), err)
	}

	icuLevel := s.classifier.ClassifyProbability(prob)
	staffLevel := s.classifier.ClassifyStaffLabel(staffLabel)

	report := &entities.ClinicalReport{
		Input:    in,
		Features: icuVec,
		Prediction: entities.ClinicalPrediction{
			ICUProbability: prob,
			EmergencyCount: emergency,
			StaffClass:     staffClass,
			StaffLabel:     staffLabel,
		},
		ICU: entities.ICUPanel{
			Probability:        prob,
			Level:              icuLevel,
			EmergencyInfluence: in.RecentEmergencies24h,
			Alert:              s.classifier.ICUAlert(icuLevel),
		},
		Emergency: entities.EmergencyPanel{
			Predicted: emergency,
			Delta:     in.RecentEmergencies24h,
			Trend:     s.trend.Project(float64(emergency)),
		},
		Staff: entities.StaffPanel{
			WorkloadScore:  in.StaffWorkloadScore,
			PredictedLevel: staffLabel,
			Level:          staffLevel,
			Alert:          s.classifier.StaffAlert(staffLevel),
			Confidence:     confidence,
			HasConfidence:  hasConfidence,
		},
		CreatedAt: time.Now().UTC(),
	}

	s.alerts.Raise(ctx, entities.AlertSourceICU, report.ICU.Alert, prob)
	s.alerts.Raise(ctx, entities.AlertSourceStaff, report.Staff.Alert, float64(staffClass))

	span.SetAttributes(
		attribute.Float64("icu.probability", prob),
		attribute.String("icu.level", string(icuLevel)),
		attribute.Int("emergency.count", emergency),
		attribute.String("staff.label", staffLabel),
	)
	observability.RecordPredictionMetric(ctx, s.metrics, "clinical", string(icuLevel), time.Since(start))

	observability.LoggerFromContext(ctx).Debug().
		Float64("icu_probability", prob).
		Int("emergency_count", emergency).
		Str("staff_label", staffLabel).
		Msg("Clinical prediction complete")

	return report, nil
}

// PredictLoad runs the combined emergency-load model on the date form
func (s *PredictionService) PredictLoad(ctx context.Context, in entities.LoadInput) (*entities.LoadReport, error) {
	ctx, span := observability.StartSpan(ctx, "PredictionService.PredictLoad")
	defer span.End()
	start := time.Now()

	if err := in.Validate(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	models, err := s.models.Load()
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	fv, err := s.features.Derive(in.Observation(), models.EmergencyLoad.Schema())
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	raw, err := models.EmergencyLoad.Predict(fv)
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapPredictError(models.EmergencyLoad.Name(), err)
	}

	count, err := EmergencyCount(raw)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	demand := s.classifier.ICUDemand(count)
	level := s.classifier.ClassifyCounts(count, demand)

	report := &entities.LoadReport{
		Input:          in,
		Features:       fv,
		Prediction:     entities.LoadPrediction{EmergencyCount: count, ICUDemand: demand},
		Level:          level,
		Recommendation: s.classifier.Recommend(level),
		Alert:          s.classifier.LoadAlert(level),
		Trend:          s.loadTrend.Project(float64(count)),
		CreatedAt:      time.Now().UTC(),
	}

	s.alerts.Raise(ctx, entities.AlertSourceLoad, report.Alert, float64(count))

	span.SetAttributes(
		attribute.Int("emergency.count", count),
		attribute.Int("icu.demand", demand),
		attribute.String("load.level", string(level)),
	)
	observability.RecordPredictionMetric(ctx, s.metrics, "load", string(level), time.Since(start))

	return report, nil
}

// maxEmergencyCount bounds a predicted count before it is converted to int
const maxEmergencyCount = math.MaxInt32

// EmergencyCount turns a regression output into a count: truncated toward
// zero and never negative. NaN, infinite and implausibly large outputs mean
// the model is broken and are reported as internal errors.
func EmergencyCount(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperrors.NewInternalError(fmt.Sprintf("model returned a non-finite emergency count (%v)", v), nil)
	}
	if v > maxEmergencyCount {
		return 0, apperrors.NewInternalError(fmt.Sprintf("model returned an out of range emergency count (%g)", v), nil)
	}
	if v < 0 {
		return 0, nil
	}
	return int(v), nil
}

func decodeStaffLabel(decoder providers.LabelDecoder, class int) (string, error) {
	if decoder == nil {
		return strconv.Itoa(class), nil
	}
	label, err := decoder.Decode(class)
	if err != nil {
		return "", apperrors.NewInternalError("failed to decode staff class", err)
	}
	return label, nil
}

// classConfidence returns the probability of class when the model exposes
// its class distribution
func classConfidence(model providers.Predictor, fv entities.FeatureVector, class int) (float64, bool, error) {
	scorer, ok := model.(providers.ClassProbabilities)
	if !ok {
		return 0, false, nil
	}
	probs, err := scorer.Probabilities(fv)
	if err != nil {
		return 0, false, err
	}
	if class < 0 || class >= len(probs) {
		return 0, false, nil
	}
	return probs[class], true, nil
}

// wrapPredictError keeps typed errors and marks everything else internal
func wrapPredictError(model string, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewInternalError("model "+model+" failed", err)
}

// vectorCache derives each distinct schema once per observation
type vectorCache struct {
	features *FeatureService
	obs      *entities.RawObservation
	bySchema map[string]entities.FeatureVector
}

func newVectorCache(features *FeatureService, obs *entities.RawObservation) *vectorCache {
	return &vectorCache{features: features, obs: obs, bySchema: make(map[string]entities.FeatureVector)}
}

func (c *vectorCache) For(schema entities.FeatureSchema) (entities.FeatureVector, error) {
	key := schema.String()
	if fv, ok := c.bySchema[key]; ok {
		return fv, nil
	}
	fv, err := c.features.Derive(c.obs, schema)
	if err != nil {
		return entities.FeatureVector{}, err
	}
	c.bySchema[key] = fv
	return fv, nil
}
