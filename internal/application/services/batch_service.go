package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

const utf8BOM = "\ufeff"

// admissionDateLayouts are tried in order when parsing Admission_Date
var admissionDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// BatchService scores uploaded CSV files with the emergency-load model
type BatchService struct {
	models     ModelSource
	features   *FeatureService
	classifier *ClassificationService
	policy     entities.ThresholdPolicy
	maxRows    int
	separator  rune
	alerts     *AlertPublisher
	metrics    *observability.Metrics
}

// NewBatchService creates a new batch service
func NewBatchService(
	models ModelSource,
	predCfg config.PredictionConfig,
	batchCfg config.BatchConfig,
	alerts *AlertPublisher,
	metrics *observability.Metrics,
) *BatchService {
	sep := ','
	if batchCfg.ColumnSeparator != "" {
		sep = []rune(batchCfg.ColumnSeparator)[0]
	}
	return &BatchService{
		models:     models,
		features:   NewFeatureService(),
		classifier: NewClassificationService(predCfg),
		policy:     entities.ThresholdPolicy(batchCfg.Policy),
		maxRows:    batchCfg.MaxRows,
		separator:  sep,
		alerts:     alerts,
		metrics:    metrics,
	}
}

// Policy returns the threshold policy batches are classified with
func (s *BatchService) Policy() entities.ThresholdPolicy {
	return s.policy
}

// Score parses a batch file and classifies every row. All rows are predicted
// first; under the quantile policy the thresholds are then computed once
// over the whole batch, so a row's level depends on the other rows.
func (s *BatchService) Score(ctx context.Context, r io.Reader) (*entities.BatchReport, error) {
	ctx, span := observability.StartSpan(ctx, "BatchService.Score")
	defer span.End()
	start := time.Now()

	rows, err := s.parse(r)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	models, err := s.models.Load()
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	// Pass 1: predict every row
	schema := models.EmergencyLoad.Schema()
	counts := make([]float64, len(rows))
	for i := range rows {
		fv, err := s.features.Derive(rows[i].Input.Observation(), schema)
		if err != nil {
			observability.RecordError(span, err)
			return nil, rowError(rows[i].Line, err)
		}
		raw, err := models.EmergencyLoad.Predict(fv)
		if err != nil {
			observability.RecordError(span, err)
			return nil, rowError(rows[i].Line, wrapPredictError(models.EmergencyLoad.Name(), err))
		}
		if rows[i].EmergencyCount, err = EmergencyCount(raw); err != nil {
			observability.RecordError(span, err)
			return nil, rowError(rows[i].Line, err)
		}
		rows[i].ICUDemand = s.classifier.ICUDemand(rows[i].EmergencyCount)
		counts[i] = float64(rows[i].EmergencyCount)
	}

	thresholds := entities.BatchThresholds{Policy: s.policy}
	if s.policy == entities.PolicyQuantile {
		thresholds.P50, thresholds.P80, err = s.classifier.QuantileThresholds(counts)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
	}

	// Pass 2: classify against the batch thresholds
	report := &entities.BatchReport{
		ID:         uuid.New().String(),
		Rows:       rows,
		Thresholds: thresholds,
		Counts:     map[entities.RiskLevel]int{},
		Trend:      make([]entities.TrendPoint, len(rows)),
		CreatedAt:  time.Now().UTC(),
	}
	for i := range rows {
		row := &rows[i]
		if s.policy == entities.PolicyQuantile {
			row.Level = s.classifier.ClassifyQuantile(counts[i], thresholds.P50, thresholds.P80)
		} else {
			row.Level = s.classifier.ClassifyCounts(row.EmergencyCount, row.ICUDemand)
		}
		row.Recommendation = s.classifier.Recommend(row.Level).Text
		report.Counts[row.Level]++
		report.Trend[i] = entities.TrendPoint{Hour: i, Value: counts[i]}
	}

	if high := report.HighCount(); high > 0 {
		s.alerts.Raise(ctx, entities.AlertSourceBatch, entities.Alert{
			Level:   entities.RiskHigh,
			Message: fmt.Sprintf("%d of %d batch rows at HIGH emergency load", high, len(rows)),
		}, float64(high))
	}

	span.SetAttributes(
		attribute.String("batch.id", report.ID),
		attribute.String("batch.policy", string(s.policy)),
		attribute.Int("batch.rows", len(rows)),
		attribute.Float64("batch.p50", thresholds.P50),
		attribute.Float64("batch.p80", thresholds.P80),
	)
	observability.RecordBatchRows(ctx, s.metrics, string(s.policy), len(rows))
	observability.RecordPredictionMetric(ctx, s.metrics, "batch", string(worstLevel(report.Counts)), time.Since(start))

	observability.LoggerFromContext(ctx).Info().
		Str("batch_id", report.ID).
		Str("policy", string(s.policy)).
		Int("rows", len(rows)).
		Int("high", report.HighCount()).
		Msg("Batch scored")

	return report, nil
}

// parse reads the header and every row. Missing columns are reported before
// any row is read.
func (s *BatchService) parse(r io.Reader) ([]entities.BatchRow, error) {
	reader := csv.NewReader(r)
	reader.Comma = s.separator
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewValidationError("batch file is empty")
	}
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("failed to read batch header: %v", err))
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, col := range entities.RequiredBatchColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaMismatchError("batch file", missing)
	}

	var rows []entities.BatchRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("failed to read batch file: %v", err))
		}
		line, _ := reader.FieldPos(0)

		if s.maxRows > 0 && len(rows) == s.maxRows {
			return nil, apperrors.NewValidationError(fmt.Sprintf("batch file exceeds %d rows", s.maxRows))
		}

		input, err := parseRow(record, columns)
		if err != nil {
			return nil, rowError(line, err)
		}
		rows = append(rows, entities.BatchRow{Line: line, Input: input})
	}

	if len(rows) == 0 {
		return nil, apperrors.NewValidationError("batch file has no data rows")
	}
	return rows, nil
}

func parseRow(record []string, columns map[string]int) (entities.LoadInput, error) {
	cell := func(col string) (string, error) {
		idx := columns[col]
		if idx >= len(record) {
			return "", apperrors.NewInvalidInputError(col + " is empty")
		}
		v := strings.TrimSpace(record[idx])
		if v == "" {
			return "", apperrors.NewInvalidInputError(col + " is empty")
		}
		return v, nil
	}

	var in entities.LoadInput

	raw, err := cell(entities.ColumnAdmissionDate)
	if err != nil {
		return in, err
	}
	if in.AdmissionDate, err = parseAdmissionDate(raw); err != nil {
		return in, err
	}

	if raw, err = cell(entities.ColumnRecentEmergencies24h); err != nil {
		return in, err
	}
	if in.RecentEmergencies24h, err = parseCount(entities.ColumnRecentEmergencies24h, raw); err != nil {
		return in, err
	}

	if raw, err = cell(entities.ColumnBedOccupancyRate); err != nil {
		return in, err
	}
	if in.BedOccupancy, err = parseRate(entities.ColumnBedOccupancyRate, raw); err != nil {
		return in, err
	}

	if raw, err = cell(entities.ColumnICUOccupancyRate); err != nil {
		return in, err
	}
	if in.ICUOccupancy, err = parseRate(entities.ColumnICUOccupancyRate, raw); err != nil {
		return in, err
	}

	return in, in.Validate()
}

func parseAdmissionDate(raw string) (time.Time, error) {
	for _, layout := range admissionDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.NewInvalidInputError(fmt.Sprintf("%s %q is not a date", entities.ColumnAdmissionDate, raw))
}

func parseCount(col, raw string) (int, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s %q is not a whole number", col, raw))
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s %q is out of range", col, raw))
	}
	return int(f), nil
}

func parseRate(col, raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("%s %q is not a number", col, raw))
	}
	return f, nil
}

// worstLevel returns the most severe level present in a batch
func worstLevel(counts map[entities.RiskLevel]int) entities.RiskLevel {
	for _, level := range []entities.RiskLevel{entities.RiskHigh, entities.RiskMedium} {
		if counts[level] > 0 {
			return level
		}
	}
	return entities.RiskLow
}

// rowError prefixes an error with the file line it came from
func rowError(line int, err error) error {
	appErr, ok := apperrors.As(err)
	if !ok {
		return apperrors.NewInternalError(fmt.Sprintf("row %d", line), err)
	}
	prefixed := *appErr
	prefixed.Message = fmt.Sprintf("row %d: %s", line, appErr.Message)
	return &prefixed
}
