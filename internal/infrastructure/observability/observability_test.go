package observability

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/noop"
)

type recordingLogger struct {
	noop.Logger
	records []otellog.Record
}

func (l *recordingLogger) Emit(_ context.Context, r otellog.Record) {
	l.records = append(l.records, r)
}

func TestOTelHook_EmitsRecords(t *testing.T) {
	rec := &recordingLogger{}
	logger := zerolog.New(io.Discard).Hook(NewOTelHook(rec))

	logger.Warn().Msg("icu risk high")
	logger.Log().Msg("no level")

	require.Len(t, rec.records, 1)
	assert.Equal(t, "icu risk high", rec.records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, rec.records[0].Severity())
	assert.Equal(t, "warn", rec.records[0].SeverityText())
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, otellog.SeverityInfo, severity(zerolog.InfoLevel))
	assert.Equal(t, otellog.SeverityError, severity(zerolog.ErrorLevel))
	assert.Equal(t, otellog.SeverityUndefined, severity(zerolog.NoLevel))
}

func TestInitLogger_SetsLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	InitLogger("hospital-intelligence", "production", "warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	InitLogger("hospital-intelligence", "development", "bogus")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestLoggerFromContext_WithoutSpan(t *testing.T) {
	assert.NotNil(t, LoggerFromContext(context.Background()))
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRequestMetric(context.Background(), nil, "GET", "/", 200, time.Millisecond)
		RecordPredictionMetric(context.Background(), nil, "clinical", "HIGH", time.Millisecond)
		RecordBatchRows(context.Background(), nil, "quantile", 10)
		RecordAlert(context.Background(), nil, "icu")
		RecordRateLimited(context.Background(), nil, "upload")
	})
}

func TestInitMetrics_WithGlobalProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		RecordPredictionMetric(context.Background(), m, "load", "LOW", 2*time.Millisecond)
	})
}
