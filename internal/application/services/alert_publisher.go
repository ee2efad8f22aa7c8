package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
)

const alertPublishTimeout = 2 * time.Second

// AlertPublisher raises HIGH risk alerts on the event bus. Publishing is best
// effort: failures are logged and never reach the caller.
type AlertPublisher struct {
	bus     providers.EventBus
	metrics *observability.Metrics
}

// NewAlertPublisher creates a publisher. A nil bus disables publishing.
func NewAlertPublisher(bus providers.EventBus, metrics *observability.Metrics) *AlertPublisher {
	return &AlertPublisher{bus: bus, metrics: metrics}
}

// Raise publishes an alert when level is HIGH
func (p *AlertPublisher) Raise(ctx context.Context, source entities.AlertSource, alert entities.Alert, value float64) {
	if p == nil || p.bus == nil || alert.Level != entities.RiskHigh {
		return
	}

	event := &entities.AlertEvent{
		ID:       uuid.New().String(),
		Source:   source,
		Level:    alert.Level,
		Message:  alert.Message,
		Value:    value,
		RaisedAt: time.Now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertPublishTimeout)
	defer cancel()

	logger := observability.LoggerFromContext(ctx)
	if err := p.bus.Publish(pubCtx, providers.EventChannelAlerts, event); err != nil {
		logger.Warn().Err(err).Str("source", string(source)).Msg("Failed to publish alert")
		return
	}

	observability.RecordAlert(ctx, p.metrics, string(source))
	logger.Info().
		Str("alert_id", event.ID).
		Str("source", string(source)).
		Float64("value", value).
		Msg("Alert raised")
}
