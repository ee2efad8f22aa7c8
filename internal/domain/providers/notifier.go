package providers

import (
	"context"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
)

// AlertNotifier delivers an alert to people outside the dashboard
type AlertNotifier interface {
	// Name identifies the channel in logs
	Name() string

	// Notify sends the alert, retrying transient failures
	Notify(ctx context.Context, event *entities.AlertEvent) error
}
