package providers

import (
	"context"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to alert events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.AlertEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelAlerts is the channel for all HIGH risk alerts
	EventChannelAlerts = "alerts:high"

	// EventChannelAlertPrefix is the prefix for per-source channels
	EventChannelAlertPrefix = "alerts:"
)

// GetSourceChannel returns the channel name for a specific alert source
func GetSourceChannel(source entities.AlertSource) string {
	return EventChannelAlertPrefix + string(source)
}
