package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
)

const alertDeliveryTimeout = 30 * time.Second

// AlertDispatchService forwards alerts from the event bus to a notifier
type AlertDispatchService struct {
	eventBus providers.EventBus
	notifier providers.AlertNotifier
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewAlertDispatchService creates a new alert dispatch service
func NewAlertDispatchService(eventBus providers.EventBus, notifier providers.AlertNotifier) *AlertDispatchService {
	ctx, cancel := context.WithCancel(context.Background())
	return &AlertDispatchService{
		eventBus: eventBus,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for alerts
func (s *AlertDispatchService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelAlerts)
	if err != nil {
		return fmt.Errorf("failed to subscribe to alerts: %w", err)
	}

	s.wg.Add(1)
	go s.processEvents(eventChan)
	log.Info().Str("notifier", s.notifier.Name()).Msg("Alert dispatch service started")
	return nil
}

// Stop stops the service and waits for the in-flight delivery to finish
func (s *AlertDispatchService) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Alert dispatch service stopped")
}

func (s *AlertDispatchService) processEvents(eventChan <-chan *entities.AlertEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *AlertDispatchService) handleEvent(event *entities.AlertEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, alertDeliveryTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("alert_id", event.ID).
			Str("notifier", s.notifier.Name()).
			Msg("Failed to deliver alert")
		return
	}

	log.Info().
		Str("alert_id", event.ID).
		Str("source", string(event.Source)).
		Str("notifier", s.notifier.Name()).
		Msg("Alert delivered")
}
