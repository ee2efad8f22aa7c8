package events

import (
	"context"
	"sync"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
)

// MemoryEventBus implements the EventBus interface in process. Used when
// Redis is disabled; alerts only reach subscribers in the same process.
type MemoryEventBus struct {
	local  *fanout
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMemoryEventBus creates a new in-process event bus
func NewMemoryEventBus() providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryEventBus{local: newFanout(), ctx: ctx, cancel: cancel}
}

// Publish delivers the event to current subscribers without blocking
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.local.deliver(channel, event)
	return nil
}

// Subscribe subscribes to events on a channel. The subscription ends when ctx is done.
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	eventChan, _ := b.local.add(channel)

	go func() {
		select {
		case <-ctx.Done():
			b.local.remove(channel, eventChan)
		case <-b.ctx.Done():
		}
	}()

	return eventChan, nil
}

// Unsubscribe closes every subscriber of a channel
func (b *MemoryEventBus) Unsubscribe(_ context.Context, channel string) error {
	b.local.closeChannel(channel)
	return nil
}

// Close closes every subscription
func (b *MemoryEventBus) Close() error {
	b.once.Do(func() {
		b.cancel()
		for _, channel := range b.local.channels() {
			b.local.closeChannel(channel)
		}
	})
	return nil
}
