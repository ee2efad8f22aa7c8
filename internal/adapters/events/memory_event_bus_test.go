package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
)

func receive(t *testing.T, ch <-chan *entities.AlertEvent) *entities.AlertEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx := context.Background()
	a, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, providers.GetSourceChannel(entities.AlertSourceICU))
	require.NoError(t, err)

	event := &entities.AlertEvent{ID: "1", Source: entities.AlertSourceICU, Level: entities.RiskHigh}
	require.NoError(t, bus.Publish(ctx, providers.EventChannelAlerts, event))

	assert.Equal(t, "1", receive(t, a).ID)
	assert.Equal(t, "1", receive(t, b).ID)
	assert.Empty(t, other)
}

func TestMemoryEventBus_ContextEndsSubscription(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestMemoryEventBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx := context.Background()
	_, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			_ = bus.Publish(ctx, providers.EventChannelAlerts, &entities.AlertEvent{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestMemoryEventBus_CloseAndUnsubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)
	require.NoError(t, bus.Unsubscribe(ctx, providers.EventChannelAlerts))
	_, ok := <-ch
	assert.False(t, ok)

	ch, err = bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)
	require.NoError(t, bus.Close())
	_, ok = <-ch
	assert.False(t, ok)
	require.NoError(t, bus.Close())

	_, err = bus.Subscribe(ctx, providers.EventChannelAlerts)
	assert.Error(t, err)
}

func TestFanout_Remove(t *testing.T) {
	f := newFanout()
	a, n := f.add("c")
	assert.Equal(t, 1, n)
	_, n = f.add("c")
	assert.Equal(t, 2, n)

	remaining, removed := f.remove("c", a)
	assert.True(t, removed)
	assert.Equal(t, 1, remaining)

	_, removed = f.remove("c", a)
	assert.False(t, removed, "double remove is a no-op")
}
