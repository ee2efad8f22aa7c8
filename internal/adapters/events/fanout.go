package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
)

// subscriberBuffer is the per-subscriber queue length; alerts beyond it are dropped
const subscriberBuffer = 100

// fanout tracks the local subscribers of each channel and delivers to them
// without ever blocking the publisher
type fanout struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.AlertEvent]struct{}
}

func newFanout() *fanout {
	return &fanout{subscribers: make(map[string]map[chan *entities.AlertEvent]struct{})}
}

// add registers a new subscriber and returns it with the channel's subscriber count
func (f *fanout) add(channel string) (chan *entities.AlertEvent, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribers[channel] == nil {
		f.subscribers[channel] = make(map[chan *entities.AlertEvent]struct{})
	}
	ch := make(chan *entities.AlertEvent, subscriberBuffer)
	f.subscribers[channel][ch] = struct{}{}
	return ch, len(f.subscribers[channel])
}

// remove closes one subscriber and reports how many remain on the channel
func (f *fanout) remove(channel string, ch chan *entities.AlertEvent) (remaining int, removed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs, ok := f.subscribers[channel]
	if !ok {
		return 0, false
	}
	if _, ok := subs[ch]; !ok {
		return len(subs), false
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(f.subscribers, channel)
	}
	return len(subs), true
}

// deliver hands the event to every subscriber of channel
func (f *fanout) deliver(channel string, event *entities.AlertEvent) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	delivered := 0
	for sub := range f.subscribers[channel] {
		select {
		case sub <- event:
			delivered++
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber channel full, dropping alert")
		}
	}
	return delivered
}

// closeChannel closes every subscriber of channel
func (f *fanout) closeChannel(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subscribers[channel] {
		close(sub)
	}
	delete(f.subscribers, channel)
}

// channels lists channels with at least one subscriber
func (f *fanout) channels() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.subscribers))
	for channel := range f.subscribers {
		out = append(out, channel)
	}
	return out
}
