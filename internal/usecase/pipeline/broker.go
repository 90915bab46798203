package pipeline

import (
	"sync"

	"github.com/kailas-cloud/consolidator/internal/domain/event"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

// DefaultSubscriberBuffer is used when Subscribe gets a non-positive buffer.
const DefaultSubscriberBuffer = 64

// Broker fans lifecycle events out to subscribers. Delivery never blocks:
// a full subscriber misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]chan event.Event
	nextID uint64
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]chan event.Event)}
}

// Notify implements event.Notifier.
func (b *Broker) Notify(e event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(e.Name)).Inc()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			metrics.EventsDroppedTotal.WithLabelValues(string(e.Name)).Inc()
		}
	}
}

// Subscribe registers a subscriber. cancel unregisters it and closes the channel;
// it is safe to call more than once.
func (b *Broker) Subscribe(buffer int) (<-chan event.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan event.Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later events are discarded.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
