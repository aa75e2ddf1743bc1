package events

import (
	"log/slog"
	"sync"
)

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ev Event)
}

// Bus is an in-process fan-out of events to subscribers. Slow subscribers
// lose events rather than blocking publishers; every consumer re-fetches
// state on the events it gets, so a dropped event only delays a refresh.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	sinks  []Publisher
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// AddSink forwards every published event to p as well.
func (b *Bus) AddSink(p Publisher) {
	b.mu.Lock()
	b.sinks = append(b.sinks, p)
	b.mu.Unlock()
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to local subscribers and sinks.
func (b *Bus) Publish(ev Event) {
	b.deliver(ev)

	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(ev)
	}
}

// PublishLocal delivers ev to local subscribers only. Used for events that
// arrived from a sink's source so they are not echoed back.
func (b *Bus) PublishLocal(ev Event) {
	b.deliver(ev)
}

func (b *Bus) deliver(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping event for slow subscriber", "event", ev.Name, "subscriber", id)
		}
	}
}
