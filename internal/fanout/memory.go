package fanout

import "sync"

// Bus is an in-process Publisher that records every event per channel.
// Tests assert against it; local single-node runs can use it too.
type Bus struct {
	mu     sync.Mutex
	events map[string][]Event
}

func NewBus() *Bus {
	return &Bus{events: map[string][]Event{}}
}

func (b *Bus) Publish(channel string, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[channel] = append(b.events[channel], event)
	return nil
}

// Events returns a copy of everything published to one channel.
func (b *Bus) Events(channel string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events[channel]...)
}

// Reset clears recorded events between test stages.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = map[string][]Event{}
}
