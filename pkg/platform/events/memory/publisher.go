package memory

import (
	"context"
	"sync"

	"membership/pkg/platform/events"
)

// Publisher records events in process. Err, when set, is returned from
// Publish instead of recording.
type Publisher struct {
	mu     sync.RWMutex
	events []events.Event
	Err    error
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

// List returns the recorded events in publication order.
func (p *Publisher) List() []events.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]events.Event{}, p.events...)
}

func (p *Publisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
