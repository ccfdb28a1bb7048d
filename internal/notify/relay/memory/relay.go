package memory

import (
	"context"
	"sync"

	"membership/internal/notify/service"
)

// Relay records messages instead of sending them.
type Relay struct {
	mu   sync.RWMutex
	sent []service.Message
}

func New() *Relay {
	return &Relay{}
}

func (r *Relay) Send(_ context.Context, msg service.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns recorded messages in send order.
func (r *Relay) Sent() []service.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]service.Message{}, r.sent...)
}
