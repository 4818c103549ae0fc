// Package events carries API failure notifications from the upstream
// client layer to whoever renders them, so call sites do not wire their
// own feedback surface.
package events

import (
	"sync"
	"time"
)

// ErrorType classifies an API failure for the notification surface
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeServer       ErrorType = "server"
	ErrorTypeValidation   ErrorType = "validation"
)

// APIError is the payload published for every upstream failure
type APIError struct {
	Type     ErrorType `json:"type"`
	Endpoint string    `json:"endpoint"`
	Message  string    `json:"message"`
	Status   int       `json:"status,omitempty"`
	At       time.Time `json:"at"`
}

// Bus is an in-process publish/subscribe fan-out for APIError events.
// Publish never blocks: a subscriber that falls behind loses events
// rather than stalling the request path.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan APIError
	next int
	size int
}

// NewBus creates a bus with the given per-subscriber buffer size
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subs: make(map[int]chan APIError),
		size: bufferSize,
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription; the channel is closed by it.
func (b *Bus) Subscribe() (<-chan APIError, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan APIError, b.size)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish fans the event out to all subscribers without blocking
func (b *Bus) Publish(ev APIError) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop
		}
	}
}

// SubscriberCount reports the number of active subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
