// Package events provides the in-process broadcast bus that replaces the
// old window-level custom events: payment verification publishes here and
// any mounted observer (the SSE stream, tests) subscribes explicitly.
package events

import "sync"

// PaymentComplete is broadcast after a checkout session is verified and
// its tokens have been granted.
type PaymentComplete struct {
	WorksheetID string `json:"worksheetId"`
	SessionID   string `json:"sessionId"`
}

// Bus fans PaymentComplete events out to all current subscribers.
// Publish never blocks: a subscriber that is not draining its channel
// misses events rather than stalling the publisher.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]chan PaymentComplete
}

// NewBus creates an empty bus. Like the rate limiter, it is an injected
// instance, not a package-level global.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan PaymentComplete)}
}

// Subscribe registers an observer. It returns the receive channel and an
// unsubscribe func. Unsubscribe closes the channel; after it returns no
// further events are delivered, so a torn-down observer can never see a
// late update.
func (b *Bus) Subscribe() (<-chan PaymentComplete, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan PaymentComplete, 8)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev PaymentComplete) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full: drop rather than block.
		}
	}
}
