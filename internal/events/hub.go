package events

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. When a subscriber
// falls behind, the oldest buffered event is dropped to make room; the
// stream is best-effort progress, so losing an intermediate event only
// costs display freshness.
const subscriberBuffer = 64

type subscriber struct {
	workID string // empty subscribes to everything
	ch     chan Event
}

// Hub multiplexes the event stream to per-work subscribers. The API
// process runs a single consumer on the events queue and publishes each
// event into the hub; subscribers receive the events whose workId matches
// theirs plus all events that carry no workId (folder organize progress,
// global status). Delivery from hub to subscriber is best-effort: a slow
// subscriber never blocks the pump or its peers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers a subscriber for the given work id; the empty string
// subscribes to the full stream. The returned cancel func removes the
// subscription and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(workID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	sub := &subscriber{workID: workID, ch: make(chan Event, subscriberBuffer)}
	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// Publish dispatches an event to every matching subscriber, dropping the
// oldest buffered event for any subscriber whose buffer is full.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, sub := range h.subs {
		if sub.workID != "" && ev.WorkID != "" && sub.workID != ev.WorkID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Buffer full: evict the oldest event, then retry once. The
			// second send can only fail if the subscriber drained and
			// refilled concurrently, in which case dropping ev is fine.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Close removes all subscribers and closes their channels. Subsequent
// Publish calls are no-ops and subsequent Subscribe calls return a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// SubscriberCount reports the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
