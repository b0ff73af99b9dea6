package store

import (
	"context"
	"sync"
)

// Hub fans out change events to in-process subscribers. Stores without a
// native change feed embed it and call Publish after each mutation.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	path string
	fn   func(Event)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscription)}
}

// Subscribe registers fn for changes at path or below. The subscription ends
// when cancel is called or ctx is done.
func (h *Hub) Subscribe(ctx context.Context, path string, fn func(Event)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscription{path: path, fn: fn}
	h.mu.Unlock()

	remove := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	stop := context.AfterFunc(ctx, remove)

	return func() {
		stop()
		remove()
	}
}

// Publish delivers ev synchronously to every matching subscriber.
// A deleted subtree is also reported to subscribers watching inside it.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	var targets []func(Event)
	for _, s := range h.subs {
		if Covers(s.path, ev.Path) || (ev.Deleted && Covers(ev.Path, s.path)) {
			targets = append(targets, s.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
