package store

import "sync"

// Hub fans a change out to the handlers subscribed in this process.
// Backends without a native pub/sub use it directly; the redis notifier
// feeds it from its subscription.
type Hub struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]func(Change)
}

func NewHub() *Hub {
	return &Hub{handlers: make(map[int]func(Change))}
}

// Subscribe registers handler and returns a function removing it.
// Calling the returned function more than once is harmless.
func (h *Hub) Subscribe(handler func(Change)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.handlers[id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.handlers, id)
			h.mu.Unlock()
		})
	}
}

// Publish invokes every handler with c, synchronously, in the caller's
// goroutine. Changes outside AreaLocal are dropped.
func (h *Hub) Publish(c Change) {
	if c.Area != AreaLocal || len(c.Keys) == 0 {
		return
	}

	h.mu.RLock()
	handlers := make([]func(Change), 0, len(h.handlers))
	for _, fn := range h.handlers {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(c)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}
