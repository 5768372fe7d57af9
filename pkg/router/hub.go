package router

import (
	"log/slog"
	"sync"

	"github.com/dipeoflow/engine/pkg/scheduler"
)

// defaultBufferSize matches the teacher's WebSocketClient send buffer size.
const defaultBufferSize = 64

// Subscriber is one registered event consumer: a bounded channel plus the
// filter gating what it receives.
type Subscriber struct {
	ID     string
	Filter EventFilter
	ch     chan scheduler.Event
}

// Events returns the subscriber's receive channel.
func (s *Subscriber) Events() <-chan scheduler.Event { return s.ch }

// Hub is the in-process fan-out registry: every scheduler.Event passed to
// Emit is delivered to every matching subscriber's buffered channel
// without blocking the publisher — grounded directly on the go/-tree
// websocket_observer.go's per-client full-buffer-skip behavior. When a
// subscriber's buffer is full, an incoming non-terminal event is dropped
// and the queued events are kept. An incoming terminal event
// (execution/node completed/failed/aborted/skipped) instead evicts the
// oldest queued entry, whatever its type, so an older queued terminal
// event can be lost this way; if the retry still finds the buffer full,
// the terminal event is dropped and an error is logged.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int
	log         *slog.Logger
}

// NewHub builds an empty Hub. log may be nil.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{subscribers: make(map[string]*Subscriber), bufferSize: defaultBufferSize, log: log}
}

// Subscribe registers a new subscriber under id with the given filter,
// replacing any existing subscriber registered under the same id.
func (h *Hub) Subscribe(id string, filter EventFilter) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &Subscriber{ID: id, Filter: filter, ch: make(chan scheduler.Event, h.bufferSize)}
	h.subscribers[id] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		close(sub.ch)
		delete(h.subscribers, id)
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Emit implements scheduler.Sink, letting a Hub be wired directly as a
// scheduler's event sink.
func (h *Hub) Emit(e scheduler.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		if sub.Filter != nil && !sub.Filter.Matches(e) {
			continue
		}
		h.deliver(sub, e)
	}
}

func (h *Hub) deliver(sub *Subscriber, e scheduler.Event) {
	select {
	case sub.ch <- e:
		return
	default:
	}

	if !isTerminal(e.Type) {
		h.log.Warn("router: dropping event, subscriber buffer full", "subscriber", sub.ID, "event_type", e.Type)
		return
	}

	// Terminal events must get through: evict the oldest queued entry to
	// make room, then retry once.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- e:
	default:
		h.log.Error("router: failed to deliver terminal event after eviction", "subscriber", sub.ID, "event_type", e.Type)
	}
}
