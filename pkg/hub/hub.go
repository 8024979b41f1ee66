// Package hub fans committed pixel writes out to every live subscriber.
//
// The hub keeps no history: a subscriber only sees writes published after
// Subscribe returns. Publish never blocks. Each subscriber owns a buffered
// channel, and a subscriber that falls a full buffer behind is evicted
// rather than allowed to stall the publisher.
package hub

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/place/pkg/canvas"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 1024

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("hub: closed")

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Hub is a single publish point for pixel writes.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	buffer int
	logger *slog.Logger

	published atomic.Uint64
	evicted   atomic.Uint64
}

// New creates a hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: DefaultBuffer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub")
	return h
}

// Subscription is one subscriber's view of the hub.
type Subscription struct {
	id      uint64
	hub     *Hub
	ch      chan canvas.Pixel
	dropped atomic.Bool
	once    sync.Once
}

// Subscribe registers a new subscriber. Only writes published after
// Subscribe returns are delivered to it.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	sub := &Subscription{
		id:  h.nextID,
		hub: h,
		ch:  make(chan canvas.Pixel, h.buffer),
	}
	h.subs[sub.id] = sub
	return sub, nil
}

// C returns the delivery channel. It is closed when the subscription ends,
// whether by Close, eviction, or hub shutdown.
func (s *Subscription) C() <-chan canvas.Pixel {
	return s.ch
}

// Dropped reports whether the hub evicted this subscriber for falling behind.
func (s *Subscription) Dropped() bool {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(s *Subscription) {
	if cur, ok := h.subs[s.id]; ok && cur == s {
		delete(h.subs, s.id)
	}
	s.once.Do(func() { close(s.ch) })
}

// Publish delivers p once to every current subscriber and returns the number
// of deliveries. It never blocks; full subscribers are evicted.
func (h *Hub) Publish(p canvas.Pixel) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}
	h.published.Add(1)

	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- p:
			delivered++
		default:
			sub.dropped.Store(true)
			h.removeLocked(sub)
			h.evicted.Add(1)
			h.logger.Warn("subscriber evicted, buffer full", "subscriber", sub.id, "buffer", h.buffer)
		}
	}
	return delivered
}

// Len returns the number of current subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Stats is a point-in-time view of hub counters.
type Stats struct {
	Subscribers int
	Published   uint64
	Evicted     uint64
}

// Stats returns hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.Len(),
		Published:   h.published.Load(),
		Evicted:     h.evicted.Load(),
	}
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		h.removeLocked(sub)
	}
}
