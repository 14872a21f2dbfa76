package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// DefaultBufferSize is the per-subscriber queue length
const DefaultBufferSize = 100

// Hub fans serialized messages of one game out to its subscribers.
//
// Publish never blocks: a subscriber whose queue is full is dropped and its
// channel closed, so one slow connection cannot stall the others.
type Hub struct {
	gameID     models.GameID
	bufferSize int
	onDrop     func()

	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	closed      bool
}

// Subscription receives the messages published after it was created
type Subscription struct {
	hub  *Hub
	ch   chan []byte
	once sync.Once
}

// NewHub creates a hub with no subscribers. onDrop, if set, is called
// whenever a slow subscriber is dropped.
func NewHub(gameID models.GameID, bufferSize int, onDrop func()) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		gameID:      gameID,
		bufferSize:  bufferSize,
		onDrop:      onDrop,
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed hub returns
// a subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub: h,
		ch:  make(chan []byte, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.closeChannel()
		return sub
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

// Publish delivers msg to every current subscriber
func (h *Hub) Publish(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for sub := range h.subscribers {
		select {
		case sub.ch <- msg:
		default:
			log.Warn().
				Str("game_id", h.gameID.String()).
				Int("buffer_size", h.bufferSize).
				Msg("subscriber queue full, dropping subscriber")
			delete(h.subscribers, sub)
			sub.closeChannel()
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
}

// Close drops every subscriber. Later publishes are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		sub.closeChannel()
	}
}

// Len returns the number of current subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		sub.closeChannel()
	}
}

// C returns the message channel. It is closed when the subscription ends,
// the subscriber falls too far behind, or the hub is closed.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Close ends the subscription
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

func (s *Subscription) closeChannel() {
	s.once.Do(func() { close(s.ch) })
}
