package hub

import (
	"log/slog"
	"sync"
)

// Client represents a connected WebSocket client subscribed to one topic.
// This is an interface to avoid circular dependencies between hub and client packages
type Client interface {
	Send([]byte)
	Close()
	ID() string
	Topic() string
}

type publication struct {
	topic string
	data  []byte
}

// Hub maintains topic subscriptions and fans published events out to them
type Hub struct {
	// Subscribers per topic
	topics map[string]map[Client]struct{}

	// Events waiting to be delivered
	publish chan publication

	// Register requests from clients
	register chan Client

	// Unregister requests from clients
	unregister chan Client

	// Mutex for thread-safe topic map access
	mu sync.RWMutex

	logger *slog.Logger

	// Shutdown signal
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new Hub instance
func New(logger *slog.Logger) *Hub {
	return &Hub{
		publish:    make(chan publication, 256),
		register:   make(chan Client),
		unregister: make(chan Client),
		topics:     make(map[string]map[Client]struct{}),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop
// This should be called in a goroutine
func (h *Hub) Run() {
	h.logger.Info("hub started")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			subs, ok := h.topics[client.Topic()]
			if !ok {
				subs = make(map[Client]struct{})
				h.topics[client.Topic()] = subs
			}
			subs[client] = struct{}{}
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("clientID", client.ID()),
				slog.String("topic", client.Topic()),
				slog.Int("totalClients", h.ClientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.topics[client.Topic()]; ok {
				if _, ok := subs[client]; ok {
					delete(subs, client)
					client.Close()
				}
				if len(subs) == 0 {
					delete(h.topics, client.Topic())
				}
			}
			h.mu.Unlock()

			h.logger.Info("client unregistered",
				slog.String("clientID", client.ID()),
				slog.String("topic", client.Topic()),
				slog.Int("totalClients", h.ClientCount()))

		case p := <-h.publish:
			h.mu.RLock()
			for client := range h.topics[p.topic] {
				// Send never blocks; a full client buffer drops the event
				client.Send(p.data)
			}
			h.mu.RUnlock()

		case <-h.done:
			h.logger.Info("hub shutting down")
			h.mu.Lock()
			for _, subs := range h.topics {
				for client := range subs {
					client.Close()
				}
			}
			h.topics = make(map[string]map[Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Register subscribes a client to its topic
func (h *Hub) Register(client any) {
	if c, ok := client.(Client); ok {
		select {
		case h.register <- c:
		case <-h.done:
		}
	}
}

// Unregister removes a client from the hub and closes it
func (h *Hub) Unregister(client any) {
	if c, ok := client.(Client); ok {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}
}

// Publish delivers data to every client subscribed to topic. Events
// published after Shutdown are dropped.
func (h *Hub) Publish(topic string, data []byte) {
	select {
	case h.publish <- publication{topic: topic, data: data}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients across all topics
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, subs := range h.topics {
		n += len(subs)
	}
	return n
}

// TopicCount returns the number of topics with at least one subscriber
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// Shutdown closes every client and stops Run. It is safe to call more than once.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}
