package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/message"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Buffer size for the send channel
	sendBufferSize = 256

	// Time allowed to store one inbound post
	postTimeout = 10 * time.Second
)

// Hub interface to avoid circular dependencies
type Hub interface {
	Register(any)
	Unregister(any)
}

// PostFunc stores a message posted over the connection. The stored message
// reaches subscribers, the sender included, through the hub.
type PostFunc func(ctx context.Context, text string) error

// Client represents a WebSocket connection subscribed to one topic
type Client struct {
	hub Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send   chan []byte
	mu     sync.Mutex
	closed bool

	id       string
	topic    string
	username string

	post PostFunc

	logger *slog.Logger
}

// New creates a new Client instance. username is empty for an anonymous
// connection and is used for logging only; post carries the identity.
func New(hub Hub, conn *websocket.Conn, topic, username string, post PostFunc, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		id:       "client-" + uuid.NewString(),
		topic:    topic,
		username: username,
		post:     post,
		logger:   logger,
	}
}

// readPump turns inbound frames into posts
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error",
					slog.String("clientID", c.id),
					slog.String("error", err.Error()))
			}
			break
		}

		frame, err := message.PostFromJSON(data)
		if err != nil {
			c.logger.Warn("invalid message format",
				slog.String("clientID", c.id),
				slog.String("error", err.Error()))
			c.reply(message.NewErrorEvent("Invalid message format"))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
		err = c.post(ctx, frame.Text)
		cancel()

		if err != nil {
			c.logger.Warn("post rejected",
				slog.String("clientID", c.id),
				slog.String("topic", c.topic),
				slog.String("username", c.username),
				slog.String("kind", string(apperr.KindOf(err))),
				slog.String("error", err.Error()))
			c.reply(message.NewErrorEvent(apperr.Message(err)))
		}
	}
}

// reply sends an event to this connection only
func (c *Client) reply(event *message.Event) {
	data, err := event.ToJSON()
	if err != nil {
		c.logger.Error("failed to marshal event",
			slog.String("clientID", c.id),
			slog.String("error", err.Error()))
		return
	}
	c.Send(data)
}

// writePump pumps messages from the hub to the WebSocket connection
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame so clients can parse each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues a message to be sent to the client. Messages sent after Close
// or while the buffer is full are dropped.
// Implements the hub.Client interface
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full, dropping message",
			slog.String("clientID", c.id))
	}
}

// Close closes the client's send channel
// Implements the hub.Client interface
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ID returns the client's unique identifier
// Implements the hub.Client interface
func (c *Client) ID() string {
	return c.id
}

// Topic returns the topic the client is subscribed to
// Implements the hub.Client interface
func (c *Client) Topic() string {
	return c.topic
}
