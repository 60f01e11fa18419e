package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/epw80/channel-chat/pkg/apperr"
	"github.com/epw80/channel-chat/pkg/message"
	"github.com/gorilla/websocket"
)

// mockHub implements the Hub interface for testing
type mockHub struct {
	mu           sync.Mutex
	registered   []*Client
	unregistered []*Client
}

func (m *mockHub) Register(c any) {
	if client, ok := c.(*Client); ok {
		m.mu.Lock()
		m.registered = append(m.registered, client)
		m.mu.Unlock()
	}
}

func (m *mockHub) Unregister(c any) {
	if client, ok := c.(*Client); ok {
		m.mu.Lock()
		m.unregistered = append(m.unregistered, client)
		m.mu.Unlock()
		client.Close()
	}
}

func (m *mockHub) RegisteredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registered)
}

func (m *mockHub) UnregisteredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.unregistered)
}

// postRecorder is a PostFunc that records texts and returns err
type postRecorder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (p *postRecorder) Post(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.texts = append(p.texts, text)
	return nil
}

func (p *postRecorder) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// dialTestClient starts a server that wraps every connection in a Client
// and returns the dialled peer plus the server-side Client.
func dialTestClient(t *testing.T, hub *mockHub, post PostFunc) (*websocket.Conn, *Client) {
	t.Helper()

	clients := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade error: %v", err)
			return
		}

		client := New(hub, conn, "channel:c1", "alice", post, newTestLogger())
		hub.Register(client)
		client.Start()
		clients <- client
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	select {
	case c := <-clients:
		return ws, c
	case <-time.After(time.Second):
		t.Fatal("server did not create a client")
		return nil, nil
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) message.Event {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	var event message.Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("invalid event %q: %v", data, err)
	}
	return event
}

func TestClient_PostFrame(t *testing.T) {
	hub := &mockHub{}
	rec := &postRecorder{}
	ws, _ := dialTestClient(t, hub, rec.Post)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"text":"Hello"}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	texts := rec.Texts()
	if len(texts) != 1 || texts[0] != "Hello" {
		t.Errorf("expected one post of %q, got %v", "Hello", texts)
	}
}

func TestClient_InvalidMessage(t *testing.T) {
	hub := &mockHub{}
	rec := &postRecorder{}
	ws, _ := dialTestClient(t, hub, rec.Post)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("invalid json")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	event := readEvent(t, ws)
	if event.Type != message.EventError {
		t.Errorf("expected error event, got %q", event.Type)
	}
	if len(rec.Texts()) != 0 {
		t.Errorf("expected no posts for invalid frame, got %v", rec.Texts())
	}
}

func TestClient_PostRejected(t *testing.T) {
	hub := &mockHub{}
	rec := &postRecorder{err: fmt.Errorf("write on private channel: %w", apperr.ErrUnauthenticated)}
	ws, _ := dialTestClient(t, hub, rec.Post)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"text":"psst"}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}

	event := readEvent(t, ws)
	if event.Type != message.EventError {
		t.Fatalf("expected error event, got %q", event.Type)
	}
	if event.Error != "Authentication required" {
		t.Errorf("expected user-facing message, got %q", event.Error)
	}
}

func TestClient_DeliversEvents(t *testing.T) {
	hub := &mockHub{}
	ws, client := dialTestClient(t, hub, (&postRecorder{}).Post)

	msg := message.ChannelMessage{ID: "MSG#0000000000001", ChannelID: "c1", Text: "hi", Sender: "bob"}
	data, err := message.NewChannelMessageEvent("channel:c1", msg).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	client.Send(data)
	client.Send(data)

	for i := 0; i < 2; i++ {
		event := readEvent(t, ws)
		if event.ChannelMessage == nil || event.ChannelMessage.Text != "hi" {
			t.Errorf("frame %d: unexpected event %+v", i, event)
		}
	}
}

func TestClient_SendBufferFull(t *testing.T) {
	client := New(&mockHub{}, nil, "channel:c1", "", (&postRecorder{}).Post, newTestLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize+10; i++ {
			client.Send([]byte("test message"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full buffer")
	}

	if n := len(client.send); n != sendBufferSize {
		t.Errorf("expected %d queued messages, got %d", sendBufferSize, n)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	client := New(&mockHub{}, nil, "channel:c1", "", (&postRecorder{}).Post, newTestLogger())

	client.Close()
	client.Close()

	// Should not panic
	client.Send([]byte("late"))
}

func TestClient_Disconnect(t *testing.T) {
	hub := &mockHub{}
	ws, _ := dialTestClient(t, hub, (&postRecorder{}).Post)

	if hub.RegisteredCount() != 1 {
		t.Errorf("expected 1 registered client, got %d", hub.RegisteredCount())
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if hub.UnregisteredCount() != 1 {
		t.Errorf("expected 1 unregistered client, got %d", hub.UnregisteredCount())
	}
}

func TestClient_IDAndTopic(t *testing.T) {
	hub := &mockHub{}
	post := (&postRecorder{}).Post

	a := New(hub, nil, "dm:alice#bob", "alice", post, newTestLogger())
	b := New(hub, nil, "dm:alice#bob", "bob", post, newTestLogger())

	if a.ID() == "" {
		t.Error("client ID should not be empty")
	}
	if a.ID() == b.ID() {
		t.Error("client IDs should be unique")
	}
	if a.Topic() != "dm:alice#bob" {
		t.Errorf("unexpected topic %q", a.Topic())
	}
}
