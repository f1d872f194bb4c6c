package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func startHub(t *testing.T, origins ...string) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()

	hub := NewHub(zerolog.Nop(), origins...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)
	return hub, server, cancel
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	return conn
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub, server, cancel := startHub(t)
	defer cancel()

	conn := dial(t, server)

	time.Sleep(100 * time.Millisecond)
	if n := hub.ConnectionCount(); n != 1 {
		t.Fatalf("Expected 1 connection, got %d", n)
	}

	conn.Close()

	time.Sleep(100 * time.Millisecond)
	if n := hub.ConnectionCount(); n != 0 {
		t.Fatalf("Expected connection to be unregistered, got %d", n)
	}
}

func TestHub_BroadcastReachesAllOperators(t *testing.T) {
	hub, server, cancel := startHub(t)
	defer cancel()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		c := dial(t, server)
		defer c.Close()
		conns = append(conns, c)
	}

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(&Message{
		Type:    "application_approved",
		Channel: "loan_applications",
		Data:    map[string]interface{}{"application_id": "app-1"},
	})

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(idx int, c *websocket.Conn) {
			defer wg.Done()
			c.SetReadDeadline(time.Now().Add(1 * time.Second))
			var received Message
			if err := c.ReadJSON(&received); err != nil {
				t.Errorf("Connection %d failed to read message: %v", idx, err)
				return
			}
			if received.Type != "application_approved" {
				t.Errorf("Connection %d: expected type 'application_approved', got '%s'", idx, received.Type)
			}
			if received.Channel != "loan_applications" {
				t.Errorf("Connection %d: expected channel 'loan_applications', got '%s'", idx, received.Channel)
			}
		}(i, conn)
	}
	wg.Wait()
}

func TestHub_RejectsUnknownOrigin(t *testing.T) {
	_, server, cancel := startHub(t, "http://localhost:5173")
	defer cancel()

	header := http.Header{}
	header.Set("Origin", "http://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], header)
	if err == nil {
		t.Fatal("expected handshake to fail for a foreign origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestHub_BroadcastChannelFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.broadcast = make(chan *Message, 1)

	hub.broadcast <- &Message{Type: "fill"}

	// must not block
	done := make(chan struct{})
	go func() {
		hub.Broadcast(&Message{Type: "dropped"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full channel")
	}

	if msg := <-hub.broadcast; msg.Type != "fill" {
		t.Fatalf("expected queued message to survive, got %s", msg.Type)
	}
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	_, server, cancel := startHub(t)

	conn := dial(t, server)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(100 * time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("Expected connection to be closed after hub shutdown")
	}
}
