package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KIaudius/issues-insights-tracker/internal/auth"
)

type staticVerifier struct {
	identity auth.Identity
}

func (v staticVerifier) Verify(raw string, want auth.TokenType) (auth.Identity, error) {
	return v.identity, nil
}

// dialTestHub runs ServeConn behind an httptest server and returns the
// peer side of the connection.
func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		verifier := staticVerifier{identity: auth.Identity{UserID: 1}}
		_ = ServeConn(r.Context(), hub, conn, verifier, nil)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Close()
	})
	return conn
}

func TestConnectedAckIsFirstFrame(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)

	if err := conn.WriteJSON(map[string]any{"token": "any"}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	var msg struct {
		Type string `json:"type"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if msg.Type != "connected" {
		t.Fatalf("first frame type = %q, want connected", msg.Type)
	}
}

// Pings and subscription acks must not write the conn beside the event
// pump; this interleaves both under load and fails under the race
// detector if they ever share the socket.
func TestControlFramesShareWriterWithEvents(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub)

	if err := conn.WriteJSON(map[string]any{"token": "any"}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	subscribed := make(chan struct{})
	readerDone := make(chan struct{})
	var pongs atomic.Int64
	go func() {
		defer close(readerDone)
		for {
			var msg struct {
				Type   string `json:"type"`
				Status string `json:"status"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch {
			case msg.Type == "subscription" && msg.Status == "subscribed":
				close(subscribed)
			case msg.Type == "pong":
				pongs.Add(1)
			}
		}
	}()

	if err := conn.WriteJSON(map[string]any{"type": "subscribe", "issue_id": 10}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	select {
	case <-subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription ack never arrived")
	}

	publishDone := make(chan struct{})
	go func() {
		defer close(publishDone)
		for i := 0; i < 3000; i++ {
			hub.Publish(context.Background(), issueEvent(10))
		}
	}()

	for i := 0; i < 200; i++ {
		if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
			t.Fatalf("write ping: %v", err)
		}
	}
	<-publishDone

	// Queue pressure may have dropped every pong above; keep asking
	// until one survives a drained buffer.
	deadline := time.Now().Add(5 * time.Second)
	for pongs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no pong came back")
		}
		_ = conn.WriteJSON(map[string]any{"type": "ping"})
		time.Sleep(10 * time.Millisecond)
	}
}
