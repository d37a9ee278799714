package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *Hub, userID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Connections(userID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s has %d connections, expected %d", userID, hub.Connections(userID), want)
}

func TestHub_EmitReachesUserGroup(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "u1")
	waitForConnections(t, hub, "u1", 1)

	hub.Emit("u1", "ReceiveMessage", map[string]string{"text": "hola"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.Event != "ReceiveMessage" {
		t.Errorf("event = %q, expected ReceiveMessage", event.Event)
	}
}

func TestHub_EmitDoesNotCrossUsers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	other := dial(t, server, "u2")
	waitForConnections(t, hub, "u2", 1)

	hub.Emit("u1", "ReceiveAction", map[string]string{"action": "no_results"})

	other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("u2 should not receive u1's event")
	}
}

func TestHub_MultipleConnectionsPerUser(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	first := dial(t, server, "u1")
	second := dial(t, server, "u1")
	waitForConnections(t, hub, "u1", 2)

	hub.Emit("u1", "ReceiveAction", map[string]string{"action": "view_cart"})

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Errorf("connection %d did not receive the event: %v", i, err)
		}
	}
}

func TestHub_DisconnectLeavesGroup(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "u1")
	waitForConnections(t, hub, "u1", 1)

	conn.Close()
	waitForConnections(t, hub, "u1", 0)
}

func TestHub_MissingUserID(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", resp.StatusCode)
	}
}
