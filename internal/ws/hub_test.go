package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/royal-restaurant/api/internal/auth"
)

func newTestClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, 8),
	}
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c1 := newTestClient(hub)
	c2 := newTestClient(hub)
	hub.register <- c1
	hub.register <- c2
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(NewEvent("order.created", map[string]string{"id": "order-1"}))

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			var event Event
			if err := json.Unmarshal(msg, &event); err != nil {
				t.Fatalf("unmarshal broadcast: %v", err)
			}
			if event.Type != "order.created" {
				t.Errorf("event type = %q, want order.created", event.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := newTestClient(hub)
	hub.register <- c
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- c
	time.Sleep(10 * time.Millisecond)

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed send channel, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}

	// A broadcast after unregister must not panic or block.
	hub.Broadcast(NewEvent("order.paid", nil))
	time.Sleep(10 * time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{hub: hub, send: make(chan []byte)} // unbuffered, never drained
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(NewEvent("order.created", nil))
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	_, stillRegistered := hub.clients[slow]
	hub.mu.RUnlock()
	if stillRegistered {
		t.Error("slow client was not dropped")
	}
}

func TestNewEventMarshalsPayload(t *testing.T) {
	event := NewEvent("order.paid", map[string]string{"id": "order-1"})
	if event.Type != "order.paid" {
		t.Errorf("type = %q", event.Type)
	}
	var payload map[string]string
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["id"] != "order-1" {
		t.Errorf("payload id = %q", payload["id"])
	}

	// Unmarshalable payloads degrade to null, never an error.
	bad := NewEvent("order.paid", make(chan int))
	if string(bad.Payload) != "null" {
		t.Errorf("payload = %s, want null", bad.Payload)
	}
}

func TestServeWSRejectsBadToken(t *testing.T) {
	hub := NewHub()

	tests := []struct {
		name  string
		query string
	}{
		{"missing token", ""},
		{"garbage token", "?token=garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws/admin/orders"+tt.query, nil)
			rec := httptest.NewRecorder()
			ServeWS(hub, "session-secret", rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestServeWSRejectsWhenSecretUnset(t *testing.T) {
	hub := NewHub()

	// With no admin token configured the panel is disabled everywhere,
	// the live feed included. A token signed with the zero-length key the
	// unset secret would imply must not open the feed.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{Role: "ADMIN"})
	tokenStr, err := forged.SignedString([]byte(""))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/admin/orders?token="+tokenStr, nil)
	rec := httptest.NewRecorder()
	ServeWS(hub, "", rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestServeWSRejectsTokenFromOtherSecret(t *testing.T) {
	hub := NewHub()

	token, err := auth.GenerateToken("other-secret")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws/admin/orders?token="+token, nil)
	rec := httptest.NewRecorder()
	ServeWS(hub, "session-secret", rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
