package ws

import (
	"encoding/json"
	"testing"

	"github.com/darecoin/backend/internal/notify"
)

func TestHubSendToUser(t *testing.T) {
	h := NewHub()
	a1 := h.newClient(nil, 1)
	a2 := h.newClient(nil, 1)
	b := h.newClient(nil, 2)
	h.register(a1)
	h.register(a2)
	h.register(b)

	if got := h.ConnectionCount(); got != 3 {
		t.Fatalf("expected 3 connections, got %d", got)
	}
	if n := h.SendToUser(1, map[string]string{"type": "x"}); n != 2 {
		t.Errorf("expected delivery to both tabs, got %d", n)
	}
	if len(b.send) != 0 {
		t.Errorf("other user received a message")
	}
	if n := h.SendToUser(3, "nobody"); n != 0 {
		t.Errorf("expected no delivery for offline user, got %d", n)
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	c := h.newClient(nil, 5)
	h.register(c)
	for i := 0; i < sendBuffer; i++ {
		h.sendRaw(5, []byte("m"))
	}
	if n := h.sendRaw(5, []byte("overflow")); n != 0 {
		t.Errorf("expected overflow to be dropped, delivered=%d", n)
	}
	if len(c.send) != sendBuffer {
		t.Errorf("expected full buffer, got %d", len(c.send))
	}
}

func TestHubUnregister(t *testing.T) {
	h := NewHub()
	c := h.newClient(nil, 7)
	h.register(c)
	h.unregister(c)
	h.unregister(c)

	if h.Online(7) {
		t.Errorf("user should be offline after unregister")
	}
	if _, ok := <-c.send; ok {
		t.Errorf("send channel should be closed")
	}
}

func TestDispatchNotification(t *testing.T) {
	h := NewHub()
	c := h.newClient(nil, 4)
	h.register(c)

	payload, _ := json.Marshal(notify.Event{UserID: 4, Notification: json.RawMessage(`{"id":1,"type":"dare_joined"}`)})
	h.dispatch(string(payload))
	h.dispatch("garbage")

	if len(c.send) != 1 {
		t.Fatalf("expected one message, got %d", len(c.send))
	}
	var msg struct {
		Type         string                 `json:"type"`
		Notification map[string]interface{} `json:"notification"`
	}
	if err := json.Unmarshal(<-c.send, &msg); err != nil {
		t.Fatalf("bad message: %v", err)
	}
	if msg.Type != "notification" || msg.Notification["type"] != "dare_joined" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestHandleMessagePing(t *testing.T) {
	h := NewHub()
	c := h.newClient(nil, 1)
	c.handleMessage([]byte(`{"type":"ping"}`))
	c.handleMessage([]byte(`nope`))

	var first, second Message
	json.Unmarshal(<-c.send, &first)
	json.Unmarshal(<-c.send, &second)
	if first.Type != "pong" {
		t.Errorf("expected pong, got %q", first.Type)
	}
	if second.Type != "error" {
		t.Errorf("expected error for invalid frame, got %q", second.Type)
	}
}
