package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsServer runs handler for every incoming realtime connection and returns a
// ws:// URL for it.
func wsServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial_AnnouncesIdentity(t *testing.T) {
	got := make(chan frame, 1)
	url := wsServer(t, func(conn *websocket.Conn) {
		var f frame
		if err := conn.ReadJSON(&f); err == nil {
			got <- f
		}
	})

	ch, err := Dial(context.Background(), url, Identity{UserID: "42", Name: "Asha"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	select {
	case f := <-got:
		if f.Event != evAuth {
			t.Fatalf("first event = %q, want auth", f.Event)
		}
		var id Identity
		if err := json.Unmarshal(f.Data, &id); err != nil {
			t.Fatalf("decode auth: %v", err)
		}
		if id.UserID != "42" || id.Name != "Asha" {
			t.Errorf("identity = %+v", id)
		}
		if id.UserType != RoleUser {
			t.Errorf("user type = %q, want %q", id.UserType, RoleUser)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the auth event")
	}
}

func TestRun_DispatchesEvents(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		var f frame
		_ = conn.ReadJSON(&f) // auth
		frames := []frame{
			{Event: evTyping, Data: json.RawMessage(`{"is_typing":true}`)},
			{Event: evAdminOnline, Data: json.RawMessage(`{"count":2}`)},
			{Event: evMessage, Data: json.RawMessage(`{"id":9,"message":"how can I help?","sender_type":"admin","sender_name":"Support"}`)},
			{Event: evMessageSent, Data: json.RawMessage(`{"id":10,"message":"thanks","sender_type":"user"}`)},
			{Event: evError, Data: json.RawMessage(`{"message":"nope"}`)},
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// keep the connection open until the client walks away
		_, _, _ = conn.ReadMessage()
	})

	ch, err := Dial(context.Background(), url, Identity{UserID: "42", Name: "Asha"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	typed := make(chan struct{}, 1)
	online := make(chan int, 1)
	inbound := make(chan Message, 1)
	acked := make(chan Message, 1)
	errored := make(chan error, 1)
	go ch.Run(Handlers{
		OnTyping:      func() { typed <- struct{}{} },
		OnAdminOnline: func(n int) { online <- n },
		OnMessage:     func(m Message) { inbound <- m },
		OnMessageSent: func(m Message) { acked <- m },
		OnError:       func(err error) { errored <- err },
	})

	select {
	case <-typed:
	case <-time.After(2 * time.Second):
		t.Fatal("typing never dispatched")
	}
	select {
	case n := <-online:
		if n != 2 {
			t.Errorf("admin online = %d, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("admin-online never dispatched")
	}
	select {
	case m := <-inbound:
		if m.Body != "how can I help?" || m.SenderRole != RoleAdmin {
			t.Errorf("inbound = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message never dispatched")
	}
	select {
	case m := <-acked:
		if m.ID != "10" {
			t.Errorf("ack id = %q", m.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message-sent never dispatched")
	}
	select {
	case err := <-errored:
		if err == nil || err.Error() != "nope" {
			t.Errorf("error event = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error event never dispatched")
	}
}

func TestSend_EmitsBroadcastReceiver(t *testing.T) {
	got := make(chan frame, 2)
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			got <- f
		}
	})

	ch, err := Dial(context.Background(), url, Identity{UserID: "42", Name: "Asha"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	out := Outbound{
		SenderID:   "42",
		SenderType: RoleUser,
		SenderName: "Asha",
		Message:    "hello",
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		ReceiverID: nil,
	}
	if err := ch.Send(out); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-got:
			if f.Event != evSendMessage {
				continue // the auth frame
			}
			var data map[string]any
			if err := json.Unmarshal(f.Data, &data); err != nil {
				t.Fatalf("decode: %v", err)
			}
			v, present := data["receiverId"]
			if !present || v != nil {
				t.Errorf("receiverId = %v (present=%v), want explicit null", v, present)
			}
			if data["senderType"] != RoleUser || data["message"] != "hello" {
				t.Errorf("payload = %v", data)
			}
			return
		case <-deadline:
			t.Fatal("send-message never reached the server")
		}
	}
}

func TestClose_IsImmediateAndIdempotent(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	ch, err := Dial(context.Background(), url, Identity{UserID: "42"})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = ch.Close() // second close must not panic

	select {
	case <-ch.Done():
	default:
		t.Error("Done not closed after Close")
	}
}
