package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kisanbazar/gateway/internal/relay"
)

func testWidget() *Widget {
	// nil channel: state-only tests never touch the wire
	return NewWidget(Identity{UserID: "42", UserType: RoleUser, Name: "Asha"}, nil)
}

func TestSend_RejectsBlankInput(t *testing.T) {
	w := testWidget()
	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := w.Send(text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q) err = %v, want ErrEmptyMessage", text, err)
		}
	}
	if n := len(w.Snapshot().Messages); n != 0 {
		t.Errorf("blank input appended %d messages", n)
	}
}

func TestSend_OptimisticAppend(t *testing.T) {
	w := testWidget()
	m, err := w.Send("  hello there  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.ID == "" {
		t.Error("optimistic message has no client-generated id")
	}
	if m.Body != "hello there" {
		t.Errorf("body = %q, want trimmed text", m.Body)
	}
	if m.SenderRole != RoleUser || m.SenderID != "42" || m.SenderName != "Asha" {
		t.Errorf("sender = %+v", m)
	}

	snap := w.Snapshot()
	if len(snap.Messages) != 1 {
		t.Fatalf("transcript has %d messages, want exactly 1", len(snap.Messages))
	}
	if !snap.Messages[0].Read {
		t.Error("own message marked unread")
	}
}

func TestInbound_AppendsUnreadAndClearsTyping(t *testing.T) {
	w := testWidget()
	w.Typing()
	if !w.Snapshot().Typing {
		t.Fatal("typing flag not raised")
	}

	w.Inbound(Message{ID: "srv-1", Body: "how can I help?", SenderRole: RoleAdmin, SenderName: "Support"})

	snap := w.Snapshot()
	if snap.Typing {
		t.Error("typing flag survived an inbound message")
	}
	if snap.Unread != 1 {
		t.Errorf("unread = %d, want 1", snap.Unread)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Read {
		t.Errorf("messages = %+v", snap.Messages)
	}
}

func TestInbound_PreservesArrivalOrder(t *testing.T) {
	w := testWidget()
	if _, err := w.Send("first"); err != nil {
		t.Fatal(err)
	}
	w.Inbound(Message{ID: "a", Body: "second"})
	w.Inbound(Message{ID: "b", Body: "third"})

	snap := w.Snapshot()
	want := []string{"first", "second", "third"}
	if len(snap.Messages) != len(want) {
		t.Fatalf("got %d messages", len(snap.Messages))
	}
	for i, body := range want {
		if snap.Messages[i].Body != body {
			t.Errorf("messages[%d] = %q, want %q", i, snap.Messages[i].Body, body)
		}
	}
}

func TestTyping_AutoClears(t *testing.T) {
	w := testWidget()
	w.typingTTL = 30 * time.Millisecond

	cleared := make(chan struct{}, 1)
	w.Notify = func(event string, data any) {
		if event == evTyping {
			cleared <- struct{}{}
		}
	}

	w.Typing()
	if !w.Snapshot().Typing {
		t.Fatal("typing flag not raised")
	}

	select {
	case <-cleared:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("typing flag never auto-cleared")
	}
	if w.Snapshot().Typing {
		t.Error("typing flag still set after TTL")
	}
}

func TestTyping_RenewedFlagOutlivesStaleTimer(t *testing.T) {
	w := testWidget()
	w.typingTTL = 40 * time.Millisecond

	w.Typing()
	time.Sleep(25 * time.Millisecond)
	w.Typing() // renews the TTL; the first timer must not clear it

	time.Sleep(25 * time.Millisecond) // first timer has fired by now
	if !w.Snapshot().Typing {
		t.Error("renewed typing flag cleared by a stale timer")
	}
}

func TestAdminOnline(t *testing.T) {
	w := testWidget()
	w.AdminOnline(3)
	if got := w.Snapshot().AgentsOnline; got != 3 {
		t.Errorf("agents online = %d, want 3", got)
	}
	w.AdminOnline(0)
	if got := w.Snapshot().AgentsOnline; got != 0 {
		t.Errorf("agents online = %d, want 0", got)
	}
}

func TestMarkRead(t *testing.T) {
	w := testWidget()
	w.Inbound(Message{ID: "a", Body: "hi"})
	w.Inbound(Message{ID: "b", Body: "there"})

	w.MarkRead()

	snap := w.Snapshot()
	if snap.Unread != 0 {
		t.Errorf("unread = %d", snap.Unread)
	}
	for _, m := range snap.Messages {
		if !m.Read {
			t.Errorf("message %s still unread", m.ID)
		}
	}
}

func TestBackfill_SeedsTranscript(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/chat/messages" || r.URL.Query().Get("sender_id") != "42" {
			t.Errorf("history hit %q", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"success":true,"data":[
			{"id":1,"message":"hello","sender_type":"user","sender_name":"Asha","created_at":"2026-08-30T10:00:00Z"},
			{"id":2,"message":"hi!","senderType":"admin","senderName":"Support","createdAt":"2026-08-30T10:00:05Z"}
		]}`))
	}))
	defer backend.Close()

	w := testWidget()
	w.Backfill(context.Background(), relay.New(backend.URL), "tok")

	snap := w.Snapshot()
	if len(snap.Messages) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(snap.Messages))
	}
	if snap.Messages[0].Body != "hello" || snap.Messages[0].SenderRole != RoleUser {
		t.Errorf("messages[0] = %+v", snap.Messages[0])
	}
	if snap.Messages[1].SenderRole != RoleAdmin || snap.Messages[1].SenderName != "Support" {
		t.Errorf("messages[1] = %+v", snap.Messages[1])
	}
	if snap.Unread != 0 {
		t.Errorf("backfilled history counted as unread: %d", snap.Unread)
	}
}

func TestBackfill_FailureLeavesTranscriptEmpty(t *testing.T) {
	w := testWidget()
	w.Backfill(context.Background(), relay.New("http://127.0.0.1:1"), "tok")
	if n := len(w.Snapshot().Messages); n != 0 {
		t.Errorf("failed backfill produced %d messages", n)
	}
}
