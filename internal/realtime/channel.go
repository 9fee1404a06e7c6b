package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event names on the realtime wire.
const (
	evAuth        = "auth"
	evSendMessage = "send-message"
	evMessage     = "message"
	evMessageSent = "message-sent"
	evAdminOnline = "admin-online"
	evTyping      = "typing"
	evError       = "error"
	evHistory     = "history"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // 1MB
)

// frame is the JSON envelope both websocket legs speak.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Identity announces who a channel speaks for. UserType is always "user":
// the gateway only ever connects on behalf of end users, never support agents.
type Identity struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
	Name     string `json:"name"`
}

// Outbound is the send-message payload. ReceiverID stays null: the message is
// for whichever support agent is listening, not a specific one.
type Outbound struct {
	SenderID   string  `json:"senderId"`
	SenderType string  `json:"senderType"`
	SenderName string  `json:"senderName"`
	Message    string  `json:"message"`
	CreatedAt  string  `json:"createdAt"`
	ReceiverID *string `json:"receiverId"`
}

// Handlers receive decoded realtime events. Nil entries are skipped.
type Handlers struct {
	OnMessage     func(Message)
	OnMessageSent func(Message)
	OnAdminOnline func(int)
	OnTyping      func()
	OnError       func(error)
}

// Channel is one live link to the backend messaging server.
type Channel struct {
	conn *websocket.Conn

	mu sync.Mutex // serializes writes

	done     chan struct{}
	doneOnce sync.Once
}

// Dial opens a channel to the realtime endpoint and announces the viewer's
// identity. The identity's user type is forced to "user".
func Dial(ctx context.Context, url string, id Identity) (*Channel, error) {
	id.UserType = RoleUser
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	ch := &Channel{conn: conn, done: make(chan struct{})}
	if err := ch.emit(evAuth, id); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ch, nil
}

// Send emits a send-message event.
func (ch *Channel) Send(m Outbound) error {
	return ch.emit(evSendMessage, m)
}

func (ch *Channel) emit(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	_ = ch.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ch.conn.WriteJSON(frame{Event: event, Data: b})
}

// Done is closed when the channel shuts down.
func (ch *Channel) Done() <-chan struct{} { return ch.done }

// Close tears the connection down immediately; in-flight sends are not
// drained.
func (ch *Channel) Close() error {
	ch.doneOnce.Do(func() { close(ch.done) })
	return ch.conn.Close()
}

// Run reads frames until the connection drops, dispatching each event to its
// handler. Connection errors are logged and swallowed; the channel never
// reconnects on its own.
func (ch *Channel) Run(h Handlers) {
	defer ch.Close()

	ch.conn.SetReadLimit(maxMessageSize)
	_ = ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	ch.conn.SetPongHandler(func(string) error {
		return ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go ch.pingLoop()

	for {
		var f frame
		if err := ch.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("realtime: read")
			}
			return
		}
		switch f.Event {
		case evMessage:
			m, err := decodeMessage(f.Data)
			if err != nil {
				continue
			}
			if h.OnMessage != nil {
				h.OnMessage(m)
			}
		case evMessageSent:
			m, err := decodeMessage(f.Data)
			if err != nil {
				continue
			}
			if h.OnMessageSent != nil {
				h.OnMessageSent(m)
			}
		case evAdminOnline:
			var d struct {
				Count int `json:"count"`
			}
			if err := json.Unmarshal(f.Data, &d); err != nil {
				continue
			}
			if h.OnAdminOnline != nil {
				h.OnAdminOnline(d.Count)
			}
		case evTyping:
			if h.OnTyping != nil {
				h.OnTyping()
			}
		case evError:
			var d struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(f.Data, &d)
			if h.OnError != nil {
				h.OnError(errors.New(d.Message))
			}
		}
	}
}

func (ch *Channel) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ch.done:
			return
		case <-ticker.C:
			if err := ch.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
