package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kisanbazar/gateway/internal/relay"
	"github.com/rs/zerolog/log"
)

// ErrEmptyMessage rejects blank chat input before it reaches the server.
var ErrEmptyMessage = errors.New("realtime: empty message")

const defaultTypingTTL = 3 * time.Second

// Widget holds one viewer's chat state: the ordered transcript, unread count,
// agents-online count and the transient typing flag. Messages are appended in
// arrival order and never reordered. An optimistic local entry is never
// reconciled with the server echo.
type Widget struct {
	id Identity
	ch *Channel

	// Notify, when set, pushes widget-originated state changes (currently
	// the typing auto-clear) toward the browser. Set it before events flow.
	Notify func(event string, data any)

	mu           sync.Mutex
	msgs         []Message
	unread       int
	agentsOnline int
	typing       bool
	typingGen    int
	typingTTL    time.Duration
}

func NewWidget(id Identity, ch *Channel) *Widget {
	return &Widget{id: id, ch: ch, typingTTL: defaultTypingTTL}
}

// Snapshot is the renderable view of the widget.
type Snapshot struct {
	Messages     []Message `json:"messages"`
	Unread       int       `json:"unread"`
	AgentsOnline int       `json:"agents_online"`
	Typing       bool      `json:"typing"`
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	msgs := make([]Message, len(w.msgs))
	copy(msgs, w.msgs)
	return Snapshot{
		Messages:     msgs,
		Unread:       w.unread,
		AgentsOnline: w.agentsOnline,
		Typing:       w.typing,
	}
}

// Send validates the text, appends exactly one optimistic entry under a
// client-generated id, then emits it. The append happens before any server
// acknowledgment. Emit failures are logged and swallowed; the optimistic
// entry stays.
func (w *Widget) Send(text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	now := time.Now()
	m := Message{
		ID:         uuid.NewString(),
		Body:       text,
		SenderID:   w.id.UserID,
		SenderRole: RoleUser,
		SenderName: w.id.Name,
		CreatedAt:  now,
		Read:       true,
	}
	w.mu.Lock()
	w.msgs = append(w.msgs, m)
	w.mu.Unlock()

	if w.ch != nil {
		out := Outbound{
			SenderID:   w.id.UserID,
			SenderType: RoleUser,
			SenderName: w.id.Name,
			Message:    text,
			CreatedAt:  now.UTC().Format(time.RFC3339),
			ReceiverID: nil,
		}
		if err := w.ch.Send(out); err != nil {
			log.Error().Err(err).Str("user_id", w.id.UserID).Msg("realtime: emit send-message")
		}
	}
	return m, nil
}

// Inbound appends a counterpart message as unread and clears any active
// typing indicator.
func (w *Widget) Inbound(m Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m.Read = false
	w.msgs = append(w.msgs, m)
	w.unread++
	w.clearTypingLocked()
}

// Typing raises the counterpart-is-typing flag; it auto-clears after the TTL
// unless a message arrives first.
func (w *Widget) Typing() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.typing = true
	w.typingGen++
	gen := w.typingGen
	time.AfterFunc(w.typingTTL, func() {
		w.mu.Lock()
		stale := gen != w.typingGen || !w.typing
		if !stale {
			w.typing = false
		}
		w.mu.Unlock()
		if !stale && w.Notify != nil {
			w.Notify(evTyping, map[string]bool{"is_typing": false})
		}
	})
}

func (w *Widget) clearTypingLocked() {
	w.typing = false
	w.typingGen++
}

// AdminOnline updates the count of available support agents.
func (w *Widget) AdminOnline(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agentsOnline = n
}

// MarkRead flags the whole transcript as seen, e.g. when the panel opens.
func (w *Widget) MarkRead() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unread = 0
	for i := range w.msgs {
		w.msgs[i].Read = true
	}
}

// Backfill seeds the transcript from the backend chat history, fetched
// through the relay with the viewer's own token. A failed fetch leaves the
// transcript empty; there is no error surface beyond the log.
func (w *Widget) Backfill(ctx context.Context, rly *relay.Relay, token string) {
	path := "/user/chat/messages"
	if w.id.UserID != "" {
		path += "?sender_id=" + url.QueryEscape(w.id.UserID)
	}
	res, err := rly.Forward(ctx, http.MethodGet, path, token, relay.Body{})
	if err != nil || res.Status != http.StatusOK {
		log.Warn().Err(err).Int("status", res.Status).Msg("realtime: history backfill")
		return
	}
	var payload struct {
		Data []wireMessage `json:"data"`
	}
	if err := json.Unmarshal(res.Raw, &payload); err != nil {
		log.Warn().Err(err).Msg("realtime: decode history")
		return
	}
	history := make([]Message, 0, len(payload.Data))
	for _, wm := range payload.Data {
		m := wm.normalize()
		m.Read = true
		history = append(history, m)
	}
	w.mu.Lock()
	w.msgs = append(history, w.msgs...)
	w.mu.Unlock()
}
