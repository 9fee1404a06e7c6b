package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kisanbazar/gateway/internal/config"
	"github.com/kisanbazar/gateway/internal/metrics"
	"github.com/kisanbazar/gateway/internal/relay"
	"github.com/kisanbazar/gateway/internal/session"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const dialTimeout = 10 * time.Second

// Serve bridges an authenticated browser tab to the backend messaging server.
// One browser connection owns one Channel and one Widget; closing either side
// tears both down immediately, without draining in-flight sends. Anonymous
// viewers are rejected before the upgrade — the widget simply does not exist
// for them.
func Serve(cfg config.Config, rly *relay.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := session.Token(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		id, err := session.FromToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		ident := Identity{UserID: id.UserID, UserType: RoleUser, Name: id.Name}

		browser, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		metrics.WsConnections.Inc()
		defer metrics.WsConnections.Dec()
		defer browser.Close()

		// The request context dies with the upgrade, so dial on a fresh one.
		dctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		ch, err := Dial(dctx, cfg.RealtimeURL, ident)
		cancel()
		if err != nil {
			// No retry and no user-visible error: the widget stays silent.
			log.Error().Err(err).Str("user_id", ident.UserID).Msg("realtime: dial")
			return
		}

		w := NewWidget(ident, ch)
		out := make(chan frame, 32)
		w.Notify = func(event string, data any) { push(out, event, data) }

		go func() {
			bctx, bcancel := context.WithTimeout(context.Background(), dialTimeout)
			defer bcancel()
			w.Backfill(bctx, rly, token)
			push(out, evHistory, w.Snapshot())
		}()

		go writeBrowser(browser, out, ch.Done())

		go func() {
			ch.Run(Handlers{
				OnMessage: func(m Message) {
					w.Inbound(m)
					push(out, evMessage, m)
				},
				OnMessageSent: func(m Message) {
					push(out, evMessageSent, m)
				},
				OnAdminOnline: func(n int) {
					w.AdminOnline(n)
					push(out, evAdminOnline, map[string]int{"count": n})
				},
				OnTyping: func() {
					w.Typing()
					push(out, evTyping, map[string]bool{"is_typing": true})
				},
				OnError: func(err error) {
					log.Warn().Err(err).Str("user_id", ident.UserID).Msg("realtime: server error event")
				},
			})
			// channel gone, unblock the browser read loop below
			_ = browser.Close()
		}()

		readBrowser(browser, w, out)
		_ = ch.Close()
	}
}

// readBrowser pumps viewer actions into the widget until the tab goes away.
func readBrowser(browser *websocket.Conn, w *Widget, out chan<- frame) {
	browser.SetReadLimit(maxMessageSize)
	_ = browser.SetReadDeadline(time.Now().Add(pongWait))
	browser.SetPongHandler(func(string) error {
		return browser.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f frame
		if err := browser.ReadJSON(&f); err != nil {
			return
		}
		switch f.Event {
		case evSendMessage:
			var d struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(f.Data, &d); err != nil {
				continue
			}
			m, err := w.Send(d.Message)
			if err != nil {
				// blank input never reaches the server or the transcript
				continue
			}
			metrics.WsMessagesTotal.Inc()
			// echo the optimistic entry so the tab renders it immediately
			push(out, evMessageSent, m)
		case "read":
			w.MarkRead()
		}
	}
}

func writeBrowser(browser *websocket.Conn, out <-chan frame, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case f := <-out:
			_ = browser.SetWriteDeadline(time.Now().Add(writeWait))
			if err := browser.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = browser.SetWriteDeadline(time.Now().Add(writeWait))
			if err := browser.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = browser.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// push marshals and queues a frame for the browser, dropping it if the tab
// cannot keep up.
func push(out chan<- frame, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	select {
	case out <- frame{Event: event, Data: b}:
	default:
	}
}
