package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/kisanbazar/gateway/internal/relay"
	"github.com/kisanbazar/gateway/internal/session"
)

// ChatHistory relays the viewer's chat transcript from the backend. It is the
// one relayed endpoint that refuses anonymous callers outright, before any
// network I/O: the widget only exists for authenticated viewers.
func (h *Handler) ChatHistory(c *gin.Context) {
	token := session.Token(c)
	if token == "" {
		fail(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	senderID := c.Query("sender_id")
	if senderID == "" {
		if id, err := session.FromToken(token); err == nil {
			senderID = id.UserID
		}
	}

	path := "/user/chat/messages"
	if senderID != "" {
		path += "?sender_id=" + url.QueryEscape(senderID)
	}

	res, err := h.Relay.Forward(c.Request.Context(), http.MethodGet, path, token, relay.Body{})
	if err != nil {
		relayError(c, err)
		return
	}
	writeResult(c, res)
}
