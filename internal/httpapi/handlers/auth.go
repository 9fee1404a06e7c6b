package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kisanbazar/gateway/internal/session"
)

// Login forwards credentials to the backend and, only when the backend hands
// back a token, mints the session cookie. A refused login (wrong password,
// pending approval, missing token) passes the backend's payload and status
// through untouched, with no cookie.
func (h *Handler) Login(c *gin.Context) {
	credentials, err := io.ReadAll(c.Request.Body)
	if err != nil {
		relayError(c, err)
		return
	}

	res, token, err := h.Relay.Login(c.Request.Context(), credentials)
	if err != nil {
		relayError(c, err)
		return
	}
	if token == "" {
		writeResult(c, res)
		return
	}

	session.Issue(c, token, h.Cfg.IsProd())
	c.JSON(http.StatusOK, res.Payload)
}

// Logout clears the cookie and reports success. No backend call: the token
// simply stops being presented and expires server-side on its own.
func (h *Handler) Logout(c *gin.Context) {
	session.Clear(c, h.Cfg.IsProd())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session tells the UI whether a session cookie is present, with the
// best-effort identity decoded from it. The browser calls this on boot
// instead of mirroring auth state into its own storage.
func (h *Handler) Session(c *gin.Context) {
	token := session.Token(c)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	id, err := session.FromToken(token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user_id":       id.UserID,
		"name":          id.Name,
	})
}
