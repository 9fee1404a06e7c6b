// Package session owns the kb_access cookie: the only piece of cross-request
// state in the gateway. The token inside is an opaque credential issued by the
// backend; the gateway stores it HTTP-only so page script never sees it.
package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// CookieName carries the backend-issued bearer token.
	CookieName = "kb_access"
	// TTL is the fixed cookie lifetime in seconds (one day).
	TTL = 86400
)

// Issue sets the session cookie: HttpOnly, whole-site path, strict same-site,
// Secure only in production. gin URL-encodes the value on write and
// Token URL-decodes it on read.
func Issue(c *gin.Context, token string, prod bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, TTL, "/", "", prod, true)
}

// Clear unconditionally expires the cookie. Calling it without a prior
// session produces the same clearing header, so logout stays idempotent.
func Clear(c *gin.Context, prod bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", prod, true)
}

// Token returns the decoded session token, or "" when the viewer is anonymous.
func Token(c *gin.Context) string {
	v, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return v
}
