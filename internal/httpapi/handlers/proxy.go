package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kisanbazar/gateway/internal/relay"
	"github.com/kisanbazar/gateway/internal/session"
)

// Proxy relays an arbitrary browser request to the backend. The target is the
// required, URL-encoded `path` query parameter; the session cookie (when
// present) becomes the bearer header.
func (h *Handler) Proxy(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		fail(c, http.StatusBadRequest, "Missing path")
		return
	}
	token := session.Token(c)

	body, err := requestBody(c)
	if err != nil {
		relayError(c, err)
		return
	}

	res, err := h.Relay.Forward(c.Request.Context(), c.Request.Method, path, token, body)
	if err != nil {
		relayError(c, err)
		return
	}
	writeResult(c, res)
}

// requestBody classifies the incoming content type into exactly one handling
// branch. JSON keeps the raw text; multipart is parsed so the relay can
// rebuild it under a fresh boundary; everything else (including bodyless GET)
// passes through untouched.
func requestBody(c *gin.Context) (relay.Body, error) {
	switch relay.Classify(c.ContentType()) {
	case relay.BodyJSON:
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return relay.Body{}, err
		}
		return relay.Body{Kind: relay.BodyJSON, Raw: raw}, nil

	case relay.BodyMultipart:
		form, err := c.MultipartForm()
		if err != nil {
			return relay.Body{}, err
		}
		b := relay.Body{Kind: relay.BodyMultipart, Fields: form.Value}
		for field, headers := range form.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					return relay.Body{}, err
				}
				content, err := io.ReadAll(f)
				_ = f.Close()
				if err != nil {
					return relay.Body{}, err
				}
				b.Files = append(b.Files, relay.File{Field: field, Name: fh.Filename, Content: content})
			}
		}
		return b, nil

	case relay.BodyNone:
		return relay.Body{Kind: relay.BodyNone}, nil

	default:
		var raw []byte
		if c.Request.Body != nil {
			var err error
			raw, err = io.ReadAll(c.Request.Body)
			if err != nil {
				return relay.Body{}, err
			}
		}
		return relay.Body{Kind: relay.BodyRaw, ContentType: c.ContentType(), Raw: raw}, nil
	}
}
