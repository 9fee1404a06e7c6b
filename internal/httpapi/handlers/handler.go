package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kisanbazar/gateway/internal/config"
	"github.com/kisanbazar/gateway/internal/metrics"
	"github.com/kisanbazar/gateway/internal/relay"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Cfg   config.Config
	Relay *relay.Relay
}

func New(cfg config.Config, rly *relay.Relay) *Handler {
	return &Handler{Cfg: cfg, Relay: rly}
}

// fail writes the gateway's own JSON failure envelope. Backend failures never
// go through here — they pass through writeResult verbatim.
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// relayError collapses any relay-internal failure to the fixed proxy error.
func relayError(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.Query("path")).Msg("relay failure")
	metrics.RelayFailuresTotal.Inc()
	fail(c, 500, "Proxy error")
}

// writeResult hands the backend's payload back to the browser with the
// backend's original status code.
func writeResult(c *gin.Context, res relay.Result) {
	metrics.RelayRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(res.Status)).Inc()
	if res.IsJSON {
		c.JSON(res.Status, res.Payload)
		return
	}
	ct := res.ContentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	c.Data(res.Status, ct, res.Raw)
}
