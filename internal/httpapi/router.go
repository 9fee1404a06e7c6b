package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kisanbazar/gateway/internal/config"
	"github.com/kisanbazar/gateway/internal/httpapi/handlers"
	"github.com/kisanbazar/gateway/internal/httpapi/middleware"
	"github.com/kisanbazar/gateway/internal/metrics"
	"github.com/kisanbazar/gateway/internal/realtime"
	"github.com/kisanbazar/gateway/internal/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func NewRouter(cfg config.Config, rly *relay.Relay) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.RateLimit(rate.Every(time.Second/time.Duration(cfg.RateLimitPerSec)), cfg.RateLimitBurst))
	r.Use(cors.New(corsConfig(cfg)))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "message": "method not allowed"})
	})

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.New(cfg, rly)

	api := r.Group("/api")
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		api.Handle(method, "/proxy", h.Proxy)
	}
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)
	api.GET("/session", h.Session)
	api.GET("/chat/history", h.ChatHistory)

	r.GET("/ws", realtime.Serve(cfg, rly))

	return r
}

func corsConfig(cfg config.Config) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowCredentials = true
	cc.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if cfg.IsProd() {
		cc.AllowOrigins = cfg.AllowedOrigins
	} else {
		// dev: the UI runs on a separate local port
		cc.AllowOriginFunc = func(string) bool { return true }
	}
	return cc
}
