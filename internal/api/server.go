package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the settings the HTTP layer needs from config.
type RouterConfig struct {
	// ServiceName is attached to every request span.
	ServiceName string
	// BootstrapTimeout bounds a run started through POST /api/v1/bootstrap.
	// Zero means no deadline.
	BootstrapTimeout time.Duration
}

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. Middleware order:
//  1. Recovery: panic to 500
//  2. Tracing: trace context per request
//  3. RequestLogger: structured request/response logging
func NewRouter(o orchestratorService, cfg RouterConfig) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(Recovery(slog.Default()))
	engine.Use(Tracing(cfg.ServiceName))
	engine.Use(RequestLogger(slog.Default()))

	h := &Handler{orchestrator: o, bootstrapTimeout: cfg.BootstrapTimeout}

	v1 := engine.Group("/api/v1")
	v1.POST("/bootstrap", h.Bootstrap)
	v1.GET("/bootstrap", h.LastBootstrap)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{engine: engine}
}

// Routes lists the registered method and path pairs.
func (r *Router) Routes() gin.RoutesInfo {
	return r.engine.Routes()
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
