package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"internet-store/storeinit/internal/orchestrator"
)

// orchestratorService is the subset of *orchestrator.Orchestrator used by the
// HTTP handlers. Declaring it as an interface allows test doubles to be injected.
type orchestratorService interface {
	RunBootstrap(ctx context.Context) (*orchestrator.BootstrapResult, error)
	RunDeepHealth(ctx context.Context) map[string]orchestrator.ProbeResult
	LastResult() *orchestrator.BootstrapResult
	IsReady() bool
	IsBootstrapInProgress() bool
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	orchestrator     orchestratorService
	bootstrapTimeout time.Duration
}

// Bootstrap handles POST /api/v1/bootstrap.
// It returns 202 immediately when a new run is started, or 409 if one is
// already in progress. The run itself happens in a background goroutine and
// its outcome is read back through GET /api/v1/bootstrap.
func (h *Handler) Bootstrap(c *gin.Context) {
	if h.orchestrator.IsBootstrapInProgress() {
		c.JSON(http.StatusConflict, gin.H{"status": orchestrator.StatusInProgress})
		return
	}
	go h.runBootstrap() //nolint:contextcheck
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) runBootstrap() {
	ctx := context.Background()
	if h.bootstrapTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.bootstrapTimeout)
		defer cancel()
	}
	if _, err := h.orchestrator.RunBootstrap(ctx); err != nil {
		slog.Warn("background bootstrap did not complete", "error", err)
	}
}

// LastBootstrap handles GET /api/v1/bootstrap.
// It returns the most recent run's result, or 404 if nothing has run yet.
func (h *Handler) LastBootstrap(c *gin.Context) {
	result := h.orchestrator.LastResult()
	if result == nil {
		status := "not-run"
		if h.orchestrator.IsBootstrapInProgress() {
			status = orchestrator.StatusInProgress
		}
		c.JSON(http.StatusNotFound, gin.H{"status": status})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Health handles GET /health.
// It always returns 200; this is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep.
// It probes the database and any configured lock or event backend, and
// returns 200 only when every probe is OK.
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.orchestrator.RunDeepHealth(c.Request.Context())

	allOK := true
	for _, p := range probes {
		if !p.OK {
			allOK = false
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": probes,
	})
}

// Ready handles GET /ready.
// It returns 200 only after a successful bootstrap; 503 otherwise.
func (h *Handler) Ready(c *gin.Context) {
	if h.orchestrator.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
}
