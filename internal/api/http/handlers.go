package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard"
	"github.com/GriffinCanCode/freezeguard/internal/guard/fallback"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root handler.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	guard   *guard.Guard
	metrics *monitoring.Metrics
	logger  *zap.Logger
	started time.Time
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(g *guard.Guard, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		guard:   g,
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
	}
}

// Register mounts every handler on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/modals", h.ListModals)
	r.POST("/modals/close-all", h.CloseAllModals)
	r.GET("/requests", h.ListRequests)
	r.POST("/requests/abort", h.AbortRequests)
	r.POST("/activity", h.RecordActivity)
	r.POST("/renders", h.RecordRender)
	r.POST("/freeze", h.FreezeDetected)
	r.POST("/fallback", h.ForceFallback)
	r.POST("/sweep", h.Sweep)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "freezeguard",
		"version": Version,
	})
}

// Health reports whether the guard can see a document
func (h *Handlers) Health(c *gin.Context) {
	snap := h.guard.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"dom":      snap.DOM,
		"phase":    snap.Recovery.Phase,
		"pending":  snap.Requests.Pending,
		"uptime_s": time.Since(h.started).Seconds(),
	})
}

// Stats returns the guard snapshot with the server's own counters
func (h *Handlers) Stats(c *gin.Context) {
	resp := gin.H{"guard": h.guard.Snapshot()}
	if h.metrics != nil {
		resp["summary"] = h.summary()
	}
	c.JSON(http.StatusOK, resp)
}

// ListModals lists registered modal controllers
func (h *Handlers) ListModals(c *gin.Context) {
	snap := h.guard.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"modals": snap.Modals,
		"open":   snap.OpenModals,
	})
}

// CloseAllModals force-closes every registered controller
func (h *Handlers) CloseAllModals(c *gin.Context) {
	n := h.guard.Modals().ForceCloseAll()
	h.logger.Info("modals force-closed via API", zap.Int("count", n))
	c.JSON(http.StatusOK, gin.H{"closed": n})
}

type operationView struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	StartedAt time.Time `json:"started_at"`
	AgeMs     int64     `json:"age_ms"`
}

// ListRequests lists pending tracked operations, oldest first
func (h *Handlers) ListRequests(c *gin.Context) {
	now := h.guard.Scheduler().Now()
	ops := h.guard.Watchdog().Operations()
	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, operationView{
			ID:        op.ID.String(),
			Label:     op.Label,
			StartedAt: op.StartedAt,
			AgeMs:     now.Sub(op.StartedAt).Milliseconds(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"requests": views,
		"stats":    h.guard.Watchdog().Stats(),
	})
}

// AbortRequests aborts every pending operation
func (h *Handlers) AbortRequests(c *gin.Context) {
	n := h.guard.Watchdog().AbortAll()
	c.JSON(http.StatusOK, gin.H{"aborted": n})
}

// RecordActivity records a user interaction reported by the page
func (h *Handlers) RecordActivity(c *gin.Context) {
	h.guard.RecordActivity()
	c.Status(http.StatusNoContent)
}

// RenderRequest reports one component render
type RenderRequest struct {
	Component string `json:"component" binding:"required"`
	Count     int    `json:"count"`
}

// RecordRender feeds renders into the render loop monitor
func (h *Handlers) RecordRender(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	var (
		excessive bool
		last      gin.H
	)
	for i := 0; i < req.Count; i++ {
		if ex, fired := h.guard.RecordRender(req.Component); fired {
			excessive = true
			last = gin.H{
				"count":               ex.Count,
				"time_span_ms":        ex.TimeSpan.Milliseconds(),
				"average_interval_ms": ex.AverageInterval.Milliseconds(),
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"component": req.Component,
		"excessive": excessive,
		"last":      last,
	})
}

// ReasonRequest carries an optional recovery reason
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// FreezeDetected raises an automatic freeze signal
func (h *Handlers) FreezeDetected(c *gin.Context) {
	req, ok := h.bindReason(c)
	if !ok {
		return
	}
	if req.Reason == "" {
		req.Reason = fallback.ReasonTimeout
	}
	c.JSON(http.StatusOK, h.guard.FreezeDetected(req.Reason))
}

// ForceFallback triggers a manual recovery pass
func (h *Handlers) ForceFallback(c *gin.Context) {
	req, ok := h.bindReason(c)
	if !ok {
		return
	}
	rec := h.guard.ForceFallback(req.Reason)
	h.logger.Info("fallback forced via API",
		zap.String("reason", rec.Reason),
		zap.String("kind", string(rec.Kind)))
	c.JSON(http.StatusOK, rec)
}

// Sweep runs one cleanup pass
func (h *Handlers) Sweep(c *gin.Context) {
	c.JSON(http.StatusOK, h.guard.Cleanup())
}

func (h *Handlers) bindReason(c *gin.Context) (ReasonRequest, bool) {
	var req ReasonRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}
