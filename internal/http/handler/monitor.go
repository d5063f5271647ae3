package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/pulse/internal/http/dto"
	"basegraph.app/pulse/internal/scheduler"
)

// MonitorController is satisfied by *scheduler.Scheduler.
type MonitorController interface {
	Start(ctx context.Context) error
	Stop() error
	Status() scheduler.Status
}

type MonitorHandler struct {
	monitor MonitorController
}

func NewMonitorHandler(monitor MonitorController) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

func (h *MonitorHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToMonitorStatusResponse(h.monitor.Status()))
}

func (h *MonitorHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.monitor.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to start monitor", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start monitor"})
		return
	}

	slog.InfoContext(ctx, "monitor started via api")
	c.JSON(http.StatusOK, dto.ControlResponse{Running: true, Message: "monitor started"})
}

// Stop blocks until the in-flight task, if any, has finished.
func (h *MonitorHandler) Stop(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.monitor.Stop(); err != nil {
		if errors.Is(err, scheduler.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to stop monitor", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop monitor"})
		return
	}

	slog.InfoContext(ctx, "monitor stopped via api")
	c.JSON(http.StatusOK, dto.ControlResponse{Running: false, Message: "monitor stopped"})
}
