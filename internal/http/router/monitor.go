package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/pulse/internal/http/handler"
)

func MonitorRouter(rg *gin.RouterGroup, h *handler.MonitorHandler, n *handler.NotificationHandler) {
	rg.GET("/status", h.Status)
	rg.POST("/start", h.Start)
	rg.POST("/stop", h.Stop)
	rg.GET("/notifications/stream", n.Stream)
}
