package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/pulse/internal/http/handler"
)

type Handlers struct {
	Health        *handler.HealthHandler
	Monitor       *handler.MonitorHandler
	Notifications *handler.NotificationHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.Health)

	v1 := router.Group("/api/v1")
	{
		MonitorRouter(v1.Group("/monitor"), h.Monitor, h.Notifications)
	}
}
