package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/internal/handlers"
	"github.com/charlesng35/domaingate/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	r.GET("/health", handlers.Health(manager))
	r.GET("/health/live", handlers.Health(manager))
	r.GET("/health/ready", handlers.Ready(manager))
}
