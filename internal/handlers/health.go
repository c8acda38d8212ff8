package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/internal/monitoring"
	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/response"
)

const readinessTimeout = 5 * time.Second

// Health reports liveness. The process answering is enough unless liveness
// probes are registered.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Liveness(requestContext(c))
		writeReport(c, report)
	}
}

// Ready runs the readiness probes and answers 503 when a dependency is down.
func Ready(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), readinessTimeout)
		defer cancel()

		report := manager.Readiness(ctx)
		if !report.Healthy {
			logger.WithModule("health").Warn("readiness check failed", zap.Any("checks", report.Checks))
		}
		writeReport(c, report)
	}
}

func writeReport(c *gin.Context, report monitoring.HealthReport) {
	if !report.Healthy {
		c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Data: report})
		return
	}
	response.Success(c, http.StatusOK, report)
}
